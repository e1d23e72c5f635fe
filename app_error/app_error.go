package app_error

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindPermissionDenied
	KindValidation
	KindExternalService
	KindPoll
)

// AppError carries a message that is safe to show to the user next to the underlying cause.
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func NotFound(message string) error {
	return &AppError{Kind: KindNotFound, Message: message}
}

func PermissionDenied(message string) error {
	return &AppError{Kind: KindPermissionDenied, Message: message}
}

func Validation(message string) error {
	return &AppError{Kind: KindValidation, Message: message}
}

func ExternalService(message string, err error) error {
	return &AppError{Kind: KindExternalService, Message: message, Err: err}
}

func Poll(message string, err error) error {
	return &AppError{Kind: KindPoll, Message: message, Err: err}
}

func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// UserMessage hides causes of infrastructure failures from end users.
func UserMessage(err error) string {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return "Something went wrong. ❌"
	}
	switch appErr.Kind {
	case KindNotFound, KindPermissionDenied, KindValidation:
		return appErr.Message
	default:
		return "Something went wrong while talking to an external service. ❌"
	}
}

func WithHTTPStatus(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var appErr *AppError
	if errors.As(err, &appErr) {
		status = appErr.HTTPStatus()
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
