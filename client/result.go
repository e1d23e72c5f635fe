package client

type ResultStatus int

const (
	StatusOk ResultStatus = iota
	// the upstream answered but the requested entity is not there
	StatusAbsent
	// the upstream could not be asked or answered with garbage
	StatusFailed
)

// Result separates "not there" from "could not check" for lookups that are allowed to come back empty.
type Result[T any] struct {
	Value  T
	Status ResultStatus
	Err    error
}

func Ok[T any](value T) Result[T] {
	return Result[T]{Value: value, Status: StatusOk}
}

func Absent[T any]() Result[T] {
	return Result[T]{Status: StatusAbsent}
}

func Failed[T any](err error) Result[T] {
	return Result[T]{Status: StatusFailed, Err: err}
}

func (r Result[T]) IsOk() bool {
	return r.Status == StatusOk
}
