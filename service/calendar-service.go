package service

import (
	"context"
	"ctfbot/app_error"
	"ctfbot/client"
	"time"
)

const (
	DefaultUpcomingLimit = 5
	MaxUpcomingLimit     = 10
	UpcomingWindow       = 30 * 24 * time.Hour
)

type CalendarService struct {
	eventInfo EventInfo
}

func NewCalendarService(eventInfo EventInfo) *CalendarService {
	return &CalendarService{eventInfo: eventInfo}
}

// ClampLimit resets limits outside 1..10 to the default.
func ClampLimit(limit int) int {
	if limit < 1 || limit > MaxUpcomingLimit {
		return DefaultUpcomingLimit
	}
	return limit
}

func (s *CalendarService) NextCTFs(ctx context.Context, limit int) ([]*client.CTFTimeEvent, error) {
	events, err := s.eventInfo.FetchUpcoming(ctx, ClampLimit(limit), UpcomingWindow)
	if err != nil {
		return nil, app_error.ExternalService("failed to list upcoming ctfs", err)
	}
	if len(events) == 0 {
		return nil, app_error.NotFound("No upcoming CTFs in the next 30 days. ❌")
	}
	return events, nil
}
