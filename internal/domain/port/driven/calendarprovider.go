package driven

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfisherdev/calsync/internal/domain/model"
)

// ErrUnauthorized is returned when the provider rejects the access token
// with a 401. The stored credential is no longer usable as-is.
var ErrUnauthorized = errors.New("unauthorized (401): credential rejected by provider")

// RequestFailedError is returned for any other non-success provider response.
type RequestFailedError struct {
	Status int
	Body   string
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

// CalendarProvider lists calendars and events for one account. Calls are
// never retried by the implementation.
type CalendarProvider interface {
	// ListCalendars returns the account's calendars with provider fields set.
	// Override fields (IsVisible, CustomColor) are left at their zero values.
	ListCalendars(ctx context.Context, cred model.Credential) ([]model.CalendarRef, error)

	// ListEvents returns expanded single events of calendarID within window.
	// self is the caller's email, used to resolve SelfResponse. Returned events
	// carry ID, AccountID and CalendarID; ColorHex is left for the caller.
	ListEvents(ctx context.Context, cred model.Credential, calendarID string, window model.TimeRange, self string) ([]model.Event, error)
}
