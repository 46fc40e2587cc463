package model

import "time"

// UntitledEvent is the title given to events that arrive without one.
const UntitledEvent = "(No title)"

// Event is a single, already-expanded calendar event. Events are immutable
// once built; a re-sync replaces them by ID.
type Event struct {
	ID           string       `json:"id"`
	ProviderID   string       `json:"provider_id"`
	CalendarID   string       `json:"calendar_id"`
	AccountID    string       `json:"account_id"`
	Title        string       `json:"title"`
	Start        time.Time    `json:"start"`
	End          time.Time    `json:"end"`
	MeetingURL   string       `json:"meeting_url,omitempty"`
	ColorHex     string       `json:"color_hex"`
	Location     string       `json:"location,omitempty"`
	Description  string       `json:"description,omitempty"`
	SelfResponse SelfResponse `json:"self_response"`
}

// EventID builds the globally unique event id. The same provider event seen
// through two accounts yields two distinct events.
func EventID(providerID, accountID string) string {
	return providerID + "|" + accountID
}

// IsAllDay reports whether both start and end fall exactly on midnight in loc.
func (e Event) IsAllDay(loc *time.Location) bool {
	return isMidnight(e.Start.In(loc)) && isMidnight(e.End.In(loc))
}

// Duration returns End - Start.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// SyncWindow returns the sliding range used for a sync pass at now:
// 14 days back through 60 days ahead.
func SyncWindow(now time.Time) TimeRange {
	return TimeRange{
		Start: now.AddDate(0, 0, -14),
		End:   now.AddDate(0, 0, 60),
	}
}

// LayoutSlot places one event on a day grid. The renderer draws it with
// width 1/ColumnsInGroup at horizontal offset ColumnIndex/ColumnsInGroup.
type LayoutSlot struct {
	Event          Event
	ColumnIndex    int
	ColumnsInGroup int
}

// ViewState is the last-used calendar view.
type ViewState struct {
	ViewMode     ViewMode  `json:"view_mode"`
	WeekStyle    WeekStyle `json:"week_style"`
	SelectedDate time.Time `json:"selected_date"`
}

// DefaultViewState returns the view shown before the user picks one.
func DefaultViewState(now time.Time) ViewState {
	return ViewState{
		ViewMode:     ViewModeWeek,
		WeekStyle:    WeekStyleList,
		SelectedDate: now,
	}
}
