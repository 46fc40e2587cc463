package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/ericfisherdev/calsync/internal/application"
	"github.com/ericfisherdev/calsync/internal/domain/model"
)

// dateLayout is the wire format of calendar days in paths and bodies.
const dateLayout = time.DateOnly

// descriptionPolicy strips all markup from provider-supplied descriptions.
var descriptionPolicy = bluemonday.StrictPolicy()

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status   string `json:"status"`
	Time     string `json:"time"`
	Accounts int    `json:"accounts"`
	Events   int    `json:"events"`
}

// AccountResponse is the JSON representation of a connected account and its
// last sync outcome.
type AccountResponse struct {
	ID              string `json:"id"`
	DisplayName     string `json:"display_name"`
	Color           string `json:"color"`
	AutoJoinEnabled bool   `json:"auto_join_enabled"`
	LastSyncedAt    string `json:"last_synced_at,omitempty"`
	EventCount      int    `json:"event_count"`
	LastError       string `json:"last_error,omitempty"`
	LastErrorAt     string `json:"last_error_at,omitempty"`
}

// CalendarResponse is the JSON representation of one calendar of an account.
type CalendarResponse struct {
	ID            string  `json:"id"`
	Summary       string  `json:"summary"`
	Color         string  `json:"color"`
	ProviderColor string  `json:"provider_color,omitempty"`
	CustomColor   *string `json:"custom_color"`
	IsVisible     bool    `json:"is_visible"`
}

// EventResponse is the JSON representation of an event. Description is
// plain text; DescriptionHTML is sanitized HTML with links.
type EventResponse struct {
	ID              string `json:"id"`
	ProviderID      string `json:"provider_id"`
	CalendarID      string `json:"calendar_id"`
	AccountID       string `json:"account_id"`
	Title           string `json:"title"`
	Start           string `json:"start"`
	End             string `json:"end"`
	AllDay          bool   `json:"all_day"`
	MeetingURL      string `json:"meeting_url,omitempty"`
	Color           string `json:"color"`
	Location        string `json:"location,omitempty"`
	Description     string `json:"description,omitempty"`
	DescriptionHTML string `json:"description_html,omitempty"`
	SelfResponse    string `json:"self_response,omitempty"`
}

// LayoutSlotResponse places one event on the day grid.
type LayoutSlotResponse struct {
	Event          EventResponse `json:"event"`
	ColumnIndex    int           `json:"column_index"`
	ColumnsInGroup int           `json:"columns_in_group"`
}

// DayLayoutResponse is the JSON representation of a laid-out day.
type DayLayoutResponse struct {
	Date   string               `json:"date"`
	AllDay []EventResponse      `json:"all_day"`
	Slots  []LayoutSlotResponse `json:"slots"`
}

// ViewStateResponse is the JSON representation of the last-used view. It is
// also the request body of PUT /view-state.
type ViewStateResponse struct {
	ViewMode     string `json:"view_mode"`
	WeekStyle    string `json:"week_style"`
	SelectedDate string `json:"selected_date"`
}

// AutoJoinRequest is the JSON body for the auto-join toggle endpoint.
type AutoJoinRequest struct {
	Enabled *bool `json:"enabled"`
}

// CalendarPatchRequest is the JSON body for the calendar override endpoint.
// Absent fields are left unchanged; an empty color clears the custom color.
type CalendarPatchRequest struct {
	IsVisible *bool   `json:"is_visible"`
	Color     *string `json:"color"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// toAccountResponse converts a domain Account and its status to JSON form.
func toAccountResponse(a model.Account, st application.AccountStatus) AccountResponse {
	return AccountResponse{
		ID:              a.ID,
		DisplayName:     a.DisplayName,
		Color:           a.ResolvedColor(),
		AutoJoinEnabled: a.AutoJoinEnabled,
		LastSyncedAt:    formatTime(st.LastSyncedAt),
		EventCount:      st.EventCount,
		LastError:       st.LastError,
		LastErrorAt:     formatTime(st.LastErrorAt),
	}
}

// toCalendarResponse converts a domain CalendarRef to its JSON representation.
func toCalendarResponse(c model.CalendarRef) CalendarResponse {
	return CalendarResponse{
		ID:            c.ID,
		Summary:       c.Summary,
		Color:         c.DisplayColor(),
		ProviderColor: c.ProviderColor,
		CustomColor:   c.CustomColor,
		IsVisible:     c.IsVisible,
	}
}

// toEventResponse converts a domain Event to its JSON representation. All-day
// events keep their local dates; timed events are reported in UTC.
func toEventResponse(e model.Event, loc *time.Location) EventResponse {
	resp := EventResponse{
		ID:              e.ID,
		ProviderID:      e.ProviderID,
		CalendarID:      e.CalendarID,
		AccountID:       e.AccountID,
		Title:           e.Title,
		Start:           formatTime(e.Start),
		End:             formatTime(e.End),
		MeetingURL:      e.MeetingURL,
		Color:           e.ColorHex,
		Location:        e.Location,
		Description:     descriptionPolicy.Sanitize(e.Description),
		DescriptionHTML: renderDescription(e.Description),
		SelfResponse:    string(e.SelfResponse),
	}
	if e.IsAllDay(loc) {
		resp.AllDay = true
		resp.Start = e.Start.In(loc).Format(dateLayout)
		resp.End = e.End.In(loc).Format(dateLayout)
	}
	return resp
}

func toEventResponses(events []model.Event, loc *time.Location) []EventResponse {
	resp := make([]EventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, toEventResponse(e, loc))
	}
	return resp
}

// toDayLayoutResponse converts an application DayLayout to JSON form.
func toDayLayoutResponse(d application.DayLayout, loc *time.Location) DayLayoutResponse {
	slots := make([]LayoutSlotResponse, 0, len(d.Slots))
	for _, s := range d.Slots {
		slots = append(slots, LayoutSlotResponse{
			Event:          toEventResponse(s.Event, loc),
			ColumnIndex:    s.ColumnIndex,
			ColumnsInGroup: s.ColumnsInGroup,
		})
	}

	return DayLayoutResponse{
		Date:   d.Date.Format(dateLayout),
		AllDay: toEventResponses(d.AllDay, loc),
		Slots:  slots,
	}
}

// toViewStateResponse converts a domain ViewState to JSON form.
func toViewStateResponse(vs model.ViewState, loc *time.Location) ViewStateResponse {
	selected := ""
	if !vs.SelectedDate.IsZero() {
		selected = vs.SelectedDate.In(loc).Format(dateLayout)
	}
	return ViewStateResponse{
		ViewMode:     string(vs.ViewMode),
		WeekStyle:    string(vs.WeekStyle),
		SelectedDate: selected,
	}
}
