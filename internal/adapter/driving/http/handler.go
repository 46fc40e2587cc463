// Package httphandler is the HTTP driving adapter that serves the calsync
// REST API.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/calsync/internal/application"
	"github.com/ericfisherdev/calsync/internal/domain/model"
	"github.com/ericfisherdev/calsync/internal/domain/port/driven"
)

// defaultEventsSpan is the range returned by GET /events without a "to".
const defaultEventsSpan = 7 * 24 * time.Hour

// CalendarService is the application surface the API drives. It is
// satisfied by *application.SyncService.
type CalendarService interface {
	Accounts() []model.Account
	Account(accountID string) (model.Account, bool)
	Statuses() []application.AccountStatus
	Calendars(accountID string) ([]model.CalendarRef, bool)
	Events() []model.Event
	EventsBetween(from, to time.Time) []model.Event
	DayLayout(day time.Time) application.DayLayout
	ViewState() model.ViewState
	Location() *time.Location

	SignIn(ctx context.Context) (model.Account, error)
	RemoveAccount(ctx context.Context, accountID string) error
	SetAutoJoin(ctx context.Context, accountID string, enabled bool) error
	UpdateCalendar(ctx context.Context, accountID, calendarID string, update application.CalendarUpdate) error
	SetViewState(ctx context.Context, vs model.ViewState) error
	RequestRefresh(ctx context.Context, accountID string) error
}

// RequestRecorder receives per-request measurements.
type RequestRecorder interface {
	RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	svc    CalendarService
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(svc CalendarService, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
		now:    time.Now,
	}
}

// Options configures the optional parts of the served mux.
type Options struct {
	// Metrics records each request. Nil disables request metrics.
	Metrics RequestRecorder
	// MetricsHandler is served at GET /metrics when non-nil.
	MetricsHandler http.Handler
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging, metrics and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger, opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/accounts", h.ListAccounts)
	mux.HandleFunc("POST /api/v1/accounts", h.SignIn)
	mux.HandleFunc("DELETE /api/v1/accounts/{id}", h.RemoveAccount)
	mux.HandleFunc("PUT /api/v1/accounts/{id}/autojoin", h.SetAutoJoin)
	mux.HandleFunc("GET /api/v1/accounts/{id}/calendars", h.ListCalendars)
	mux.HandleFunc("PATCH /api/v1/accounts/{id}/calendars/{calendarID}", h.UpdateCalendar)
	mux.HandleFunc("POST /api/v1/accounts/{id}/refresh", h.RefreshAccount)
	mux.HandleFunc("POST /api/v1/refresh", h.RefreshAll)
	mux.HandleFunc("GET /api/v1/events", h.ListEvents)
	mux.HandleFunc("GET /api/v1/days/{date}/layout", h.DayLayout)
	mux.HandleFunc("GET /api/v1/view-state", h.GetViewState)
	mux.HandleFunc("PUT /api/v1/view-state", h.PutViewState)

	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	if opts.Metrics != nil {
		wrapped = metricsMiddleware(opts.Metrics, wrapped)
	}
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Time:     h.now().UTC().Format(time.RFC3339),
		Accounts: len(h.svc.Accounts()),
		Events:   len(h.svc.Events()),
	})
}

// ListAccounts returns every connected account with its last sync outcome.
func (h *Handler) ListAccounts(w http.ResponseWriter, _ *http.Request) {
	statuses := make(map[string]application.AccountStatus)
	for _, st := range h.svc.Statuses() {
		statuses[st.AccountID] = st
	}

	accounts := h.svc.Accounts()
	resp := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, toAccountResponse(a, statuses[a.ID]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// SignIn runs the browser consent flow and returns the connected account. The
// request stays open until the user finishes or the flow times out.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.SignIn(r.Context())
	if err != nil {
		h.writeServiceError(w, "sign-in failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(account, h.statusOf(account.ID)))
}

func (h *Handler) statusOf(accountID string) application.AccountStatus {
	for _, st := range h.svc.Statuses() {
		if st.AccountID == accountID {
			return st
		}
	}
	return application.AccountStatus{AccountID: accountID}
}

// RemoveAccount disconnects an account and deletes its data.
func (h *Handler) RemoveAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveAccount(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, "failed to remove account", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetAutoJoin enables or disables auto-join for an account.
func (h *Handler) SetAutoJoin(w http.ResponseWriter, r *http.Request) {
	var req AutoJoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, `invalid request body: expected {"enabled": bool}`)
		return
	}

	id := r.PathValue("id")
	if err := h.svc.SetAutoJoin(r.Context(), id, *req.Enabled); err != nil {
		h.writeServiceError(w, "failed to set auto-join", err)
		return
	}

	account, _ := h.svc.Account(id)
	writeJSON(w, http.StatusOK, toAccountResponse(account, h.statusOf(id)))
}

// ListCalendars returns an account's calendars with overrides applied.
func (h *Handler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.svc.Account(id); !ok {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	cals, _ := h.svc.Calendars(id)
	resp := make([]CalendarResponse, 0, len(cals))
	for _, c := range cals {
		resp = append(resp, toCalendarResponse(c))
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateCalendar changes the visibility and/or color of one calendar. The
// account is re-synced once before the response is written.
func (h *Handler) UpdateCalendar(w http.ResponseWriter, r *http.Request) {
	var req CalendarPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IsVisible == nil && req.Color == nil {
		writeError(w, http.StatusBadRequest, "nothing to update: set is_visible or color")
		return
	}
	if req.Color != nil && *req.Color != "" && !isHexColor(*req.Color) {
		writeError(w, http.StatusBadRequest, "invalid color: expected #RRGGBB")
		return
	}

	id := r.PathValue("id")
	calendarID := r.PathValue("calendarID")

	update := application.CalendarUpdate{IsVisible: req.IsVisible, Color: req.Color}
	if err := h.svc.UpdateCalendar(r.Context(), id, calendarID, update); err != nil {
		h.writeServiceError(w, "failed to update calendar", err)
		return
	}

	cals, _ := h.svc.Calendars(id)
	for _, c := range cals {
		if c.ID == calendarID {
			writeJSON(w, http.StatusOK, toCalendarResponse(c))
			return
		}
	}
	writeError(w, http.StatusNotFound, "calendar not found")
}

// RefreshAccount syncs one account and waits for the result.
func (h *Handler) RefreshAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RequestRefresh(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, "refresh failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefreshAll syncs every account and waits for the result.
func (h *Handler) RefreshAll(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RequestRefresh(r.Context(), ""); err != nil {
		h.writeServiceError(w, "refresh failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListEvents returns events intersecting [from, to). Both bounds accept a
// date (local midnight) or an RFC 3339 timestamp. from defaults to the start
// of today and to defaults to seven days after from.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	loc := h.svc.Location()

	from := model.StartOfDay(h.now(), loc)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := parseInstant(v, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from: expected YYYY-MM-DD or RFC 3339")
			return
		}
		from = t
	}

	to := from.Add(defaultEventsSpan)
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := parseInstant(v, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to: expected YYYY-MM-DD or RFC 3339")
			return
		}
		to = t
	}

	if !to.After(from) {
		writeError(w, http.StatusBadRequest, "to must be after from")
		return
	}

	writeJSON(w, http.StatusOK, toEventResponses(h.svc.EventsBetween(from, to), loc))
}

// DayLayout returns the column layout of one day.
func (h *Handler) DayLayout(w http.ResponseWriter, r *http.Request) {
	loc := h.svc.Location()

	day, err := time.ParseInLocation(dateLayout, r.PathValue("date"), loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date: expected YYYY-MM-DD")
		return
	}

	writeJSON(w, http.StatusOK, toDayLayoutResponse(h.svc.DayLayout(day), loc))
}

// GetViewState returns the last-used calendar view.
func (h *Handler) GetViewState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toViewStateResponse(h.svc.ViewState(), h.svc.Location()))
}

// PutViewState stores the last-used calendar view.
func (h *Handler) PutViewState(w http.ResponseWriter, r *http.Request) {
	var req ViewStateResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loc := h.svc.Location()
	vs, err := parseViewState(req, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.SetViewState(r.Context(), vs); err != nil {
		h.writeServiceError(w, "failed to save view state", err)
		return
	}

	writeJSON(w, http.StatusOK, toViewStateResponse(vs, loc))
}

// writeServiceError maps application and port errors onto HTTP statuses.
// Unexpected errors are logged and reported as 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	var reqErr *driven.RequestFailedError

	switch {
	case errors.Is(err, application.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, application.ErrCalendarNotFound):
		writeError(w, http.StatusNotFound, "calendar not found")
	case errors.Is(err, driven.ErrConfigMissing), errors.Is(err, driven.ErrEncryptionKeyNotSet):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, driven.ErrAuthFailed):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, driven.ErrUnauthorized),
		errors.Is(err, driven.ErrTokenExchangeFailed),
		errors.Is(err, driven.ErrTokenRefreshFailed),
		errors.As(err, &reqErr):
		h.logger.Warn(msg, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request canceled")
	default:
		h.logger.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func parseInstant(v string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(dateLayout, v, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

func parseViewState(req ViewStateResponse, loc *time.Location) (model.ViewState, error) {
	vs := model.ViewState{
		ViewMode:  model.ViewMode(req.ViewMode),
		WeekStyle: model.WeekStyle(req.WeekStyle),
	}

	switch vs.ViewMode {
	case model.ViewModeWeek, model.ViewModeMonth:
	default:
		return model.ViewState{}, errors.New("invalid view_mode: expected week or month")
	}

	switch vs.WeekStyle {
	case model.WeekStyleList, model.WeekStyleGrid:
	default:
		return model.ViewState{}, errors.New("invalid week_style: expected list or grid")
	}

	selected, err := time.ParseInLocation(dateLayout, req.SelectedDate, loc)
	if err != nil {
		return model.ViewState{}, errors.New("invalid selected_date: expected YYYY-MM-DD")
	}
	vs.SelectedDate = selected

	return vs, nil
}

// isHexColor reports whether s is a #RRGGBB color.
func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, ch := range s[1:] {
		if !isHexDigit(ch) {
			return false
		}
	}
	return true
}

func isHexDigit(ch rune) bool {
	return (ch >= '0' && ch <= '9') ||
		(ch >= 'a' && ch <= 'f') ||
		(ch >= 'A' && ch <= 'F')
}
