// Package googlecal implements the CalendarProvider port using the Google
// Calendar v3 API client.
package googlecal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gregjones/httpcache"
	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ericfisherdev/calsync/internal/domain/meetinglink"
	"github.com/ericfisherdev/calsync/internal/domain/model"
	"github.com/ericfisherdev/calsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CalendarProvider = (*Provider)(nil)

const pageSize = 250

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL points the client at a different API root. Used by tests.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) { p.baseURL = baseURL }
}

// WithTransport sets the round tripper beneath the cache and auth layers.
func WithTransport(rt http.RoundTripper) Option {
	return func(p *Provider) { p.base = rt }
}

// WithLocation sets the zone used to place all-day dates.
func WithLocation(loc *time.Location) Option {
	return func(p *Provider) { p.loc = loc }
}

// WithOrganizerAccepts controls whether an event organized by the signed-in
// user, with no attendee entry for them, counts as accepted.
func WithOrganizerAccepts(accepts bool) Option {
	return func(p *Provider) { p.organizerAccepts = accepts }
}

// Provider talks to the Google Calendar API. Each account gets its own
// in-memory HTTP cache so ETag revalidation never crosses accounts.
type Provider struct {
	baseURL          string
	base             http.RoundTripper
	loc              *time.Location
	organizerAccepts bool

	mu     sync.Mutex
	caches map[string]*httpcache.Transport
}

// New creates a Provider. The transport stack per request is:
//  1. oauth2.Transport (bearer token from the credential)
//  2. httpcache (per-account ETag caching)
//  3. the base round tripper (http.DefaultTransport unless overridden)
func New(opts ...Option) *Provider {
	p := &Provider{
		loc:              time.Local,
		organizerAccepts: true,
		caches:           make(map[string]*httpcache.Transport),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Forget drops the HTTP cache held for an account.
func (p *Provider) Forget(accountID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.caches, accountID)
}

func (p *Provider) cacheFor(accountID string) *httpcache.Transport {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.caches[accountID]
	if !ok {
		t = httpcache.NewMemoryCacheTransport()
		t.Transport = p.base
		p.caches[accountID] = t
	}
	return t
}

func (p *Provider) service(ctx context.Context, cred model.Credential) (*calendar.Service, error) {
	client := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.AccessToken, TokenType: "Bearer"}),
			Base:   p.cacheFor(cred.AccountID),
		},
	}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if p.baseURL != "" {
		opts = append(opts, option.WithEndpoint(p.baseURL))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return svc, nil
}

// ListCalendars returns every calendar on the account's calendar list.
// Entries without an id or summary are skipped.
func (p *Provider) ListCalendars(ctx context.Context, cred model.Credential) ([]model.CalendarRef, error) {
	svc, err := p.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	var calendars []model.CalendarRef
	err = svc.CalendarList.List().MaxResults(pageSize).Pages(ctx, func(page *calendar.CalendarList) error {
		for _, entry := range page.Items {
			if entry == nil || entry.Id == "" || entry.Summary == "" {
				continue
			}
			calendars = append(calendars, model.CalendarRef{
				ID:            entry.Id,
				Summary:       entry.Summary,
				ProviderColor: entry.BackgroundColor,
			})
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}

	return calendars, nil
}

// ListEvents returns the expanded single events of calendarID starting in
// window. Cancelled instances are dropped.
func (p *Provider) ListEvents(ctx context.Context, cred model.Credential, calendarID string, window model.TimeRange, self string) ([]model.Event, error) {
	svc, err := p.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	call := svc.Events.List(calendarID).
		TimeMin(window.Start.Format(time.RFC3339)).
		TimeMax(window.End.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(pageSize)

	var events []model.Event
	err = call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			e, ok := p.toEvent(item, cred.AccountID, calendarID, self)
			if ok {
				events = append(events, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}

	return events, nil
}

func (p *Provider) toEvent(item *calendar.Event, accountID, calendarID, self string) (model.Event, bool) {
	if item == nil || item.Id == "" || item.Status == "cancelled" {
		return model.Event{}, false
	}

	start, err := p.parseEventTime(item.Start)
	if err != nil {
		slog.Debug("skipping event with unreadable start", "event", item.Id, "error", err)
		return model.Event{}, false
	}
	end, err := p.parseEventTime(item.End)
	if err != nil {
		slog.Debug("skipping event with unreadable end", "event", item.Id, "error", err)
		return model.Event{}, false
	}

	title := item.Summary
	if title == "" {
		title = model.UntitledEvent
	}

	return model.Event{
		ID:           model.EventID(item.Id, accountID),
		ProviderID:   item.Id,
		CalendarID:   calendarID,
		AccountID:    accountID,
		Title:        title,
		Start:        start,
		End:          end,
		MeetingURL:   meetingURL(item),
		Location:     item.Location,
		Description:  item.Description,
		SelfResponse: selfResponse(item, self, p.organizerAccepts),
	}, true
}

// parseEventTime reads a timed value as RFC 3339 and an all-day value as
// local midnight in the provider's zone.
func (p *Provider) parseEventTime(dt *calendar.EventDateTime) (time.Time, error) {
	switch {
	case dt == nil:
		return time.Time{}, errors.New("missing time")
	case dt.DateTime != "":
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(p.loc), nil
	case dt.Date != "":
		return time.ParseInLocation(time.DateOnly, dt.Date, p.loc)
	default:
		return time.Time{}, errors.New("empty time")
	}
}

// meetingURL prefers the structured conference fields, then an http(s)
// entry point, then any entry point, then a link found in the free text.
func meetingURL(item *calendar.Event) string {
	if item.HangoutLink != "" {
		return item.HangoutLink
	}

	if item.ConferenceData != nil {
		var fallback string
		for _, ep := range item.ConferenceData.EntryPoints {
			if ep == nil || ep.Uri == "" {
				continue
			}
			u, err := url.Parse(ep.Uri)
			if err != nil {
				continue
			}
			scheme := strings.ToLower(u.Scheme)
			if scheme == "http" || scheme == "https" {
				return ep.Uri
			}
			if fallback == "" {
				fallback = ep.Uri
			}
		}
		if fallback != "" {
			return fallback
		}
	}

	return meetinglink.FindURL(item.Location + "\n" + item.Description)
}

// selfResponse finds the signed-in user among the attendees. An organizer
// with no attendee entry, or one without a response status, counts as
// accepted when organizerAccepts is set.
func selfResponse(item *calendar.Event, self string, organizerAccepts bool) model.SelfResponse {
	isSelf := func(flag bool, email string) bool {
		return flag || (self != "" && strings.EqualFold(email, self))
	}

	listed := false
	for _, a := range item.Attendees {
		if a != nil && isSelf(a.Self, a.Email) {
			if a.ResponseStatus != "" {
				return model.ParseSelfResponse(a.ResponseStatus)
			}
			listed = true
			break
		}
	}

	if organizerAccepts && item.Organizer != nil && isSelf(item.Organizer.Self, item.Organizer.Email) {
		return model.SelfResponseAccepted
	}
	if listed {
		return model.SelfResponseUnknown
	}
	return model.SelfResponseAbsent
}

// mapError converts API failures into the port's error values. Context
// errors pass through untouched.
func mapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized {
			return driven.ErrUnauthorized
		}
		body := apiErr.Body
		if body == "" {
			body = apiErr.Message
		}
		return &driven.RequestFailedError{Status: apiErr.Code, Body: body}
	}

	return fmt.Errorf("calendar request: %w", err)
}
