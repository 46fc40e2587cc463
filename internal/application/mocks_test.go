package application_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ericfisherdev/calsync/internal/domain/model"
	"github.com/ericfisherdev/calsync/internal/domain/port/driven"
)

// --- Mock implementations ---

type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	gen    int64
	gets   int
	setErr error
	delErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = append([]byte(nil), value...)
	m.gen++
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delErr != nil {
		return m.delErr
	}
	if _, ok := m.data[key]; ok {
		delete(m.data, key)
		m.gen++
	}
	return nil
}

func (m *memStore) Generation(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen, nil
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func (m *memStore) getCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

type mockAuthenticator struct {
	signIn      func(ctx context.Context) (model.Credential, error)
	ensureFresh func(ctx context.Context, cred model.Credential) (model.Credential, error)
}

func (m *mockAuthenticator) SignIn(ctx context.Context) (model.Credential, error) {
	if m.signIn == nil {
		return model.Credential{}, driven.ErrConfigMissing
	}
	return m.signIn(ctx)
}

func (m *mockAuthenticator) EnsureFresh(ctx context.Context, cred model.Credential) (model.Credential, error) {
	if m.ensureFresh == nil {
		return cred, nil
	}
	return m.ensureFresh(ctx, cred)
}

type listEventsCall struct {
	AccountID  string
	CalendarID string
	Window     model.TimeRange
	Self       string
}

type mockProvider struct {
	mu         sync.Mutex
	calendars  map[string][]model.CalendarRef // by account (credential AccountID)
	events     map[string][]model.Event       // by calendar id
	calErr     map[string]error               // by account
	eventErr   map[string]error               // by calendar id
	eventCalls []listEventsCall
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		calendars: make(map[string][]model.CalendarRef),
		events:    make(map[string][]model.Event),
		calErr:    make(map[string]error),
		eventErr:  make(map[string]error),
	}
}

func (m *mockProvider) ListCalendars(_ context.Context, cred model.Credential) ([]model.CalendarRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.calErr[cred.AccountID]; err != nil {
		return nil, err
	}
	return append([]model.CalendarRef(nil), m.calendars[cred.AccountID]...), nil
}

func (m *mockProvider) ListEvents(_ context.Context, cred model.Credential, calendarID string, window model.TimeRange, self string) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCalls = append(m.eventCalls, listEventsCall{AccountID: cred.AccountID, CalendarID: calendarID, Window: window, Self: self})
	if err := m.eventErr[calendarID]; err != nil {
		return nil, err
	}
	var out []model.Event
	for _, e := range m.events[calendarID] {
		e.ID = model.EventID(e.ProviderID, cred.AccountID)
		out = append(out, e)
	}
	return out, nil
}

func (m *mockProvider) calls() []listEventsCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]listEventsCall(nil), m.eventCalls...)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingOpener struct {
	mu     sync.Mutex
	opened []string
	err    error
}

func (o *recordingOpener) Open(url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, url)
	return o.err
}

func (o *recordingOpener) urls() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.opened...)
}

var errBoom = errors.New("boom")
