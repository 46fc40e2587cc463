package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/calsync/internal/domain/meetinglink"
	"github.com/ericfisherdev/calsync/internal/domain/model"
	"github.com/ericfisherdev/calsync/internal/domain/port/driven"
)

// Auto-join defaults.
const (
	DefaultAutoJoinInterval  = 30 * time.Second
	DefaultAutoJoinWindow    = 2 * time.Minute
	DefaultAutoJoinLookahead = time.Hour
)

// EventSource is the read side of the SyncService used by the scheduler.
type EventSource interface {
	UpcomingEvents(from, to time.Time) []model.Event
	Account(accountID string) (model.Account, bool)
}

// AutoJoinConfig holds the tunables of an AutoJoinScheduler. Zero values
// select defaults.
type AutoJoinConfig struct {
	Interval  time.Duration
	Window    time.Duration
	Lookahead time.Duration
	Clock     Clock
	Metrics   driven.MetricsRecorder
}

// AutoJoinScheduler opens the meeting link of accepted events when they
// start. Each event id is opened at most once for the life of the scheduler.
type AutoJoinScheduler struct {
	source    EventSource
	opener    driven.URLOpener
	clock     Clock
	metrics   driven.MetricsRecorder
	interval  time.Duration
	window    time.Duration
	lookahead time.Duration

	tickMu sync.Mutex

	mu       sync.Mutex
	launched map[string]struct{}
}

// NewAutoJoinScheduler creates an AutoJoinScheduler reading from source and
// opening links through opener.
func NewAutoJoinScheduler(source EventSource, opener driven.URLOpener, cfg AutoJoinConfig) *AutoJoinScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultAutoJoinInterval
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultAutoJoinWindow
	}
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = DefaultAutoJoinLookahead
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}

	return &AutoJoinScheduler{
		source:    source,
		opener:    opener,
		clock:     cfg.Clock,
		metrics:   cfg.Metrics,
		interval:  cfg.Interval,
		window:    cfg.Window,
		lookahead: cfg.Lookahead,
		launched:  make(map[string]struct{}),
	}
}

// Start ticks on the configured interval until ctx is canceled. Each tick
// runs in its own goroutine; a tick that fires while the previous one is
// still running is skipped.
func (s *AutoJoinScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("auto-join scheduler started", "interval", s.interval, "window", s.window)

	for {
		select {
		case <-ctx.Done():
			slog.Info("auto-join scheduler stopped")
			return
		case <-ticker.C:
			go s.Tick(ctx)
		}
	}
}

// Tick checks the upcoming events once and opens every eligible meeting. It
// returns the number of meetings opened, or -1 if another tick was running.
func (s *AutoJoinScheduler) Tick(ctx context.Context) int {
	if !s.tickMu.TryLock() {
		slog.Debug("auto-join tick skipped, previous tick still running")
		return -1
	}
	defer s.tickMu.Unlock()

	now := s.clock.Now()
	var opened int

	for _, e := range s.source.UpcomingEvents(now.Add(-s.window), now.Add(s.lookahead)) {
		if !s.eligible(e, now) {
			continue
		}

		s.markLaunched(e.ID)

		provider := meetinglink.ProviderOf(e.MeetingURL)
		slog.Info("auto-joining meeting",
			"event", e.ID,
			"account", e.AccountID,
			"title", e.Title,
			"provider", provider,
		)
		if err := s.opener.Open(e.MeetingURL); err != nil {
			slog.Error("failed to open meeting link", "event", e.ID, "error", err)
			continue
		}
		s.metrics.RecordAutoJoin(ctx, provider)
		opened++
	}

	return opened
}

func (s *AutoJoinScheduler) eligible(e model.Event, now time.Time) bool {
	if e.SelfResponse != model.SelfResponseAccepted || e.MeetingURL == "" {
		return false
	}
	if s.Launched(e.ID) {
		return false
	}
	account, ok := s.source.Account(e.AccountID)
	if !ok || !account.AutoJoinEnabled {
		return false
	}

	delta := e.Start.Sub(now)
	return delta >= -s.window && delta <= s.window
}

// Launched reports whether the event id has already been opened.
func (s *AutoJoinScheduler) Launched(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.launched[eventID]
	return ok
}

func (s *AutoJoinScheduler) markLaunched(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launched[eventID] = struct{}{}
}
