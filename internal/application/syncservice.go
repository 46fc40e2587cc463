// Package application contains use-case orchestration services.
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ericfisherdev/calsync/internal/domain/model"
	"github.com/ericfisherdev/calsync/internal/domain/port/driven"
)

// Settings store keys.
const (
	settingsKeyAccounts       = "accounts"
	settingsKeyCalendarPrefix = "calendar-settings."
	settingsKeyViewState      = "view-state"
)

// CalendarSettingsKey returns the settings key holding an account's
// calendar overrides.
func CalendarSettingsKey(accountID string) string {
	return settingsKeyCalendarPrefix + accountID
}

var (
	// ErrAccountNotFound is returned for operations on an unknown account id.
	ErrAccountNotFound = errors.New("account not found")
	// ErrCalendarNotFound is returned for overrides on an unknown calendar id.
	ErrCalendarNotFound = errors.New("calendar not found")
)

// AccountStatus reports the outcome of the most recent sync of an account.
type AccountStatus struct {
	AccountID    string
	LastSyncedAt time.Time
	EventCount   int
	LastError    string
	LastErrorAt  time.Time
}

// DayLayout is the rendering input for one calendar day.
type DayLayout struct {
	Date   time.Time
	AllDay []model.Event
	Slots  []model.LayoutSlot
}

// SyncConfig holds the tunables of a SyncService. Zero values select defaults.
type SyncConfig struct {
	Interval         time.Duration
	Location         *time.Location
	MinEventDuration time.Duration
	Clock            Clock
	Metrics          driven.MetricsRecorder
}

// refreshRequest represents a manual refresh trigger. An empty accountID
// refreshes every account.
type refreshRequest struct {
	accountID string
	done      chan error
}

// SyncService is the single owner of the account list, calendar overrides
// and the merged Timeline. Every mutation runs under syncMu, so account
// replaces, removals and override changes never interleave. Readers take
// consistent snapshots under mu.
type SyncService struct {
	auth     driven.Authenticator
	provider driven.CalendarProvider
	vault    *CredentialVault
	settings driven.SettingsStore
	metrics  driven.MetricsRecorder

	clock            Clock
	loc              *time.Location
	minEventDuration time.Duration
	interval         time.Duration
	refreshCh        chan refreshRequest

	syncMu sync.Mutex

	mu        sync.RWMutex
	accounts  []model.Account
	calendars map[string][]model.CalendarRef
	statuses  map[string]AccountStatus
	timeline  *model.Timeline
	viewState model.ViewState
}

// NewSyncService creates a SyncService with all required dependencies.
func NewSyncService(
	auth driven.Authenticator,
	provider driven.CalendarProvider,
	vault *CredentialVault,
	settings driven.SettingsStore,
	cfg SyncConfig,
) *SyncService {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MinEventDuration <= 0 {
		cfg.MinEventDuration = DefaultMinEventDuration
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}

	return &SyncService{
		auth:             auth,
		provider:         provider,
		vault:            vault,
		settings:         settings,
		metrics:          cfg.Metrics,
		clock:            cfg.Clock,
		loc:              cfg.Location,
		minEventDuration: cfg.MinEventDuration,
		interval:         cfg.Interval,
		refreshCh:        make(chan refreshRequest),
		calendars:        make(map[string][]model.CalendarRef),
		statuses:         make(map[string]AccountStatus),
		timeline:         model.NewTimeline(),
		viewState:        model.DefaultViewState(cfg.Clock.Now()),
	}
}

// Load reads the account list, calendar overrides and view state from the
// settings store. Call it once before Start.
func (s *SyncService) Load(ctx context.Context) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if err := s.reloadLocked(ctx); err != nil {
		return err
	}

	viewState := model.DefaultViewState(s.clock.Now())
	if err := s.readSetting(ctx, settingsKeyViewState, &viewState); err != nil {
		return err
	}

	s.mu.Lock()
	s.viewState = viewState
	accounts := len(s.accounts)
	s.mu.Unlock()

	slog.Info("sync state loaded", "accounts", accounts)
	return nil
}

// reloadLocked replaces the account list and calendar overrides with what
// the settings store holds. Other processes (the CLI) write the same
// database, so every mutation and sync cycle starts from the stored state.
// Accounts that disappeared lose their events, status and provider state.
// The caller holds syncMu.
func (s *SyncService) reloadLocked(ctx context.Context) error {
	var accounts []model.Account
	if err := s.readSetting(ctx, settingsKeyAccounts, &accounts); err != nil {
		return err
	}

	calendars := make(map[string][]model.CalendarRef, len(accounts))
	for _, a := range accounts {
		var cals []model.CalendarRef
		if err := s.readSetting(ctx, CalendarSettingsKey(a.ID), &cals); err != nil {
			return err
		}
		if cals != nil {
			calendars[a.ID] = cals
		}
	}

	dropped := make(map[string]int)
	s.mu.Lock()
	for _, a := range s.accounts {
		if !slices.ContainsFunc(accounts, func(b model.Account) bool { return b.ID == a.ID }) {
			dropped[a.ID] = s.dropAccountLocked(a.ID)
		}
	}
	s.accounts = accounts
	s.calendars = calendars
	s.mu.Unlock()

	for id, events := range dropped {
		s.forgetProviderState(id)
		slog.Info("account removed elsewhere", "account", id, "events", events)
	}
	return nil
}

// dropAccountLocked clears an account's in-memory state and reports how many
// events it had. The caller holds mu.
func (s *SyncService) dropAccountLocked(accountID string) int {
	events := len(s.timeline.ForAccount(accountID))
	delete(s.calendars, accountID)
	delete(s.statuses, accountID)
	s.timeline.RemoveAccount(accountID)
	return events
}

// forgetProviderState lets providers that keep per-account state (HTTP
// caches) drop it.
func (s *SyncService) forgetProviderState(accountID string) {
	if f, ok := s.provider.(interface{ Forget(accountID string) }); ok {
		f.Forget(accountID)
	}
}

// Start begins the sync loop. It runs an immediate sync of every account,
// then syncs on the configured interval. It also serves manual refresh
// requests. Start blocks until the context is canceled.
func (s *SyncService) Start(ctx context.Context) {
	if err := s.RefreshAllAccounts(ctx); err != nil {
		slog.Error("initial sync failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync service stopped")
			return
		case <-ticker.C:
			if err := s.RefreshAllAccounts(ctx); err != nil {
				slog.Error("sync cycle failed", "error", err)
			}
		case req := <-s.refreshCh:
			req.done <- s.handleRefresh(ctx, req)
		}
	}
}

// RequestRefresh asks the running sync loop to refresh one account, or all
// accounts when accountID is empty. It blocks until the refresh completes or
// the context is canceled.
func (s *SyncService) RequestRefresh(ctx context.Context, accountID string) error {
	done := make(chan error, 1)
	req := refreshRequest{
		accountID: accountID,
		done:      done,
	}

	select {
	case s.refreshCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SyncService) handleRefresh(ctx context.Context, req refreshRequest) error {
	if req.accountID == "" {
		return s.RefreshAllAccounts(ctx)
	}
	return s.RefreshAccount(ctx, req.accountID)
}

// RefreshAccount syncs one account and replaces its slice of the Timeline.
// An account without a stored credential is left untouched.
func (s *SyncService) RefreshAccount(ctx context.Context, accountID string) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if err := s.reloadLocked(ctx); err != nil {
		return err
	}
	return s.refreshAccountLocked(ctx, accountID)
}

// RefreshAllAccounts reloads the stored account list and syncs every account
// in turn. A failing account does not stop the others; all failures are
// returned joined.
func (s *SyncService) RefreshAllAccounts(ctx context.Context) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if err := s.reloadLocked(ctx); err != nil {
		return err
	}

	start := s.clock.Now()
	accounts := s.Accounts()

	var errs []error
	for _, a := range accounts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.refreshAccountLocked(ctx, a.ID); err != nil {
			errs = append(errs, err)
		}
	}

	slog.Info("sync cycle complete",
		"accounts", len(accounts),
		"errors", len(errs),
		"duration", s.clock.Now().Sub(start).Round(time.Millisecond),
	)

	return errors.Join(errs...)
}

func (s *SyncService) refreshAccountLocked(ctx context.Context, accountID string) error {
	account, ok := s.Account(accountID)
	if !ok {
		return fmt.Errorf("refresh %s: %w", accountID, ErrAccountNotFound)
	}

	start := s.clock.Now()
	events, calendars, synced, err := s.syncAccount(ctx, account)
	duration := s.clock.Now().Sub(start)

	if err != nil {
		s.metrics.RecordSync(ctx, "error", 0, duration)
		s.setStatus(accountID, func(st *AccountStatus) {
			st.LastError = err.Error()
			st.LastErrorAt = s.clock.Now()
		})
		slog.Error("account sync failed", "account", accountID, "error", err)
		return fmt.Errorf("sync %s: %w", accountID, err)
	}
	if !synced {
		s.metrics.RecordSync(ctx, "skipped", 0, duration)
		slog.Info("account has no credential, skipping sync", "account", accountID)
		return nil
	}

	// Commit the whole account at once: overrides, events and status.
	s.mu.Lock()
	s.calendars[accountID] = calendars
	s.timeline.ReplaceAccount(accountID, events)
	s.statuses[accountID] = AccountStatus{
		AccountID:    accountID,
		LastSyncedAt: s.clock.Now(),
		EventCount:   len(events),
	}
	s.mu.Unlock()

	s.metrics.RecordSync(ctx, "success", len(events), duration)
	slog.Info("account synced",
		"account", accountID,
		"calendars", len(calendars),
		"events", len(events),
		"duration", duration.Round(time.Millisecond),
	)
	return nil
}

// syncAccount performs the provider round-trips for one account without
// touching shared state. synced is false when the account has no credential.
func (s *SyncService) syncAccount(ctx context.Context, account model.Account) (events []model.Event, calendars []model.CalendarRef, synced bool, err error) {
	cred, err := s.vault.LoadCredential(ctx, account.ID)
	if err != nil {
		return nil, nil, false, err
	}
	if cred == nil {
		return nil, nil, false, nil
	}

	fresh, err := s.auth.EnsureFresh(ctx, *cred)
	if err != nil {
		s.metrics.RecordTokenRefresh(ctx, "error")
		return nil, nil, false, err
	}
	if credentialChanged(*cred, fresh) {
		s.metrics.RecordTokenRefresh(ctx, "success")
		if err := s.vault.SaveCredential(ctx, fresh); err != nil {
			return nil, nil, false, err
		}
	}

	listed, err := s.provider.ListCalendars(ctx, fresh)
	if err != nil {
		return nil, nil, false, fmt.Errorf("list calendars: %w", err)
	}

	stored, _ := s.Calendars(account.ID)
	calendars = model.MergeCalendarOverrides(listed, stored)
	if err := s.writeSetting(ctx, CalendarSettingsKey(account.ID), calendars); err != nil {
		return nil, nil, false, err
	}

	window := model.SyncWindow(s.clock.Now())
	events = []model.Event{}
	for _, cal := range calendars {
		if !cal.IsVisible {
			continue
		}
		if ctx.Err() != nil {
			return nil, nil, false, ctx.Err()
		}

		calEvents, err := s.provider.ListEvents(ctx, fresh, cal.ID, window, account.ID)
		if err != nil {
			return nil, nil, false, fmt.Errorf("list events for calendar %s: %w", cal.ID, err)
		}

		color := cal.DisplayColor()
		for _, e := range calEvents {
			e.AccountID = account.ID
			e.CalendarID = cal.ID
			e.ColorHex = color
			events = append(events, e)
		}
	}

	return events, calendars, true, nil
}

func credentialChanged(before, after model.Credential) bool {
	return before.AccessToken != after.AccessToken ||
		before.RefreshToken != after.RefreshToken ||
		before.IDToken != after.IDToken ||
		!before.Expiry.Equal(after.Expiry)
}

// SignIn runs the consent flow and adds the resulting account.
func (s *SyncService) SignIn(ctx context.Context) (model.Account, error) {
	cred, err := s.auth.SignIn(ctx)
	if err != nil {
		return model.Account{}, err
	}
	return s.AddAccount(ctx, cred)
}

// AddAccount stores cred and registers its account, then syncs it. Signing
// into a known account replaces its credential and keeps its settings. A
// failed first sync is recorded in the account status, not returned.
func (s *SyncService) AddAccount(ctx context.Context, cred model.Credential) (model.Account, error) {
	if cred.AccountID == "" {
		return model.Account{}, errors.New("add account: credential has no account id")
	}

	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if err := s.reloadLocked(ctx); err != nil {
		return model.Account{}, err
	}
	if err := s.vault.SaveCredential(ctx, cred); err != nil {
		return model.Account{}, err
	}

	account, exists := s.Account(cred.AccountID)
	if !exists {
		accounts := s.Accounts()
		account = model.Account{
			ID:              cred.AccountID,
			DisplayName:     cred.AccountID,
			ColorHex:        model.NextAccountColor(accounts),
			AutoJoinEnabled: true,
		}
		accounts = append(accounts, account)
		if err := s.writeSetting(ctx, settingsKeyAccounts, accounts); err != nil {
			return model.Account{}, err
		}

		s.mu.Lock()
		s.accounts = accounts
		s.mu.Unlock()

		slog.Info("account added", "account", account.ID)
	}

	if err := s.refreshAccountLocked(ctx, account.ID); err != nil {
		slog.Warn("first sync after sign-in failed", "account", account.ID, "error", err)
	}

	return account, nil
}

// RemoveAccount disconnects an account: its credential, calendar overrides
// and events are all deleted. The account leaves the stored list first, so a
// failure part way leaves an unlisted account that is never synced again.
// Calling RemoveAccount again finishes the cleanup.
func (s *SyncService) RemoveAccount(ctx context.Context, accountID string) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if err := s.reloadLocked(ctx); err != nil {
		return err
	}

	if _, ok := s.Account(accountID); ok {
		accounts := slices.DeleteFunc(s.Accounts(), func(a model.Account) bool {
			return a.ID == accountID
		})
		if err := s.writeSetting(ctx, settingsKeyAccounts, accounts); err != nil {
			return err
		}

		s.mu.Lock()
		s.accounts = accounts
		events := s.dropAccountLocked(accountID)
		s.mu.Unlock()

		s.forgetProviderState(accountID)
		slog.Info("account removed", "account", accountID, "events", events)
	} else {
		cred, err := s.vault.LoadCredential(ctx, accountID)
		if err != nil && !errors.Is(err, driven.ErrEncryptionKeyNotSet) {
			return err
		}
		if cred == nil {
			return fmt.Errorf("remove %s: %w", accountID, ErrAccountNotFound)
		}
		slog.Info("finishing removal of unlisted account", "account", accountID)
	}

	if err := s.settings.Delete(ctx, CalendarSettingsKey(accountID)); err != nil {
		return fmt.Errorf("delete calendar settings for %s: %w", accountID, err)
	}
	return s.vault.DeleteCredential(ctx, accountID)
}

// CalendarUpdate is a partial change to one calendar's overrides. Nil fields
// are left alone; an empty Color clears the custom color.
type CalendarUpdate struct {
	IsVisible *bool
	Color     *string
}

// UpdateCalendar applies update to one calendar and re-syncs its account
// once.
func (s *SyncService) UpdateCalendar(ctx context.Context, accountID, calendarID string, update CalendarUpdate) error {
	return s.updateCalendar(ctx, accountID, calendarID, func(c *model.CalendarRef) {
		if update.IsVisible != nil {
			c.IsVisible = *update.IsVisible
		}
		if update.Color != nil {
			if *update.Color == "" {
				c.CustomColor = nil
			} else {
				color := *update.Color
				c.CustomColor = &color
			}
		}
	})
}

func (s *SyncService) updateCalendar(ctx context.Context, accountID, calendarID string, apply func(*model.CalendarRef)) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if err := s.reloadLocked(ctx); err != nil {
		return err
	}
	if _, ok := s.Account(accountID); !ok {
		return fmt.Errorf("update calendar %s: %w", calendarID, ErrAccountNotFound)
	}

	cals, _ := s.Calendars(accountID)
	idx := slices.IndexFunc(cals, func(c model.CalendarRef) bool { return c.ID == calendarID })
	if idx < 0 {
		return fmt.Errorf("update calendar %s: %w", calendarID, ErrCalendarNotFound)
	}
	apply(&cals[idx])

	if err := s.writeSetting(ctx, CalendarSettingsKey(accountID), cals); err != nil {
		return err
	}

	s.mu.Lock()
	s.calendars[accountID] = cals
	s.mu.Unlock()

	return s.refreshAccountLocked(ctx, accountID)
}

// SetAutoJoin enables or disables auto-join for an account.
func (s *SyncService) SetAutoJoin(ctx context.Context, accountID string, enabled bool) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if err := s.reloadLocked(ctx); err != nil {
		return err
	}
	accounts := s.Accounts()
	idx := slices.IndexFunc(accounts, func(a model.Account) bool { return a.ID == accountID })
	if idx < 0 {
		return fmt.Errorf("set auto-join for %s: %w", accountID, ErrAccountNotFound)
	}
	accounts[idx].AutoJoinEnabled = enabled

	if err := s.writeSetting(ctx, settingsKeyAccounts, accounts); err != nil {
		return err
	}

	s.mu.Lock()
	s.accounts = accounts
	s.mu.Unlock()
	return nil
}

// SetViewState persists the last-used calendar view.
func (s *SyncService) SetViewState(ctx context.Context, vs model.ViewState) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if err := s.writeSetting(ctx, settingsKeyViewState, vs); err != nil {
		return err
	}

	s.mu.Lock()
	s.viewState = vs
	s.mu.Unlock()
	return nil
}

// ViewState returns the last-used calendar view.
func (s *SyncService) ViewState() model.ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewState
}

// Accounts returns a copy of the account list.
func (s *SyncService) Accounts() []model.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.accounts)
}

// Account returns the account with the given id.
func (s *SyncService) Account(accountID string) (model.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.ID == accountID {
			return a, true
		}
	}
	return model.Account{}, false
}

// Calendars returns a copy of an account's calendars with overrides applied.
func (s *SyncService) Calendars(accountID string) ([]model.CalendarRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cals, ok := s.calendars[accountID]
	return slices.Clone(cals), ok
}

// Events returns every event in the Timeline in start order.
func (s *SyncService) Events() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeline.Events()
}

// EventsBetween returns events intersecting [from, to).
func (s *SyncService) EventsBetween(from, to time.Time) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeline.Overlapping(from, to)
}

// UpcomingEvents returns events whose start lies in [from, to].
func (s *SyncService) UpcomingEvents(from, to time.Time) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeline.StartingBetween(from, to)
}

// DayLayout lays out the day containing day. All-day events are returned
// separately and take no part in column assignment.
func (s *SyncService) DayLayout(day time.Time) DayLayout {
	s.mu.RLock()
	timed, allDay := s.timeline.OnDay(day, s.loc)
	s.mu.RUnlock()

	if allDay == nil {
		allDay = []model.Event{}
	}
	return DayLayout{
		Date:   model.StartOfDay(day, s.loc),
		AllDay: allDay,
		Slots:  LayoutDay(timed, s.minEventDuration),
	}
}

// Statuses returns the last sync outcome of every account, in account order.
func (s *SyncService) Statuses() []AccountStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]AccountStatus, 0, len(s.accounts))
	for _, a := range s.accounts {
		st, ok := s.statuses[a.ID]
		if !ok {
			st = AccountStatus{AccountID: a.ID}
		}
		out = append(out, st)
	}
	return out
}

// Location returns the zone used for day boundaries.
func (s *SyncService) Location() *time.Location {
	return s.loc
}

func (s *SyncService) setStatus(accountID string, update func(*AccountStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statuses[accountID]
	if !ok {
		st = AccountStatus{AccountID: accountID}
	}
	update(&st)
	s.statuses[accountID] = st
}

func (s *SyncService) readSetting(ctx context.Context, key string, v any) error {
	data, err := s.settings.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read setting %s: %w", key, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode setting %s: %w", key, err)
	}
	return nil
}

func (s *SyncService) writeSetting(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}
	if err := s.settings.Set(ctx, key, data); err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

type noopMetrics struct{}

func (noopMetrics) RecordSync(context.Context, string, int, time.Duration) {}
func (noopMetrics) RecordTokenRefresh(context.Context, string)             {}
func (noopMetrics) RecordAutoJoin(context.Context, string)                 {}
