package application_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/calsync/internal/application"
	"github.com/ericfisherdev/calsync/internal/domain/model"
	"github.com/ericfisherdev/calsync/internal/domain/port/driven"
)

var syncNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type syncFixture struct {
	svc      *application.SyncService
	vault    *application.CredentialVault
	creds    *memStore
	settings *memStore
	provider *mockProvider
	auth     *mockAuthenticator
	clock    *fakeClock
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()

	f := &syncFixture{
		creds:    newMemStore(),
		settings: newMemStore(),
		provider: newMockProvider(),
		auth:     &mockAuthenticator{},
		clock:    newFakeClock(syncNow),
	}
	f.vault = application.NewCredentialVault(f.creds)
	f.svc = application.NewSyncService(f.auth, f.provider, f.vault, f.settings, application.SyncConfig{
		Interval: time.Hour,
		Location: time.UTC,
		Clock:    f.clock,
	})
	return f
}

func credentialFor(accountID string) model.Credential {
	return model.Credential{
		AccountID:    accountID,
		AccessToken:  "access-" + accountID,
		RefreshToken: "refresh-" + accountID,
		Expiry:       syncNow.Add(time.Hour),
	}
}

func (f *syncFixture) addAccount(t *testing.T, accountID string) model.Account {
	t.Helper()
	account, err := f.svc.AddAccount(context.Background(), credentialFor(accountID))
	require.NoError(t, err)
	return account
}

func providerEvent(providerID, title string, start time.Time, length time.Duration) model.Event {
	return model.Event{
		ProviderID:   providerID,
		Title:        title,
		Start:        start,
		End:          start.Add(length),
		SelfResponse: model.SelfResponseAccepted,
	}
}

func eventIDs(events []model.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

func TestSyncService_AddAccountSyncsVisibleCalendars(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.calendars["alice@example.com"] = []model.CalendarRef{
		{ID: "work", Summary: "Work", ProviderColor: "#111111"},
		{ID: "home", Summary: "Home"},
	}
	f.provider.events["work"] = []model.Event{providerEvent("w1", "Standup", syncNow.Add(time.Hour), 15*time.Minute)}
	f.provider.events["home"] = []model.Event{providerEvent("h1", "Dentist", syncNow.Add(3*time.Hour), time.Hour)}

	account := f.addAccount(t, "alice@example.com")

	assert.Equal(t, "alice@example.com", account.ID)
	assert.True(t, account.AutoJoinEnabled)
	assert.Equal(t, "#4285F4", account.ColorHex)

	events := f.svc.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "w1|alice@example.com", events[0].ID)
	assert.Equal(t, "alice@example.com", events[0].AccountID)
	assert.Equal(t, "work", events[0].CalendarID)
	assert.Equal(t, "#111111", events[0].ColorHex)
	assert.Equal(t, model.DefaultCalendarColor, events[1].ColorHex)

	assert.True(t, f.creds.has(application.CredentialKey("alice@example.com")))
	assert.True(t, f.settings.has(application.CalendarSettingsKey("alice@example.com")))
}

func TestSyncService_UsesSlidingWindowAndSelfIdentity(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.calendars["alice@example.com"] = []model.CalendarRef{{ID: "work", Summary: "Work"}}

	f.addAccount(t, "alice@example.com")
	f.clock.Advance(24 * time.Hour)
	require.NoError(t, f.svc.RefreshAccount(context.Background(), "alice@example.com"))

	calls := f.provider.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, syncNow.AddDate(0, 0, -14), calls[0].Window.Start)
	assert.Equal(t, syncNow.AddDate(0, 0, 60), calls[0].Window.End)
	assert.Equal(t, syncNow.Add(24*time.Hour).AddDate(0, 0, -14), calls[1].Window.Start)
	assert.Equal(t, "alice@example.com", calls[1].Self)
}

func TestSyncService_HiddenCalendarOverrideSurvivesResync(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	overrides, err := json.Marshal([]model.CalendarRef{{ID: "cal1", IsVisible: false}})
	require.NoError(t, err)
	accounts, err := json.Marshal([]model.Account{{ID: "alice@example.com", ColorHex: "#4285F4", AutoJoinEnabled: true}})
	require.NoError(t, err)
	require.NoError(t, f.settings.Set(ctx, "accounts", accounts))
	require.NoError(t, f.settings.Set(ctx, application.CalendarSettingsKey("alice@example.com"), overrides))
	require.NoError(t, f.vault.SaveCredential(ctx, credentialFor("alice@example.com")))

	f.provider.calendars["alice@example.com"] = []model.CalendarRef{{ID: "cal1", Summary: "Work"}}
	f.provider.events["cal1"] = []model.Event{providerEvent("e1", "Hidden", syncNow.Add(time.Hour), time.Hour)}

	require.NoError(t, f.svc.Load(ctx))
	require.NoError(t, f.svc.RefreshAccount(ctx, "alice@example.com"))

	cals, ok := f.svc.Calendars("alice@example.com")
	require.True(t, ok)
	require.Len(t, cals, 1)
	assert.Equal(t, model.CalendarRef{ID: "cal1", Summary: "Work", IsVisible: false}, cals[0])
	assert.Empty(t, f.svc.Events())
	assert.Empty(t, f.provider.calls(), "hidden calendars are not fetched")
}

func TestSyncService_ResyncIsIdempotent(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.calendars["alice@example.com"] = []model.CalendarRef{{ID: "work", Summary: "Work"}}
	f.provider.events["work"] = []model.Event{
		providerEvent("b", "B", syncNow.Add(2*time.Hour), time.Hour),
		providerEvent("a", "A", syncNow.Add(time.Hour), time.Hour),
	}
	f.addAccount(t, "alice@example.com")
	first := f.svc.Events()

	require.NoError(t, f.svc.RefreshAccount(context.Background(), "alice@example.com"))

	assert.Equal(t, first, f.svc.Events())
	assert.Len(t, f.svc.Events(), 2)
}

func TestSyncService_FailedAccountKeepsPriorDataAndOthersSync(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.calendars["alice@example.com"] = []model.CalendarRef{{ID: "a-cal", Summary: "A"}}
	f.provider.calendars["bob@example.com"] = []model.CalendarRef{{ID: "b-cal", Summary: "B"}}
	f.provider.events["a-cal"] = []model.Event{providerEvent("a1", "A1", syncNow.Add(time.Hour), time.Hour)}
	f.provider.events["b-cal"] = []model.Event{providerEvent("b1", "B1", syncNow.Add(2*time.Hour), time.Hour)}
	f.addAccount(t, "alice@example.com")
	f.addAccount(t, "bob@example.com")

	f.provider.eventErr["a-cal"] = &driven.RequestFailedError{Status: 500, Body: "backend error"}
	f.provider.events["b-cal"] = append(f.provider.events["b-cal"], providerEvent("b2", "B2", syncNow.Add(3*time.Hour), time.Hour))

	err := f.svc.RefreshAllAccounts(context.Background())

	require.Error(t, err)
	var reqErr *driven.RequestFailedError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 500, reqErr.Status)
	assert.Equal(t,
		[]string{"a1|alice@example.com", "b1|bob@example.com", "b2|bob@example.com"},
		eventIDs(f.svc.Events()),
	)

	statuses := f.svc.Statuses()
	require.Len(t, statuses, 2)
	assert.Contains(t, statuses[0].LastError, "HTTP 500: backend error")
	assert.Empty(t, statuses[1].LastError)
	assert.Equal(t, 2, statuses[1].EventCount)
}

func TestSyncService_UnauthorizedIsSurfaced(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.calendars["alice@example.com"] = []model.CalendarRef{{ID: "work", Summary: "Work"}}
	f.addAccount(t, "alice@example.com")

	f.provider.calErr["alice@example.com"] = fmt.Errorf("list calendars: %w", driven.ErrUnauthorized)

	err := f.svc.RefreshAccount(context.Background(), "alice@example.com")

	assert.ErrorIs(t, err, driven.ErrUnauthorized)
}

func TestSyncService_RefreshedCredentialIsPersisted(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	f.provider.calendars["alice@example.com"] = []model.CalendarRef{}
	f.addAccount(t, "alice@example.com")

	f.clock.Advance(2 * time.Hour)
	f.auth.ensureFresh = func(_ context.Context, cred model.Credential) (model.Credential, error) {
		if cred.IsFresh(f.clock.Now()) {
			return cred, nil
		}
		cred.AccessToken = "rotated"
		cred.Expiry = f.clock.Now().Add(59 * time.Minute)
		return cred, nil
	}

	require.NoError(t, f.svc.RefreshAccount(ctx, "alice@example.com"))

	stored, err := f.vault.LoadCredential(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "rotated", stored.AccessToken)
	assert.Equal(t, "refresh-alice@example.com", stored.RefreshToken)
	assert.True(t, stored.IsFresh(f.clock.Now()))
}

func TestSyncService_TokenRefreshFailureKeepsEvents(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.calendars["alice@example.com"] = []model.CalendarRef{{ID: "work", Summary: "Work"}}
	f.provider.events["work"] = []model.Event{providerEvent("w1", "Standup", syncNow.Add(time.Hour), time.Hour)}
	f.addAccount(t, "alice@example.com")

	f.auth.ensureFresh = func(context.Context, model.Credential) (model.Credential, error) {
		return model.Credential{}, fmt.Errorf("%w: status 400", driven.ErrTokenRefreshFailed)
	}

	err := f.svc.RefreshAccount(context.Background(), "alice@example.com")

	assert.ErrorIs(t, err, driven.ErrTokenRefreshFailed)
	assert.Len(t, f.svc.Events(), 1)
}

func TestSyncService_AccountWithoutCredentialIsNoop(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	f.provider.calendars["alice@example.com"] = []model.CalendarRef{{ID: "work", Summary: "Work"}}
	f.addAccount(t, "alice@example.com")
	require.NoError(t, f.vault.DeleteCredential(ctx, "alice@example.com"))
	before := len(f.provider.calls())

	err := f.svc.RefreshAccount(ctx, "alice@example.com")

	require.NoError(t, err)
	assert.Len(t, f.provider.calls(), before)
}

func TestSyncService_RefreshUnknownAccount(t *testing.T) {
	f := newSyncFixture(t)

	err := f.svc.RefreshAccount(context.Background(), "ghost@example.com")

	assert.ErrorIs(t, err, application.ErrAccountNotFound)
}

func TestSyncService_RemoveAccountCascades(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	f.provider.calendars["alice@example.com"] = []model.CalendarRef{{ID: "a-cal", Summary: "A"}}
	f.provider.calendars["bob@example.com"] = []model.CalendarRef{{ID: "b-cal", Summary: "B"}}
	f.provider.events["a-cal"] = []model.Event{providerEvent("a1", "A1", syncNow.Add(time.Hour), time.Hour)}
	f.provider.events["b-cal"] = []model.Event{providerEvent("b1", "B1", syncNow.Add(time.Hour), time.Hour)}
	f.addAccount(t, "alice@example.com")
	f.addAccount(t, "bob@example.com")

	require.NoError(t, f.svc.RemoveAccount(ctx, "alice@example.com"))

	for _, e := range f.svc.Events() {
		assert.NotEqual(t, "alice@example.com", e.AccountID)
	}
	assert.Len(t, f.svc.Events(), 1)
	assert.False(t, f.creds.has(application.CredentialKey("alice@example.com")))
	assert.False(t, f.settings.has(application.CalendarSettingsKey("alice@example.com")))
	_, ok := f.svc.Calendars("alice@example.com")
	assert.False(t, ok)

	raw, err := f.settings.Get(ctx, "accounts")
	require.NoError(t, err)
	var persisted []model.Account
	require.NoError(t, json.Unmarshal(raw, &persisted))
	require.Len(t, persisted, 1)
	assert.Equal(t, "bob@example.com", persisted[0].ID)

	assert.ErrorIs(t, f.svc.RemoveAccount(ctx, "alice@example.com"), application.ErrAccountNotFound)
}

func TestSyncService_RemoveAccountPartialFailureIsConsistent(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	f.provider.calendars["alice@example.com"] = []model.CalendarRef{{ID: "a-cal", Summary: "A"}}
	f.provider.events["a-cal"] = []model.Event{providerEvent("a1", "A1", syncNow.Add(time.Hour), time.Hour)}
	f.addAccount(t, "alice@example.com")

	f.settings.delErr = errBoom
	err := f.svc.RemoveAccount(ctx, "alice@example.com")
	require.ErrorIs(t, err, errBoom)

	// The account is gone from the list and the timeline; the credential
	// survives until the cleanup completes.
	assert.Empty(t, f.svc.Accounts())
	assert.Empty(t, f.svc.Events())
	assert.True(t, f.creds.has(application.CredentialKey("alice@example.com")))
	raw, err := f.settings.Get(ctx, "accounts")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))

	// An unlisted account is never synced again.
	before := len(f.provider.calls())
	require.NoError(t, f.svc.RefreshAllAccounts(ctx))
	assert.Len(t, f.provider.calls(), before)

	f.settings.delErr = nil
	require.NoError(t, f.svc.RemoveAccount(ctx, "alice@example.com"))
	assert.False(t, f.creds.has(application.CredentialKey("alice@example.com")))
	assert.False(t, f.settings.has(application.CalendarSettingsKey("alice@example.com")))
}

func TestSyncService_SeesRemovalByAnotherProcess(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	f.provider.calendars["alice@example.com"] = []model.CalendarRef{{ID: "a-cal", Summary: "A"}}
	f.provider.calendars["bob@example.com"] = []model.CalendarRef{{ID: "b-cal", Summary: "B"}}
	f.provider.events["a-cal"] = []model.Event{providerEvent("a1", "A1", syncNow.Add(time.Hour), time.Hour)}
	f.provider.events["b-cal"] = []model.Event{providerEvent("b1", "B1", syncNow.Add(time.Hour), time.Hour)}
	f.addAccount(t, "alice@example.com")
	f.addAccount(t, "bob@example.com")
	require.NoError(t, f.svc.RefreshAllAccounts(ctx))

	// A second service over the same stores, as the CLI runs next to serve.
	cli := application.NewSyncService(f.auth, f.provider, application.NewCredentialVault(f.creds), f.settings, application.SyncConfig{
		Location: time.UTC,
		Clock:    f.clock,
	})
	require.NoError(t, cli.Load(ctx))
	require.NoError(t, cli.RemoveAccount(ctx, "alice@example.com"))

	require.NoError(t, f.svc.RefreshAllAccounts(ctx))

	assert.Equal(t, []string{"b1|bob@example.com"}, eventIDs(f.svc.Events()))
	_, ok := f.svc.Account("alice@example.com")
	assert.False(t, ok)
	require.Len(t, f.svc.Statuses(), 1)
	assert.False(t, f.settings.has(application.CalendarSettingsKey("alice@example.com")))
	assert.False(t, f.creds.has(application.CredentialKey("alice@example.com")))
}

func TestSyncService_KeepsAutoJoinChangedByAnotherProcess(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	f.provider.calendars["alice@example.com"] = []model.CalendarRef{{ID: "a-cal", Summary: "A"}}
	f.addAccount(t, "alice@example.com")

	cli := application.NewSyncService(f.auth, f.provider, application.NewCredentialVault(f.creds), f.settings, application.SyncConfig{
		Location: time.UTC,
		Clock:    f.clock,
	})
	require.NoError(t, cli.Load(ctx))
	require.NoError(t, cli.SetAutoJoin(ctx, "alice@example.com", false))

	require.NoError(t, f.svc.UpdateCalendar(ctx, "alice@example.com", "a-cal", recolor("#ABCDEF")))

	account, ok := f.svc.Account("alice@example.com")
	require.True(t, ok)
	assert.False(t, account.AutoJoinEnabled)
}

func hide() application.CalendarUpdate {
	visible := false
	return application.CalendarUpdate{IsVisible: &visible}
}

func recolor(color string) application.CalendarUpdate {
	return application.CalendarUpdate{Color: &color}
}

func TestSyncService_UpdateCalendarVisibilityResyncs(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	f.provider.calendars["alice@example.com"] = []model.CalendarRef{
		{ID: "work", Summary: "Work"},
		{ID: "home", Summary: "Home"},
	}
	f.provider.events["work"] = []model.Event{providerEvent("w1", "W", syncNow.Add(time.Hour), time.Hour)}
	f.provider.events["home"] = []model.Event{providerEvent("h1", "H", syncNow.Add(2*time.Hour), time.Hour)}
	f.addAccount(t, "alice@example.com")

	require.NoError(t, f.svc.UpdateCalendar(ctx, "alice@example.com", "home", hide()))

	assert.Equal(t, []string{"w1|alice@example.com"}, eventIDs(f.svc.Events()))

	raw, err := f.settings.Get(ctx, application.CalendarSettingsKey("alice@example.com"))
	require.NoError(t, err)
	var stored []model.CalendarRef
	require.NoError(t, json.Unmarshal(raw, &stored))
	require.Len(t, stored, 2)
	assert.False(t, stored[1].IsVisible)

	err = f.svc.UpdateCalendar(ctx, "alice@example.com", "nope", recolor("#ABCDEF"))
	assert.ErrorIs(t, err, application.ErrCalendarNotFound)
}

func TestSyncService_UpdateCalendarColorRecolorsEvents(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	f.provider.calendars["alice@example.com"] = []model.CalendarRef{{ID: "work", Summary: "Work", ProviderColor: "#111111"}}
	f.provider.events["work"] = []model.Event{providerEvent("w1", "W", syncNow.Add(time.Hour), time.Hour)}
	f.addAccount(t, "alice@example.com")

	require.NoError(t, f.svc.UpdateCalendar(ctx, "alice@example.com", "work", recolor("#ABCDEF")))
	assert.Equal(t, "#ABCDEF", f.svc.Events()[0].ColorHex)

	require.NoError(t, f.svc.UpdateCalendar(ctx, "alice@example.com", "work", recolor("")))
	assert.Equal(t, "#111111", f.svc.Events()[0].ColorHex)
}

func TestSyncService_UpdateCalendarBothFieldsSyncsOnce(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	f.provider.calendars["alice@example.com"] = []model.CalendarRef{
		{ID: "work", Summary: "Work"},
		{ID: "home", Summary: "Home"},
	}
	f.addAccount(t, "alice@example.com")
	before := len(f.provider.calls())

	update := hide()
	color := "#ABCDEF"
	update.Color = &color
	require.NoError(t, f.svc.UpdateCalendar(ctx, "alice@example.com", "home", update))

	calls := f.provider.calls()[before:]
	require.Len(t, calls, 1, "one resync fetching only the visible calendar")
	assert.Equal(t, "work", calls[0].CalendarID)

	cals, ok := f.svc.Calendars("alice@example.com")
	require.True(t, ok)
	assert.False(t, cals[1].IsVisible)
	require.NotNil(t, cals[1].CustomColor)
	assert.Equal(t, "#ABCDEF", *cals[1].CustomColor)
}

func TestSyncService_AddExistingAccountKeepsSettings(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	f.provider.calendars["alice@example.com"] = []model.CalendarRef{}
	f.addAccount(t, "alice@example.com")
	require.NoError(t, f.svc.SetAutoJoin(ctx, "alice@example.com", false))

	cred := credentialFor("alice@example.com")
	cred.AccessToken = "second-sign-in"
	account, err := f.svc.AddAccount(ctx, cred)

	require.NoError(t, err)
	assert.False(t, account.AutoJoinEnabled)
	assert.Len(t, f.svc.Accounts(), 1)

	stored, err := f.vault.LoadCredential(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "second-sign-in", stored.AccessToken)
}

func TestSyncService_NewAccountsGetDistinctColors(t *testing.T) {
	f := newSyncFixture(t)
	a := f.addAccount(t, "alice@example.com")
	b := f.addAccount(t, "bob@example.com")

	assert.NotEqual(t, a.ColorHex, b.ColorHex)
}

func TestSyncService_SignInPropagatesAuthErrors(t *testing.T) {
	f := newSyncFixture(t)

	_, err := f.svc.SignIn(context.Background())

	assert.ErrorIs(t, err, driven.ErrConfigMissing)
	assert.Empty(t, f.svc.Accounts())
}

func TestSyncService_SignInAddsAccount(t *testing.T) {
	f := newSyncFixture(t)
	f.auth.signIn = func(context.Context) (model.Credential, error) {
		return credentialFor("carol@example.com"), nil
	}

	account, err := f.svc.SignIn(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", account.ID)
	_, ok := f.svc.Account("carol@example.com")
	assert.True(t, ok)
}

func TestSyncService_ViewStateAndAutoJoinPersistAcrossLoad(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	f.provider.calendars["alice@example.com"] = []model.CalendarRef{}
	f.addAccount(t, "alice@example.com")

	vs := model.ViewState{ViewMode: model.ViewModeMonth, WeekStyle: model.WeekStyleGrid, SelectedDate: syncNow}
	require.NoError(t, f.svc.SetViewState(ctx, vs))
	require.NoError(t, f.svc.SetAutoJoin(ctx, "alice@example.com", false))

	reloaded := application.NewSyncService(f.auth, f.provider, f.vault, f.settings, application.SyncConfig{Clock: f.clock, Location: time.UTC})
	require.NoError(t, reloaded.Load(ctx))

	assert.Equal(t, model.ViewModeMonth, reloaded.ViewState().ViewMode)
	assert.Equal(t, model.WeekStyleGrid, reloaded.ViewState().WeekStyle)
	assert.True(t, syncNow.Equal(reloaded.ViewState().SelectedDate))
	account, ok := reloaded.Account("alice@example.com")
	require.True(t, ok)
	assert.False(t, account.AutoJoinEnabled)
}

func TestSyncService_DayLayout(t *testing.T) {
	f := newSyncFixture(t)
	day := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	f.provider.calendars["alice@example.com"] = []model.CalendarRef{{ID: "work", Summary: "Work"}}
	f.provider.events["work"] = []model.Event{
		{ProviderID: "holiday", Title: "Holiday", Start: day, End: day.AddDate(0, 0, 1)},
		providerEvent("a", "A", day.Add(9*time.Hour), time.Hour),
		providerEvent("b", "B", day.Add(9*time.Hour+30*time.Minute), time.Hour),
		providerEvent("c", "C", day.Add(11*time.Hour), 30*time.Minute),
	}
	f.addAccount(t, "alice@example.com")

	layout := f.svc.DayLayout(day.Add(15 * time.Hour))

	assert.Equal(t, day, layout.Date)
	require.Len(t, layout.AllDay, 1)
	assert.Equal(t, "holiday|alice@example.com", layout.AllDay[0].ID)
	require.Len(t, layout.Slots, 3)
	assert.Equal(t, [2]int{0, 2}, [2]int{layout.Slots[0].ColumnIndex, layout.Slots[0].ColumnsInGroup})
	assert.Equal(t, [2]int{1, 2}, [2]int{layout.Slots[1].ColumnIndex, layout.Slots[1].ColumnsInGroup})
	assert.Equal(t, [2]int{0, 1}, [2]int{layout.Slots[2].ColumnIndex, layout.Slots[2].ColumnsInGroup})
}

func TestSyncService_RequestRefreshThroughLoop(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.calendars["alice@example.com"] = []model.CalendarRef{{ID: "work", Summary: "Work"}}
	f.addAccount(t, "alice@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.svc.Start(ctx)

	f.provider.mu.Lock()
	f.provider.events["work"] = []model.Event{providerEvent("late", "Late add", syncNow.Add(time.Hour), time.Hour)}
	f.provider.mu.Unlock()

	reqCtx, reqCancel := context.WithTimeout(ctx, 5*time.Second)
	defer reqCancel()
	require.NoError(t, f.svc.RequestRefresh(reqCtx, "alice@example.com"))

	assert.Equal(t, []string{"late|alice@example.com"}, eventIDs(f.svc.Events()))
}

func TestSyncService_RequestRefreshCanceled(t *testing.T) {
	f := newSyncFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.svc.RequestRefresh(ctx, "")

	assert.ErrorIs(t, err, context.Canceled)
}
