package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/calsync/internal/domain/model"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()

	root := newRootCmd("1.2.3")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	require.NoError(t, root.Execute())
	return out.String()
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd("dev")

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	assert.Subset(t, names, []string{"serve", "signin", "accounts", "version"})
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "calsync version 1.2.3\n", execute(t, "version"))
	assert.Equal(t, "calsync version 1.2.3\n", execute(t, "--version"))
}

func TestAccounts_EmptyDatabase(t *testing.T) {
	t.Setenv("CALSYNC_DB_PATH", filepath.Join(t.TempDir(), "calsync.db"))
	t.Setenv("CALSYNC_TIMEZONE", "UTC")

	out := execute(t, "accounts")

	assert.Contains(t, out, "No accounts connected")
}

func TestPrintAccounts(t *testing.T) {
	accounts := []model.Account{
		{ID: "alice@example.com", ColorHex: "#4285F4", AutoJoinEnabled: true},
		{ID: "bob@example.com"},
	}
	calendars := map[string][]model.CalendarRef{
		"alice@example.com": {
			{ID: "primary", IsVisible: true},
			{ID: "holidays", IsVisible: false},
		},
	}
	lookup := func(id string) ([]model.CalendarRef, bool) {
		cals, ok := calendars[id]
		return cals, ok
	}

	var buf bytes.Buffer
	require.NoError(t, printAccounts(&buf, accounts, lookup))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"ACCOUNT", "COLOR", "AUTO-JOIN", "CALENDARS"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"alice@example.com", "#4285F4", "on", "1/2", "visible"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"bob@example.com", model.FallbackAccountColor, "off", "0/0", "visible"}, strings.Fields(lines[2]))
}

func TestParseOnOff(t *testing.T) {
	tests := []struct {
		input   string
		want    bool
		wantErr bool
	}{
		{input: "on", want: true},
		{input: "off", want: false},
		{input: "yes", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseOnOff(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
