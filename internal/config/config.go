// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GoogleClientID     string
	GoogleClientSecret string
	OAuthRedirectURL   string

	// SecretKey is the 32-byte AES-256 key for the credential vault. Nil when
	// CALSYNC_SECRET_KEY is unset; credentials then cannot be stored or read.
	SecretKey []byte

	SyncInterval      time.Duration
	AutoJoinInterval  time.Duration
	AutoJoinWindow    time.Duration
	AutoJoinLookahead time.Duration
	OrganizerAccepts  bool
	MinEventDuration  time.Duration
	Location          *time.Location

	ListenAddr     string
	DBPath         string
	MetricsEnabled bool
}

// HasGoogleCredentials returns true when an OAuth client id is configured.
// Without one the app still serves stored data, but sign-in and token
// refresh fail.
func (c *Config) HasGoogleCredentials() bool {
	return c.GoogleClientID != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// All variables are optional. Durations use time.ParseDuration syntax and must
// be positive. CALSYNC_TIMEZONE takes an IANA zone name or "Local".
func Load() (*Config, error) {
	cfg := &Config{
		GoogleClientID:     os.Getenv("CALSYNC_GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("CALSYNC_GOOGLE_CLIENT_SECRET"),
		OAuthRedirectURL:   "http://127.0.0.1:8085/oauth2/callback",
		SyncInterval:       5 * time.Minute,
		AutoJoinInterval:   30 * time.Second,
		AutoJoinWindow:     2 * time.Minute,
		AutoJoinLookahead:  time.Hour,
		OrganizerAccepts:   true,
		MinEventDuration:   30 * time.Minute,
		Location:           time.Local,
		ListenAddr:         "127.0.0.1:8080",
		DBPath:             "calsync.db",
		MetricsEnabled:     true,
	}

	if v, ok := os.LookupEnv("CALSYNC_OAUTH_REDIRECT_URL"); ok {
		cfg.OAuthRedirectURL = v
	}

	if v, ok := os.LookupEnv("CALSYNC_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("CALSYNC_SECRET_KEY must be hex encoded: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("CALSYNC_SECRET_KEY must be 64 hex characters (32 bytes), got %d bytes", len(key))
		}
		cfg.SecretKey = key
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"CALSYNC_SYNC_INTERVAL", &cfg.SyncInterval},
		{"CALSYNC_AUTOJOIN_INTERVAL", &cfg.AutoJoinInterval},
		{"CALSYNC_AUTOJOIN_WINDOW", &cfg.AutoJoinWindow},
		{"CALSYNC_AUTOJOIN_LOOKAHEAD", &cfg.AutoJoinLookahead},
		{"CALSYNC_MIN_EVENT_DURATION", &cfg.MinEventDuration},
	}
	for _, d := range durations {
		v, ok := os.LookupEnv(d.name)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%s has invalid duration %q: %w", d.name, v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", d.name, v)
		}
		*d.dst = parsed
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"CALSYNC_ORGANIZER_ACCEPTS", &cfg.OrganizerAccepts},
		{"CALSYNC_METRICS_ENABLED", &cfg.MetricsEnabled},
	}
	for _, b := range bools {
		v, ok := os.LookupEnv(b.name)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s has invalid boolean %q: %w", b.name, v, err)
		}
		*b.dst = parsed
	}

	if v, ok := os.LookupEnv("CALSYNC_TIMEZONE"); ok && v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			return nil, fmt.Errorf("CALSYNC_TIMEZONE has unknown zone %q: %w", v, err)
		}
		cfg.Location = loc
	}

	if v, ok := os.LookupEnv("CALSYNC_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}

	if v, ok := os.LookupEnv("CALSYNC_DB_PATH"); ok {
		cfg.DBPath = v
	}

	return cfg, nil
}
