// Package instrumentation provides OpenTelemetry metrics for calsync,
// exported in Prometheus format.
//
// # Metrics
//
// Sync:
//   - sync_runs_total: Counter of account syncs by result (success, error, skipped)
//   - sync_duration_seconds: Histogram of account sync durations
//   - sync_events: Gauge of events held for the last synced account
//
// OAuth:
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//
// Auto-join:
//   - autojoin_launches_total: Counter of opened meetings by provider
//
// HTTP:
//   - http_requests_total: Counter of API requests by method, route, and status
//   - http_request_duration_seconds: Histogram of API request durations
//
// When instrumentation is disabled every recorder method is a no-op and no
// /metrics handler is exposed.
package instrumentation
