package driven

import (
	"context"
	"time"
)

// MetricsRecorder receives engine measurements. Implementations must accept
// calls from multiple goroutines.
type MetricsRecorder interface {
	RecordSync(ctx context.Context, result string, events int, duration time.Duration)
	RecordTokenRefresh(ctx context.Context, result string)
	RecordAutoJoin(ctx context.Context, provider string)
}
