// Package stats provides the monotonic timing and statistical reduction
// the orchestrator uses to turn per-loop matrix snapshots into a reported
// responses/s figure.
package stats

import "time"

// ElapsedMS returns the number of milliseconds elapsed since start,
// measured on the monotonic clock time.Time carries internally.
func ElapsedMS(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
