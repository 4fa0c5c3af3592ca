package engine

import (
	"sync/atomic"
	"time"
)

// Result accumulates per-file outcomes across all tasks. Counters are
// atomics because completing tasks on the pool mutate them concurrently.
type Result struct {
	Uploaded atomic.Int64 // uploads performed, or planned when dry-run
	Skipped  atomic.Int64
	Failed   atomic.Int64

	BytesUploaded atomic.Int64

	StartedAt time.Time
	Elapsed   time.Duration
}

// Done is the number of files that have settled so far.
func (r *Result) Done() int64 {
	return r.Uploaded.Load() + r.Skipped.Load() + r.Failed.Load()
}
