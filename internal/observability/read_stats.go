// Package observability tracks per-read and aggregate counters for index
// scans: parts pruned, chunks and rows produced, and mark loader activity.
package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// ReadStats accumulates counters for one index read. All methods are safe
// for concurrent use.
type ReadStats struct {
	PartsScanned  atomic.Int64
	PartsPruned   atomic.Int64
	ChunksEmitted atomic.Int64
	RowsEmitted   atomic.Int64
	MarkLoads     atomic.Int64
	startedAt     time.Time
}

// NewReadStats creates a stats collector stamped with the current time.
func NewReadStats() *ReadStats {
	return &ReadStats{startedAt: time.Now()}
}

// Elapsed returns the time since the read started.
func (s *ReadStats) Elapsed() time.Duration {
	return time.Since(s.startedAt)
}

// Snapshot is a point-in-time copy of a read's counters.
type Snapshot struct {
	PartsScanned  int64         `json:"parts_scanned"`
	PartsPruned   int64         `json:"parts_pruned"`
	ChunksEmitted int64         `json:"chunks_emitted"`
	RowsEmitted   int64         `json:"rows_emitted"`
	MarkLoads     int64         `json:"mark_loads"`
	Elapsed       time.Duration `json:"elapsed_ns"`
}

// Snapshot captures the current counter values.
func (s *ReadStats) Snapshot() Snapshot {
	return Snapshot{
		PartsScanned:  s.PartsScanned.Load(),
		PartsPruned:   s.PartsPruned.Load(),
		ChunksEmitted: s.ChunksEmitted.Load(),
		RowsEmitted:   s.RowsEmitted.Load(),
		MarkLoads:     s.MarkLoads.Load(),
		Elapsed:       s.Elapsed(),
	}
}

// TableStats aggregates read counters across the lifetime of a table, keyed
// by source table name.
type TableStats struct {
	mu     sync.RWMutex
	totals map[string]*Snapshot
	reads  map[string]int64
}

// NewTableStats creates an empty aggregate tracker.
func NewTableStats() *TableStats {
	return &TableStats{
		totals: make(map[string]*Snapshot),
		reads:  make(map[string]int64),
	}
}

// Record folds one read's counters into the aggregate for table.
func (t *TableStats) Record(table string, snap Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	total, ok := t.totals[table]
	if !ok {
		total = &Snapshot{}
		t.totals[table] = total
	}
	total.PartsScanned += snap.PartsScanned
	total.PartsPruned += snap.PartsPruned
	total.ChunksEmitted += snap.ChunksEmitted
	total.RowsEmitted += snap.RowsEmitted
	total.MarkLoads += snap.MarkLoads
	total.Elapsed += snap.Elapsed
	t.reads[table]++
}

// Totals returns the aggregate counters and read count for table.
func (t *TableStats) Totals(table string) (Snapshot, int64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total, ok := t.totals[table]
	if !ok {
		return Snapshot{}, 0
	}
	return *total, t.reads[table]
}
