package history

import (
	"context"
	"sync"
	"time"
)

// Run - one reduction of one target.
type Run struct {
	ID        string
	Target    string
	Plan      string
	StartSize int64
	EndSize   int64
	Rounds    int
	StartedAt time.Time
	EndedAt   time.Time
	Err       string
}

// PassRecord - one driver run of one pass inside a reduction.
type PassRecord struct {
	RunID      string
	Round      int
	Pass       string
	Transforms int
	Successes  int
	SizeBefore int64
	SizeAfter  int64
	Elapsed    time.Duration
	Err        string
}

// Recorder journals reductions.
type Recorder interface {
	Begin(ctx context.Context, run Run) error
	RecordPass(ctx context.Context, rec PassRecord) error
	Finish(ctx context.Context, run Run) error
}

// NopRecorder -
type NopRecorder struct{}

func (NopRecorder) Begin(context.Context, Run) error { return nil }

func (NopRecorder) RecordPass(context.Context, PassRecord) error { return nil }

func (NopRecorder) Finish(context.Context, Run) error { return nil }

// MemoryRecorder keeps the journal in memory. Safe for concurrent use.
type MemoryRecorder struct {
	mu     sync.Mutex
	runs   map[string]*Run
	order  []string
	passes map[string][]PassRecord
}

// NewMemoryRecorder -
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		runs:   make(map[string]*Run),
		passes: make(map[string][]PassRecord),
	}
}

func (m *MemoryRecorder) Begin(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := run
	if _, ok := m.runs[run.ID]; !ok {
		m.order = append(m.order, run.ID)
	}
	m.runs[run.ID] = &r
	return nil
}

func (m *MemoryRecorder) RecordPass(_ context.Context, rec PassRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passes[rec.RunID] = append(m.passes[rec.RunID], rec)
	return nil
}

func (m *MemoryRecorder) Finish(ctx context.Context, run Run) error {
	return m.Begin(ctx, run)
}

// Runs in the order they began.
func (m *MemoryRecorder) Runs() []Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	rst := make([]Run, 0, len(m.order))
	for _, id := range m.order {
		rst = append(rst, *m.runs[id])
	}
	return rst
}

// Passes recorded for a run, in order.
func (m *MemoryRecorder) Passes(runID string) []PassRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PassRecord(nil), m.passes[runID]...)
}
