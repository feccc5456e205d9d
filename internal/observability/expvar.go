package observability

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq atomic.Uint64

// PhaseStats aggregates every observation of one operation.
type PhaseStats struct {
	Calls   int64   `json:"calls"`
	Errors  int64   `json:"errors"`
	TotalMS float64 `json:"total_ms"`
	MaxMS   float64 `json:"max_ms"`
}

// MeanMS is the average duration, zero before the first call.
func (s PhaseStats) MeanMS() float64 {
	if s.Calls == 0 {
		return 0
	}
	return s.TotalMS / float64(s.Calls)
}

// PhaseSnapshot is a point-in-time copy of an ExpvarMetricsRecorder.
type PhaseSnapshot struct {
	Phases     map[string]PhaseStats `json:"phases"`
	RecordedAt time.Time             `json:"recorded_at"`
}

// ExpvarMetricsRecorder keeps per-phase call counts and timings and serves
// them from /debug/vars under its name.
type ExpvarMetricsRecorder struct {
	name   string
	clock  Clock
	mu     sync.Mutex
	phases map[string]*PhaseStats
}

// NewExpvarMetricsRecorder publishes under name, or under a generated
// "worklist_phases_N" when name is empty. expvar names are global, so a
// reused name panics.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("worklist_phases_%d", expvarSeq.Add(1))
	}
	r := &ExpvarMetricsRecorder{name: name, clock: SystemClock, phases: map[string]*PhaseStats{}}
	expvar.Publish(name, r)
	return r
}

// Name is the expvar key.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Observe implements MetricsRecorder. Observations without an operation are
// dropped.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, d time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(d) / float64(time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.phases[operation]
	if !ok {
		s = &PhaseStats{}
		r.phases[operation] = s
	}
	s.Calls++
	if !success {
		s.Errors++
	}
	s.TotalMS += ms
	s.MaxMS = max(s.MaxMS, ms)
}

// Snapshot copies the current stats.
func (r *ExpvarMetricsRecorder) Snapshot() PhaseSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := PhaseSnapshot{Phases: make(map[string]PhaseStats, len(r.phases)), RecordedAt: r.clock.Now()}
	for op, s := range r.phases {
		out.Phases[op] = *s
	}
	return out
}

// String implements expvar.Var.
func (r *ExpvarMetricsRecorder) String() string {
	b, err := json.Marshal(r.Snapshot())
	if err != nil {
		return "{}"
	}
	return string(b)
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
