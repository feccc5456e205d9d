package observability

import (
	"context"
	"encoding/json"
	"io"
	"slices"
	"sync"
	"time"
)

// Span is one finished operation as written to the trace file.
type Span struct {
	Operation string    `json:"operation"`
	Parent    string    `json:"parent,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Start     time.Time `json:"start"`
	ElapsedMS float64   `json:"elapsed_ms"`
}

type parentKey struct{}

// JSONTracer writes each finished span as one JSON line. Spans started from
// a context carrying another span record it as their parent, so compile
// phases nest under "compile".
type JSONTracer struct {
	clock Clock
	mu    sync.Mutex
	enc   *json.Encoder
	spans []Span
}

// NewJSONTracer writes to w; with a nil w spans are only kept in memory.
func NewJSONTracer(w io.Writer) *JSONTracer {
	t := &JSONTracer{clock: SystemClock}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Spans returns finished spans in completion order.
func (t *JSONTracer) Spans() []Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.spans)
}

// Start implements Tracer.
func (t *JSONTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	parent, _ := ctx.Value(parentKey{}).(string)
	s := &jsonSpan{t: t, span: Span{Operation: operation, Parent: parent, Start: t.clock.Now()}}
	return context.WithValue(ctx, parentKey{}, operation), s
}

type jsonSpan struct {
	t    *JSONTracer
	span Span
	once sync.Once
}

// End records the span once; later calls are ignored.
func (s *jsonSpan) End(err error) {
	s.once.Do(func() {
		s.span.Status = statusLabel(err == nil)
		if err != nil {
			s.span.Error = err.Error()
		}
		s.span.ElapsedMS = float64(s.t.clock.Now().Sub(s.span.Start)) / float64(time.Millisecond)
		s.t.mu.Lock()
		defer s.t.mu.Unlock()
		s.t.spans = append(s.t.spans, s.span)
		if s.t.enc != nil {
			_ = s.t.enc.Encode(s.span)
		}
	})
}
