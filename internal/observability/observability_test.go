package observability

import (
	"bytes"
	"context"
	"errors"
	"expvar"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestExpvarMetricsRecorderAggregates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	rec.Observe(context.Background(), "place", true, 2*time.Millisecond)
	rec.Observe(context.Background(), "place", false, 4*time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Second)

	snap := rec.Snapshot()
	if len(snap.Phases) != 1 {
		t.Fatalf("expected one phase, got %+v", snap.Phases)
	}
	place := snap.Phases["place"]
	if place.Calls != 2 || place.Errors != 1 {
		t.Fatalf("unexpected counts: %+v", place)
	}
	if place.TotalMS != 6 || place.MaxMS != 4 || place.MeanMS() != 3 {
		t.Fatalf("unexpected timings: %+v", place)
	}
	if (PhaseStats{}).MeanMS() != 0 {
		t.Fatalf("empty mean should be zero")
	}
	v := expvar.Get(rec.Name())
	if v == nil {
		t.Fatalf("expected expvar %s to be published", rec.Name())
	}
	if !strings.Contains(v.String(), `"place":{"calls":2,"errors":1`) {
		t.Fatalf("unexpected expvar payload %s", v.String())
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	rec := NewPrometheusMetricsRecorder("")
	rec.Observe(context.Background(), "compile", true, 10*time.Millisecond)
	rec.Observe(context.Background(), "compile", true, 20*time.Millisecond)
	rec.Observe(context.Background(), "compile", false, time.Millisecond)

	if got := testutil.ToFloat64(rec.total.WithLabelValues("compile", "success")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.CollectAndCount(rec.duration); got != 1 {
		t.Fatalf("expected one histogram series, got %d", got)
	}

	path := filepath.Join(t.TempDir(), "worklist.prom")
	if err := rec.WriteTextfile(path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `worklist_operations_total{operation="compile",status="error"} 1`) {
		t.Fatalf("unexpected textfile contents:\n%s", data)
	}
}

func TestJSONTracerRecordsSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := 0
	tracer.clock = ClockFunc(func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Millisecond)
	})

	ctx, compile := tracer.Start(context.Background(), "compile")
	_, locate := tracer.Start(ctx, "locate")
	locate.End(nil)
	locate.End(errors.New("ignored"))
	compile.End(errors.New("boom"))

	spans := tracer.Spans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Operation != "locate" || spans[0].Parent != "compile" || spans[0].Status != "success" || spans[0].ElapsedMS != 1 {
		t.Fatalf("unexpected first span: %+v", spans[0])
	}
	if spans[1].Parent != "" || spans[1].Status != "error" || spans[1].Error != "boom" || spans[1].ElapsedMS != 3 {
		t.Fatalf("unexpected second span: %+v", spans[1])
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Fatalf("expected 2 JSON lines, got %d", lines)
	}
	if !strings.Contains(buf.String(), `"parent":"compile"`) {
		t.Fatalf("parent missing from trace:\n%s", buf.String())
	}
}

func TestNoopsAndFanout(t *testing.T) {
	var l NoopLogger
	l.Debug("d", "k", "v")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	_, span := NoopTracer{}.Start(context.Background(), "x")
	span.End(nil)

	a := NewExpvarMetricsRecorder("")
	f := Fanout{a, nil, NoopMetrics{}}
	f.Observe(context.Background(), "traverse", true, time.Millisecond)
	if a.Snapshot().Phases["traverse"].Calls != 1 {
		t.Fatalf("expected fanout to reach expvar recorder")
	}
}
