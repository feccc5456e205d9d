// Package worklist compiles a reaction graph into per-plate transfer
// worklists: it traverses the graph, places every component, pins each
// transfer to concrete wells and schedules the result.
package worklist

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"worklistcore/internal/graph"
	"worklistcore/internal/locate"
	"worklistcore/internal/observability"
	"worklistcore/internal/placement"
	"worklistcore/internal/plate"
	"worklistcore/internal/schedule"
	"worklistcore/pkg/domain"
)

// Operation names reported to metrics and tracing.
const (
	OpTraverse = "traverse"
	OpPlace    = "place"
	OpLocate   = "locate"
	OpSchedule = "schedule"
	OpCompile  = "compile"
)

// Compiler turns graphs into worklists. It holds no per-run state and may be
// shared.
type Compiler struct {
	cfg     Config
	metric  locate.Metric
	logger  observability.Logger
	metrics observability.MetricsRecorder
	tracer  observability.Tracer
	clock   observability.Clock
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(c *Compiler) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(m observability.MetricsRecorder) Option {
	return func(c *Compiler) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t observability.Tracer) Option {
	return func(c *Compiler) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithClock sets the clock used for durations.
func WithClock(clk observability.Clock) Option {
	return func(c *Compiler) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// NewCompiler validates cfg and applies options.
func NewCompiler(cfg Config, opts ...Option) (*Compiler, error) {
	cfg.Names = cfg.Names.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	metric, err := locate.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}
	c := &Compiler{
		cfg:     cfg,
		metric:  metric,
		logger:  observability.NoopLogger{},
		metrics: observability.NoopMetrics{},
		tracer:  observability.NoopTracer{},
		clock:   observability.SystemClock,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Compiler) Config() Config { return c.cfg }

// Compile runs traversal, placement, location and scheduling. Input plates
// are copied, never modified. Nothing is returned unless every phase
// succeeds.
func (c *Compiler) Compile(ctx context.Context, g *graph.Graph, inputs map[string]*plate.Plate) (*Result, error) {
	var res *Result
	err := c.observe(ctx, OpCompile, func(ctx context.Context) error {
		var err error
		res, err = c.compile(ctx, g, inputs)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("worklists compiled",
		"rows", len(res.Rows),
		"worklists", len(res.Worklists),
		"plates", len(res.Plates))
	return res, nil
}

func (c *Compiler) compile(ctx context.Context, g *graph.Graph, inputs map[string]*plate.Plate) (*Result, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil graph", domain.ErrGraphIntegrity)
	}
	var rows []domain.Row
	if err := c.observe(ctx, OpTraverse, func(context.Context) error {
		var err error
		rows, err = g.Traverse()
		return err
	}); err != nil {
		return nil, err
	}
	c.logger.Debug("graph traversed", "rows", len(rows))

	ids := make([]string, 0, len(inputs))
	for id := range inputs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	owned := make([]*plate.Plate, 0, len(ids))
	for _, id := range ids {
		if inputs[id] == nil {
			return nil, fmt.Errorf("input plate %s is nil", id)
		}
		if inputs[id].ID() != id {
			return nil, fmt.Errorf("input plate keyed %s is named %s", id, inputs[id].ID())
		}
		owned = append(owned, inputs[id].Clone())
	}
	resolver, err := placement.NewResolver(c.cfg.layout(), owned, placement.WithPlateHook(func(p *plate.Plate) {
		c.logger.Debug("plate allocated", "plate", p.ID(), "wells", p.Size())
	}))
	if err != nil {
		return nil, err
	}

	if err := c.observe(ctx, OpPlace, func(context.Context) error {
		return c.place(resolver, rows)
	}); err != nil {
		return nil, err
	}
	c.logger.Debug("components placed", "plates", len(resolver.Plates()))

	var located []domain.Row
	if err := c.observe(ctx, OpLocate, func(ctx context.Context) error {
		var err error
		located, err = locate.New(resolver,
			locate.WithMetric(c.metric),
			locate.WithWorkers(c.cfg.Workers),
		).Resolve(ctx, rows)
		return err
	}); err != nil {
		return nil, err
	}

	var scheduled []domain.Row
	_ = c.observe(ctx, OpSchedule, func(context.Context) error {
		scheduled = schedule.New(c.cfg.ReagentPriority, c.cfg.CycleKey).Schedule(located)
		return nil
	})

	res := &Result{Rows: scheduled, Plates: resolver.Plates()}
	res.Worklists = group(scheduled)
	c.logger.Debug("worklists grouped", "worklists", len(res.Worklists))
	return res, nil
}

// place assigns wells in a fixed order: raw inputs, reagents by name,
// intermediates from the deepest level up, then final products. Within each
// of those classes, components pinned to a well are placed before the rest so
// auto placement never takes a pinned well. An intermediate drawn from by
// rows at level L lands on the plate named after L.
func (c *Compiler) place(r *placement.Resolver, rows []domain.Row) error {
	names := c.cfg.Names
	srcWell := func(row domain.Row) string { return row.SrcFixedWell }

	var inputs, reagents, intermediates, products []domain.Row
	for _, row := range rows {
		switch {
		case row.SrcIsInput:
			inputs = append(inputs, row)
		case row.SrcIsReagent:
			reagents = append(reagents, row)
		default:
			intermediates = append(intermediates, row)
		}
		if row.Level == 0 {
			products = append(products, row)
		}
	}
	slices.SortStableFunc(reagents, func(a, b domain.Row) int { return cmp.Compare(a.SrcName, b.SrcName) })
	slices.SortStableFunc(intermediates, func(a, b domain.Row) int { return cmp.Compare(b.Level, a.Level) })

	for _, row := range pinnedFirst(inputs, srcWell) {
		if _, err := r.Place(row.SrcName, names.Input, false, row.SrcFixedWell); err != nil {
			return err
		}
	}
	for _, row := range pinnedFirst(reagents, srcWell) {
		if _, err := r.Place(row.SrcName, names.Reagents, true, row.SrcFixedWell); err != nil {
			return err
		}
	}
	for _, row := range pinnedFirst(intermediates, srcWell) {
		if _, err := r.Place(row.SrcName, names.Intermediate(row.Level), false, row.SrcFixedWell); err != nil {
			return err
		}
	}
	for _, row := range pinnedFirst(products, func(row domain.Row) string { return row.DestFixedWell }) {
		if _, err := r.Place(row.DestName, names.Output, false, row.DestFixedWell); err != nil {
			return err
		}
	}
	return nil
}

// pinnedFirst moves rows whose well returns non-empty to the front, keeping
// the relative order on both sides.
func pinnedFirst(rows []domain.Row, well func(domain.Row) string) []domain.Row {
	out := make([]domain.Row, 0, len(rows))
	for _, row := range rows {
		if well(row) != "" {
			out = append(out, row)
		}
	}
	for _, row := range rows {
		if well(row) == "" {
			out = append(out, row)
		}
	}
	return out
}

func (c *Compiler) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, op)
	start := c.clock.Now()
	err := fn(ctx)
	c.metrics.Observe(ctx, op, err == nil, c.clock.Now().Sub(start))
	span.End(err)
	if err != nil {
		c.logger.Warn("compile phase failed", "operation", op, "error", err)
	}
	return err
}
