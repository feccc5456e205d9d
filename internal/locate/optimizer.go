// Package locate pins each transfer to the closest pair of source and
// destination wells among all wells holding the two components.
package locate

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"worklistcore/internal/placement"
	"worklistcore/internal/plate"
	"worklistcore/pkg/domain"
)

// Source reports where a component was placed.
type Source interface {
	Candidates(component string) ([]placement.Candidate, error)
}

// Optimizer resolves transfer rows to concrete wells.
type Optimizer struct {
	source  Source
	metric  Metric
	workers int
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithMetric overrides the default cityblock metric.
func WithMetric(m Metric) Option {
	return func(o *Optimizer) {
		if m != nil {
			o.metric = m
		}
	}
}

// WithWorkers resolves rows on up to n goroutines. Values below 2 keep
// resolution sequential.
func WithWorkers(n int) Option {
	return func(o *Optimizer) { o.workers = n }
}

// New returns an optimizer reading placements from src. Placement must be
// finished before Resolve is called.
func New(src Source, opts ...Option) *Optimizer {
	o := &Optimizer{source: src, metric: Cityblock, workers: 1}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Resolve returns copies of rows with Src and Dest filled in. The error, if
// any, is the one belonging to the earliest failing row.
func (o *Optimizer) Resolve(ctx context.Context, rows []domain.Row) ([]domain.Row, error) {
	cands := make(map[string][]placement.Candidate)
	for _, row := range rows {
		for _, name := range [2]string{row.SrcName, row.DestName} {
			if _, ok := cands[name]; ok {
				continue
			}
			c, err := o.source.Candidates(name)
			if err != nil {
				return nil, err
			}
			cands[name] = c
		}
	}

	out := make([]domain.Row, len(rows))
	errs := make([]error, len(rows))
	resolve := func(i int) {
		row := rows[i].Clone()
		src, dest, err := o.closest(cands[row.SrcName], cands[row.DestName])
		if err != nil {
			errs[i] = fmt.Errorf("locate %s -> %s: %w", row.SrcName, row.DestName, err)
			return
		}
		row.Src, row.Dest = src, dest
		out[i] = row
	}

	if o.workers < 2 {
		for i := range rows {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			resolve(i)
			if errs[i] != nil {
				return nil, errs[i]
			}
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resolve(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Locate resolves a single source/destination pair.
func (o *Optimizer) Locate(src, dest string) (domain.Location, domain.Location, error) {
	srcCands, err := o.source.Candidates(src)
	if err != nil {
		return domain.Location{}, domain.Location{}, err
	}
	destCands, err := o.source.Candidates(dest)
	if err != nil {
		return domain.Location{}, domain.Location{}, err
	}
	return o.closest(srcCands, destCands)
}

// closest scans source plates, destination plates, source wells and then
// destination wells. Only a strictly smaller distance replaces the current
// best, so ties go to the first pair in that order.
func (o *Optimizer) closest(srcs, dests []placement.Candidate) (domain.Location, domain.Location, error) {
	best := math.Inf(1)
	var bestSrc, bestDest domain.Location
	found := false
	for _, sc := range srcs {
		for _, dc := range dests {
			for _, sw := range sc.Wells {
				sr, scol, err := plate.ParseWell(sw)
				if err != nil {
					return domain.Location{}, domain.Location{}, err
				}
				for _, dw := range dc.Wells {
					dr, dcol, err := plate.ParseWell(dw)
					if err != nil {
						return domain.Location{}, domain.Location{}, err
					}
					if d := o.metric(sr, scol, dr, dcol); d < best {
						best = d
						bestSrc = location(sc.Plate, sw, sr, scol)
						bestDest = location(dc.Plate, dw, dr, dcol)
						found = true
					}
				}
			}
		}
	}
	if !found {
		return domain.Location{}, domain.Location{}, fmt.Errorf("%w: no candidate wells", domain.ErrPlacementLookup)
	}
	return bestSrc, bestDest, nil
}

func location(p *plate.Plate, well string, row, col int) domain.Location {
	idx := p.Index(row, col)
	return domain.Location{
		Plate:        p.ID(),
		Well:         well,
		Index:        idx,
		Row:          row,
		Col:          col,
		PlateSize:    p.Size(),
		PipetteIndex: PipetteIndex(p.Size(), idx),
	}
}

// PipetteIndex aligns multichannel heads on 384-well plates: the index parity
// there, 0 on every other format.
func PipetteIndex(plateSize, idx int) int {
	if plateSize == 384 {
		return idx % 2
	}
	return 0
}
