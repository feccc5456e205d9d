// Package pipeline runs a sequence of builders, feeding the plates each stage
// fills into the stages after it.
package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"worklistcore/internal/builder"
	"worklistcore/internal/observability"
	"worklistcore/internal/plate"
	"worklistcore/internal/worklist"
)

// Stage is one builder or a group of builders run one after another under a
// shared stage number.
type Stage []builder.Builder

// Configurer is implemented by builders that carry their own engine settings.
type Configurer interface {
	Config() worklist.Config
}

// StageResult is the outcome of one builder.
type StageResult struct {
	Name    string
	Kind    builder.Kind
	Output  string
	Result  *worklist.Result
	Summary worklist.Summary
}

// Runner executes stages with a base configuration.
type Runner struct {
	base   worklist.Config
	opts   []worklist.Option
	logger observability.Logger
}

// NewRunner returns a runner. Compiler options are applied to every stage.
func NewRunner(base worklist.Config, logger observability.Logger, opts ...worklist.Option) *Runner {
	if logger == nil {
		logger = observability.NoopLogger{}
	}
	return &Runner{base: base, opts: opts, logger: logger}
}

// Run compiles every builder in order. Stage names are the 1-based stage
// number, suffixed with "_<j>" for the j-th builder of a group. plates is not
// modified; the returned map holds the input plates updated with every plate
// the stages required.
func (r *Runner) Run(ctx context.Context, stages []Stage, plates map[string]*plate.Plate) ([]StageResult, map[string]*plate.Plate, error) {
	current := maps.Clone(plates)
	if current == nil {
		current = map[string]*plate.Plate{}
	}
	var results []StageResult
	for i, stage := range stages {
		for j, b := range stage {
			name := strconv.Itoa(i + 1)
			if len(stage) > 1 {
				name += "_" + strconv.Itoa(j+1)
			}
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			res, err := r.runOne(ctx, b, current)
			if err != nil {
				return nil, nil, fmt.Errorf("stage %s (%s %s): %w", name, b.Kind(), b.OutputName(), err)
			}
			maps.Copy(current, res.RequiredPlates())
			results = append(results, StageResult{
				Name:    name,
				Kind:    b.Kind(),
				Output:  b.OutputName(),
				Result:  res,
				Summary: worklist.Summarise(res.Worklists),
			})
			r.logger.Info("stage compiled", "stage", name, "kind", b.Kind(), "output", b.OutputName(), "rows", len(res.Rows))
		}
	}
	return results, current, nil
}

func (r *Runner) runOne(ctx context.Context, b builder.Builder, plates map[string]*plate.Plate) (*worklist.Result, error) {
	cfg := r.base
	if c, ok := b.(Configurer); ok {
		cfg = c.Config()
	}
	cfg.Names.Output = b.OutputName()
	compiler, err := worklist.NewCompiler(cfg, r.opts...)
	if err != nil {
		return nil, err
	}
	g, err := b.Build()
	if err != nil {
		return nil, err
	}
	return compiler.Compile(ctx, g, plates)
}

// LoadPlates reads every .csv file under dir as a plate named by the file's
// base name up to its first dot.
func LoadPlates(dir string) (map[string]*plate.Plate, error) {
	out := map[string]*plate.Plate{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".csv") {
			return nil
		}
		id, _, _ := strings.Cut(d.Name(), ".")
		if _, dup := out[id]; dup {
			return fmt.Errorf("plate %s defined twice (%s)", id, path)
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		p, err := plate.Read(f, id)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		out[id] = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load plates: %w", err)
	}
	return out, nil
}
