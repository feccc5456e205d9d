// Command worklistc compiles liquid-handling protocols into per-plate
// worklists, stores the artifacts and records each run.
//
//	worklistc compile -protocol FILE [-plates DIR] [-name NAME]
//	worklistc speedy -plates DIR -name NAME [-max-mutated N] [-blocks N]
//	worklistc runs [-id ID]
//
// Artifacts go to the blob store selected by WORKLIST_BLOB_*; run history to
// the store selected by WORKLIST_STORAGE_*.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"worklistcore/internal/blob"
	"worklistcore/internal/export"
	"worklistcore/internal/observability"
	"worklistcore/internal/pipeline"
	"worklistcore/internal/plate"
	"worklistcore/internal/protocol"
	"worklistcore/internal/runstore"
	"worklistcore/internal/worklist"
	"worklistcore/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

// errUsage marks errors that exit with status 2.
var errUsage = errors.New("usage")

const usage = `usage: worklistc <command> [flags]

commands:
  compile   compile a protocol file
  speedy    run the speedy-genes assembly preset
  runs      list recorded runs or show one
`

func cli(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	var err error
	switch args[0] {
	case "compile":
		err = compileCmd(args[1:], stdout, stderr)
	case "speedy":
		err = speedyCmd(args[1:], stdout, stderr)
	case "runs":
		err = runsCmd(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", args[0], usage)
		return 2
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "worklistc %s: %v\n", args[0], err)
		return 2
	default:
		fmt.Fprintf(stderr, "worklistc %s: %v\n", args[0], err)
		return 1
	}
}

// common holds the flags every compiling command accepts.
type common struct {
	logLevel    string
	logFormat   string
	metricsFile string
	traceFile   string
	plates      string
	name        string
	noStore     bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&c.logFormat, "log-format", "text", "log format: text or json")
	fs.StringVar(&c.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	fs.StringVar(&c.traceFile, "trace-file", "", "append JSON trace spans to this file")
	fs.StringVar(&c.name, "name", "", "run name")
	fs.BoolVar(&c.noStore, "no-store", false, "skip artifact export and run history")
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("worklistc "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}
	return nil
}

func newLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("%w: invalid -log-level %q", errUsage, level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("%w: invalid -log-format %q", errUsage, format)
	}
}

func compileCmd(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("compile", stderr)
	var c common
	c.register(fs)
	var path string
	fs.StringVar(&path, "protocol", "", "protocol file (HCL)")
	fs.StringVar(&c.plates, "plates", "", "directory of input plate CSV files")
	if err := parse(fs, args); err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("%w: -protocol is required", errUsage)
	}
	return execute(c, stdout, stderr, func(plates map[string]*plate.Plate) ([]pipeline.Stage, string, error) {
		p, err := protocol.Load(path, worklist.DefaultConfig())
		if err != nil {
			return nil, "", err
		}
		name := c.name
		if name == "" {
			name = p.OutputName()
		}
		return []pipeline.Stage{{p}}, name, nil
	})
}

func speedyCmd(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("speedy", stderr)
	var c common
	c.register(fs)
	var maxMutated, blocks int
	fs.StringVar(&c.plates, "plates", "", "directory holding wt.csv and mut.csv")
	fs.IntVar(&maxMutated, "max-mutated", 1, "mutated positions per design")
	fs.IntVar(&blocks, "blocks", 2, "blocks per gene")
	if err := parse(fs, args); err != nil {
		return err
	}
	if c.plates == "" || c.name == "" {
		return fmt.Errorf("%w: -plates and -name are required", errUsage)
	}
	return execute(c, stdout, stderr, func(plates map[string]*plate.Plate) ([]pipeline.Stage, string, error) {
		stages, err := pipeline.SpeedyGenes(plates, maxMutated, blocks, c.name)
		return stages, c.name, err
	})
}

type planFunc func(plates map[string]*plate.Plate) ([]pipeline.Stage, string, error)

// execute runs the shared compile flow: observability setup, plate loading,
// the pipeline, export and run recording.
func execute(c common, stdout, stderr io.Writer, plan planFunc) (err error) {
	ctx := context.Background()
	logger, err := newLogger(c.logLevel, c.logFormat, stderr)
	if err != nil {
		return err
	}
	prom := observability.NewPrometheusMetricsRecorder("")
	exp := observability.NewExpvarMetricsRecorder("")
	metrics := observability.Fanout{prom, exp}
	defer func() { logger.Debug("compiler metrics", "expvar", exp.Name(), "phases", exp.Snapshot().Phases) }()
	if c.metricsFile != "" {
		defer func() {
			if werr := prom.WriteTextfile(c.metricsFile); werr != nil && err == nil {
				err = fmt.Errorf("write metrics: %w", werr)
			}
		}()
	}
	var tracer observability.Tracer = observability.NoopTracer{}
	if c.traceFile != "" {
		f, ferr := os.OpenFile(c.traceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if ferr != nil {
			return ferr
		}
		defer f.Close()
		tracer = observability.NewJSONTracer(f)
	}

	plates := map[string]*plate.Plate{}
	if c.plates != "" {
		if plates, err = pipeline.LoadPlates(c.plates); err != nil {
			return err
		}
		logger.Debug("plates loaded", "dir", c.plates, "count", len(plates))
	}
	stages, name, err := plan(plates)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(worklist.DefaultConfig(), logger,
		worklist.WithLogger(logger),
		worklist.WithMetricsRecorder(metrics),
		worklist.WithTracer(tracer),
	)
	results, _, err := runner.Run(ctx, stages, plates)
	if err != nil {
		return err
	}
	run := runstore.NewRun("", name, observability.SystemClock, results)
	if !c.noStore {
		if err := record(ctx, logger, run, results); err != nil {
			return err
		}
	}
	return printRun(stdout, run, results)
}

func record(ctx context.Context, logger *slog.Logger, run domain.Run, results []pipeline.StageResult) error {
	store, err := blob.Open(ctx)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	if _, err := export.New(store, export.WithLogger(logger)).Export(ctx, run.ID, run.Name, results); err != nil {
		return err
	}
	runs, err := runstore.Open(ctx)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer runs.Close()
	if err := runs.SaveRun(ctx, run); err != nil {
		return err
	}
	logger.Info("run recorded", "run", run.ID, "stages", len(run.Stages))
	return nil
}

func printRun(w io.Writer, run domain.Run, results []pipeline.StageResult) error {
	fmt.Fprintf(w, "run %s (%s): %d stages, %d transfers\n", run.ID, run.Name, len(results), run.RowCount())
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tKIND\tOUTPUT\tWORKLISTS\tTRANSFERS")
	for _, st := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", st.Name, st.Kind, st.Output, len(st.Result.Worklists), len(st.Result.Rows))
	}
	return tw.Flush()
}

func runsCmd(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("runs", stderr)
	var id string
	fs.StringVar(&id, "id", "", "show a single run")
	if err := parse(fs, args); err != nil {
		return err
	}
	ctx := context.Background()
	store, err := runstore.Open(ctx)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer store.Close()
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	if id == "" {
		runs, err := store.ListRuns(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "ID\tNAME\tCREATED\tSTAGES\tTRANSFERS")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", r.ID, r.Name, r.CreatedAt.Format(time.RFC3339), len(r.Stages), r.RowCount())
		}
		return tw.Flush()
	}
	r, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "run %s (%s) created %s\n", r.ID, r.Name, r.CreatedAt.Format(time.RFC3339))
	fmt.Fprintln(tw, "STAGE\tKIND\tWORKLIST\tTRANSFERS\tREQUIRED PLATES")
	for _, st := range r.Stages {
		for _, wl := range st.Worklists {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", st.Name, st.Kind, wl.Plate, len(wl.Rows), strings.Join(wl.RequiredPlates, ","))
		}
	}
	return tw.Flush()
}
