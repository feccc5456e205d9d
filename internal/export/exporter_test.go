package export

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"worklistcore/internal/blob"
	"worklistcore/internal/builder"
	"worklistcore/internal/observability"
	"worklistcore/internal/pipeline"
	"worklistcore/internal/worklist"
)

func dilutionStages(t *testing.T) []pipeline.StageResult {
	t.Helper()
	stages := []pipeline.Stage{{&builder.Dilution{Output: "x", Oligos: []string{"1"}, OligoVolume: 20, TotalVolume: 200}}}
	results, _, err := pipeline.NewRunner(worklist.DefaultConfig(), nil).Run(context.Background(), stages, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return results
}

func read(t *testing.T, store blob.Store, key string) string {
	t.Helper()
	_, rc, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read %s: %v", key, err)
	}
	return string(b)
}

func TestExportWritesStageArtifacts(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e := New(store,
		WithIDGenerator(func() string { return "run-1" }),
		WithClock(observability.ClockFunc(func() time.Time { return at })),
	)
	m, err := e.Export(ctx, "", "dil", dilutionStages(t))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if m.RunID != "run-1" || m.Name != "dil" || !m.CreatedAt.Equal(at) {
		t.Fatalf("unexpected manifest header %+v", m)
	}
	if len(m.Stages) != 1 || m.Stages[0].Rows != 2 || m.Stages[0].Kind != "dilution" {
		t.Fatalf("unexpected stages %+v", m.Stages)
	}

	infos, err := store.List(ctx, "run-1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var keys []string
	for _, inf := range infos {
		keys = append(keys, inf.Key)
	}
	want := []string{
		"run-1/1/input_summary.csv",
		"run-1/1/manifest.json",
		"run-1/1/plates/input.csv",
		"run-1/1/plates/reagents.csv",
		"run-1/1/plates/x.csv",
		"run-1/1/x_worklist.csv",
		"run-1/manifest.json",
	}
	if strings.Join(keys, "\n") != strings.Join(want, "\n") {
		t.Fatalf("keys:\n%s", strings.Join(keys, "\n"))
	}

	lines := strings.Split(strings.TrimSpace(read(t, store, "run-1/1/x_worklist.csv")), "\n")
	if len(lines) != 3 {
		t.Fatalf("worklist lines = %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "src_name,src_plate,src_well,src_idx") {
		t.Fatalf("header = %s", lines[0])
	}
	if lines[1] != "water,reagents,A1,0,0,0,96,0,1_dil,x,A1,0,0,0,96,0,180,0,false,true" {
		t.Fatalf("first row = %s", lines[1])
	}

	summary := read(t, store, "run-1/1/input_summary.csv")
	if !strings.Contains(summary, "reagents,A1,water,180,\n") || !strings.HasSuffix(summary, ",,,,x\n") {
		t.Fatalf("summary = %q", summary)
	}

	back, err := ReadManifest(ctx, store, "run-1")
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if len(back.Stages) != 1 || len(back.Stages[0].Worklists) != 1 {
		t.Fatalf("round-tripped manifest %+v", back)
	}
	wl := back.Stages[0].Worklists[0]
	if wl.Plate != "x" || wl.Rows != 2 || strings.Join(wl.RequiredPlates, ",") != "x,reagents,input" {
		t.Fatalf("worklist entry %+v", wl)
	}
}

func TestExportIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	e := New(store)
	stages := dilutionStages(t)
	m, err := e.Export(ctx, "", "dil", stages)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(m.RunID) != 36 {
		t.Fatalf("expected uuid run id, got %q", m.RunID)
	}
	if _, err := e.Export(ctx, m.RunID, "dil", stages); !errors.Is(err, blob.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestExportToFilesystem(t *testing.T) {
	store, err := blob.NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	if _, err := New(store).Export(context.Background(), "r", "dil", dilutionStages(t)); err != nil {
		t.Fatalf("export: %v", err)
	}
	grid := read(t, store, "r/1/plates/x.csv")
	if !strings.HasPrefix(grid, ",id,") {
		t.Fatalf("grid = %q", grid)
	}
}

func TestReadManifestMissing(t *testing.T) {
	if _, err := ReadManifest(context.Background(), blob.NewMemory(), "nope"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
