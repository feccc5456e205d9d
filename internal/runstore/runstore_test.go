package runstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worklistcore/internal/builder"
	"worklistcore/internal/infra/persistence/postgres"
	"worklistcore/internal/infra/persistence/postgres/testutil"
	"worklistcore/internal/observability"
	"worklistcore/internal/pipeline"
	"worklistcore/internal/plate"
	"worklistcore/internal/worklist"
)

func stages(t *testing.T) []pipeline.StageResult {
	t.Helper()
	st := []pipeline.Stage{{&builder.Dilution{Output: "x", Oligos: []string{"1", "2"}, OligoVolume: 20, TotalVolume: 200}}}
	res, _, err := pipeline.NewRunner(worklist.DefaultConfig(), nil).Run(context.Background(), st, nil)
	require.NoError(t, err)
	return res
}

func TestNewRunCapturesStages(t *testing.T) {
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	run := NewRun("", "dil", observability.ClockFunc(func() time.Time { return at }), stages(t))
	assert.Len(t, run.ID, 36)
	assert.Equal(t, at, run.CreatedAt)
	require.Len(t, run.Stages, 1)
	st := run.Stages[0]
	assert.Equal(t, "dilution", st.Kind)
	assert.Equal(t, 4, run.RowCount())
	require.Len(t, st.Worklists, 1)
	assert.Equal(t, []string{"x", "reagents", "input"}, st.Worklists[0].RequiredPlates)
	var ids []string
	for _, p := range st.Plates {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"input", "reagents", "x"}, ids)
}

func TestSnapshotRestore(t *testing.T) {
	p, err := plate.New("p", 16, 24, plate.OrderColumnMajor, "parent")
	require.NoError(t, err)
	_, err = p.Place(plate.Record{"id": "a", "parent": "1"}, "")
	require.NoError(t, err)
	_, err = p.Place(plate.Record{"id": "b"}, "P24")
	require.NoError(t, err)

	snap := Snapshot(p)
	assert.Equal(t, "column_major", snap.Order)
	assert.Equal(t, []string{"id", "parent"}, snap.Properties)
	require.Len(t, snap.Wells, 2)

	back, err := Restore(snap)
	require.NoError(t, err)
	assert.Equal(t, p.Size(), back.Size())
	assert.Equal(t, plate.OrderColumnMajor, back.Order())
	assert.Equal(t, p.Wells(), back.Wells())

	snap.Order = "diagonal"
	_, err = Restore(snap)
	assert.Error(t, err)
}

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	t.Setenv(EnvDriver, "memory")
	s, err := Open(ctx)
	require.NoError(t, err)
	run := NewRun("r1", "dil", nil, stages(t))
	require.NoError(t, s.SaveRun(ctx, run))
	got, err := s.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, run.RowCount(), got.RowCount())

	t.Setenv(EnvDriver, "")
	t.Setenv(EnvSQLitePath, filepath.Join(t.TempDir(), "runs.db"))
	s, err = Open(ctx)
	require.NoError(t, err)
	require.NoError(t, s.SaveRun(ctx, run))
	require.NoError(t, s.Close())

	db, _ := testutil.NewStubDB()
	restore := postgres.OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	t.Setenv(EnvDriver, "postgres")
	s, err = Open(ctx)
	require.NoError(t, err)
	require.NoError(t, s.SaveRun(ctx, run))
	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	t.Setenv(EnvDriver, "etcd")
	_, err = Open(ctx)
	assert.Error(t, err)
}
