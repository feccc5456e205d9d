package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"worklistcore/pkg/domain"
)

func run(id string, at time.Time) domain.Run {
	return domain.Run{
		ID:        id,
		Name:      "exp",
		CreatedAt: at,
		Stages: []domain.RunStage{{
			Name: "1", Kind: "dilution", Output: "exp-wt-dil",
			Worklists: []domain.RunWorklist{{Plate: "exp-wt-dil", RequiredPlates: []string{"exp-wt-dil", "wt"},
				Rows: []domain.Row{{SrcName: "1", DestName: "1_dil", Volume: 20, SrcIsInput: true}}}},
		}},
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "runs.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := s.SaveRun(ctx, run("r2", t0.Add(time.Minute))); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveRun(ctx, run("r1", t0)); err != nil {
		t.Fatalf("save: %v", err)
	}
	updated := run("r1", t0)
	updated.Name = "exp2"
	if err := s.SaveRun(ctx, updated); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	var count int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count); err != nil || count != 2 {
		t.Fatalf("rows = %d (%v)", count, err)
	}
	if s.Path() != path {
		t.Fatalf("path = %s", s.Path())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	runs, err := reopened.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "r1" || runs[0].Name != "exp2" || runs[1].ID != "r2" {
		t.Fatalf("unexpected runs %+v", runs)
	}
	if runs[0].RowCount() != 1 || !runs[0].CreatedAt.Equal(t0) {
		t.Fatalf("payload not restored: %+v", runs[0])
	}

	ok, err := reopened.DeleteRun(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, _ := reopened.DeleteRun(ctx, "r1"); ok {
		t.Fatalf("second delete reported existing")
	}
	if _, err := reopened.GetRun(ctx, "r1"); !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestCorruptPayloadFailsOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.DB().Exec(`INSERT INTO runs(id,name,created_at,payload) VALUES('x','x','', ?)`, []byte("{")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = s.Close()
	if _, err := NewStore(path); err == nil {
		t.Fatalf("expected decode error on open")
	}
}

func TestSaveRejectsMissingID(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if err := s.SaveRun(context.Background(), domain.Run{}); err == nil {
		t.Fatalf("expected id error")
	}
}
