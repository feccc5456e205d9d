// Package runstore records compiled runs in a durable domain.RunStore and
// converts between pipeline results and their stored form.
package runstore

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"worklistcore/internal/infra/persistence/memory"
	"worklistcore/internal/infra/persistence/postgres"
	"worklistcore/internal/infra/persistence/sqlite"
	"worklistcore/internal/observability"
	"worklistcore/internal/pipeline"
	"worklistcore/internal/plate"
	"worklistcore/pkg/domain"
)

// Driver names a storage backend.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Environment variables read by Open.
const (
	EnvDriver      = "WORKLIST_STORAGE_DRIVER"
	EnvSQLitePath  = "WORKLIST_SQLITE_PATH"
	EnvPostgresDSN = "WORKLIST_POSTGRES_DSN"
)

type Store = domain.RunStore

// Open selects a backend from the environment:
//
//	WORKLIST_STORAGE_DRIVER  memory|sqlite|postgres (default sqlite)
//	WORKLIST_SQLITE_PATH     database file (default ./worklist.db)
//	WORKLIST_POSTGRES_DSN    connection string when driver=postgres
func Open(ctx context.Context) (Store, error) {
	return OpenDriver(ctx, Driver(os.Getenv(EnvDriver)))
}

// OpenDriver is Open with an explicit driver; the empty driver means sqlite.
func OpenDriver(ctx context.Context, driver Driver) (Store, error) {
	switch driver {
	case DriverMemory:
		return memory.New(), nil
	case "", DriverSQLite:
		return sqlite.NewStore(os.Getenv(EnvSQLitePath))
	case DriverPostgres:
		return postgres.NewStore(ctx, os.Getenv(EnvPostgresDSN))
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// NewRun builds the stored form of a pipeline run. An empty id is replaced by
// a random UUID.
func NewRun(id, name string, clock observability.Clock, stages []pipeline.StageResult) domain.Run {
	if id == "" {
		id = uuid.NewString()
	}
	if clock == nil {
		clock = observability.SystemClock
	}
	run := domain.Run{ID: id, Name: name, CreatedAt: clock.Now()}
	for _, st := range stages {
		rs := domain.RunStage{Name: st.Name, Kind: string(st.Kind), Output: st.Output}
		if st.Result != nil {
			for _, wl := range st.Result.Worklists {
				rs.Worklists = append(rs.Worklists, domain.RunWorklist{
					Plate:          wl.Plate,
					RequiredPlates: wl.RequiredPlates,
					Rows:           wl.Rows,
				})
			}
			for _, p := range st.Result.Plates {
				rs.Plates = append(rs.Plates, Snapshot(p))
			}
		}
		run.Stages = append(run.Stages, rs)
	}
	return run
}

// Snapshot captures p.
func Snapshot(p *plate.Plate) domain.PlateSnapshot {
	s := domain.PlateSnapshot{
		ID:         p.ID(),
		Rows:       p.Rows(),
		Cols:       p.Cols(),
		Order:      p.Order().String(),
		Properties: p.Properties(),
	}
	for _, w := range p.Wells() {
		s.Wells = append(s.Wells, domain.WellSnapshot{Well: w.Name, Record: w.Record})
	}
	return s
}

// Restore rebuilds a plate from its snapshot.
func Restore(s domain.PlateSnapshot) (*plate.Plate, error) {
	order, err := plate.ParseOrder(s.Order)
	if err != nil {
		return nil, err
	}
	p, err := plate.New(s.ID, s.Rows, s.Cols, order, s.Properties...)
	if err != nil {
		return nil, err
	}
	for _, w := range s.Wells {
		if _, err := p.Place(plate.Record(w.Record), w.Well); err != nil {
			return nil, fmt.Errorf("restore %s: %w", s.ID, err)
		}
	}
	return p, nil
}
