package domain

import (
	"context"
	"errors"
	"time"
)

// ErrRunNotFound is returned by RunStore lookups for unknown ids.
var ErrRunNotFound = errors.New("run not found")

// Run is the durable record of one compile or pipeline invocation.
type Run struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	Stages    []RunStage `json:"stages"`
}

// RunStage is one compiled builder.
type RunStage struct {
	Name      string          `json:"name"`
	Kind      string          `json:"kind"`
	Output    string          `json:"output"`
	Worklists []RunWorklist   `json:"worklists"`
	Plates    []PlateSnapshot `json:"plates"`
}

// RunWorklist is the stored form of one destination plate's transfers.
type RunWorklist struct {
	Plate          string   `json:"plate"`
	RequiredPlates []string `json:"required_plates"`
	Rows           []Row    `json:"rows"`
}

// PlateSnapshot captures a plate's shape and contents.
type PlateSnapshot struct {
	ID         string         `json:"id"`
	Rows       int            `json:"rows"`
	Cols       int            `json:"cols"`
	Order      string         `json:"order"`
	Properties []string       `json:"properties"`
	Wells      []WellSnapshot `json:"wells"`
}

// WellSnapshot is one occupied well.
type WellSnapshot struct {
	Well   string            `json:"well"`
	Record map[string]string `json:"record"`
}

// RowCount totals the transfers across every worklist of every stage.
func (r Run) RowCount() int {
	n := 0
	for _, st := range r.Stages {
		for _, wl := range st.Worklists {
			n += len(wl.Rows)
		}
	}
	return n
}

// RunStore persists runs. Implementations return copies; callers may modify
// what they get back without affecting the store.
type RunStore interface {
	// SaveRun inserts run or replaces the run with the same id.
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns returns every run ordered by creation time, then id.
	ListRuns(ctx context.Context) ([]Run, error)
	DeleteRun(ctx context.Context, id string) (bool, error)
	Close() error
}
