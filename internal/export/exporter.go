// Package export writes compiled stages to blob storage: plate grids,
// worklist tables, input summaries and JSON manifests.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"

	"worklistcore/internal/blob"
	"worklistcore/internal/observability"
	"worklistcore/internal/pipeline"
)

// Artifact kinds recorded in manifests.
const (
	KindPlate    = "plate"
	KindWorklist = "worklist"
	KindSummary  = "summary"
	KindManifest = "manifest"
)

const (
	contentCSV  = "text/csv"
	contentJSON = "application/json"
)

// Artifact is one stored file.
type Artifact struct {
	Key         string `json:"key"`
	Kind        string `json:"kind"`
	Plate       string `json:"plate,omitempty"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size_bytes"`
	ETag        string `json:"etag,omitempty"`
}

// WorklistEntry describes one worklist of a stage.
type WorklistEntry struct {
	Plate          string   `json:"plate"`
	Rows           int      `json:"rows"`
	RequiredPlates []string `json:"required_plates"`
}

// StageManifest lists what a stage produced.
type StageManifest struct {
	Name      string          `json:"name"`
	Kind      string          `json:"kind"`
	Output    string          `json:"output"`
	Rows      int             `json:"rows"`
	Worklists []WorklistEntry `json:"worklists"`
	Artifacts []Artifact      `json:"artifacts"`
}

// Manifest is written to <run>/manifest.json once every stage is stored.
type Manifest struct {
	RunID     string          `json:"run_id"`
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"created_at"`
	Stages    []StageManifest `json:"stages"`
}

// Exporter stores stage results under a run prefix.
type Exporter struct {
	store  blob.Store
	logger observability.Logger
	clock  observability.Clock
	newID  func() string
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the manifest timestamp source.
func WithClock(c observability.Clock) Option {
	return func(e *Exporter) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithIDGenerator replaces the uuid run id generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Exporter) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// New returns an exporter writing to store.
func New(store blob.Store, opts ...Option) *Exporter {
	e := &Exporter{
		store:  store,
		logger: observability.NoopLogger{},
		clock:  observability.SystemClock,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes every stage under "<runID>/<stage>/" and the run manifest
// under "<runID>/manifest.json". An empty runID is replaced by a fresh one.
// Keys are write-once, so exporting the same run twice fails.
func (e *Exporter) Export(ctx context.Context, runID, name string, stages []pipeline.StageResult) (Manifest, error) {
	if runID == "" {
		runID = e.newID()
	}
	m := Manifest{RunID: runID, Name: name, CreatedAt: e.clock.Now()}
	for _, st := range stages {
		sm, err := e.exportStage(ctx, runID, st)
		if err != nil {
			return Manifest{}, fmt.Errorf("export stage %s: %w", st.Name, err)
		}
		m.Stages = append(m.Stages, sm)
	}
	if _, err := e.putJSON(ctx, path.Join(runID, "manifest.json"), m); err != nil {
		return Manifest{}, err
	}
	e.logger.Info("run exported", "run", runID, "stages", len(m.Stages), "driver", e.store.Driver())
	return m, nil
}

func (e *Exporter) exportStage(ctx context.Context, runID string, st pipeline.StageResult) (StageManifest, error) {
	prefix := path.Join(runID, st.Name)
	sm := StageManifest{Name: st.Name, Kind: string(st.Kind), Output: st.Output}
	if st.Result == nil {
		return sm, nil
	}
	sm.Rows = len(st.Result.Rows)
	for _, p := range st.Result.Plates {
		body, err := PlateCSV(p)
		if err != nil {
			return sm, fmt.Errorf("plate %s: %w", p.ID(), err)
		}
		a, err := e.put(ctx, path.Join(prefix, "plates", p.ID()+".csv"), KindPlate, contentCSV, body, map[string]string{"plate": p.ID()})
		if err != nil {
			return sm, err
		}
		a.Plate = p.ID()
		sm.Artifacts = append(sm.Artifacts, a)
	}
	for _, wl := range st.Result.Worklists {
		body, err := WorklistCSV(wl)
		if err != nil {
			return sm, fmt.Errorf("worklist %s: %w", wl.Plate, err)
		}
		meta := map[string]string{"plate": wl.Plate, "rows": strconv.Itoa(len(wl.Rows))}
		a, err := e.put(ctx, path.Join(prefix, wl.Plate+"_worklist.csv"), KindWorklist, contentCSV, body, meta)
		if err != nil {
			return sm, err
		}
		a.Plate = wl.Plate
		sm.Artifacts = append(sm.Artifacts, a)
		sm.Worklists = append(sm.Worklists, WorklistEntry{Plate: wl.Plate, Rows: len(wl.Rows), RequiredPlates: wl.RequiredPlates})
	}
	body, err := SummaryCSV(st.Summary)
	if err != nil {
		return sm, fmt.Errorf("summary: %w", err)
	}
	a, err := e.put(ctx, path.Join(prefix, "input_summary.csv"), KindSummary, contentCSV, body, nil)
	if err != nil {
		return sm, err
	}
	sm.Artifacts = append(sm.Artifacts, a)

	a, err = e.putJSON(ctx, path.Join(prefix, "manifest.json"), sm)
	if err != nil {
		return sm, err
	}
	sm.Artifacts = append(sm.Artifacts, a)
	return sm, nil
}

func (e *Exporter) putJSON(ctx context.Context, key string, v any) (Artifact, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Artifact{}, fmt.Errorf("marshal %s: %w", key, err)
	}
	return e.put(ctx, key, KindManifest, contentJSON, body, nil)
}

func (e *Exporter) put(ctx context.Context, key, kind, contentType string, body []byte, meta map[string]string) (Artifact, error) {
	info, err := e.store.Put(ctx, key, bytes.NewReader(body), blob.PutOptions{ContentType: contentType, Metadata: meta})
	if err != nil {
		return Artifact{}, fmt.Errorf("store %s: %w", key, err)
	}
	e.logger.Debug("artifact stored", "key", key, "bytes", info.Size)
	return Artifact{Key: key, Kind: kind, ContentType: contentType, Size: info.Size, ETag: info.ETag}, nil
}

// ReadManifest loads the run manifest written by Export.
func ReadManifest(ctx context.Context, store blob.Store, runID string) (Manifest, error) {
	_, rc, err := store.Get(ctx, path.Join(runID, "manifest.json"))
	if err != nil {
		return Manifest{}, err
	}
	defer rc.Close()
	var m Manifest
	if err := json.NewDecoder(rc).Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest %s: %w", runID, err)
	}
	return m, nil
}
