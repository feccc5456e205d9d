// Package memory keeps runs in process memory. Runs are held in their JSON
// encoding so every read hands out an independent copy; the sqlite and
// postgres stores embed it and persist the same payloads.
package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"worklistcore/pkg/domain"
)

var _ domain.RunStore = (*Store)(nil)

// Store is a concurrency-safe map of encoded runs.
type Store struct {
	mu   sync.RWMutex
	runs map[string][]byte
}

// New returns an empty store.
func New() *Store { return &Store{runs: map[string][]byte{}} }

// Encode returns the stored form of run.
func Encode(run domain.Run) ([]byte, error) {
	if run.ID == "" {
		return nil, errors.New("run id required")
	}
	b, err := json.Marshal(run)
	if err != nil {
		return nil, fmt.Errorf("encode run %s: %w", run.ID, err)
	}
	return b, nil
}

// Decode parses a payload written by Encode.
func Decode(payload []byte) (domain.Run, error) {
	var run domain.Run
	if err := json.Unmarshal(payload, &run); err != nil {
		return domain.Run{}, fmt.Errorf("decode run: %w", err)
	}
	if run.ID == "" {
		return domain.Run{}, errors.New("decode run: missing id")
	}
	return run, nil
}

func (s *Store) SaveRun(ctx context.Context, run domain.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := Encode(run)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.runs[run.ID] = payload
	s.mu.Unlock()
	return nil
}

// Restore inserts an encoded run as-is, replacing any run with its id.
func (s *Store) Restore(payload []byte) error {
	run, err := Decode(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.runs[run.ID] = slices.Clone(payload)
	s.mu.Unlock()
	return nil
}

func (s *Store) GetRun(_ context.Context, id string) (domain.Run, error) {
	s.mu.RLock()
	payload, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return domain.Run{}, fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
	}
	return Decode(payload)
}

func (s *Store) ListRuns(_ context.Context) ([]domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Run, 0, len(s.runs))
	for _, payload := range s.runs {
		run, err := Decode(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	slices.SortFunc(out, func(a, b domain.Run) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) DeleteRun(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runs[id]
	delete(s.runs, id)
	return ok, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
