// Package schedule orders located transfer rows for dispatch: deepest
// dependencies first, reagents before intermediates, and within each batch an
// interleaving that spreads consecutive transfers over distinct wells.
package schedule

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"worklistcore/pkg/domain"
)

// DefaultReagentPriority is the order reagent transfers are dispatched in.
var DefaultReagentPriority = []string{"water", "buffer", "ladder", "mm", "mm_dig", "mm_lcr", "ampligase"}

// CycleKey selects which side of a transfer the interleaver rotates over.
type CycleKey int

const (
	// CycleDest rotates over destination well indices.
	CycleDest CycleKey = iota
	// CycleSrc rotates over source well indices.
	CycleSrc
)

func (k CycleKey) String() string {
	if k == CycleSrc {
		return "src"
	}
	return "dest"
}

// ParseCycleKey accepts "dest" (default) or "src".
func ParseCycleKey(s string) (CycleKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dest", "destination":
		return CycleDest, nil
	case "src", "source":
		return CycleSrc, nil
	}
	return CycleDest, fmt.Errorf("unknown cycle key %q", s)
}

// Scheduler reorders rows. The zero value uses no reagent priority and
// rotates over destination wells.
type Scheduler struct {
	Priority []string
	Key      CycleKey
}

// New returns a scheduler with the given reagent priority.
func New(priority []string, key CycleKey) *Scheduler {
	return &Scheduler{Priority: slices.Clone(priority), Key: key}
}

type groupKey struct {
	level   int
	reagent bool
	plate   string
}

// Schedule returns rows grouped by (level, source is reagent, destination
// plate), each group interleaved, sorted by level descending, reagents first
// and destination plate ascending. No row is added or dropped.
func (s *Scheduler) Schedule(rows []domain.Row) []domain.Row {
	groups := make(map[groupKey][]domain.Row)
	var keys []groupKey
	for _, row := range rows {
		k := groupKey{level: row.Level, reagent: row.SrcIsReagent, plate: row.Dest.Plate}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], row)
	}
	slices.SortFunc(keys, compareKeys)

	out := make([]domain.Row, 0, len(rows))
	for _, k := range keys {
		group := groups[k]
		if k.reagent {
			out = append(out, s.byReagent(group)...)
			continue
		}
		out = append(out, Interleave(group, s.Key)...)
	}
	slices.SortStableFunc(out, func(a, b domain.Row) int {
		return compareKeys(
			groupKey{level: a.Level, reagent: a.SrcIsReagent, plate: a.Dest.Plate},
			groupKey{level: b.Level, reagent: b.SrcIsReagent, plate: b.Dest.Plate},
		)
	})
	return out
}

func compareKeys(a, b groupKey) int {
	if c := cmp.Compare(b.level, a.level); c != 0 {
		return c
	}
	if a.reagent != b.reagent {
		if a.reagent {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.plate, b.plate)
}

// byReagent interleaves each priority reagent separately, in priority order.
// Reagents missing from the priority list share one trailing batch.
func (s *Scheduler) byReagent(group []domain.Row) []domain.Row {
	buckets := make([][]domain.Row, len(s.Priority)+1)
	for _, row := range group {
		i := slices.Index(s.Priority, row.SrcName)
		if i < 0 {
			i = len(s.Priority)
		}
		buckets[i] = append(buckets[i], row)
	}
	out := make([]domain.Row, 0, len(group))
	for _, bucket := range buckets {
		if len(bucket) > 0 {
			out = append(out, Interleave(bucket, s.Key)...)
		}
	}
	return out
}

// Interleave sorts rows by the cycle side's plate and well index, buckets
// them by well index and then emits one row per index per pass, cycling over
// indices in ascending order until every row is out. Rows sharing an index
// keep their relative order.
func Interleave(rows []domain.Row, key CycleKey) []domain.Row {
	side := func(r domain.Row) domain.Location {
		if key == CycleSrc {
			return r.Src
		}
		return r.Dest
	}
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b domain.Row) int {
		la, lb := side(a), side(b)
		if c := cmp.Compare(la.Plate, lb.Plate); c != 0 {
			return c
		}
		return cmp.Compare(la.Index, lb.Index)
	})

	buckets := make(map[int][]domain.Row)
	var indices []int
	for _, row := range sorted {
		idx := side(row).Index
		if _, ok := buckets[idx]; !ok {
			indices = append(indices, idx)
		}
		buckets[idx] = append(buckets[idx], row)
	}
	slices.Sort(indices)

	out := make([]domain.Row, 0, len(rows))
	for len(out) < len(rows) {
		for _, idx := range indices {
			if q := buckets[idx]; len(q) > 0 {
				out = append(out, q[0])
				buckets[idx] = q[1:]
			}
		}
	}
	return out
}
