// Package plate models well plates: a rows x cols grid of wells, each holding
// at most one record of named properties.
package plate

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strconv"
	"strings"

	"worklistcore/pkg/domain"
)

// Order selects how flat well indices map onto the grid.
type Order int

const (
	// OrderRowMajor walks down each column first: index = col*rows + row.
	OrderRowMajor Order = iota
	// OrderColumnMajor walks along each row first: index = row*cols + col.
	OrderColumnMajor
)

func (o Order) String() string {
	if o == OrderColumnMajor {
		return "column_major"
	}
	return "row_major"
}

// ParseOrder accepts "row_major" or "column_major" (hyphens and case ignored).
func ParseOrder(s string) (Order, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "", "row_major", "row":
		return OrderRowMajor, nil
	case "column_major", "col_major", "column", "col":
		return OrderColumnMajor, nil
	}
	return OrderRowMajor, fmt.Errorf("unknown plate ordering %q", s)
}

// IDProperty is the property every plate stores.
const IDProperty = "id"

// Record is the set of named properties stored in one well.
type Record map[string]string

// ID returns the record's id property.
func (r Record) ID() string { return r[IDProperty] }

// Matches reports whether r holds every key/value pair of criteria.
func (r Record) Matches(criteria Record) bool {
	for k, v := range criteria {
		if got, ok := r[k]; !ok || got != v {
			return false
		}
	}
	return true
}

// Well is an occupied well in scan order.
type Well struct {
	Name   string
	Index  int
	Record Record
}

// Plate is a grid of wells with a fill cursor. It is not safe for concurrent
// mutation; concurrent readers are fine once placement has finished.
type Plate struct {
	id         string
	rows       int
	cols       int
	order      Order
	properties []string
	wells      map[int]Record
	next       int
}

// Standard plate shapes.
const (
	Rows96, Cols96   = 8, 12
	Rows384, Cols384 = 16, 24
)

// New builds an empty plate. The id property is always present.
func New(id string, rows, cols int, order Order, properties ...string) (*Plate, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("plate id is required")
	}
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("plate %s: invalid shape %dx%d", id, rows, cols)
	}
	if rows > 26 {
		return nil, fmt.Errorf("plate %s: %d rows exceed single-letter well names", id, rows)
	}
	props := []string{IDProperty}
	for _, p := range properties {
		if p != "" && !slices.Contains(props, p) {
			props = append(props, p)
		}
	}
	return &Plate{
		id:         id,
		rows:       rows,
		cols:       cols,
		order:      order,
		properties: props,
		wells:      make(map[int]Record),
	}, nil
}

// ID returns the plate name.
func (p *Plate) ID() string { return p.id }

// Rows returns the number of rows.
func (p *Plate) Rows() int { return p.rows }

// Cols returns the number of columns.
func (p *Plate) Cols() int { return p.cols }

// Size is the well count.
func (p *Plate) Size() int { return p.rows * p.cols }

// Order returns the index ordering.
func (p *Plate) Order() Order { return p.order }

// Properties lists the stored property names, id first.
func (p *Plate) Properties() []string { return slices.Clone(p.properties) }

// Next is the cursor: one past the highest index filled automatically.
func (p *Plate) Next() int { return p.next }

// Len is the number of occupied wells.
func (p *Plate) Len() int { return len(p.wells) }

// Index maps a grid coordinate to a flat index.
func (p *Plate) Index(row, col int) int {
	if p.order == OrderColumnMajor {
		return row*p.cols + col
	}
	return col*p.rows + row
}

// RowCol is the inverse of Index.
func (p *Plate) RowCol(idx int) (row, col int) {
	if p.order == OrderColumnMajor {
		return idx / p.cols, idx % p.cols
	}
	return idx % p.rows, idx / p.rows
}

// WellName names the well at idx, e.g. "C7".
func (p *Plate) WellName(idx int) string {
	return WellName(p.RowCol(idx))
}

// WellIndex resolves a well name to an index on this plate.
func (p *Plate) WellIndex(well string) (int, error) {
	row, col, err := ParseWell(well)
	if err != nil {
		return 0, err
	}
	if row >= p.rows || col >= p.cols {
		return 0, fmt.Errorf("%w: %s outside %dx%d plate %s", domain.ErrInvalidWell, well, p.rows, p.cols, p.id)
	}
	return p.Index(row, col), nil
}

// Get returns the record stored at well.
func (p *Plate) Get(well string) (Record, bool) {
	idx, err := p.WellIndex(well)
	if err != nil {
		return nil, false
	}
	rec, ok := p.wells[idx]
	if !ok {
		return nil, false
	}
	return maps.Clone(rec), true
}

// Place stores rec. With an explicit well the record goes exactly there and
// the cursor stays put; otherwise it lands at the first free well at or after
// the cursor, which then moves one past it.
func (p *Plate) Place(rec Record, well string) (string, error) {
	if well != "" {
		idx, err := p.WellIndex(well)
		if err != nil {
			return "", err
		}
		if existing, ok := p.wells[idx]; ok {
			if maps.Equal(existing, rec) {
				return p.WellName(idx), nil
			}
			return "", fmt.Errorf("%w: %s on plate %s holds %q", domain.ErrWellOccupied, p.WellName(idx), p.id, existing.ID())
		}
		p.set(idx, rec)
		return p.WellName(idx), nil
	}
	idx := p.next
	for idx < p.Size() {
		if _, taken := p.wells[idx]; !taken {
			break
		}
		idx++
	}
	if idx >= p.Size() {
		return "", &domain.PlateOverflowError{Plate: p.id, Size: p.Size()}
	}
	p.set(idx, rec)
	p.advance(idx)
	return p.WellName(idx), nil
}

// LineLength is the number of wells PlaceLine fills: a column in row-major
// order and a row in column-major order.
func (p *Plate) LineLength() int {
	if p.order == OrderColumnMajor {
		return p.cols
	}
	return p.rows
}

// PlaceLine copies rec into every well of the next free line, starting at the
// first line boundary at or after the cursor.
func (p *Plate) PlaceLine(rec Record) ([]string, error) {
	n := p.LineLength()
	start := ((p.next + n - 1) / n) * n
	for ; start+n <= p.Size(); start += n {
		if p.lineFree(start, n) {
			break
		}
	}
	if start+n > p.Size() {
		return nil, &domain.PlateOverflowError{Plate: p.id, Size: p.Size()}
	}
	wells := make([]string, 0, n)
	for idx := start; idx < start+n; idx++ {
		p.set(idx, rec)
		wells = append(wells, p.WellName(idx))
	}
	p.advance(start + n - 1)
	return wells, nil
}

func (p *Plate) lineFree(start, n int) bool {
	for idx := start; idx < start+n; idx++ {
		if _, taken := p.wells[idx]; taken {
			return false
		}
	}
	return true
}

func (p *Plate) set(idx int, rec Record) {
	stored := maps.Clone(rec)
	if stored == nil {
		stored = Record{}
	}
	var extra []string
	for k := range stored {
		if !slices.Contains(p.properties, k) {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	p.properties = append(p.properties, extra...)
	p.wells[idx] = stored
}

func (p *Plate) advance(idx int) {
	p.next = max(p.next, idx+1)
}

// Find returns, in index order, the wells whose record matches every
// criterion.
func (p *Plate) Find(criteria Record) []string {
	var out []string
	for _, idx := range p.occupied() {
		if p.wells[idx].Matches(criteria) {
			out = append(out, p.WellName(idx))
		}
	}
	return out
}

// Wells lists occupied wells in index order.
func (p *Plate) Wells() []Well {
	idxs := p.occupied()
	out := make([]Well, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, Well{Name: p.WellName(idx), Index: idx, Record: maps.Clone(p.wells[idx])})
	}
	return out
}

func (p *Plate) occupied() []int {
	idxs := slices.Collect(maps.Keys(p.wells))
	slices.Sort(idxs)
	return idxs
}

// Clone returns a deep copy.
func (p *Plate) Clone() *Plate {
	dup := *p
	dup.properties = slices.Clone(p.properties)
	dup.wells = make(map[int]Record, len(p.wells))
	for idx, rec := range p.wells {
		dup.wells[idx] = maps.Clone(rec)
	}
	return &dup
}

// Sibling returns an empty plate named id with this plate's shape, ordering
// and properties.
func (p *Plate) Sibling(id string) *Plate {
	return &Plate{
		id:         id,
		rows:       p.rows,
		cols:       p.cols,
		order:      p.order,
		properties: slices.Clone(p.properties),
		wells:      make(map[int]Record),
	}
}

// WellName formats zero-based coordinates, e.g. (0, 0) is "A1".
func WellName(row, col int) string {
	return string(rune('A'+row)) + strconv.Itoa(col+1)
}

// ParseWell parses a well name such as "A1" or "p24" into zero-based
// coordinates.
func ParseWell(well string) (row, col int, err error) {
	well = strings.TrimSpace(well)
	if len(well) < 2 {
		return 0, 0, fmt.Errorf("%w: %q", domain.ErrInvalidWell, well)
	}
	letter := well[0]
	if letter >= 'a' && letter <= 'z' {
		letter -= 'a' - 'A'
	}
	if letter < 'A' || letter > 'Z' {
		return 0, 0, fmt.Errorf("%w: %q", domain.ErrInvalidWell, well)
	}
	n, convErr := strconv.Atoi(well[1:])
	if convErr != nil || n < 1 {
		return 0, 0, fmt.Errorf("%w: %q", domain.ErrInvalidWell, well)
	}
	return int(letter - 'A'), n - 1, nil
}
