// Package placement assigns components to wells across a growable family of
// plates. A Resolver owns the plates for one compilation run and is not safe
// for concurrent use.
package placement

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"worklistcore/internal/plate"
	"worklistcore/pkg/domain"
)

// DefaultMaxFamily caps how many plates one family may grow to.
const DefaultMaxFamily = 64

// Layout describes plates the resolver creates from scratch.
type Layout struct {
	Rows      int
	Cols      int
	Order     plate.Order
	MaxFamily int
}

// DefaultLayout is a row-major 96-well plate.
func DefaultLayout() Layout {
	return Layout{Rows: plate.Rows96, Cols: plate.Cols96, Order: plate.OrderRowMajor, MaxFamily: DefaultMaxFamily}
}

// Placement is where a component ended up.
type Placement struct {
	Plate string
	Wells []string
}

// Candidate lists the wells holding a component on one plate.
type Candidate struct {
	Plate *plate.Plate
	Wells []string
}

// Resolver places components over an insertion-ordered set of plates.
type Resolver struct {
	layout Layout
	order  []string
	plates map[string]*plate.Plate
	placed map[string]Placement
	onNew  func(*plate.Plate)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPlateHook is called for every plate the resolver creates.
func WithPlateHook(fn func(*plate.Plate)) Option {
	return func(r *Resolver) { r.onNew = fn }
}

// NewResolver takes ownership of plates; they are searched in the given order
// and may be written to.
func NewResolver(layout Layout, plates []*plate.Plate, opts ...Option) (*Resolver, error) {
	if layout.Rows <= 0 || layout.Cols <= 0 {
		return nil, fmt.Errorf("placement: invalid plate shape %dx%d", layout.Rows, layout.Cols)
	}
	if layout.MaxFamily <= 0 {
		layout.MaxFamily = DefaultMaxFamily
	}
	r := &Resolver{
		layout: layout,
		plates: make(map[string]*plate.Plate, len(plates)),
		placed: make(map[string]Placement),
	}
	for _, p := range plates {
		if _, dup := r.plates[p.ID()]; dup {
			return nil, fmt.Errorf("placement: duplicate plate %s", p.ID())
		}
		r.add(p)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Place puts component on plateID unless some plate already holds it, in
// which case the existing wells are returned. Reagents without a fixed well
// fill a whole line. A full plate spills over into the next plate of its
// family.
func (r *Resolver) Place(component, plateID string, isReagent bool, well string) (Placement, error) {
	if component == "" {
		return Placement{}, errors.New("placement: empty component name")
	}
	if p, ok := r.placed[component]; ok {
		return clonePlacement(p), nil
	}
	if p, ok := r.search(component); ok {
		r.placed[component] = p
		return clonePlacement(p), nil
	}
	target := plateID
	for {
		pl, err := r.plateFor(target)
		if err != nil {
			return Placement{}, err
		}
		wells, err := r.placeOn(pl, component, isReagent, well)
		if err == nil {
			p := Placement{Plate: pl.ID(), Wells: wells}
			r.placed[component] = p
			return clonePlacement(p), nil
		}
		if !errors.Is(err, domain.ErrPlateOverflow) {
			return Placement{}, fmt.Errorf("place %s on %s: %w", component, target, err)
		}
		if target, err = r.nextPlateID(target); err != nil {
			return Placement{}, err
		}
	}
}

func (r *Resolver) placeOn(pl *plate.Plate, component string, isReagent bool, well string) ([]string, error) {
	rec := plate.Record{plate.IDProperty: component}
	if isReagent && well == "" {
		if _, err := pl.PlaceLine(rec); err != nil {
			return nil, err
		}
		return pl.Find(rec), nil
	}
	w, err := pl.Place(rec, well)
	if err != nil {
		return nil, err
	}
	return []string{w}, nil
}

func (r *Resolver) search(component string) (Placement, bool) {
	crit := plate.Record{plate.IDProperty: component}
	for _, id := range r.order {
		if wells := r.plates[id].Find(crit); len(wells) > 0 {
			return Placement{Plate: id, Wells: wells}, true
		}
	}
	return Placement{}, false
}

func (r *Resolver) plateFor(id string) (*plate.Plate, error) {
	if p, ok := r.plates[id]; ok {
		return p, nil
	}
	p, err := plate.New(id, r.layout.Rows, r.layout.Cols, r.layout.Order)
	if err != nil {
		return nil, err
	}
	r.add(p)
	if r.onNew != nil {
		r.onNew(p)
	}
	return p, nil
}

var familySuffix = regexp.MustCompile(`^(.*)~(\d+)$`)

// NextPlateID derives the next member of id's family: "a" gives "a~2" and
// "a~2" gives "a~3".
func NextPlateID(id string) (base string, next string, n int) {
	if m := familySuffix.FindStringSubmatch(id); m != nil {
		cur, err := strconv.Atoi(m[2])
		if err == nil {
			return m[1], m[1] + "~" + strconv.Itoa(cur+1), cur + 1
		}
	}
	return id, id + "~2", 2
}

// nextPlateID creates the next family member, inheriting the full plate's
// shape, ordering and properties.
func (r *Resolver) nextPlateID(full string) (string, error) {
	base, next, n := NextPlateID(full)
	if n > r.layout.MaxFamily {
		return "", &domain.ResourceExhaustedError{Family: base, Limit: r.layout.MaxFamily}
	}
	if _, ok := r.plates[next]; !ok {
		sib := r.plates[full].Sibling(next)
		r.add(sib)
		if r.onNew != nil {
			r.onNew(sib)
		}
	}
	return next, nil
}

func (r *Resolver) add(p *plate.Plate) {
	r.plates[p.ID()] = p
	r.order = append(r.order, p.ID())
}

// Placed returns the first placement recorded for component.
func (r *Resolver) Placed(component string) (Placement, bool) {
	p, ok := r.placed[component]
	if !ok {
		return Placement{}, false
	}
	return clonePlacement(p), true
}

// Candidates lists every plate holding component, in plate order.
func (r *Resolver) Candidates(component string) ([]Candidate, error) {
	crit := plate.Record{plate.IDProperty: component}
	var out []Candidate
	for _, id := range r.order {
		p := r.plates[id]
		if wells := p.Find(crit); len(wells) > 0 {
			out = append(out, Candidate{Plate: p, Wells: wells})
		}
	}
	if len(out) == 0 {
		return nil, &domain.PlacementLookupError{Component: component}
	}
	return out, nil
}

// Plate returns a plate by id.
func (r *Resolver) Plate(id string) (*plate.Plate, bool) {
	p, ok := r.plates[id]
	return p, ok
}

// Plates returns every plate in insertion order.
func (r *Resolver) Plates() []*plate.Plate {
	out := make([]*plate.Plate, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.plates[id])
	}
	return out
}

func clonePlacement(p Placement) Placement {
	return Placement{Plate: p.Plate, Wells: append([]string(nil), p.Wells...)}
}
