package worklist

import (
	"slices"

	"worklistcore/internal/plate"
	"worklistcore/pkg/domain"
)

// Worklist is the ordered transfers into one destination plate.
type Worklist struct {
	Plate string
	Rows  []domain.Row
	// RequiredPlates is the destination plate followed by every source
	// plate in first-use order.
	RequiredPlates []string
}

// Result is one successful compilation.
type Result struct {
	// Rows is the full schedule across all plates.
	Rows      []domain.Row
	Worklists []Worklist
	// Plates holds every plate in allocation order: inputs first, sorted by
	// name, then plates created during placement.
	Plates []*plate.Plate
}

// Plate looks up a plate by id.
func (r *Result) Plate(id string) (*plate.Plate, bool) {
	for _, p := range r.Plates {
		if p.ID() == id {
			return p, true
		}
	}
	return nil, false
}

// RequiredPlates returns the plates any worklist touches, in plate order.
// These are the plates a follow-up stage builds on.
func (r *Result) RequiredPlates() map[string]*plate.Plate {
	need := map[string]bool{}
	for _, wl := range r.Worklists {
		for _, id := range wl.RequiredPlates {
			need[id] = true
		}
	}
	out := make(map[string]*plate.Plate, len(need))
	for _, p := range r.Plates {
		if need[p.ID()] {
			out[p.ID()] = p
		}
	}
	return out
}

// RequiredPlateIDs lists RequiredPlates' keys in plate order.
func (r *Result) RequiredPlateIDs() []string {
	req := r.RequiredPlates()
	var ids []string
	for _, p := range r.Plates {
		if _, ok := req[p.ID()]; ok {
			ids = append(ids, p.ID())
		}
	}
	return ids
}

func group(rows []domain.Row) []Worklist {
	byPlate := map[string]*Worklist{}
	var order []string
	for _, row := range rows {
		wl, ok := byPlate[row.Dest.Plate]
		if !ok {
			wl = &Worklist{Plate: row.Dest.Plate, RequiredPlates: []string{row.Dest.Plate}}
			byPlate[row.Dest.Plate] = wl
			order = append(order, row.Dest.Plate)
		}
		wl.Rows = append(wl.Rows, row)
		if !slices.Contains(wl.RequiredPlates, row.Src.Plate) {
			wl.RequiredPlates = append(wl.RequiredPlates, row.Src.Plate)
		}
	}
	slices.Sort(order)
	out := make([]Worklist, 0, len(order))
	for _, id := range order {
		out = append(out, *byPlate[id])
	}
	return out
}

// SummaryLine is the total volume drawn from one source well.
type SummaryLine struct {
	SrcPlate    string  `json:"src_plate"`
	SrcWell     string  `json:"src_well"`
	SrcName     string  `json:"src_name"`
	TotalVolume float64 `json:"total_volume"`
}

// Summary tallies what a run consumes and which plates it fills.
type Summary struct {
	Lines      []SummaryLine `json:"lines"`
	DestPlates []string      `json:"dest_plates"`
}

// SummaryColumns is the header of the tabular summary.
var SummaryColumns = []string{"src_plate", "src_well", "src_name", "total_volume", "dest_plate"}

// Summarise totals volume per (source plate, well, name) in first-seen order
// and lists destination plates by name.
func Summarise(worklists []Worklist) Summary {
	type key struct{ plate, well, name string }
	idx := map[key]int{}
	var s Summary
	dests := map[string]bool{}
	for _, wl := range worklists {
		for _, row := range wl.Rows {
			dests[row.Dest.Plate] = true
			k := key{row.Src.Plate, row.Src.Well, row.SrcName}
			i, ok := idx[k]
			if !ok {
				i = len(s.Lines)
				idx[k] = i
				s.Lines = append(s.Lines, SummaryLine{SrcPlate: k.plate, SrcWell: k.well, SrcName: k.name})
			}
			s.Lines[i].TotalVolume += row.Volume
		}
	}
	for p := range dests {
		s.DestPlates = append(s.DestPlates, p)
	}
	slices.Sort(s.DestPlates)
	return s
}

// Records renders the summary as table rows under SummaryColumns: one row per
// source well followed by one row per destination plate.
func (s Summary) Records() [][]string {
	out := make([][]string, 0, len(s.Lines)+len(s.DestPlates))
	for _, l := range s.Lines {
		out = append(out, []string{l.SrcPlate, l.SrcWell, l.SrcName, domain.FormatVolume(l.TotalVolume), ""})
	}
	for _, p := range s.DestPlates {
		out = append(out, []string{"", "", "", "", p})
	}
	return out
}
