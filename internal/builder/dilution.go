package builder

import (
	"slices"

	"worklistcore/internal/graph"
)

// Dilution dilutes each oligo with water to TotalVolume. Oligos used as
// block primers by Designs take PrimerVolume, the rest OligoVolume.
type Dilution struct {
	Output       string
	Oligos       []string
	Designs      []Design
	PrimerVolume float64
	OligoVolume  float64
	TotalVolume  float64
}

// Kind implements Builder.
func (d *Dilution) Kind() Kind { return KindDilution }

// OutputName implements Builder.
func (d *Dilution) OutputName() string { return d.Output }

// Build dilutes every oligo into its _dil component with water.
func (d *Dilution) Build() (*graph.Graph, error) {
	a := newAssembler()
	primers := Primers(d.Designs)
	for _, id := range d.Oligos {
		dil := id + "_dil"
		a.node(id, false)
		a.node(Water, true)
		a.node(dil, false)
		vol := d.OligoVolume
		if _, ok := slices.BinarySearch(primers, id); ok {
			vol = d.PrimerVolume
		}
		a.edge(id, dil, vol)
		a.edge(Water, dil, d.TotalVolume-vol)
	}
	return a.result()
}

// MutantPool pools the mutant oligos of each wild-type position into
// "<wild type>m".
type MutantPool struct {
	Output      string
	Groups      []MutantGroup
	OligoVolume float64
}

// Kind implements Builder.
func (m *MutantPool) Kind() Kind { return KindMutantPool }

// OutputName implements Builder.
func (m *MutantPool) OutputName() string { return m.Output }

// Build pools the mutants of each wild-type oligo into one component.
func (m *MutantPool) Build() (*graph.Graph, error) {
	a := newAssembler()
	for _, grp := range m.Groups {
		pool := grp.WildType + "m"
		a.node(pool, false)
		for _, id := range grp.Mutants {
			a.node(id, false)
			a.edge(id, pool, m.OligoVolume)
		}
	}
	return a.result()
}
