// Package builder produces reaction graphs for concrete laboratory protocols:
// oligo dilution, mutant pooling, block assembly and gene PCR. The compiler
// depends only on the Builder interface.
package builder

import (
	"worklistcore/internal/graph"
)

// Kind tags a builder variant.
type Kind string

const (
	KindDilution       Kind = "dilution"
	KindMutantPool     Kind = "mutant_pool"
	KindInnerBlockPool Kind = "inner_block_pool"
	KindBlockPCR       Kind = "block_pcr"
	KindBlockPool      Kind = "block_pool"
	KindGenePCR        Kind = "gene_pcr"
	KindCombiGenePCR   Kind = "combi_gene_pcr"
	KindDeclarative    Kind = "declarative"
)

// Builder produces a reaction graph. OutputName names the plate the graph's
// final products are placed on.
type Builder interface {
	Kind() Kind
	OutputName() string
	Build() (*graph.Graph, error)
}

// Mixer is the reagent every PCR is topped up with.
const Mixer = "mm"

// Water dilutes oligos.
const Water = "water"

// assembler accumulates a graph and keeps the first error so construction
// code reads straight through.
type assembler struct {
	g   *graph.Graph
	err error
}

func newAssembler() *assembler {
	return &assembler{g: graph.New()}
}

func (a *assembler) node(name string, reagent bool) {
	a.g.AddComponent(graph.Component{Name: name, IsReagent: reagent})
}

func (a *assembler) edge(from, to string, volume float64) {
	if a.err != nil {
		return
	}
	a.err = a.g.AddTransfer(from, to, volume, nil)
}

func (a *assembler) result() (*graph.Graph, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.g, nil
}

// Primer is an outer oligo of a PCR; mutant primers take a different volume.
type Primer struct {
	ID     string
	Mutant bool
}

// PCRVolumes sizes a PCR. The master mix makes up whatever Total leaves over.
type PCRVolumes struct {
	Components float64
	WTPrimer   float64
	MutPrimer  float64
	Total      float64
}

func (a *assembler) pcr(v PCRVolumes, id string, comps []string, primers []Primer) {
	mm := v.Total
	a.node(id, false)
	for _, c := range comps {
		a.node(c, false)
		a.edge(c, id, v.Components)
		mm -= v.Components
	}
	for _, p := range primers {
		vol := v.WTPrimer
		if p.Mutant {
			vol = v.MutPrimer
		}
		a.node(p.ID, false)
		a.edge(p.ID, id, vol)
		mm -= vol
	}
	a.node(Mixer, true)
	a.edge(Mixer, id, mm)
}
