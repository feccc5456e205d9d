package builder

import (
	"slices"
	"strings"

	"worklistcore/internal/graph"
)

// GenePCR assembles each design's block PCR products into the full gene,
// primed by the design's outermost oligos.
type GenePCR struct {
	Output  string
	Designs []Design
	Volumes PCRVolumes
}

// Kind implements Builder.
func (g *GenePCR) Kind() Kind { return KindGenePCR }

// OutputName implements Builder.
func (g *GenePCR) OutputName() string { return g.Output }

// Build assembles one gene per design from its block products and outer
// primers.
func (g *GenePCR) Build() (*graph.Graph, error) {
	a := newAssembler()
	for _, d := range g.Designs {
		if len(d) == 0 || len(d[0]) == 0 || len(d[len(d)-1]) == 0 {
			continue
		}
		comps := make([]string, len(d))
		for i, blk := range d {
			comps[i] = BlockID(i, blk) + "_b"
		}
		lastBlock := d[len(d)-1]
		first, firstMut := DilutedOligoID(d[0][0])
		last, lastMut := DilutedOligoID(lastBlock[len(lastBlock)-1])
		a.pcr(g.Volumes, DesignID(d), comps, []Primer{
			{ID: first, Mutant: firstMut},
			{ID: last, Mutant: lastMut},
		})
	}
	return a.result()
}

// CombiGenePCR assembles every combination of block pools whose mutation
// counts sum to at most MaxMutations. Products are named by their pools
// without the "_p" suffix, joined by "-".
type CombiGenePCR struct {
	Output       string
	Designs      []Design
	MaxMutations int
	Volumes      PCRVolumes
	Primers      []Primer
}

// Kind implements Builder.
func (c *CombiGenePCR) Kind() Kind { return KindCombiGenePCR }

// OutputName implements Builder.
func (c *CombiGenePCR) OutputName() string { return c.Output }

// Build assembles one gene per combination of block pools within the
// mutation limit.
func (c *CombiGenePCR) Build() (*graph.Graph, error) {
	var positions []int
	counts := map[int][]int{}
	for _, d := range c.Designs {
		for i, blk := range d {
			pos, muts, err := ParseBlockID(BlockID(i, blk))
			if err != nil {
				return nil, err
			}
			if _, ok := counts[pos]; !ok {
				positions = append(positions, pos)
			}
			if !slices.Contains(counts[pos], muts) {
				counts[pos] = append(counts[pos], muts)
			}
		}
	}
	options := make([][]int, len(positions))
	for i, pos := range positions {
		options[i] = slices.Sorted(slices.Values(counts[pos]))
	}

	a := newAssembler()
	product(options, func(combi []int) {
		total := 0
		for _, m := range combi {
			total += m
		}
		if total > c.MaxMutations {
			return
		}
		comps := make([]string, len(combi))
		names := make([]string, len(combi))
		for i, m := range combi {
			comps[i] = PoolID(i+1, m)
			names[i] = strings.TrimSuffix(comps[i], "_p")
		}
		a.pcr(c.Volumes, strings.Join(names, "-"), comps, c.Primers)
	})
	return a.result()
}

// product calls fn with every element of the Cartesian product of options,
// varying the last position fastest.
func product(options [][]int, fn func([]int)) {
	if len(options) == 0 {
		return
	}
	for _, o := range options {
		if len(o) == 0 {
			return
		}
	}
	idx := make([]int, len(options))
	combi := make([]int, len(options))
	for {
		for i, j := range idx {
			combi[i] = options[i][j]
		}
		fn(slices.Clone(combi))
		i := len(idx) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(options[i]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return
		}
	}
}
