package builder

import (
	"strconv"
	"strings"

	"worklistcore/internal/graph"
)

type block struct {
	id     string
	oligos []string
}

// distinctBlocks lists every block of designs once, in first-seen order.
func distinctBlocks(designs []Design) []block {
	seen := map[string]bool{}
	var out []block
	for _, d := range designs {
		for i, oligos := range d {
			id := BlockID(i, oligos)
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, block{id: id, oligos: oligos})
		}
	}
	return out
}

// InnerBlockPool pools the inner oligos of each block (all but the first and
// last) into "<block>_ib".
type InnerBlockPool struct {
	Output         string
	Designs        []Design
	WTOligoVolume  float64
	MutOligoVolume float64
}

// Kind implements Builder.
func (b *InnerBlockPool) Kind() Kind { return KindInnerBlockPool }

// OutputName implements Builder.
func (b *InnerBlockPool) OutputName() string { return b.Output }

// Build pools the inner oligos of every distinct block into blockID_ib.
func (b *InnerBlockPool) Build() (*graph.Graph, error) {
	a := newAssembler()
	for _, blk := range distinctBlocks(b.Designs) {
		pool := blk.id + "_ib"
		a.node(pool, false)
		if len(blk.oligos) < 2 {
			continue
		}
		for _, oligo := range blk.oligos[1 : len(blk.oligos)-1] {
			dil, mut := DilutedOligoID(oligo)
			vol := b.WTOligoVolume
			if mut {
				vol = b.MutOligoVolume
			}
			a.node(dil, false)
			a.edge(dil, pool, vol)
		}
	}
	return a.result()
}

// BlockPCR amplifies each inner block pool into "<block>_b" with the block's
// outer oligos as primers.
type BlockPCR struct {
	Output  string
	Designs []Design
	Volumes PCRVolumes
}

// Kind implements Builder.
func (b *BlockPCR) Kind() Kind { return KindBlockPCR }

// OutputName implements Builder.
func (b *BlockPCR) OutputName() string { return b.Output }

// Build amplifies each inner block pool with its outer oligos as primers,
// topped up with master mix.
func (b *BlockPCR) Build() (*graph.Graph, error) {
	a := newAssembler()
	for _, blk := range distinctBlocks(b.Designs) {
		if len(blk.oligos) == 0 {
			continue
		}
		first, firstMut := DilutedOligoID(blk.oligos[0])
		last, lastMut := DilutedOligoID(blk.oligos[len(blk.oligos)-1])
		a.pcr(b.Volumes, blk.id+"_b", []string{blk.id + "_ib"}, []Primer{
			{ID: first, Mutant: firstMut},
			{ID: last, Mutant: lastMut},
		})
	}
	return a.result()
}

// BlockPool pools block PCR products by position and mutation count into
// "<position>_<count|wt>_p". Mutant selects mutated pools, otherwise only
// wild-type pools are built. Each product contributes
// min(MaxVolume, largest pool size * MinVolume / pool size).
type BlockPool struct {
	Output    string
	Designs   []Design
	MinVolume float64
	MaxVolume float64
	Mutant    bool
}

// Kind implements Builder.
func (b *BlockPool) Kind() Kind { return KindBlockPool }

// OutputName implements Builder.
func (b *BlockPool) OutputName() string { return b.Output }

// Build pools block PCR products by position and mutation count.
func (b *BlockPool) Build() (*graph.Graph, error) {
	type step struct{ pcr, pool string }
	var steps []step
	seen := map[string]bool{}
	for _, d := range b.Designs {
		for i, oligos := range d {
			id := BlockID(i, oligos)
			if seen[id] {
				continue
			}
			seen[id] = true
			pos, muts, err := ParseBlockID(id)
			if err != nil {
				return nil, err
			}
			steps = append(steps, step{pcr: id + "_b", pool: PoolID(pos, muts)})
		}
	}

	sizes := map[string]int{}
	largest := 0
	for _, s := range steps {
		sizes[s.pool]++
		largest = max(largest, sizes[s.pool])
	}
	maxPool := float64(largest) * b.MinVolume

	a := newAssembler()
	for _, s := range steps {
		if isWildTypePool(s.pool) == b.Mutant {
			continue
		}
		a.node(s.pcr, false)
		a.node(s.pool, false)
		a.edge(s.pcr, s.pool, min(b.MaxVolume, maxPool/float64(sizes[s.pool])))
	}
	return a.result()
}

// PoolID names the pool of blocks at pos carrying muts mutations.
func PoolID(pos, muts int) string {
	tail := "wt"
	if muts > 0 {
		tail = strconv.Itoa(muts)
	}
	return strconv.Itoa(pos) + "_" + tail + "_p"
}

func isWildTypePool(id string) bool {
	return strings.HasSuffix(id, "_wt_p")
}
