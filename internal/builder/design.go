package builder

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Design is an assembly split into blocks of oligo ids. Mutated positions
// carry the wild-type id with an "m" suffix.
type Design [][]string

// MutantGroup lists the mutant oligos pooled in place of one wild-type oligo.
type MutantGroup struct {
	WildType string
	Mutants  []string
}

// DilutedOligoID names the diluted form of an oligo. Mutant pools (ids ending
// in "m") are used as they are.
func DilutedOligoID(id string) (string, bool) {
	if strings.HasSuffix(id, "m") {
		return id, true
	}
	return id + "_dil", false
}

// BlockID is "<position>_<mutations joined by &>" or "<position>_wt".
func BlockID(idx int, block []string) string {
	var muts []string
	for _, oligo := range block {
		if strings.HasSuffix(oligo, "m") {
			muts = append(muts, strings.TrimSuffix(oligo, "m"))
		}
	}
	tail := "wt"
	if len(muts) > 0 {
		tail = strings.Join(muts, "&")
	}
	return strconv.Itoa(idx+1) + "_" + tail
}

// DesignID joins the block ids of d with "-".
func DesignID(d Design) string {
	ids := make([]string, len(d))
	for i, block := range d {
		ids[i] = BlockID(i, block)
	}
	return strings.Join(ids, "-")
}

// ParseBlockID returns a block id's position and mutation count.
func ParseBlockID(id string) (pos, muts int, err error) {
	head, tail, ok := strings.Cut(id, "_")
	if !ok {
		return 0, 0, fmt.Errorf("malformed block id %q", id)
	}
	pos, err = strconv.Atoi(head)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed block id %q: %w", id, err)
	}
	if tail == "wt" {
		return pos, 0, nil
	}
	return pos, strings.Count(tail, "&") + 1, nil
}

// Primers returns the first and last oligo of every block, sorted and
// deduplicated.
func Primers(designs []Design) []string {
	var out []string
	for _, d := range designs {
		for _, block := range d {
			if len(block) == 0 {
				continue
			}
			out = append(out, block[0], block[len(block)-1])
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Combine enumerates designs with 0..maxMutated mutated positions. Each
// design is oligos with the chosen wild types swapped for their mutant pools,
// split into nBlocks blocks whose even lengths are dealt out two oligos at a
// time.
func Combine(oligos []string, mutants []MutantGroup, maxMutated, nBlocks int) ([]Design, error) {
	switch {
	case nBlocks <= 0:
		return nil, errors.New("combine: block count must be positive")
	case len(oligos)%2 != 0:
		return nil, fmt.Errorf("combine: %d oligos cannot form pairs", len(oligos))
	case len(oligos) < 2*nBlocks:
		return nil, fmt.Errorf("combine: %d oligos cannot fill %d blocks", len(oligos), nBlocks)
	case maxMutated > 0 && len(mutants) == 0:
		return nil, errors.New("combine: mutations requested without mutant oligos")
	case maxMutated < 0:
		return nil, errors.New("combine: max mutated must not be negative")
	}
	lengths := blockLengths(len(oligos), nBlocks)

	var designs []Design
	for n := 0; n <= maxMutated && n <= len(mutants); n++ {
		var err error
		combinations(len(mutants), n, func(picked []int) {
			if err != nil {
				return
			}
			seq := slices.Clone(oligos)
			for _, m := range picked {
				wt := mutants[m].WildType
				i := slices.Index(seq, wt)
				if i < 0 {
					err = fmt.Errorf("combine: mutated oligo %s is not in the assembly", wt)
					return
				}
				seq[i] = wt + "m"
			}
			design := make(Design, 0, nBlocks)
			start := 0
			for _, l := range lengths {
				design = append(design, seq[start:start+l])
				start += l
			}
			designs = append(designs, design)
		})
		if err != nil {
			return nil, err
		}
	}
	return designs, nil
}

func blockLengths(total, n int) []int {
	lengths := make([]int, n)
	sum := 0
	for i := 0; sum < total; i = (i + 1) % n {
		lengths[i] += 2
		sum += 2
	}
	return lengths
}

// combinations calls fn with every k-subset of 0..n-1 in lexicographic order.
func combinations(n, k int, fn func([]int)) {
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(slices.Clone(idx))
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
