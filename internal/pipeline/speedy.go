package pipeline

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"worklistcore/internal/builder"
	"worklistcore/internal/plate"
)

// Plate names the speedy-genes preset reads its oligos from.
const (
	WildTypePlate = "wt"
	MutantPlate   = "mut"
	// ParentProperty links a mutant oligo to the wild-type oligo it replaces.
	ParentProperty = "parent"
)

// CombiMaxMutations bounds the mutations combined into one gene.
const CombiMaxMutations = 4

// DesignInputs is what the preset reads from its input plates.
type DesignInputs struct {
	Oligos  []string
	Primers []string
	Mutants []builder.MutantGroup
}

// ReadDesignInputs splits the wild-type plate into numbered oligos (sorted
// numerically) and named primers, and groups the mutant plate by parent.
func ReadDesignInputs(plates map[string]*plate.Plate) (DesignInputs, error) {
	wt, ok := plates[WildTypePlate]
	if !ok {
		return DesignInputs{}, fmt.Errorf("missing %q plate", WildTypePlate)
	}
	mut, ok := plates[MutantPlate]
	if !ok {
		return DesignInputs{}, fmt.Errorf("missing %q plate", MutantPlate)
	}
	var in DesignInputs
	for _, w := range wt.Wells() {
		id := w.Record.ID()
		if _, err := strconv.ParseUint(id, 10, 64); err == nil {
			in.Oligos = append(in.Oligos, id)
		} else if id != "" {
			in.Primers = append(in.Primers, id)
		}
	}
	slices.SortStableFunc(in.Oligos, func(a, b string) int {
		x, _ := strconv.ParseUint(a, 10, 64)
		y, _ := strconv.ParseUint(b, 10, 64)
		return cmp.Compare(x, y)
	})
	groups := map[string]int{}
	for _, w := range mut.Wells() {
		parent := w.Record[ParentProperty]
		if parent == "" {
			return DesignInputs{}, fmt.Errorf("mutant %s in %s has no %s", w.Record.ID(), w.Name, ParentProperty)
		}
		i, ok := groups[parent]
		if !ok {
			i = len(in.Mutants)
			groups[parent] = i
			in.Mutants = append(in.Mutants, builder.MutantGroup{WildType: parent})
		}
		in.Mutants[i].Mutants = append(in.Mutants[i].Mutants, w.Record.ID())
	}
	return in, nil
}

// SpeedyGenes builds the seven-stage combinatorial gene assembly: wild-type
// dilution, mutant pooling, inner block pooling, block PCR, wild-type and
// mutant block pooling, and the combinatorial gene PCR.
func SpeedyGenes(plates map[string]*plate.Plate, maxMutated, nBlocks int, name string) ([]Stage, error) {
	if name == "" || len(name) >= 6 {
		return nil, fmt.Errorf("experiment name %q must be 1 to 5 characters", name)
	}
	in, err := ReadDesignInputs(plates)
	if err != nil {
		return nil, err
	}
	designs, err := builder.Combine(in.Oligos, in.Mutants, maxMutated, nBlocks)
	if err != nil {
		return nil, err
	}
	pcr1 := builder.PCRVolumes{Components: 1.2, WTPrimer: 1.5, MutPrimer: 3, Total: 25}
	pcr2 := builder.PCRVolumes{Components: 1.5, WTPrimer: 1.5, MutPrimer: 3, Total: 25}
	return []Stage{
		{&builder.Dilution{Output: name + "-wt-dil", Oligos: append(slices.Clone(in.Oligos), in.Primers...), Designs: designs, PrimerVolume: 20, OligoVolume: 20, TotalVolume: 200}},
		{&builder.MutantPool{Output: name + "-mut-pl", Groups: in.Mutants, OligoVolume: 10}},
		{&builder.InnerBlockPool{Output: name + "-templ", Designs: designs, WTOligoVolume: 2.5, MutOligoVolume: 5}},
		{&builder.BlockPCR{Output: name + "-pcr1", Designs: designs, Volumes: pcr1}},
		{&builder.BlockPool{Output: name + "-wt-bk", Designs: designs, MinVolume: 2, MaxVolume: 25}},
		{&builder.BlockPool{Output: name + "-mut-bk", Designs: designs, MinVolume: 2, MaxVolume: 25, Mutant: true}},
		{&builder.CombiGenePCR{
			Output:       name + "-pcr2",
			Designs:      designs,
			MaxMutations: CombiMaxMutations,
			Volumes:      pcr2,
			Primers:      outerPrimers(in),
		}},
	}, nil
}

// outerPrimers primes the full gene with the first named primer, falling back
// to the first oligo, and the last oligo.
func outerPrimers(in DesignInputs) []builder.Primer {
	if len(in.Oligos) == 0 {
		return nil
	}
	first := in.Oligos[0]
	if len(in.Primers) > 0 {
		first = in.Primers[0]
	}
	return []builder.Primer{
		{ID: first + "_dil"},
		{ID: in.Oligos[len(in.Oligos)-1] + "_dil"},
	}
}
