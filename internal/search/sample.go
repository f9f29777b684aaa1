package search

import (
	"math/rand/v2"

	gr "github.com/jsdoublel/setx/internal/graphs"
)

// One representative individual per species
type individualSample []int

func newIndividualSample(spm *gr.SpeciesMap, rng *rand.Rand) individualSample {
	chosen := make(individualSample, spm.NumSpecies())
	for s := range chosen {
		members := spm.Members(s)
		chosen[s] = members[rng.IntN(len(members))]
	}
	return chosen
}

// Species tree of t restricted to the sampled individuals
func (sample individualSample) contract(t *gr.Tree, spm *gr.SpeciesMap) *gr.TreeData {
	return speciesTree(t, spm.NumSpecies(), func(taxon int) (int, bool) {
		s := spm.SpeciesOf(taxon)
		return s, sample[s] == taxon
	})
}

// Restricts and relabels t into species space and roots it on the edge above
// species 0.
func speciesTree(t *gr.Tree, nSpecies int, relabel func(taxon int) (int, bool)) *gr.TreeData {
	st := t.Restrict(relabel)
	for _, leaf := range st.Leaves() {
		if st.Taxon(leaf) == 0 {
			st.RerootAbove(leaf)
			break
		}
	}
	return gr.MakeTreeData(st, nSpecies)
}

// One random representative per polytomy side
type polytomySample struct {
	reps  []int // representative species per side
	index []int // species -> side index of the representative, or -1
}

func samplePolytomy(part *gr.Partition, rng *rand.Rand) polytomySample {
	s := polytomySample{reps: make([]int, part.Len()), index: make([]int, part.Width())}
	for i := range s.index {
		s.index[i] = -1
	}
	for i, side := range part.Sides() {
		members := side.Members()
		s.reps[i] = members[rng.IntN(len(members))]
		s.index[s.reps[i]] = i
	}
	return s
}
