// Package containing the graph-like data structures used to build the
// candidate bipartition set: taxon spaces, clusters, the cluster collection,
// arena trees, and greedy consensus trees.
package graphs

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrDuplicateTaxon = errors.New("duplicate taxon")
	ErrUnknownTaxon   = errors.New("unknown taxon")
	ErrInvalidMapping = errors.New("invalid species mapping")
)

// Ordered set of taxon names with dense ids in [0, Len())
type TaxonSpace struct {
	names []string
	ids   map[string]int
}

// Makes a taxon space; ids follow the order of names.
func NewTaxonSpace(names []string) (*TaxonSpace, error) {
	ts := &TaxonSpace{names: slices.Clone(names), ids: make(map[string]int, len(names))}
	for i, name := range names {
		if _, ok := ts.ids[name]; ok {
			return nil, fmt.Errorf("%w, %s", ErrDuplicateTaxon, name)
		}
		ts.ids[name] = i
	}
	return ts, nil
}

func (ts *TaxonSpace) Len() int { return len(ts.names) }

func (ts *TaxonSpace) Name(id int) string { return ts.names[id] }

func (ts *TaxonSpace) ID(name string) (int, bool) {
	id, ok := ts.ids[name]
	return id, ok
}

func (ts *TaxonSpace) Names() []string { return slices.Clone(ts.names) }

// Many-to-one map from individuals (gene tree leaves) to species.
type SpeciesMap struct {
	Taxa      *TaxonSpace // individuals
	Species   *TaxonSpace // species, sorted by name
	speciesOf []int
	members   [][]int
}

// Builds a species map from an individual -> species name assignment.
// Individuals missing from the assignment become a species of their own, so a
// nil assignment gives the single-individual identity map.
func NewSpeciesMap(taxa *TaxonSpace, assignment map[string]string) (*SpeciesMap, error) {
	for ind := range assignment {
		if _, ok := taxa.ID(ind); !ok {
			return nil, fmt.Errorf("%w, individual %s does not appear in any gene tree", ErrInvalidMapping, ind)
		}
	}
	speciesNames := make([]string, 0, taxa.Len())
	seen := make(map[string]bool)
	for i := range taxa.Len() {
		sp := speciesName(taxa.Name(i), assignment)
		if !seen[sp] {
			seen[sp] = true
			speciesNames = append(speciesNames, sp)
		}
	}
	slices.Sort(speciesNames)
	species, err := NewTaxonSpace(speciesNames)
	if err != nil {
		panic(err) // names were deduplicated above
	}
	spm := &SpeciesMap{
		Taxa:      taxa,
		Species:   species,
		speciesOf: make([]int, taxa.Len()),
		members:   make([][]int, species.Len()),
	}
	for i := range taxa.Len() {
		s, _ := species.ID(speciesName(taxa.Name(i), assignment))
		spm.speciesOf[i] = s
		spm.members[s] = append(spm.members[s], i)
	}
	return spm, nil
}

func speciesName(ind string, assignment map[string]string) string {
	if sp, ok := assignment[ind]; ok {
		return sp
	}
	return ind
}

// Species id of individual
func (spm *SpeciesMap) SpeciesOf(taxon int) int { return spm.speciesOf[taxon] }

// Individuals belonging to species (ascending ids); do not modify
func (spm *SpeciesMap) Members(species int) []int { return spm.members[species] }

func (spm *SpeciesMap) NumSpecies() int { return spm.Species.Len() }

func (spm *SpeciesMap) NumTaxa() int { return spm.Taxa.Len() }

// True iff every species has exactly one individual
func (spm *SpeciesMap) IsSingleIndividual() bool {
	return spm.Taxa.Len() == spm.Species.Len()
}

// Mean number of individuals per species
func (spm *SpeciesMap) MeanSampling() float64 {
	if spm.Species.Len() == 0 {
		return 0
	}
	return float64(spm.Taxa.Len()) / float64(spm.Species.Len())
}

// Expands a species-space cluster into the individual space
func (spm *SpeciesMap) GeneCluster(species Cluster) Cluster {
	if species.Len() != spm.Species.Len() {
		panic(fmt.Sprintf("species cluster width %d != %d", species.Len(), spm.Species.Len()))
	}
	gene := NewCluster(spm.Taxa.Len())
	for _, s := range species.Members() {
		for _, ind := range spm.members[s] {
			gene.Set(ind)
		}
	}
	return gene
}
