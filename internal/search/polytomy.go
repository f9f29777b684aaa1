package search

import (
	"math/rand/v2"
	"slices"

	gr "github.com/jsdoublel/setx/internal/graphs"
)

const (
	polytomySamples     = 3   // samples drawn around each consensus polytomy
	resolutionRuns      = 10  // base sample-and-resolve runs per polytomy
	maxExtraRuns        = 100 // cap on runs earned by high-frequency additions
	extraRunReward      = 2   // runs earned per high-frequency addition
	minFreqCount        = 5   // count must exceed this to be high-frequency
	minFreqRatio        = 0.01
	distanceThresholdIx = 3 // thresholds below this index always get quadratic runs
	polytomyBudgetMin   = 50
	polytomyBudgetMult  = 25
)

// Support thresholds of the consensus trees whose polytomies are resolved
var greedyThresholds = []float64{0, 1.0 / 100, 1.0 / 50, 1.0 / 20, 1.0 / 10, 1.0 / 5, 1.0 / 3}

// Resolves the polytomies of the greedy consensus trees of one round's
// per-gene species trees, one task per polytomy.
func (b *Builder) resolvePolytomies(round int, trees []*gr.TreeData) {
	genes := make([]*gr.TreeData, 0, len(trees))
	for _, td := range trees {
		if td != nil {
			genes = append(genes, td)
		}
	}
	if len(genes) == 0 {
		return
	}
	consensus := gr.GreedyConsensus(genes, greedyThresholds, b.spm.NumSpecies(), b.rng(streamHeuristics, round, 0))
	degrees := make([]int, 0)
	for _, ct := range consensus {
		for _, v := range ct.Polytomies() {
			degrees = append(degrees, len(ct.Children(v)))
		}
	}
	limit := b.polytomyLimit(degrees)
	b.log.Infof("round %d: resolving %d consensus polytomies (quadratic limit %d)", round+1, len(degrees), limit)
	tg := newTaskGroup(PolytomyResolution, b.nprocs, b.log, b.metrics)
	index := 0
	for th, ct := range consensus {
		for _, v := range ct.Polytomies() {
			sides, degree := ct.Sides(v), len(ct.Children(v))
			b.metrics.PolytomyDegree.Observe(float64(degree))
			i := index
			index++
			tg.Go(i, func() error {
				return b.resolvePolytomy(sides, degree, th, limit, genes, b.rng(streamPolytomy, round, i))
			})
		}
	}
	tg.Wait()
}

// Largest polytomy degree given quadratic resolution. Unless overridden,
// squared degrees are accumulated in ascending order until the sum reaches a
// budget that grows with the number of species; the degree that reaches it is
// still included.
func (b *Builder) polytomyLimit(degrees []int) int {
	if b.opts.PolyLimit != -1 {
		return b.opts.PolyLimit
	}
	budget := polytomyBudgetMin + polytomyBudgetMult*b.spm.NumSpecies()
	sorted := slices.Clone(degrees)
	slices.Sort(sorted)
	limit, sum := 3, 0
	for _, d := range sorted {
		if sum >= budget {
			break
		}
		sum += d * d
		limit = d
	}
	return limit
}

func (b *Builder) resolvePolytomy(sides []gr.Cluster, degree, threshold, limit int, genes []*gr.TreeData, rng *rand.Rand) error {
	part, err := gr.NewPartition(sides...)
	if err != nil {
		return err
	}
	resolved, err := b.speciesMatrix.ResolvePolytomy(sides, true)
	if err != nil {
		return err
	}
	for _, c := range resolved {
		b.addSpeciesCluster(c)
	}
	extra := 0
	for j := 0; j < resolutionRuns+extra; j++ {
		quadratic := (b.opts.Slow() || (threshold < distanceThresholdIx && j < resolutionRuns)) && degree <= limit
		if b.sampleAndResolve(part, genes, quadratic, false, rng) && extra < maxExtraRuns {
			extra += extraRunReward
		}
	}
	return nil
}

// Draws one representative per side, then adds bipartitions from gene trees
// restricted to the sample and from the induced matrix. Returns true if a
// high-frequency bipartition was new to set X.
func (b *Builder) sampleAndResolve(part *gr.Partition, genes []*gr.TreeData, quadratic, force bool, rng *rand.Rand) bool {
	s := samplePolytomy(part, rng)
	high := b.resolveLinearly(part, s, genes, force, rng)
	b.resolveByDistance(part, s, quadratic)
	return high
}

// Greedy consensus over the sampled gene trees. Remaining polytomies of the
// greedy tree are broken by random pairwise merges when forced or when the
// pass inserted anything.
func (b *Builder) resolveLinearly(part *gr.Partition, s polytomySample, genes []*gr.TreeData, force bool, rng *rand.Rand) bool {
	m := part.Len()
	perGene := make([][]gr.Cluster, len(genes))
	for i, td := range genes {
		perGene[i] = td.SampledClusters(s.index, m)
	}
	g := gr.NewGreedyTree(m)
	added, high := false, false
	for _, sc := range gr.CountSplits(perGene, nil) {
		if !g.Insert(sc.Cluster) {
			continue
		}
		if b.addSpeciesCluster(part.Expand(sc.Cluster)) {
			added = true
			if float64(sc.Count)/float64(len(genes)) >= minFreqRatio && sc.Count > minFreqCount {
				high = true
			}
		}
	}
	if force || added {
		td := g.Data()
		for _, v := range td.Polytomies() {
			b.randomMerge(part, td.Sides(v), rng)
		}
	}
	return high
}

// Merges random pairs of sides until two remain, adding every merge
func (b *Builder) randomMerge(part *gr.Partition, sides []gr.Cluster, rng *rand.Rand) {
	pool := slices.Clone(sides)
	for len(pool) > 2 {
		i := rng.IntN(len(pool))
		first := pool[i]
		pool = slices.Delete(pool, i, i+1)
		j := rng.IntN(len(pool))
		second := pool[j]
		pool = slices.Delete(pool, j, j+1)
		merged := first.Union(second)
		b.addSpeciesCluster(part.Expand(merged))
		pool = append(pool, merged)
	}
}

// UPGMA (and optionally quadratic) clusters of the matrix induced on the sample
func (b *Builder) resolveByDistance(part *gr.Partition, s polytomySample, quadratic bool) {
	induced := b.speciesMatrix.Induced(s.reps)
	for _, c := range induced.InferTreeClusters() {
		b.addSpeciesCluster(part.Expand(c))
	}
	if quadratic {
		for _, c := range induced.QuadraticClusters() {
			b.addSpeciesCluster(part.Expand(c))
		}
	}
}
