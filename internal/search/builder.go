// Package search builds the candidate bipartition set ("set X") used by a
// species tree optimizer from gene trees, a species map, and a score matrix.
package search

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"

	"github.com/evolbioinfo/gotree/tree"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	gr "github.com/jsdoublel/setx/internal/graphs"
	"github.com/jsdoublel/setx/internal/matrix"
	pr "github.com/jsdoublel/setx/internal/prep"
)

type Phase int

const (
	Preprocess Phase = iota
	MatrixCompute
	CompleteIfNeeded
	SampleAndConsensus
	PolytomyResolution
	ExtraByDistance
	Done
)

var phaseNames = [...]string{
	"preprocess",
	"matrix_compute",
	"complete_if_needed",
	"sample_and_consensus",
	"polytomy_resolution",
	"extra_by_distance",
	"done",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		panic(fmt.Sprintf("invalid phase (%d)", p))
	}
	return phaseNames[p]
}

// independent random streams; each task derives its own generator from the
// run seed, its stream, and its indices
type stream uint64

const (
	streamIndividuals stream = iota + 1
	streamConsensus
	streamFormSetX
	streamHeuristics
	streamPolytomy
)

const consensusBatch = 100 // contracted copies per consensus tree

type BuildOption func(b *Builder) error

// Record builder metrics on m instead of a private registry
func WithMetrics(m *Metrics) BuildOption {
	return func(b *Builder) error {
		if m == nil {
			return fmt.Errorf("%w, nil metrics", ErrInvalidOption)
		}
		b.metrics = m
		return nil
	}
}

// Use log (with the run id attached) instead of the global logger
func WithLogger(log *zap.SugaredLogger) BuildOption {
	return func(b *Builder) error {
		if log == nil {
			return fmt.Errorf("%w, nil logger", ErrInvalidOption)
		}
		b.log = log.With("run", b.runID)
		return nil
	}
}

// Runs the search-space construction state machine for one analysis
type Builder struct {
	opts     Options
	spm      *gr.SpeciesMap
	nprocs   int
	runID    string
	log      *zap.SugaredLogger
	metrics  *Metrics
	phase    Phase
	clusters *gr.ClusterCollection

	geneMatrix    matrix.Matrix
	speciesMatrix matrix.Matrix
	completed     []*gr.TreeData
	backbone      *gr.TreeData
}

func NewBuilder(spm *gr.SpeciesMap, opts Options, buildOpts ...BuildOption) (*Builder, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	b := &Builder{
		opts:     opts,
		spm:      spm,
		nprocs:   opts.NProcs,
		runID:    uuid.NewString(),
		clusters: gr.NewClusterCollection(spm.NumTaxa()),
	}
	if b.nprocs <= 0 {
		b.nprocs = runtime.GOMAXPROCS(0)
	}
	b.log = zap.S().With("run", b.runID)
	for _, opt := range buildOpts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	if b.metrics == nil {
		m, err := NewMetrics(prometheus.NewRegistry())
		if err != nil {
			return nil, err
		}
		b.metrics = m
	}
	return b, nil
}

// Set X; complete once Build returns
func (b *Builder) Clusters() *gr.ClusterCollection { return b.clusters }

func (b *Builder) Phase() Phase { return b.phase }

func (b *Builder) RunID() string { return b.runID }

// Species level matrix (nil before the matrix phase)
func (b *Builder) SpeciesMatrix() matrix.Matrix { return b.speciesMatrix }

// Completed gene trees over the individual space, in input order
func (b *Builder) Completed() []*gr.TreeData { return b.completed }

// Species tree built from the UPGMA clusters of the species matrix
func (b *Builder) Backbone() *gr.TreeData { return b.backbone }

// Builds set X from gene trees. Errors are fatal for the run: invalid trees,
// trees too small to complete, or failure writing completed gene trees.
// Failures inside individual sampling or resolution tasks are logged and
// skipped.
func (b *Builder) Build(geneTrees []*tree.Tree) error {
	if b.phase != Preprocess {
		return fmt.Errorf("%w, builder already used (phase %s)", ErrInvalidOption, b.phase)
	}
	b.log.Infof("building set X for %d taxa (%d species) from %d gene trees using %d processes",
		b.spm.NumTaxa(), b.spm.NumSpecies(), len(geneTrees), b.nprocs)
	pre, err := pr.Preprocess(geneTrees, b.spm.Taxa, b.opts.Rooted, b.nprocs)
	if err != nil {
		return fmt.Errorf("preprocess error: %w", err)
	}

	b.enter(MatrixCompute)
	b.geneMatrix = matrix.New(b.spm.NumTaxa(), b.opts.Distance)
	if b.speciesMatrix, err = b.geneMatrix.Populate(pre.Trees, b.spm, b.nprocs); err != nil {
		return fmt.Errorf("matrix error: %w", err)
	}

	b.enter(CompleteIfNeeded)
	if b.completed, err = b.complete(pre); err != nil {
		return err
	}

	b.enter(SampleAndConsensus)
	consensus := b.sampleAndConsensus(b.opts.Rounds(b.spm))
	b.backbone = b.buildBackbone()
	if err := b.addTreeClusters(b.backbone, []*gr.TreeData{b.backbone}, b.rng(streamFormSetX, 0, 0)); err != nil {
		return fmt.Errorf("backbone error: %w", err)
	}
	b.formSetX(consensus)

	if b.opts.Extra > ExtraNone {
		b.enter(PolytomyResolution)
		for r, trees := range consensus {
			b.resolvePolytomies(r, trees)
		}
		b.enter(ExtraByDistance)
		b.addExtraByDistance()
	}
	b.enter(Done)
	return nil
}

func (b *Builder) enter(phase Phase) {
	b.phase = phase
	b.metrics.SetSize.Set(float64(b.clusters.Count()))
	b.log.Infof("entering %s phase; set X has %d clusters", phase, b.clusters.Count())
}

func (b *Builder) rng(s stream, round, index int) *rand.Rand {
	return rand.New(rand.NewPCG(b.opts.Seed, uint64(s)<<56|uint64(round)<<32|uint64(uint32(index))))
}

// Adds a species cluster and its complement to set X, expanded to the
// individual space. Returns true if either was new.
func (b *Builder) addSpeciesCluster(species gr.Cluster) bool {
	gene := b.spm.GeneCluster(species)
	added := 0
	if b.clusters.Add(gene) {
		added++
	}
	if b.clusters.Add(gene.Complement()) {
		added++
	}
	if added > 0 {
		b.metrics.ClustersAdded.WithLabelValues(b.phase.String()).Add(float64(added))
	}
	return added > 0
}

func (b *Builder) complete(pre *pr.Preprocessed) ([]*gr.TreeData, error) {
	completed := pre.Trees
	if pre.Incomplete > 0 {
		b.log.Infof("completing %d gene trees", pre.Incomplete)
		completed = make([]*gr.TreeData, len(pre.Trees))
		g, ctx := errgroup.WithContext(context.Background())
		g.SetLimit(b.nprocs)
		for i, td := range pre.Trees {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if td.Missing() == 0 {
					completed[i] = td
					return nil
				}
				c, err := pr.Complete(td, b.geneMatrix)
				if err != nil {
					return fmt.Errorf("gene tree %d: %w", i+1, err)
				}
				completed[i] = c
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("completion error: %w", err)
		}
	}
	if b.opts.OutputCompleted {
		path := b.opts.CompletedTreesPath()
		if err := pr.WriteCompletedTreesFile(path, completed, b.spm.Taxa); err != nil {
			return nil, err
		}
		b.log.Infof("completed gene trees written to %s", path)
	}
	return completed, nil
}

// Consensus species trees indexed [round][gene]. Entries are nil for genes
// whose task failed.
func (b *Builder) sampleAndConsensus(rounds int) [][]*gr.TreeData {
	nSpecies := b.spm.NumSpecies()
	consensus := make([][]*gr.TreeData, rounds)
	for r := range consensus {
		consensus[r] = make([]*gr.TreeData, len(b.completed))
	}
	if b.spm.IsSingleIndividual() {
		for i, td := range b.completed {
			consensus[0][i] = speciesTree(td.Tree, nSpecies, func(taxon int) (int, bool) {
				return b.spm.SpeciesOf(taxon), true
			})
		}
		return consensus
	}
	b.log.Infof("sampling %d single-individual subsamples (%d rounds)", rounds*consensusBatch, rounds)
	rng := b.rng(streamIndividuals, 0, 0)
	samples := make([]individualSample, rounds*consensusBatch)
	for i := range samples {
		samples[i] = newIndividualSample(b.spm, rng)
	}
	tg := newTaskGroup(SampleAndConsensus, b.nprocs, b.log, b.metrics)
	for i, td := range b.completed {
		tg.Go(i, func() error {
			rng := b.rng(streamConsensus, 0, i)
			copies := make([]*gr.TreeData, consensusBatch)
			for r := range rounds {
				for k := range consensusBatch {
					copies[k] = samples[r*consensusBatch+k].contract(td.Tree, b.spm)
				}
				consensus[r][i] = gr.GreedyConsensus(copies, []float64{0}, nSpecies, rng)[0]
			}
			return nil
		})
	}
	tg.Wait()
	return consensus
}

func (b *Builder) buildBackbone() *gr.TreeData {
	g := gr.NewGreedyTree(b.spm.NumSpecies())
	for _, c := range b.speciesMatrix.InferTreeClusters() {
		g.Insert(c)
	}
	return g.Data()
}

// Adds every cluster of td. Around each polytomy of td, a few random samples
// are drawn and the bipartitions of base trees restricted to each sample are
// mapped back and added as well.
func (b *Builder) addTreeClusters(td *gr.TreeData, base []*gr.TreeData, rng *rand.Rand) error {
	var err error
	td.PostOrder(func(v int) {
		if err != nil {
			return
		}
		b.addSpeciesCluster(td.Clusters[v])
		if len(td.Children(v)) <= 2 {
			return
		}
		part, perr := gr.NewPartition(td.Sides(v)...)
		if perr != nil {
			err = perr
			return
		}
		for range polytomySamples {
			s := samplePolytomy(part, rng)
			for _, bt := range base {
				for _, c := range bt.SampledClusters(s.index, part.Len()) {
					b.addSpeciesCluster(part.Expand(c))
				}
			}
		}
	})
	return err
}

// Adds clusters of every consensus tree, one task per tree
func (b *Builder) formSetX(consensus [][]*gr.TreeData) {
	tg := newTaskGroup(SampleAndConsensus, b.nprocs, b.log, b.metrics)
	base := []*gr.TreeData{b.backbone}
	for r, trees := range consensus {
		for i, td := range trees {
			if td == nil {
				continue
			}
			tg.Go(r*len(trees)+i, func() error {
				return b.addTreeClusters(td, base, b.rng(streamFormSetX, r+1, i))
			})
		}
	}
	tg.Wait()
}

func (b *Builder) addExtraByDistance() {
	for _, c := range b.speciesMatrix.InferTreeClusters() {
		b.addSpeciesCluster(c)
	}
	if b.opts.Slow() {
		for _, c := range b.speciesMatrix.QuadraticClusters() {
			b.addSpeciesCluster(c)
		}
	}
}
