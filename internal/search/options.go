package search

import (
	"errors"
	"fmt"
	"math"

	gr "github.com/jsdoublel/setx/internal/graphs"
	pr "github.com/jsdoublel/setx/internal/prep"
)

var ErrInvalidOption = errors.New("invalid option")

// How many extra bipartitions are added beyond the gene trees
type ExtraLevel int

const (
	ExtraNone  ExtraLevel = iota // gene tree bipartitions and backbone only
	ExtraUPGMA                   // polytomy heuristics and distance based additions
	ExtraSlow                    // also quadratic candidate sets
)

// Run configuration; immutable once the builder is made
type Options struct {
	Rooted          bool       // keep input rooting instead of centroid rerooting
	Extra           ExtraLevel // extra bipartition intensity
	SamplingRounds  int        // individual sampling rounds (<= 0 for automatic)
	PolyLimit       int        // largest polytomy given quadratic resolution (-1 for automatic)
	OutputCompleted bool       // write completed gene trees
	OutputFile      string     // output prefix for completed gene trees
	Distance        bool       // use internode distance instead of quartet similarity
	NProcs          int        // number of parallel processes (<= 0 for all available)
	Seed            uint64     // seed for all random sampling
}

func DefaultOptions() Options {
	return Options{Extra: ExtraUPGMA, PolyLimit: -1, Seed: 1}
}

func (opts Options) Validate() error {
	switch {
	case opts.Extra < ExtraNone:
		return fmt.Errorf("%w, extra level %d is negative", ErrInvalidOption, opts.Extra)
	case opts.PolyLimit < -1:
		return fmt.Errorf("%w, polytomy limit %d (use -1 for automatic)", ErrInvalidOption, opts.PolyLimit)
	case opts.OutputCompleted && opts.OutputFile == "":
		return fmt.Errorf("%w, completed gene tree output requires an output file", ErrInvalidOption)
	}
	return nil
}

// Quadratic candidate sets are enabled
func (opts Options) Slow() bool { return opts.Extra >= ExtraSlow }

// Number of sampling rounds; automatic rounds are ceil(log2(2*meanSampling))
func (opts Options) Rounds(spm *gr.SpeciesMap) int {
	if spm.IsSingleIndividual() {
		return 1
	}
	if opts.SamplingRounds > 0 {
		return opts.SamplingRounds
	}
	return max(int(math.Ceil(math.Log2(2*spm.MeanSampling()))), 1)
}

func (opts Options) CompletedTreesPath() string {
	return pr.CompletedTreesPath(opts.OutputFile)
}
