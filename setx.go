/*
SETX builds the candidate bipartition set ("set X") searched by
quartet-based species tree inference, from a collection of (possibly
incomplete, possibly multi-individual) gene trees.

usage: setx [flags] <gene_trees>

positional arguments:

	<gene_trees>	gene tree file (one newick tree per line, or nexus)

flags:

	-a, --mapping file      individual to species mapping (species:ind1,ind2)
	-c, --config file       YAML config file
	-f, --format format     gene tree format [ newick | nexus ] (default "newick")
	-x, --extra int         extra bipartitions: 0 none, 1 heuristics, 2 also quadratic (default 1)
	-r, --rounds int        individual sampling rounds (0 for automatic)
	-p, --polylimit int     largest polytomy given quadratic resolution (-1 for automatic)
	-o, --output file       output file for set X (default stdout)
	    --output-completed  also write completed gene trees to <output>.completed_gene_trees
	    --distance          use internode distance instead of quartet similarity
	    --rooted            keep the input rooting of gene trees
	-n, --nprocs int        number of parallel processes
	    --seed uint         random seed (default 1)
	    --plot prefix       write a cluster size plot to <prefix>.png
	    --metrics-out file  write builder metrics in Prometheus text format
	-v, --version           prints version number and exits

examples:

	setx gene-trees.nwk > setx.txt 2> log.txt
	setx -a mapping.txt -x 2 -o setx.txt --output-completed gene-trees.nwk
*/
package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jsdoublel/setx/internal/config"
	gr "github.com/jsdoublel/setx/internal/graphs"
	pr "github.com/jsdoublel/setx/internal/prep"
	"github.com/jsdoublel/setx/internal/search"
)

const (
	Version    = "v0.1.0"
	ErrMessage = "SETX encountered an error ::"
)

type args struct {
	geneTreeFile string    // gene trees
	gtFormat     pr.Format // gene tree file format
	mappingFile  string    // individual to species mapping
	configFile   string    // YAML config file
	plotPrefix   string    // cluster size plot prefix
	metricsFile  string    // Prometheus text file
}

func setNProcs(nprocs int) int {
	maxProcs := runtime.GOMAXPROCS(0)
	switch {
	case nprocs > maxProcs:
		zap.S().Infof("%d is greater than available processes (%d); limit set to %d", nprocs, maxProcs, maxProcs)
		return maxProcs
	case nprocs <= 0:
		zap.S().Infof("number of processes not set; defaulting to %d processes", maxProcs)
		return maxProcs
	default:
		return nprocs
	}
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func newRootCommand() *cobra.Command {
	a := args{gtFormat: pr.Newick}
	def := search.DefaultOptions()
	cmd := &cobra.Command{
		Use:           "setx [flags] <gene_trees>",
		Short:         "Build the candidate bipartition set for species tree inference",
		Version:       Version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, positional []string) error {
			a.geneTreeFile = positional[0]
			opts, err := config.Load(a.configFile, cmd.Flags())
			if err != nil {
				return err
			}
			opts.NProcs = setNProcs(opts.NProcs)
			return run(a, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&a.mappingFile, "mapping", "a", "", "individual to species mapping `file` (species:ind1,ind2)")
	flags.StringVarP(&a.configFile, "config", "c", "", "YAML config `file`")
	flags.VarP(&a.gtFormat, "format", "f", "gene tree format [ newick | nexus ]")
	flags.IntP(config.KeyExtra, "x", int(def.Extra), "extra bipartitions: 0 none, 1 heuristics, 2 also quadratic")
	flags.IntP(config.KeyRounds, "r", def.SamplingRounds, "individual sampling rounds (0 for automatic)")
	flags.IntP(config.KeyPolyLimit, "p", def.PolyLimit, "largest polytomy given quadratic resolution (-1 for automatic)")
	flags.StringP(config.KeyOutput, "o", def.OutputFile, "output `file` for set X (default stdout)")
	flags.Bool(config.KeyOutputCompleted, def.OutputCompleted, "also write completed gene trees to <output>.completed_gene_trees")
	flags.Bool(config.KeyDistance, def.Distance, "use internode distance instead of quartet similarity")
	flags.Bool(config.KeyRooted, def.Rooted, "keep the input rooting of gene trees")
	flags.IntP(config.KeyNProcs, "n", def.NProcs, "number of parallel processes")
	flags.Uint64(config.KeySeed, def.Seed, "random seed")
	flags.StringVar(&a.plotPrefix, "plot", "", "write a cluster size plot to `prefix`.png")
	flags.StringVar(&a.metricsFile, "metrics-out", "", "write builder metrics in Prometheus text format to `file`")
	cmd.SetVersionTemplate("SETX version {{.Version}}\n")
	return cmd
}

func run(a args, opts search.Options) error {
	geneTrees, err := pr.ReadGeneTrees(a.geneTreeFile, a.gtFormat)
	if err != nil {
		return err
	}
	taxa, err := gr.NewTaxonSpace(pr.TaxaFromTrees(geneTrees.Trees))
	if err != nil {
		return err
	}
	var assignment map[string]string
	if a.mappingFile != "" {
		if assignment, err = pr.ReadMappingFile(a.mappingFile); err != nil {
			return err
		}
	}
	spm, err := gr.NewSpeciesMap(taxa, assignment)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	metrics, err := search.NewMetrics(reg)
	if err != nil {
		return err
	}
	builder, err := search.NewBuilder(spm, opts, search.WithMetrics(metrics))
	if err != nil {
		return err
	}
	if err := builder.Build(geneTrees.Trees); err != nil {
		return err
	}
	clusters := builder.Clusters()
	zap.S().Infof("set X contains %d clusters", clusters.Count())
	if err := writeClusters(clusters, taxa, opts.OutputFile); err != nil {
		return err
	}
	if a.plotPrefix != "" {
		if err := pr.WriteClusterSizePlot(clusters.SizeCounts(), a.plotPrefix); err != nil {
			return fmt.Errorf("%w, plot: %s", pr.ErrWritingFile, err)
		}
	}
	if a.metricsFile != "" {
		if err := prometheus.WriteToTextfile(a.metricsFile, reg); err != nil {
			return fmt.Errorf("%w, metrics: %s", pr.ErrWritingFile, err)
		}
	}
	return nil
}

func writeClusters(clusters *gr.ClusterCollection, taxa *gr.TaxonSpace, outputFile string) error {
	out := clusters.Format(taxa)
	if outputFile == "" {
		_, err := fmt.Fprint(os.Stdout, out)
		return err
	}
	if err := os.WriteFile(outputFile, []byte(out), 0o644); err != nil {
		return fmt.Errorf("%w, %s", pr.ErrWritingFile, err)
	}
	return nil
}

func main() {
	logger, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", ErrMessage, err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)
	zap.S().Infof("SETX version %s", Version)
	if err := newRootCommand().Execute(); err != nil {
		zap.S().Errorf("%s %s", ErrMessage, strings.TrimSpace(err.Error()))
		logger.Sync() //nolint:errcheck
		os.Exit(1)
	}
}
