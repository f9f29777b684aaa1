package prep

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/evolbioinfo/gotree/io/newick"
	"github.com/evolbioinfo/gotree/io/nexus"
	"github.com/evolbioinfo/gotree/tree"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	gr "github.com/jsdoublel/setx/internal/graphs"
)

var (
	ErrInvalidFile   = errors.New("invalid file")
	ErrInvalidFormat = errors.New("invalid format")
	ErrWritingFile   = errors.New("error writing file")

	plotLineColor  = color.RGBA{R: 37, G: 150, B: 190, A: 255}
	plotMarkerShap = draw.CircleGlyph{}
)

type Format int

const (
	Newick Format = iota
	Nexus

	plotH = 4 * vg.Inch
	plotW = 6 * vg.Inch

	maxTicks = 10

	completedSuffix = ".completed_gene_trees"
)

var ParseFormat = map[string]Format{
	"newick": Newick,
	"nexus":  Nexus,
}

func (f *Format) Set(s string) error {
	if format, ok := ParseFormat[s]; ok {
		*f = format
		return nil
	}
	return fmt.Errorf("\"%s\" is not a valid gene tree file format", s)
}

func (f Format) String() string {
	for s, fr := range ParseFormat {
		if fr == f {
			return s
		}
	}
	panic(fmt.Sprintf("format (%d) does not exist", f))
}

// Type name shown in command line help
func (f *Format) Type() string { return "format" }

type GeneTrees struct {
	Trees []*tree.Tree // gene trees
	Names []string     // gene names
}

// Reads and validates the gene tree file. Returns an error if a tree cannot be
// parsed or the file holds no trees.
func ReadGeneTrees(genetreesFile string, format Format) (*GeneTrees, error) {
	flags := log.Flags()
	lout := log.Writer()
	log.SetOutput(io.Discard) // gotree logs through the standard logger and can be noisy
	defer func() {
		log.SetOutput(lout)
		log.SetFlags(flags)
	}()
	return readGeneTreesFile(genetreesFile, format)
}

func readGeneTreesFile(genetreesFile string, format Format) (*GeneTrees, error) {
	file, err := os.Open(genetreesFile)
	if err != nil {
		return nil, fmt.Errorf("error opening %s, %w", genetreesFile, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			panic(fmt.Sprintf("could not close file %s, %s", genetreesFile, err))
		}
	}()
	geneTreeList := make([]*tree.Tree, 0)
	geneTreeNames := make([]string, 0)
	switch format {
	case Newick:
		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), math.MaxInt32)
		for i := 0; scanner.Scan(); i++ {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			genetree, err := newick.NewParser(bytes.NewReader(line)).Parse()
			if err != nil {
				return nil, fmt.Errorf("%w, error reading gene tree on line %d in %s: %s",
					ErrInvalidFormat, i+1, genetreesFile, err.Error())
			}
			geneTreeList = append(geneTreeList, genetree)
			geneTreeNames = append(geneTreeNames, strconv.Itoa(len(geneTreeList)))
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("%w, error scanning %s: %s", ErrInvalidFile, genetreesFile, err.Error())
		}
	case Nexus:
		nex, err := nexus.NewParser(file).Parse()
		if err != nil {
			return nil, fmt.Errorf("%w, error reading gene tree nexus file %s: %s",
				ErrInvalidFormat, genetreesFile, err.Error())
		}
		nex.IterateTrees(func(s string, t *tree.Tree) {
			geneTreeList = append(geneTreeList, t)
			geneTreeNames = append(geneTreeNames, s)
		})
	default:
		return nil, fmt.Errorf("%w, not a valid file format", ErrInvalidFile)
	}
	if len(geneTreeList) < 1 {
		return nil, fmt.Errorf("%w, empty gene tree file %s", ErrInvalidFile, genetreesFile)
	}
	return &GeneTrees{Trees: geneTreeList, Names: geneTreeNames}, nil
}

// Sorted union of leaf names over all trees
func TaxaFromTrees(trees []*tree.Tree) []string {
	seen := make(map[string]bool)
	names := make([]string, 0)
	for _, t := range trees {
		for _, name := range t.AllTipNames() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)
	return names
}

// Reads an individual to species mapping file. Each non-empty line has the
// form "species:ind1,ind2,...".
func ReadMappingFile(mappingFile string) (map[string]string, error) {
	data, err := os.ReadFile(mappingFile)
	if err != nil {
		return nil, fmt.Errorf("error reading mapping file: %w", err)
	}
	return parseMapping(string(data), mappingFile)
}

func parseMapping(data, source string) (map[string]string, error) {
	assignment := make(map[string]string)
	for i, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		species, inds, ok := strings.Cut(line, ":")
		species = strings.TrimSpace(species)
		if !ok || species == "" {
			return nil, fmt.Errorf("%w, line %d of %s should look like species:ind1,ind2", ErrInvalidFormat, i+1, source)
		}
		for _, ind := range strings.Split(inds, ",") {
			ind = strings.TrimSpace(ind)
			if ind == "" {
				return nil, fmt.Errorf("%w, empty individual name on line %d of %s", ErrInvalidFormat, i+1, source)
			}
			if prev, ok := assignment[ind]; ok {
				return nil, fmt.Errorf("%w, individual %s mapped to both %s and %s", ErrInvalidFormat, ind, prev, species)
			}
			assignment[ind] = species
		}
	}
	return assignment, nil
}

// Path of the completed gene tree file for an output prefix
func CompletedTreesPath(outputFile string) string {
	return outputFile + completedSuffix
}

// Writes one newick string per tree, in order
func WriteCompletedTrees(w io.Writer, trees []*gr.TreeData, taxa *gr.TaxonSpace) error {
	bw := bufio.NewWriter(w)
	for i, td := range trees {
		if _, err := fmt.Fprintln(bw, td.Newick(taxa)); err != nil {
			return fmt.Errorf("%w, gene tree %d: %s", ErrWritingFile, i+1, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w, %s", ErrWritingFile, err)
	}
	return nil
}

func WriteCompletedTreesFile(path string, trees []*gr.TreeData, taxa *gr.TaxonSpace) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w, %s", ErrWritingFile, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w, %s", ErrWritingFile, cerr)
		}
	}()
	return WriteCompletedTrees(f, trees, taxa)
}

// Line plot of the number of clusters of each size, saved as <prefix>.png
func WriteClusterSizePlot(counts []int, prefix string) error {
	p := plot.New()
	p.X.Label.Text = "Cluster Size"
	p.Y.Label.Text = "Number of Clusters"
	p.X.Min = 0
	p.X.Max = float64(max(len(counts)-1, 1))
	p.X.Tick.Marker = plot.TickerFunc(func(_, max float64) []plot.Tick {
		step := 1
		if int(max) > maxTicks {
			step = int(math.Ceil(max / maxTicks))
		}
		ticks := make([]plot.Tick, 0, int(max)/step+2)
		for i := range int(max) + 1 {
			if i%step == 0 {
				ticks = append(ticks, plot.Tick{Value: float64(i), Label: fmt.Sprintf("%d", i)})
			} else {
				ticks = append(ticks, plot.Tick{Value: float64(i)})
			}
		}
		return ticks
	})
	p.Y.Min = 0
	pts := make(plotter.XYs, len(counts))
	for i, c := range counts {
		pts[i].X = float64(i)
		pts[i].Y = float64(c)
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	line.Color = plotLineColor
	line.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
	points.Color = plotLineColor
	points.Shape = plotMarkerShap
	points.Radius = vg.Points(3)
	p.Add(line, points)
	return p.Save(plotW, plotH, fmt.Sprintf("%s.png", prefix))
}
