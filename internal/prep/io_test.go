package prep

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/evolbioinfo/gotree/io/newick"

	gr "github.com/jsdoublel/setx/internal/graphs"
)

func TestReadGeneTrees(t *testing.T) {
	testCases := []struct {
		name        string
		treeFile    string
		taxaset     []string
		numGenes    int
		format      string
		expectedErr error
	}{
		{
			name:     "basic",
			treeFile: "testdata/genetrees.nwk",
			taxaset:  []string{"a", "b", "c", "d", "e"},
			numGenes: 3,
			format:   "newick",
		},
		{
			name:        "bad tree",
			treeFile:    "testdata/badtree.nwk",
			numGenes:    -1,
			format:      "newick",
			expectedErr: ErrInvalidFormat,
		},
		{
			name:        "empty file",
			treeFile:    "testdata/empty.nwk",
			numGenes:    -1,
			format:      "newick",
			expectedErr: ErrInvalidFile,
		},
		{
			name:        "missing file",
			treeFile:    "testdata/does-not-exist.nwk",
			numGenes:    -1,
			format:      "newick",
			expectedErr: os.ErrNotExist,
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			var format Format
			if err := format.Set(test.format); err != nil {
				t.Fatal(err)
			}
			geneTrees, err := ReadGeneTrees(test.treeFile, format)
			if !errors.Is(err, test.expectedErr) {
				t.Fatalf("got error %v, expected %v", err, test.expectedErr)
			}
			if err != nil {
				return
			}
			if len(geneTrees.Trees) != test.numGenes || len(geneTrees.Names) != test.numGenes {
				t.Errorf("got %d gene trees, expected %d", len(geneTrees.Trees), test.numGenes)
			}
			if taxa := TaxaFromTrees(geneTrees.Trees); !reflect.DeepEqual(taxa, test.taxaset) {
				t.Errorf("got taxa %v, expected %v", taxa, test.taxaset)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	var f Format
	if err := f.Set("nexus"); err != nil || f != Nexus || f.String() != "nexus" {
		t.Errorf("could not set nexus format")
	}
	if err := f.Set("phylip"); err == nil {
		t.Errorf("phylip should not be a valid format")
	}
	if f.Type() != "format" {
		t.Errorf("got type %s", f.Type())
	}
}

func TestParseMapping(t *testing.T) {
	testCases := []struct {
		name        string
		data        string
		expected    map[string]string
		expectedErr error
	}{
		{
			name:     "basic",
			data:     "A:a1,a2\nB: b1 , b2\n\n",
			expected: map[string]string{"a1": "A", "a2": "A", "b1": "B", "b2": "B"},
		},
		{
			name:     "empty",
			data:     "\n",
			expected: map[string]string{},
		},
		{
			name:        "no colon",
			data:        "A a1,a2\n",
			expectedErr: ErrInvalidFormat,
		},
		{
			name:        "no species",
			data:        ":a1\n",
			expectedErr: ErrInvalidFormat,
		},
		{
			name:        "empty individual",
			data:        "A:a1,,a2\n",
			expectedErr: ErrInvalidFormat,
		},
		{
			name:        "individual in two species",
			data:        "A:a1\nB:a1\n",
			expectedErr: ErrInvalidFormat,
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			assignment, err := parseMapping(test.data, "test")
			if !errors.Is(err, test.expectedErr) {
				t.Fatalf("got error %v, expected %v", err, test.expectedErr)
			}
			if err == nil && !reflect.DeepEqual(assignment, test.expected) {
				t.Errorf("got %v, expected %v", assignment, test.expected)
			}
		})
	}
}

func TestReadMappingFile(t *testing.T) {
	assignment, err := ReadMappingFile("testdata/mapping.txt")
	if err != nil {
		t.Fatal(err)
	}
	expected := map[string]string{"a1": "A", "a2": "A", "b1": "B", "b2": "B", "c1": "C"}
	if !reflect.DeepEqual(assignment, expected) {
		t.Errorf("got %v, expected %v", assignment, expected)
	}
	if _, err := ReadMappingFile("testdata/missing.txt"); err == nil {
		t.Errorf("reading a missing mapping file should fail")
	}
}

func TestWriteCompletedTrees(t *testing.T) {
	taxa, err := gr.NewTaxonSpace([]string{"a", "b", "c", "d"})
	if err != nil {
		t.Fatal(err)
	}
	nwks := []string{"((a,b),(c,d));", "(a,(b,(c,d)));"}
	trees := make([]*gr.TreeData, len(nwks))
	for i, nwk := range nwks {
		gt, err := newick.NewParser(strings.NewReader(nwk)).Parse()
		if err != nil {
			t.Fatal("invalid newick tree; test is written wrong")
		}
		tre, err := gr.FromGotree(gt, taxa)
		if err != nil {
			t.Fatal(err)
		}
		trees[i] = gr.MakeTreeData(tre, taxa.Len())
	}
	var buf bytes.Buffer
	if err := WriteCompletedTrees(&buf, trees, taxa); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(nwks) {
		t.Fatalf("got %d lines, expected %d", len(lines), len(nwks))
	}
	for _, line := range lines {
		gt, err := newick.NewParser(strings.NewReader(line)).Parse()
		if err != nil {
			t.Fatalf("wrote invalid newick %s: %s", line, err)
		}
		if len(gt.AllTipNames()) != taxa.Len() {
			t.Errorf("tree %s has %d tips", line, len(gt.AllTipNames()))
		}
	}
	path := CompletedTreesPath(filepath.Join(t.TempDir(), "out"))
	if !strings.HasSuffix(path, "out.completed_gene_trees") {
		t.Errorf("unexpected path %s", path)
	}
	if err := WriteCompletedTreesFile(path, trees, taxa); err != nil {
		t.Fatal(err)
	}
	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(written) != buf.String() {
		t.Errorf("file and writer output differ")
	}
	bad := filepath.Join(t.TempDir(), "missing-dir", "out")
	if err := WriteCompletedTreesFile(bad, trees, taxa); !errors.Is(err, ErrWritingFile) {
		t.Errorf("got error %v, expected %v", err, ErrWritingFile)
	}
}

func TestWriteClusterSizePlot(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "sizes")
	if err := WriteClusterSizePlot([]int{0, 5, 7, 3, 0}, prefix); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(prefix + ".png"); err != nil {
		t.Errorf("plot was not written: %s", err)
	}
}
