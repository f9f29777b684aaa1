package main

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestSetNProcs(t *testing.T) {
	maxProcs := runtime.GOMAXPROCS(0)
	testCases := []struct {
		name     string
		nprocs   int
		expected int
	}{
		{name: "unset", nprocs: 0, expected: maxProcs},
		{name: "negative", nprocs: -3, expected: maxProcs},
		{name: "too many", nprocs: maxProcs + 1, expected: maxProcs},
		{name: "one", nprocs: 1, expected: 1},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			if got := setNProcs(test.nprocs); got != test.expected {
				t.Errorf("got %d, expected %d", got, test.expected)
			}
		})
	}
}

func TestRootCommand(t *testing.T) {
	dir := t.TempDir()
	treeFile := filepath.Join(dir, "genes.nwk")
	trees := "((a1,a2),(b1,(c1,d1)));\n((a1,b1),(a2,(c1,d1)));\n((a2,b1),(c1,d1));\n"
	if err := os.WriteFile(treeFile, []byte(trees), 0o644); err != nil {
		t.Fatal(err)
	}
	mappingFile := filepath.Join(dir, "mapping.txt")
	if err := os.WriteFile(mappingFile, []byte("A:a1,a2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "setx.txt")
	cmd := newRootCommand()
	cmd.SetArgs([]string{
		"-a", mappingFile, "-o", out, "-n", "2", "--output-completed",
		"--metrics-out", filepath.Join(dir, "metrics.prom"), treeFile,
	})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) == 0 {
		t.Fatal("no clusters written")
	}
	for _, line := range lines {
		names := strings.Split(line, ",")
		hasA1, hasA2 := false, false
		for _, name := range names {
			hasA1 = hasA1 || name == "a1"
			hasA2 = hasA2 || name == "a2"
		}
		if hasA1 != hasA2 {
			t.Errorf("cluster %s splits species A", line)
		}
	}
	if _, err := os.Stat(out + ".completed_gene_trees"); err != nil {
		t.Errorf("completed gene trees were not written: %s", err)
	}
	metrics, err := os.ReadFile(filepath.Join(dir, "metrics.prom"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(metrics), "setx_set_size") {
		t.Errorf("metrics file does not report the set size")
	}
}

func TestRootCommandErrors(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{name: "no gene trees", args: []string{}},
		{name: "missing file", args: []string{"does-not-exist.nwk"}},
		{name: "bad format", args: []string{"-f", "phylip", "genes.nwk"}},
		{name: "bad polytomy limit", args: []string{"-p", "-5", "genes.nwk"}},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			cmd := newRootCommand()
			cmd.SetArgs(test.args)
			cmd.SetOut(new(strings.Builder))
			cmd.SetErr(new(strings.Builder))
			if err := cmd.Execute(); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}
