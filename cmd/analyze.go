package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/skoparov/webgraphbuilder/internal/analyze"
	"github.com/skoparov/webgraphbuilder/internal/graphml"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "read_and_analyze <workDir>",
		Short: "Load a previously crawled graph and write the analysis report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(args[0], nil)
		},
	})

	// The historical mode name, misspelling included, is part of the CLI
	// contract.
	rootCmd.AddCommand(&cobra.Command{
		Use:   "simulate_atack_and_analyze <workDir> <chance>",
		Short: "Load a graph, simulate targeted node removal, and write the analysis report",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chance, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid deletion chance %q: %w", args[1], err)
			}
			return runAnalyze(args[0], &chance)
		},
	})
}

// runAnalyze loads the graph from workDir, optionally applies a deletion
// simulation, and writes the metrics report next to the graph file.
func runAnalyze(workDir string, deletionChance *float64) error {
	graph, err := graphml.Deserialize(filepath.Join(workDir, graphFileName))
	if err != nil {
		return err
	}

	if deletionChance != nil {
		if err := analyze.SimulateNodesDeletion(graph, *deletionChance); err != nil {
			return err
		}
	}

	return writeAnalysisResult(analyze.Analyze(graph), filepath.Join(workDir, analysisFileName))
}

// writeAnalysisResult writes the metrics as UTF-8 text, one metric per
// line.
func writeAnalysisResult(result analyze.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create analysis file: %w", err)
	}

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "edgesIndex: %g\n", result.EdgesIndex)
	fmt.Fprintf(w, "linksIndex: %g\n", result.LinksIndex)
	fmt.Fprintf(w, "clusteringCoeff: %g\n", result.ClusteringCoeff)
	fmt.Fprintf(w, "inductors: %d\n", result.Inductors)
	fmt.Fprintf(w, "collectors: %d\n", result.Collectors)
	fmt.Fprintf(w, "mediators: %d\n", result.Mediators)

	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write analysis file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close analysis file: %w", err)
	}

	return nil
}
