// Package cmd implements the CLI commands for WebGraphBuilder.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const (
	graphFileName    = "graph.graphml"
	analysisFileName = "analysisResult.txt"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "webgraphbuilder <mode> <workDir> [<url>|<chance>] [<proxyAddr> <proxyPort>] [<proxyUser> <proxyPass>]",
	Short:         "WebGraphBuilder — site hyperlink graph crawler and analyzer",
	SilenceErrors: true,
	SilenceUsage:  true,
	Long: `WebGraphBuilder crawls a single website into a directed multigraph of
hyperlinks between its pages, persists the graph as GraphML, and computes
structural metrics and targeted node-removal attack simulations over it.

Modes: crawl, crawl_and_analyze, read_and_analyze, simulate_atack_and_analyze.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version of WebGraphBuilder",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("webgraphbuilder", Version)
		},
	})
}

// newLogger builds the stderr logger shared by all commands.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command. It is the single entry point called by main.
func Execute() error {
	return rootCmd.Execute()
}
