package cmd

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/skoparov/webgraphbuilder/internal/analyze"
	"github.com/skoparov/webgraphbuilder/internal/builder"
	"github.com/skoparov/webgraphbuilder/internal/fetch"
	"github.com/skoparov/webgraphbuilder/internal/graphml"
	"github.com/spf13/cobra"
)

type crawlOptions struct {
	threads   int
	timeout   time.Duration
	userAgent string
}

func init() {
	rootCmd.AddCommand(newCrawlCommand("crawl",
		"Crawl a site and write its hyperlink graph as GraphML", false))
	rootCmd.AddCommand(newCrawlCommand("crawl_and_analyze",
		"Crawl a site, write its graph, and write the analysis report", true))
}

func newCrawlCommand(mode, short string, withAnalysis bool) *cobra.Command {
	opts := &crawlOptions{}

	cmd := &cobra.Command{
		Use:   mode + " <workDir> <url> [<proxyAddr> <proxyPort>] [<proxyUser> <proxyPass>]",
		Short: short,
		Args:  validateCrawlArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(args, opts, withAnalysis)
		},
	}

	cmd.Flags().IntVar(&opts.threads, "threads", runtime.NumCPU(), "Maximum concurrent downloader workers")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Timeout per HTTP request (e.g. 10s, 1m)")
	cmd.Flags().StringVar(&opts.userAgent, "user-agent", "WebGraphBuilder/1.0", "Crawler user-agent")

	return cmd
}

// validateCrawlArgs enforces the positional grammar: workDir and url are
// required, proxy address+port and username+password come in pairs.
func validateCrawlArgs(cmd *cobra.Command, args []string) error {
	switch len(args) {
	case 0, 1:
		return fmt.Errorf("work directory and url should be provided")
	case 2, 4, 6:
		return nil
	case 3:
		return fmt.Errorf("both proxy addr and port should be provided")
	default:
		return fmt.Errorf("both proxy username and password should be provided")
	}
}

func runCrawl(args []string, opts *crawlOptions, withAnalysis bool) error {
	workDir, seedURL := args[0], args[1]
	logger := newLogger()

	factory := fetch.NewHTTPFactory(fetch.Options{
		Timeout:   opts.timeout,
		UserAgent: opts.userAgent,
	})

	b, err := builder.New(factory, opts.threads, logger)
	if err != nil {
		return err
	}
	defer b.Stop()

	if len(args) >= 4 {
		port, err := strconv.ParseUint(args[3], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid proxy port %q: %w", args[3], err)
		}

		settings := fetch.ProxySettings{Addr: args[2], Port: uint16(port)}
		if len(args) == 6 {
			settings.User, settings.Password = args[4], args[5]
		}
		b.SetProxy(settings)
	}

	future, err := b.Start(seedURL)
	if err != nil {
		return err
	}

	logger.Info("crawl started", "url", seedURL, "threads", opts.threads)
	result := <-future
	if result.Err != nil {
		return result.Err
	}

	graph := result.Graph
	logger.Info("crawl finished", "nodes", graph.NodesNum(), "links", graph.LinksNum())

	if err := graphml.Serialize(graph, filepath.Join(workDir, graphFileName)); err != nil {
		return err
	}

	if withAnalysis {
		return writeAnalysisResult(analyze.Analyze(graph), filepath.Join(workDir, analysisFileName))
	}

	return nil
}
