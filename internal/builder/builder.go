// Package builder implements the asynchronous crawl pipeline that
// constructs a web graph from a seed URL. A pool of downloader workers
// drains a FIFO frontier of pages awaiting fetch, and a single parser
// worker drains a FIFO queue of fetched bodies, extracting links and
// mutating the shared graph. The crawl is complete when the frontier
// and the parse queue are empty and every downloader is idle.
package builder

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/skoparov/webgraphbuilder/internal/fetch"
	"github.com/skoparov/webgraphbuilder/internal/urlnorm"
	"github.com/skoparov/webgraphbuilder/internal/webgraph"
)

var (
	// ErrNoThreads is returned by New when maxThreads is zero.
	ErrNoThreads = errors.New("number of threads should be positive")
	// ErrEmptyURL is returned by Start when the seed URL is empty.
	ErrEmptyURL = errors.New("url should not be empty")
	// ErrAlreadyRunning is returned by Start while a crawl is in progress.
	ErrAlreadyRunning = errors.New("already running")
	// ErrAborted fulfills the crawl result when Stop interrupts a crawl.
	ErrAborted = errors.New("building aborted")
)

// Result is the terminal value of a crawl: the completed graph, or the
// error that ended the crawl early.
type Result struct {
	Graph *webgraph.Graph
	Err   error
}

type parseEntry struct {
	node *webgraph.Node
	body string
}

// Builder runs crawls. A Builder may be reused for consecutive crawls
// but never runs more than one at a time.
type Builder struct {
	mu           sync.Mutex
	downloadCond *sync.Cond
	parseCond    *sync.Cond

	graph           *webgraph.Graph
	frontier        []*webgraph.Node
	parseQueue      []parseEntry
	freeDownloaders []fetch.Downloader
	maxThreads      int

	running        atomic.Bool
	needsToStop    atomic.Bool
	graphCompleted atomic.Bool

	// rootURL is the seed after trailing-slash trim, percent-decode, and
	// invalid-symbol removal: the form the graph stores and the prefix
	// for site-relative hrefs. strippedRootURL additionally drops the
	// scheme and www, and is the in-domain predicate argument.
	rootURL         string
	strippedRootURL string

	resultCh  chan Result
	fulfilled bool

	workers sync.WaitGroup
	logger  *slog.Logger
}

// New creates a Builder with maxThreads pooled downloader handles
// produced by the factory. A nil logger means slog.Default().
func New(factory fetch.Factory, maxThreads int, logger *slog.Logger) (*Builder, error) {
	if maxThreads <= 0 {
		return nil, ErrNoThreads
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Builder{
		maxThreads:      maxThreads,
		freeDownloaders: make([]fetch.Downloader, 0, maxThreads),
		logger:          logger,
	}
	b.downloadCond = sync.NewCond(&b.mu)
	b.parseCond = sync.NewCond(&b.mu)

	for i := 0; i < maxThreads; i++ {
		b.freeDownloaders = append(b.freeDownloaders, factory.New())
	}

	return b, nil
}

// SetProxy applies proxy settings to every pooled downloader. It is
// refused while a crawl is running; the return value reports whether
// the settings were applied.
func (b *Builder) SetProxy(settings fetch.ProxySettings) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running.Load() {
		return false
	}

	for _, downloader := range b.freeDownloaders {
		downloader.SetProxy(settings)
	}

	return true
}

// Start begins a crawl from the seed URL and returns a one-shot channel
// that delivers the completed graph, or ErrAborted if Stop interrupts
// the crawl.
func (b *Builder) Start(seedURL string) (<-chan Result, error) {
	if seedURL == "" {
		return nil, ErrEmptyURL
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running.Load() {
		return nil, ErrAlreadyRunning
	}

	b.frontier = nil
	b.parseQueue = nil
	b.needsToStop.Store(false)
	b.graphCompleted.Store(false)

	b.rootURL = urlnorm.RemoveInvalidSymbols(urlnorm.DecodeURL(urlnorm.TrimURL(seedURL)))
	b.strippedRootURL = urlnorm.StripWebPrefixes(b.rootURL)

	b.graph = webgraph.NewWithRoot(b.rootURL)
	b.frontier = append(b.frontier, b.graph.Root())

	b.resultCh = make(chan Result, 1)
	b.fulfilled = false

	for i := 0; i < b.maxThreads; i++ {
		b.workers.Add(1)
		go b.downloadCycle()
	}
	b.workers.Add(1)
	go b.parseCycle()

	b.running.Store(true)
	b.downloadCond.Signal()

	return b.resultCh, nil
}

// IsRunning reports whether a crawl is in progress.
func (b *Builder) IsRunning() bool {
	return b.running.Load()
}

// Stop requests cooperative shutdown and joins all workers. If a crawl
// was in progress its result channel receives ErrAborted. Stop is safe
// to call when no crawl is running.
func (b *Builder) Stop() {
	b.needsToStop.Store(true)

	b.mu.Lock()
	b.downloadCond.Broadcast()
	b.parseCond.Broadcast()
	b.mu.Unlock()

	b.workers.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running.Load() {
		b.fulfill(Result{Err: ErrAborted})
		b.running.Store(false)
	}
}

// fulfill delivers the crawl result exactly once. Callers hold b.mu.
func (b *Builder) fulfill(result Result) {
	if !b.fulfilled {
		b.fulfilled = true
		b.resultCh <- result
	}
}

// canDownloadNextPage holds when there is both a page to fetch and an
// idle downloader to fetch it with. Callers hold b.mu.
func (b *Builder) canDownloadNextPage() bool {
	return len(b.frontier) > 0 && len(b.freeDownloaders) > 0
}

// updateGraphCompleted re-evaluates the sole non-cancellation
// termination condition: frontier empty, parse queue empty, and every
// downloader back in the pool. Callers hold b.mu.
func (b *Builder) updateGraphCompleted() {
	b.graphCompleted.Store(
		len(b.frontier) == 0 &&
			len(b.parseQueue) == 0 &&
			len(b.freeDownloaders) == b.maxThreads)
}

func (b *Builder) downloadCycle() {
	defer b.workers.Done()

	for {
		b.mu.Lock()
		for !b.canDownloadNextPage() && !b.graphCompleted.Load() && !b.needsToStop.Load() {
			b.downloadCond.Wait()
		}

		if b.needsToStop.Load() || b.graphCompleted.Load() {
			b.mu.Unlock()
			return
		}

		downloader := b.freeDownloaders[0]
		b.freeDownloaders = b.freeDownloaders[1:]
		node := b.frontier[0]
		b.frontier = b.frontier[1:]
		b.mu.Unlock()

		body, err := downloader.DownloadPage(node.URL())

		b.mu.Lock()
		if err != nil {
			// A failed page is logged and dropped, never retried.
			b.logger.Warn("failed to download page", "url", node.URL(), "error", err)
		} else {
			b.parseQueue = append(b.parseQueue, parseEntry{node: node, body: body})
			b.parseCond.Signal()
		}

		b.freeDownloaders = append(b.freeDownloaders, downloader)

		b.updateGraphCompleted()
		if b.graphCompleted.Load() {
			b.downloadCond.Broadcast()
			b.parseCond.Signal()
		}
		b.mu.Unlock()
	}
}

func (b *Builder) parseCycle() {
	defer b.workers.Done()

	for {
		b.mu.Lock()
		for len(b.parseQueue) == 0 && !b.graphCompleted.Load() && !b.needsToStop.Load() {
			b.parseCond.Wait()
		}

		if b.needsToStop.Load() {
			b.fulfill(Result{Err: ErrAborted})
			b.running.Store(false)
			b.mu.Unlock()
			return
		}
		if b.graphCompleted.Load() {
			b.fulfill(Result{Graph: b.graph})
			b.running.Store(false)
			b.mu.Unlock()
			return
		}

		// Peek without popping: a non-empty parse queue keeps the
		// completion predicate false while the body is being parsed.
		entry := b.parseQueue[0]
		rootURL := b.graph.Root().URL()
		b.mu.Unlock()

		urls := urlnorm.ExtractAndFilterLinks(entry.body, rootURL, b.strippedRootURL)

		b.mu.Lock()
		for _, url := range urls {
			if node := b.graph.GetNode(url); node != nil {
				// Already discovered, just accumulate the parallel link.
				b.graph.Link(node, entry.node)
			} else {
				linked := b.graph.AddLink(url, entry.node)
				b.frontier = append(b.frontier, linked)
				b.downloadCond.Signal()
			}
		}
		b.parseQueue = b.parseQueue[1:]

		b.updateGraphCompleted()
		if b.graphCompleted.Load() {
			b.downloadCond.Broadcast()
		}
		b.mu.Unlock()
	}
}
