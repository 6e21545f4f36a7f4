package builder

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skoparov/webgraphbuilder/internal/fetch"
)

// fakeFactory produces downloaders that serve pages from an in-memory
// site map. An optional gate channel blocks every download until closed,
// which lets tests observe the pipeline mid-crawl.
type fakeFactory struct {
	pages      map[string]string
	gate       chan struct{}
	proxyCalls atomic.Int32
}

func (f *fakeFactory) New() fetch.Downloader {
	return &fakeDownloader{factory: f}
}

type fakeDownloader struct {
	factory *fakeFactory
}

func (d *fakeDownloader) SetProxy(fetch.ProxySettings) {
	d.factory.proxyCalls.Add(1)
}

func (d *fakeDownloader) DownloadPage(url string) (string, error) {
	if d.factory.gate != nil {
		<-d.factory.gate
	}

	body, ok := d.factory.pages[url]
	if !ok {
		return "", errors.New("unexpected status 404 Not Found")
	}
	return body, nil
}

func awaitResult(t *testing.T, future <-chan Result) Result {
	t.Helper()

	select {
	case result := <-future:
		return result
	case <-time.After(10 * time.Second):
		t.Fatal("crawl did not finish in time")
		return Result{}
	}
}

func TestNew_ZeroThreads(t *testing.T) {
	_, err := New(&fakeFactory{}, 0, nil)
	assert.ErrorIs(t, err, ErrNoThreads)
}

func TestStart_EmptySeed(t *testing.T) {
	b, err := New(&fakeFactory{}, 2, nil)
	require.NoError(t, err)

	_, err = b.Start("")
	assert.ErrorIs(t, err, ErrEmptyURL)
}

func TestCrawl_SmallSite(t *testing.T) {
	factory := &fakeFactory{pages: map[string]string{
		"http://site.com":   `<a href="/a">A</a><a href="/b">B</a>`,
		"http://site.com/a": `<a href="/b">B</a><a href="/b">B again</a>`,
		"http://site.com/b": `<p>no links here</p>`,
	}}

	b, err := New(factory, 3, nil)
	require.NoError(t, err)
	defer b.Stop()

	future, err := b.Start("http://site.com")
	require.NoError(t, err)

	result := awaitResult(t, future)
	require.NoError(t, result.Err)
	graph := result.Graph
	require.NotNil(t, graph)

	assert.False(t, b.IsRunning())
	assert.Equal(t, 3, graph.NodesNum())
	assert.Equal(t, 4, graph.LinksNum())

	root := graph.Root()
	a := graph.GetNode("site.com/a")
	bNode := graph.GetNode("site.com/b")
	require.NotNil(t, a)
	require.NotNil(t, bNode)

	assert.Equal(t, "http://site.com", root.URL())
	assert.Equal(t, 1, root.Outbound()[a])
	assert.Equal(t, 1, root.Outbound()[bNode])
	assert.Equal(t, 2, a.Outbound()[bNode])
	assert.Equal(t, 2, bNode.Inbound()[a])
}

func TestCrawl_TrimsSeedURL(t *testing.T) {
	factory := &fakeFactory{pages: map[string]string{
		"http://site.com": `<p>empty</p>`,
	}}

	b, err := New(factory, 1, nil)
	require.NoError(t, err)
	defer b.Stop()

	future, err := b.Start("http://site.com/")
	require.NoError(t, err)

	result := awaitResult(t, future)
	require.NoError(t, result.Err)
	assert.Equal(t, "http://site.com", result.Graph.Root().URL())
}

func TestCrawl_PageWithNoLinksTerminates(t *testing.T) {
	factory := &fakeFactory{pages: map[string]string{
		"http://site.com": `<html><body>nothing to follow</body></html>`,
	}}

	b, err := New(factory, 4, nil)
	require.NoError(t, err)
	defer b.Stop()

	future, err := b.Start("http://site.com")
	require.NoError(t, err)

	result := awaitResult(t, future)
	require.NoError(t, result.Err)
	assert.Equal(t, 1, result.Graph.NodesNum())
	assert.Equal(t, 0, result.Graph.LinksNum())
}

func TestCrawl_SelfLinksProduceParallelSelfEdges(t *testing.T) {
	factory := &fakeFactory{pages: map[string]string{
		"http://site.com": `<a href="http://site.com">me</a><a href="http://site.com">me again</a>`,
	}}

	b, err := New(factory, 2, nil)
	require.NoError(t, err)
	defer b.Stop()

	future, err := b.Start("http://site.com")
	require.NoError(t, err)

	result := awaitResult(t, future)
	require.NoError(t, result.Err)
	graph := result.Graph

	assert.Equal(t, 1, graph.NodesNum())
	assert.Equal(t, 2, graph.LinksNum())
	assert.Equal(t, 2, graph.Root().Outbound()[graph.Root()])
}

func TestCrawl_FailedDownloadIsDroppedNotRetried(t *testing.T) {
	// /a is linked but never downloadable; the crawl must still finish
	// with the node present and unexpanded.
	factory := &fakeFactory{pages: map[string]string{
		"http://site.com":   `<a href="/a">A</a><a href="/b">B</a>`,
		"http://site.com/b": `<p>fine</p>`,
	}}

	b, err := New(factory, 2, nil)
	require.NoError(t, err)
	defer b.Stop()

	future, err := b.Start("http://site.com")
	require.NoError(t, err)

	result := awaitResult(t, future)
	require.NoError(t, result.Err)
	graph := result.Graph

	assert.Equal(t, 3, graph.NodesNum())
	a := graph.GetNode("site.com/a")
	require.NotNil(t, a)
	assert.Empty(t, a.Outbound())
}

func TestStart_AlreadyRunning(t *testing.T) {
	factory := &fakeFactory{
		pages: map[string]string{"http://site.com": `<p>empty</p>`},
		gate:  make(chan struct{}),
	}

	b, err := New(factory, 1, nil)
	require.NoError(t, err)
	defer b.Stop()

	future, err := b.Start("http://site.com")
	require.NoError(t, err)
	assert.True(t, b.IsRunning())

	_, err = b.Start("http://site.com")
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(factory.gate)
	result := awaitResult(t, future)
	assert.NoError(t, result.Err)
}

func TestSetProxy(t *testing.T) {
	factory := &fakeFactory{
		pages: map[string]string{"http://site.com": `<p>empty</p>`},
		gate:  make(chan struct{}),
	}

	b, err := New(factory, 3, nil)
	require.NoError(t, err)
	defer b.Stop()

	settings := fetch.ProxySettings{Addr: "proxy.local", Port: 8080}
	assert.True(t, b.SetProxy(settings))
	assert.Equal(t, int32(3), factory.proxyCalls.Load())

	future, err := b.Start("http://site.com")
	require.NoError(t, err)

	// Refused while the crawl is in progress.
	assert.False(t, b.SetProxy(settings))
	assert.Equal(t, int32(3), factory.proxyCalls.Load())

	close(factory.gate)
	awaitResult(t, future)
}

func TestStop_AbortsCrawl(t *testing.T) {
	factory := &fakeFactory{
		pages: map[string]string{"http://site.com": `<a href="/a">A</a>`},
		gate:  make(chan struct{}),
	}

	b, err := New(factory, 2, nil)
	require.NoError(t, err)

	future, err := b.Start("http://site.com")
	require.NoError(t, err)
	require.True(t, b.IsRunning())

	// Let the in-flight fetch finish after Stop has been requested; its
	// result must be discarded.
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(factory.gate)
	}()
	b.Stop()

	result := awaitResult(t, future)
	assert.ErrorIs(t, result.Err, ErrAborted)
	assert.Nil(t, result.Graph)
	assert.False(t, b.IsRunning())
}

func TestStop_WithoutCrawlIsSafe(t *testing.T) {
	b, err := New(&fakeFactory{}, 2, nil)
	require.NoError(t, err)

	b.Stop()
	b.Stop()
	assert.False(t, b.IsRunning())
}

func TestBuilder_Reusable(t *testing.T) {
	factory := &fakeFactory{pages: map[string]string{
		"http://site.com":   `<a href="/a">A</a>`,
		"http://site.com/a": `<p>leaf</p>`,
	}}

	b, err := New(factory, 2, nil)
	require.NoError(t, err)
	defer b.Stop()

	for i := 0; i < 2; i++ {
		future, err := b.Start("http://site.com")
		require.NoError(t, err)

		result := awaitResult(t, future)
		require.NoError(t, result.Err)
		assert.Equal(t, 2, result.Graph.NodesNum())
	}
}

func TestCrawl_EdgeSymmetryInvariant(t *testing.T) {
	factory := &fakeFactory{pages: map[string]string{
		"http://site.com":   `<a href="/a">A</a><a href="/b">B</a><a href="/a">A</a>`,
		"http://site.com/a": `<a href="/b">B</a><a href="http://site.com">up</a>`,
		"http://site.com/b": `<a href="/a">A</a>`,
	}}

	b, err := New(factory, 4, nil)
	require.NoError(t, err)
	defer b.Stop()

	future, err := b.Start("http://site.com")
	require.NoError(t, err)

	result := awaitResult(t, future)
	require.NoError(t, result.Err)
	graph := result.Graph

	outboundTotal := 0
	for _, node := range graph.Nodes() {
		for target, num := range node.Outbound() {
			assert.Equal(t, num, target.Inbound()[node], "asymmetric edge %s -> %s",
				node.URL(), target.URL())
			outboundTotal += num
		}
	}
	assert.Equal(t, graph.LinksNum(), outboundTotal)
}

var _ fetch.Factory = (*fakeFactory)(nil)
