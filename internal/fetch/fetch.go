// Package fetch defines the web page downloader capability used by the
// crawl pipeline and provides the production net/http implementation.
// Downloaders are synchronous and blocking; the pipeline supplies its
// own concurrency by pooling one downloader per worker.
package fetch

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "WebGraphBuilder/1.0"
)

// ProxySettings carries HTTP proxy coordinates and optional credentials.
type ProxySettings struct {
	Addr     string
	Port     uint16
	User     string
	Password string
}

// Downloader fetches a single page at a time. Implementations need not
// be safe for concurrent use; the pipeline never shares one handle
// between workers.
type Downloader interface {
	// SetProxy routes subsequent downloads through the given proxy.
	SetProxy(settings ProxySettings)
	// DownloadPage fetches the URL and returns the response body.
	DownloadPage(url string) (string, error)
}

// Factory produces downloader handles for the pipeline's pool.
type Factory interface {
	New() Downloader
}

// Options configures the HTTP downloaders produced by HTTPFactory.
type Options struct {
	// Timeout bounds a single request. Zero means the 30s default.
	Timeout time.Duration
	// UserAgent is sent on every request. Empty means the default.
	UserAgent string
}

// HTTPFactory creates net/http-backed downloaders.
type HTTPFactory struct {
	opts Options
}

// NewHTTPFactory returns a factory producing downloaders with the given
// options.
func NewHTTPFactory(opts Options) *HTTPFactory {
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &HTTPFactory{opts: opts}
}

// New creates a downloader with its own client and transport, so proxy
// settings on one pooled handle never leak into another.
func (f *HTTPFactory) New() Downloader {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &httpDownloader{
		transport: transport,
		client: &http.Client{
			Transport: transport,
			Timeout:   f.opts.Timeout,
		},
		userAgent: f.opts.UserAgent,
	}
}

type httpDownloader struct {
	transport *http.Transport
	client    *http.Client
	userAgent string
}

func (d *httpDownloader) SetProxy(settings ProxySettings) {
	proxyURL := &url.URL{
		Scheme: "http",
		Host:   settings.Addr + ":" + strconv.Itoa(int(settings.Port)),
	}
	if settings.User != "" {
		proxyURL.User = url.UserPassword(settings.User, settings.Password)
	}

	d.transport.Proxy = http.ProxyURL(proxyURL)
}

func (d *httpDownloader) DownloadPage(pageURL string) (string, error) {
	// Seed URLs are commonly given without a scheme; assume plain http
	// for those.
	if !strings.Contains(pageURL, "://") {
		pageURL = "http://" + pageURL
	}

	req, err := http.NewRequest(http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	return string(body), nil
}
