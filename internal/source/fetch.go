// Package source retrieves and decodes raw skill tree documents.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentic-research/skilltree/api"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// DefaultMaxBytes caps document size when a fetcher sets no limit.
const DefaultMaxBytes = 16 << 20

// readDocument reads r fully, failing with ErrTooLarge past limit bytes.
func readDocument(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, limit)
	}
	return body, nil
}

// Fetcher retrieves the raw tree at a location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (*api.RawNode, error)
}

// HTTPOptions configures an HTTPFetcher.
type HTTPOptions struct {
	Client   *http.Client
	Timeout  time.Duration
	Selector string
	Logger   *zap.Logger
	// MaxBytes limits the response body. Zero means DefaultMaxBytes.
	MaxBytes int64

	// Breaker trips after BreakerFailures consecutive failures and stays
	// open for BreakerTimeout. Zero values pick 5 and 30s.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// HTTPFetcher downloads documents over HTTP behind a circuit breaker.
type HTTPFetcher struct {
	client   *http.Client
	selector string
	maxBytes int64
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	openFor := opts.BreakerTimeout
	if openFor <= 0 {
		openFor = 30 * time.Second
	}

	return &HTTPFetcher{
		client:   client,
		selector: opts.Selector,
		maxBytes: opts.MaxBytes,
		logger:   logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "skilltree-fetch",
			Timeout: openFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
	}
}

type httpDocument struct {
	body        []byte
	contentType string
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*api.RawNode, error) {
	res, err := f.breaker.Execute(func() (interface{}, error) {
		return f.get(ctx, url)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %v", ErrFetch, url, err)
		}
		return nil, err
	}
	doc := res.(*httpDocument)

	format := FormatForContentType(doc.contentType)
	if format == JSON {
		format = FormatForName(url)
	}
	return Decode(doc.body, format, f.selector)
}

func (f *HTTPFetcher) get(ctx context.Context, url string) (*httpDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	f.logger.Debug("fetched skill tree",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: http error: status %d", ErrFetch, resp.StatusCode)
	}
	body, err := readDocument(resp.Body, f.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrFetch, err)
	}
	return &httpDocument{body: body, contentType: resp.Header.Get("Content-Type")}, nil
}

// FileFetcher reads documents from a billy filesystem.
type FileFetcher struct {
	FS       billy.Filesystem
	Selector string
	// MaxBytes limits the file size. Zero means DefaultMaxBytes.
	MaxBytes int64
}

// Fetch implements Fetcher. The location is a path inside FS.
func (f *FileFetcher) Fetch(ctx context.Context, name string) (*api.RawNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	file, err := f.FS.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer func() { _ = file.Close() }()

	data, err := readDocument(file, f.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrFetch, name, err)
	}
	return Decode(data, FormatForName(name), f.Selector)
}

// Router dispatches http(s) URLs to an HTTPFetcher and anything else to the
// local filesystem.
type Router struct {
	HTTP     Fetcher
	Selector string
	// Local opens the directory holding a local document. Defaults to osfs.
	Local func(dir string) billy.Filesystem
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, location string) (*api.RawNode, error) {
	if isHTTP(location) {
		if r.HTTP == nil {
			return nil, fmt.Errorf("%w: no http fetcher configured", ErrFetch)
		}
		return r.HTTP.Fetch(ctx, location)
	}

	path := strings.TrimPrefix(location, "file://")
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	local := r.Local
	if local == nil {
		local = func(dir string) billy.Filesystem { return osfs.New(dir) }
	}
	ff := &FileFetcher{FS: local(filepath.Dir(abs)), Selector: r.Selector}
	return ff.Fetch(ctx, filepath.Base(abs))
}
