package mapctl

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/geomap/internal/core/domain"
)

// Fetcher downloads a resource by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Assets loads provider scripts and style documents at most once per
// process, however many controllers ask for them. Concurrent requests for
// the same URL share one fetch. Only successful loads are kept; a failed
// load is retried by the next controller that needs it.
type Assets struct {
	fetcher Fetcher
	group   singleflight.Group

	mu     sync.Mutex
	loaded map[string][]byte
}

// NewAssets creates an Assets loader.
func NewAssets(f Fetcher) *Assets {
	return &Assets{fetcher: f, loaded: make(map[string][]byte)}
}

func (a *Assets) cached(url string) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.loaded[url]
	return data, ok
}

func (a *Assets) load(ctx context.Context, url string) ([]byte, error) {
	if data, ok := a.cached(url); ok {
		return data, nil
	}

	v, err, _ := a.group.Do(url, func() (any, error) {
		if data, ok := a.cached(url); ok {
			return data, nil
		}
		data, err := a.fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", url, err)
		}
		a.mu.Lock()
		a.loaded[url] = data
		a.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Script makes sure the script at url has been loaded.
func (a *Assets) Script(ctx context.Context, url string) error {
	_, err := a.load(ctx, url)
	return err
}

// Style returns the style document: inline documents as is, URLs fetched
// and decoded once.
func (a *Assets) Style(ctx context.Context, s domain.Style) (map[string]any, error) {
	if s.Document != nil {
		return s.Document, nil
	}
	if s.URL == "" {
		return nil, fmt.Errorf("%w: empty style", domain.ErrConfiguration)
	}
	data, err := a.load(ctx, s.URL)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: style %s: %v", domain.ErrConfiguration, s.URL, err)
	}
	return doc, nil
}

// Loaded reports whether url has been fetched successfully.
func (a *Assets) Loaded(url string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.loaded[url]
	return ok
}

// HTTPFetcher fetches resources with fasthttp.
type HTTPFetcher struct {
	client    *fasthttp.Client
	timeout   time.Duration
	userAgent string
}

// NewHTTPFetcher creates an HTTPFetcher. Requests give up after timeout.
func NewHTTPFetcher(userAgent string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPFetcher{
		client: &fasthttp.Client{
			Name:                userAgent,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
		timeout:   timeout,
		userAgent: userAgent,
	}
}

// Fetch downloads url. Transport errors and non-200 responses wrap
// domain.ErrNetwork.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetUserAgent(f.userAgent)

	deadline := time.Now().Add(f.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := f.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", domain.ErrNetwork, url, resp.StatusCode())
	}
	return append([]byte(nil), resp.Body()...), nil
}
