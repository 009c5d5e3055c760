// Package netfetch performs the network half of request interception: it
// sends a request upstream under a bounded deadline and returns a fully read
// cache.Response snapshot classified as basic or cors.
package netfetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jonwraymond/offlinekit/cache"
	"github.com/jonwraymond/offlinekit/resilience"
)

// Sentinel errors.
var (
	ErrNilRequest     = errors.New("netfetch: request is nil")
	ErrMissingOrigin  = errors.New("netfetch: origin is required")
	ErrRelativeOrigin = errors.New("netfetch: origin must be absolute")
)

// Config configures a Fetcher.
type Config struct {
	// Origin is the application origin; responses whose final URL shares it
	// are classified basic, everything else cors.
	Origin *url.URL

	// Transport sends the request. Default: http.DefaultTransport.
	// It must not be an interception engine, or requests would loop.
	Transport http.RoundTripper

	// Timeout bounds the whole exchange including the body read.
	// Default: resilience.DefaultFetchTimeout.
	Timeout time.Duration
}

// Fetcher sends requests to the network.
type Fetcher struct {
	origin  *url.URL
	client  *http.Client
	timeout *resilience.Timeout
}

// New validates cfg and returns a Fetcher.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Origin == nil {
		return nil, ErrMissingOrigin
	}
	if !cfg.Origin.IsAbs() || cfg.Origin.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrRelativeOrigin, cfg.Origin)
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Fetcher{
		origin:  cfg.Origin,
		client:  &http.Client{Transport: transport},
		timeout: resilience.NewTimeout(cfg.Timeout),
	}, nil
}

// Origin returns the application origin.
func (f *Fetcher) Origin() *url.URL {
	return f.origin
}

// Timeout returns the per-fetch deadline.
func (f *Fetcher) Timeout() time.Duration {
	return f.timeout.Duration()
}

// Fetch sends req and snapshots the reply. Any HTTP status is a successful
// fetch; only transport failures and the deadline produce an error.
func (f *Fetcher) Fetch(ctx context.Context, req *http.Request) (cache.Response, error) {
	if req == nil || req.URL == nil {
		return cache.Response{}, ErrNilRequest
	}

	var out cache.Response
	err := f.timeout.Execute(ctx, func(ctx context.Context) error {
		upstream := req.Clone(ctx)
		upstream.RequestURI = ""

		resp, err := f.client.Do(upstream)
		if err != nil {
			return err
		}
		out, err = cache.Snapshot(resp, f.classify(resp))
		return err
	})
	if err != nil {
		return cache.Response{}, fmt.Errorf("netfetch: %s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	return out, nil
}

// Get fetches rawURL, resolved against the origin when relative.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (cache.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Resolve(rawURL), nil)
	if err != nil {
		return cache.Response{}, fmt.Errorf("netfetch: %w", err)
	}
	return f.Fetch(ctx, req)
}

// Resolve turns an origin-relative path such as "/css/main.css" into an
// absolute URL. Absolute inputs are returned unchanged.
func (f *Fetcher) Resolve(rawURL string) string {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return f.origin.ResolveReference(ref).String()
}

func (f *Fetcher) classify(resp *http.Response) cache.ResponseType {
	if resp.Request != nil && cache.SameOrigin(resp.Request.URL, f.origin) {
		return cache.TypeBasic
	}
	return cache.TypeCORS
}
