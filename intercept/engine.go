package intercept

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/offlinekit/cache"
	"github.com/jonwraymond/offlinekit/observe"
)

// DefaultOfflineURL is the fallback document served to failed navigations.
const DefaultOfflineURL = "/offline.html"

// Sentinel errors.
var (
	ErrMissingOrigin  = errors.New("intercept: origin is required")
	ErrMissingVersion = errors.New("intercept: version source is required")
	ErrMissingFetcher = errors.New("intercept: fetcher is required")
	ErrNilRequest     = errors.New("intercept: request is nil")
)

// Versioner names the current cache generation.
type Versioner interface {
	Version() string
}

// Controller reports whether the worker controls its clients.
type Controller interface {
	Controlling() bool
}

// Fetcher sends a request to the network. Implementations bound the call
// with their own deadline.
type Fetcher interface {
	Fetch(ctx context.Context, req *http.Request) (cache.Response, error)
}

// Config configures an Engine.
type Config struct {
	Origin  *url.URL
	Store   cache.Store
	Version Versioner
	Fetcher Fetcher

	// Control gates the cache. Until it reports true, eligible requests go
	// straight to the network as if no worker were installed. Nil means
	// always controlling.
	Control Controller

	// OfflineURL is resolved against Origin. Default: DefaultOfflineURL.
	OfflineURL string

	Logger  observe.Logger
	Tracer  observe.Tracer
	Metrics observe.Metrics
}

// Engine answers requests cache-first.
type Engine struct {
	origin  *url.URL
	store   cache.Store
	version Versioner
	fetcher Fetcher
	control Controller
	offline cache.RequestKey

	logger  observe.Logger
	tracer  observe.Tracer
	metrics observe.Metrics

	flights singleflight.Group
	writes  sync.WaitGroup
}

// New validates cfg and returns an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Origin == nil || !cfg.Origin.IsAbs() {
		return nil, ErrMissingOrigin
	}
	if cfg.Store == nil {
		return nil, cache.ErrNilStore
	}
	if cfg.Version == nil {
		return nil, ErrMissingVersion
	}
	if cfg.Fetcher == nil {
		return nil, ErrMissingFetcher
	}
	if cfg.OfflineURL == "" {
		cfg.OfflineURL = DefaultOfflineURL
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observe.NopTracer()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.NopMetrics()
	}

	ref, err := url.Parse(cfg.OfflineURL)
	if err != nil {
		return nil, fmt.Errorf("intercept: offline url: %w", err)
	}
	offline, err := cache.KeyForURL(http.MethodGet, cfg.Origin.ResolveReference(ref))
	if err != nil {
		return nil, fmt.Errorf("intercept: offline url: %w", err)
	}

	return &Engine{
		origin:  cfg.Origin,
		store:   cfg.Store,
		version: cfg.Version,
		fetcher: cfg.Fetcher,
		control: cfg.Control,
		offline: offline,
		logger:  cfg.Logger.With(observe.F("component", "intercept")),
		tracer:  cfg.Tracer,
		metrics: cfg.Metrics,
	}, nil
}

// Origin returns the application origin.
func (e *Engine) Origin() *url.URL {
	return e.origin
}

// Handle resolves req to exactly one response.
//
// An error is only returned for requests that bypass the cache (non-GET or
// cross-origin) when the network fails; those are passed through untouched,
// including their failure. Eligible requests always get a response.
func (e *Engine) Handle(ctx context.Context, req *http.Request) (resp cache.Response, err error) {
	if req == nil || req.URL == nil {
		return cache.Response{}, ErrNilRequest
	}

	start := time.Now()
	outcome := observe.OutcomePassthrough

	ctx, span := e.tracer.Start(ctx, observe.SpanFetch,
		attribute.String("http.request.method", req.Method),
		attribute.String("url.full", req.URL.Redacted()),
	)
	defer func() {
		span.SetAttributes(attribute.String("offlinekit.outcome", outcome))
		e.tracer.End(span, err)
		e.metrics.RecordFetch(ctx, outcome, time.Since(start))
	}()

	if !cache.Eligible(req, e.origin) {
		return e.fetcher.Fetch(ctx, req)
	}
	if e.control != nil && !e.control.Controlling() {
		return e.fetcher.Fetch(ctx, req)
	}
	key, err := cache.KeyForRequest(req)
	if err != nil {
		return e.fetcher.Fetch(ctx, req)
	}

	gen := e.current(ctx)
	if gen != nil {
		hit, ok, err := gen.Match(ctx, key)
		if err != nil {
			e.logger.Warn(ctx, "cache lookup failed", observe.F("url", key.URL), observe.Err(err))
		}
		if ok {
			outcome = observe.OutcomeHit
			e.logger.Debug(ctx, "serving from cache", observe.F("url", key.URL))
			return hit, nil
		}
	}

	fresh, err := e.fetch(ctx, key, req, gen)
	if err != nil {
		e.logger.Warn(ctx, "network request failed", observe.F("url", key.URL), observe.Err(err))
		resp, outcome = e.fallback(ctx, req, gen)
		return resp, nil
	}

	outcome = observe.OutcomeUncacheable
	if cache.Cacheable(fresh) {
		outcome = observe.OutcomeNetwork
	}
	return fresh, nil
}

// current returns the generation named by the version, or nil when install
// has not created it. Lookups never create it. Store failures are logged and
// reported as nil so the request degrades to a miss.
func (e *Engine) current(ctx context.Context) cache.Generation {
	name := e.version.Version()
	exists, err := e.store.Has(ctx, name)
	if err != nil {
		e.logger.Warn(ctx, "cache unavailable", observe.Err(err))
		return nil
	}
	if !exists {
		return nil
	}
	gen, err := e.store.Open(ctx, name)
	if err != nil {
		e.logger.Warn(ctx, "cache unavailable", observe.Err(err))
		return nil
	}
	return gen
}

// fetch coalesces concurrent misses for the same key into one network call.
// The winning call schedules the write-back; every caller gets its own copy.
func (e *Engine) fetch(ctx context.Context, key cache.RequestKey, req *http.Request, gen cache.Generation) (cache.Response, error) {
	ch := e.flights.DoChan(key.String(), func() (any, error) {
		// Detached so one caller going away does not fail the others;
		// the fetcher's own deadline still bounds the call.
		resp, err := e.fetcher.Fetch(context.WithoutCancel(ctx), req)
		if err != nil {
			return cache.Response{}, err
		}
		if gen != nil && cache.Cacheable(resp) {
			e.writeBack(ctx, gen, key, resp.Clone())
		}
		return resp, nil
	})

	select {
	case <-ctx.Done():
		return cache.Response{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return cache.Response{}, res.Err
		}
		return res.Val.(cache.Response).Clone(), nil
	}
}

func (e *Engine) writeBack(ctx context.Context, gen cache.Generation, key cache.RequestKey, resp cache.Response) {
	ctx = context.WithoutCancel(ctx)
	e.writes.Add(1)
	go func() {
		defer e.writes.Done()
		if err := gen.Put(ctx, key, resp); err != nil {
			e.logger.Warn(ctx, "cache write failed", observe.F("url", key.URL), observe.Err(err))
		}
	}()
}

func (e *Engine) fallback(ctx context.Context, req *http.Request, gen cache.Generation) (cache.Response, string) {
	if cache.IsNavigation(req) && gen != nil {
		page, ok, err := gen.Match(ctx, e.offline)
		if err != nil {
			e.logger.Warn(ctx, "offline page lookup failed", observe.Err(err))
		}
		if ok {
			return page, observe.OutcomeOfflinePage
		}
		e.logger.Warn(ctx, "offline page not cached", observe.F("url", e.offline.URL))
	}
	return cache.Unavailable(), observe.OutcomeUnavailable
}

// Flush waits for background cache writes started so far.
func (e *Engine) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.writes.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
