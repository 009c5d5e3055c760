package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/offlinekit/cache"
	"github.com/jonwraymond/offlinekit/observe"
)

// DefaultConcurrency bounds parallel precache fetches.
const DefaultConcurrency = 4

// Sentinel errors.
var (
	ErrMissingState   = errors.New("lifecycle: state is required")
	ErrMissingFetcher = errors.New("lifecycle: fetcher is required")
	ErrPrecache       = errors.New("lifecycle: precache failed")
	ErrRedundant      = errors.New("lifecycle: worker is redundant")
)

// Fetcher downloads precache assets.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (cache.Response, error)
	Resolve(rawURL string) string
}

// Clients takes control of every open client once the worker activates.
type Clients interface {
	Claim(ctx context.Context) error
}

// Config configures a Manager.
type Config struct {
	State   *State
	Store   cache.Store
	Fetcher Fetcher

	// Clients is optional.
	Clients Clients

	// Concurrency bounds parallel precache fetches. Default: DefaultConcurrency.
	Concurrency int

	Logger  observe.Logger
	Tracer  observe.Tracer
	Metrics observe.Metrics
}

// Manager runs install and activate. Both are serialized.
type Manager struct {
	state       *State
	store       cache.Store
	fetcher     Fetcher
	clients     Clients
	concurrency int

	logger  observe.Logger
	tracer  observe.Tracer
	metrics observe.Metrics

	mu sync.Mutex
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.State == nil {
		return nil, ErrMissingState
	}
	if cfg.Store == nil {
		return nil, cache.ErrNilStore
	}
	if cfg.Fetcher == nil {
		return nil, ErrMissingFetcher
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
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

	return &Manager{
		state:       cfg.State,
		store:       cfg.Store,
		fetcher:     cfg.Fetcher,
		clients:     cfg.Clients,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger.With(observe.F("component", "lifecycle")),
		tracer:      cfg.Tracer,
		metrics:     cfg.Metrics,
	}, nil
}

// State returns the worker state the manager drives.
func (m *Manager) State() *State {
	return m.state
}

// Install precaches every URL into the current generation. Either all of them
// are stored or none are: a failure leaves no generation behind that this
// call created, marks the worker redundant and returns an error wrapping
// ErrPrecache. Success requests skip-waiting.
func (m *Manager) Install(ctx context.Context, precache []string) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	version := m.state.Version()
	ctx, span := m.tracer.Start(ctx, observe.SpanInstall,
		attribute.String("cache.version", version),
		attribute.Int("precache.assets", len(precache)),
	)
	defer func() {
		m.tracer.End(span, err)
		m.metrics.RecordPrecache(ctx, len(precache), err)
	}()

	m.state.setPhase(PhaseInstalling)
	m.logger.Info(ctx, "installing", observe.F("version", version))

	existed, err := m.store.Has(ctx, version)
	if err != nil {
		return m.failInstall(ctx, version, false, fmt.Errorf("%w: %w", ErrPrecache, err))
	}

	m.logger.Info(ctx, "caching files", observe.F("count", len(precache)))
	keys, responses, err := m.fetchAll(ctx, precache)
	if err != nil {
		return m.failInstall(ctx, version, false, err)
	}

	gen, err := m.store.Open(ctx, version)
	if err != nil {
		return m.failInstall(ctx, version, !existed, fmt.Errorf("%w: open %q: %w", ErrPrecache, version, err))
	}
	for i, key := range keys {
		if err := gen.Put(ctx, key, responses[i]); err != nil {
			return m.failInstall(ctx, version, !existed, fmt.Errorf("%w: store %s: %w", ErrPrecache, key.URL, err))
		}
	}

	m.state.setPhase(PhaseInstalled)
	m.state.requestSkipWaiting()
	m.logger.Info(ctx, "installation complete", observe.F("version", version))
	return nil
}

// fetchAll downloads every asset concurrently. The first failure cancels the
// rest. Results keep the order of urls; duplicates collapse to one entry.
func (m *Manager) fetchAll(ctx context.Context, urls []string) ([]cache.RequestKey, []cache.Response, error) {
	var keys []cache.RequestKey
	seen := make(map[cache.RequestKey]bool, len(urls))
	for _, raw := range urls {
		key, err := cache.NewRequestKey(http.MethodGet, m.fetcher.Resolve(raw))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %w", ErrPrecache, raw, err)
		}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}

	responses := make([]cache.Response, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for i, key := range keys {
		g.Go(func() error {
			resp, err := m.fetcher.Get(gctx, key.URL)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrPrecache, key.URL, err)
			}
			if !resp.OK() {
				return fmt.Errorf("%w: %s: status %d", ErrPrecache, key.URL, resp.Status)
			}
			responses[i] = resp
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return keys, responses, nil
}

func (m *Manager) failInstall(ctx context.Context, version string, cleanup bool, cause error) error {
	if cleanup {
		if _, err := m.store.Delete(context.WithoutCancel(ctx), version); err != nil {
			m.logger.Warn(ctx, "failed to remove partial cache", observe.F("version", version), observe.Err(err))
		}
	}
	m.state.setPhase(PhaseRedundant)
	m.logger.Error(ctx, "installation failed", observe.F("version", version), observe.Err(cause))
	return cause
}

// Activate deletes every generation except the current one and claims all
// clients. It is idempotent. Failed deletions are logged and returned joined;
// the worker still becomes active.
func (m *Manager) Activate(ctx context.Context) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activateLocked(ctx)
}

func (m *Manager) activateLocked(ctx context.Context) (err error) {
	if m.state.Phase() == PhaseRedundant {
		return ErrRedundant
	}

	start := time.Now()
	version := m.state.Version()
	ctx, span := m.tracer.Start(ctx, observe.SpanActivate, attribute.String("cache.version", version))
	defer func() { m.tracer.End(span, err) }()

	m.state.setPhase(PhaseActivating)
	m.logger.Info(ctx, "activating", observe.F("version", version))

	var errs []error
	names, err := m.store.Names(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("lifecycle: list generations: %w", err))
	}
	for _, name := range names {
		if name == version {
			continue
		}
		m.logger.Info(ctx, "deleting old cache", observe.F("name", name))
		if _, err := m.store.Delete(ctx, name); err != nil {
			m.logger.Warn(ctx, "failed to delete old cache", observe.F("name", name), observe.Err(err))
			errs = append(errs, fmt.Errorf("lifecycle: delete %q: %w", name, err))
		}
	}

	if m.clients != nil {
		if err := m.clients.Claim(ctx); err != nil {
			m.logger.Warn(ctx, "failed to claim clients", observe.Err(err))
			errs = append(errs, fmt.Errorf("lifecycle: claim clients: %w", err))
		}
	}

	m.state.activated()
	m.logger.Info(ctx, "activated", observe.F("version", version), observe.F("took", time.Since(start)))
	return errors.Join(errs...)
}

// SkipWaiting records a promotion request. A worker that is installed and
// waiting activates immediately; otherwise only the flag is set.
func (m *Manager) SkipWaiting(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.requestSkipWaiting() != PhaseInstalled {
		return nil
	}
	m.logger.Info(ctx, "skip waiting requested, activating")
	return m.activateLocked(ctx)
}
