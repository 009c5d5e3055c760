// Package offlined runs the offline proxy process.
package offlined

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/offlinekit/auth"
	"github.com/jonwraymond/offlinekit/cache"
	"github.com/jonwraymond/offlinekit/cache/diskstore"
	"github.com/jonwraymond/offlinekit/config"
	"github.com/jonwraymond/offlinekit/health"
	"github.com/jonwraymond/offlinekit/messaging"
	"github.com/jonwraymond/offlinekit/netfetch"
	"github.com/jonwraymond/offlinekit/observe"
	"github.com/jonwraymond/offlinekit/queue"
	"github.com/jonwraymond/offlinekit/queue/sqlite"
	"github.com/jonwraymond/offlinekit/resilience"
	"github.com/jonwraymond/offlinekit/worker"
)

const serviceName = "offlined"

// App is a fully wired offline proxy.
type App struct {
	Worker  *worker.Worker
	Handler http.Handler

	observer observe.Observer
	logger   observe.Logger
	closers  []func() error
}

// Build opens the stores and wires the worker described by cfg. The caller
// must Close the returned App.
func Build(ctx context.Context, cfg config.Config) (_ *App, err error) {
	obs, err := observe.NewObserver(ctx, cfg.Observe(serviceName))
	if err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}
	app := &App{observer: obs, logger: obs.Logger()}
	defer func() {
		if err != nil {
			_ = app.Close(context.WithoutCancel(ctx))
		}
	}()

	origin, err := cfg.OriginURL()
	if err != nil {
		return nil, err
	}

	store, err := app.openCache(cfg.CachePath)
	if err != nil {
		return nil, err
	}
	qstore, pinger, err := app.openQueue(ctx, cfg.QueuePath)
	if err != nil {
		return nil, err
	}

	fetcher, err := netfetch.New(netfetch.Config{Origin: origin, Timeout: cfg.FetchTimeout})
	if err != nil {
		return nil, err
	}
	ask, err := queue.NewAskClient(cfg.AskURL(), queue.WithExecutor(app.replayExecutor(cfg)))
	if err != nil {
		return nil, err
	}

	w, err := worker.New(worker.Config{
		Version:             cfg.Version,
		Origin:              origin,
		Precache:            cfg.PrecacheList(),
		OfflineURL:          cfg.OfflineURL,
		Store:               store,
		Fetcher:             fetcher,
		Queue:               qstore,
		Replayer:            ask,
		PrecacheConcurrency: cfg.PrecacheConcurrency,
		Logger:              app.logger,
		Tracer:              obs.Tracer(),
		Metrics:             obs.Metrics(),
	})
	if err != nil {
		return nil, err
	}
	app.Worker = w
	app.closers = append([]func() error{func() error { return w.Close(context.WithoutCancel(ctx)) }}, app.closers...)

	agg := health.NewAggregator()
	agg.Register(health.NewStoreChecker(store))
	agg.Register(health.NewQueueChecker(w.Queue(), cfg.QueueWarnDepth))
	agg.Register(health.NewLifecycleChecker(w.State()))
	if pinger != nil {
		agg.Register(health.NewPingChecker("queue_db", pinger))
	}

	mux := http.NewServeMux()
	mux.Handle("/", w.Handler())
	mux.Handle(messaging.ControlPath, w.Messenger().ControlHandler(controlOptions(cfg)...))
	mux.Handle(worker.AskPath, w.AskHandler())
	health.RegisterHandlers(mux, agg)
	if cfg.MetricsExporter == "prometheus" {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	app.Handler = mux
	return app, nil
}

func (a *App) openCache(path string) (cache.Store, error) {
	if path == "" {
		return cache.NewMemoryStore(), nil
	}
	s, err := diskstore.Open(path)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, s.Close)
	return s, nil
}

func (a *App) openQueue(ctx context.Context, path string) (queue.Store, health.Pinger, error) {
	if path == "" {
		return queue.NewMemoryStore(), nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("queue dir: %w", err)
	}
	s, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, s.Close)
	return s, s, nil
}

func (a *App) replayExecutor(cfg config.Config) *resilience.Executor {
	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts: cfg.ReplayAttempts,
		Jitter:      true,
		RetryIf:     queue.Retryable,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			a.logger.Debug(context.Background(), "retrying replay",
				observe.F("attempt", attempt),
				observe.F("delay", delay.String()),
				observe.Err(err),
			)
		},
	})
	return resilience.NewExecutor(
		resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
		resilience.WithRetry(retry),
		resilience.WithTimeout(cfg.FetchTimeout),
	)
}

func controlOptions(cfg config.Config) []messaging.HandlerOption {
	opts := []messaging.HandlerOption{
		messaging.WithLimiter(resilience.NewLimiter(cfg.ControlRate, cfg.ControlBurst)),
	}
	if !cfg.ControlAuthConfigured() {
		return opts
	}

	var authns []auth.Authenticator
	if len(cfg.ControlKeyHashes) > 0 {
		authns = append(authns, auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, cfg.ControlKeyHashes...))
	}
	if cfg.ControlJWTSecret != "" {
		authns = append(authns, auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret: []byte(cfg.ControlJWTSecret),
			Issuer: cfg.ControlJWTIssuer,
		}))
	}
	return append(opts, messaging.WithAuthenticator(auth.NewComposite(authns...)))
}

// Close releases everything Build opened, worker first and telemetry last.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.observer != nil {
		if err := a.observer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run serves cfg.Addr until ctx ends. The worker is installed in the
// background and the queue is synced every cfg.SyncInterval.
func Run(ctx context.Context, cfg config.Config) error {
	app, err := Build(ctx, cfg)
	if err != nil {
		return err
	}
	log := app.logger

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", observe.F("addr", cfg.Addr), observe.F("origin", cfg.Origin))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	go func() {
		if err := app.Worker.Start(ctx).Wait(ctx); err != nil && ctx.Err() == nil {
			log.Error(ctx, "worker failed to start", observe.Err(err))
		}
	}()
	if cfg.SyncInterval > 0 {
		go app.syncLoop(ctx, cfg.SyncInterval)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	log.Info(shutdownCtx, "shutting down")
	return errors.Join(runErr, srv.Shutdown(shutdownCtx), app.Close(shutdownCtx))
}

func (a *App) syncLoop(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := a.Worker.Sync(ctx, worker.SyncTag).Wait(ctx); err != nil && ctx.Err() == nil {
				a.logger.Warn(ctx, "background sync failed", observe.Err(err))
			}
		}
	}
}
