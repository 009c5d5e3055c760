package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/jonwraymond/offlinekit/cache"
	"github.com/jonwraymond/offlinekit/intercept"
	"github.com/jonwraymond/offlinekit/lifecycle"
	"github.com/jonwraymond/offlinekit/messaging"
	"github.com/jonwraymond/offlinekit/observe"
	"github.com/jonwraymond/offlinekit/queue"
)

// SyncTag is the only sync registration that replays the queue.
const SyncTag = "background-sync"

// Sentinel errors.
var (
	ErrMissingVersion = errors.New("worker: version is required")
	ErrMissingFetcher = errors.New("worker: fetcher is required")
	ErrClosed         = errors.New("worker: closed")
)

// Fetcher reaches the network for both precaching and interception.
// *netfetch.Fetcher implements it.
type Fetcher interface {
	lifecycle.Fetcher
	intercept.Fetcher
}

// Config configures a Worker.
type Config struct {
	Version    string
	Origin     *url.URL
	Precache   []string
	OfflineURL string // always precached; default intercept.DefaultOfflineURL

	Store    cache.Store
	Fetcher  Fetcher
	Queue    queue.Store
	Replayer queue.Replayer

	// Notifier and Windows default to a LogHost on Logger.
	Notifier messaging.Notifier
	Windows  messaging.Windows

	PrecacheConcurrency int

	Logger  observe.Logger
	Tracer  observe.Tracer
	Metrics observe.Metrics
}

// Worker is one running version of the offline layer.
type Worker struct {
	state     *lifecycle.State
	store     cache.Store
	manager   *lifecycle.Manager
	engine    *intercept.Engine
	queue     *queue.Queue
	messenger *messaging.Messenger
	precache  []string
	logger    observe.Logger

	claims atomic.Int64

	mu     sync.Mutex
	closed bool
	tasks  sync.WaitGroup
}

// New wires the components described by cfg.
func New(cfg Config) (*Worker, error) {
	if cfg.Version == "" {
		return nil, ErrMissingVersion
	}
	if cfg.Fetcher == nil {
		return nil, ErrMissingFetcher
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
	if cfg.Notifier == nil || cfg.Windows == nil {
		host := messaging.NewLogHost(cfg.Logger)
		if cfg.Notifier == nil {
			cfg.Notifier = host
		}
		if cfg.Windows == nil {
			cfg.Windows = host
		}
	}

	if cfg.OfflineURL == "" {
		cfg.OfflineURL = intercept.DefaultOfflineURL
	}
	// The offline document must be cached for the navigation fallback.
	precache := slices.Clone(cfg.Precache)
	if !slices.Contains(precache, cfg.OfflineURL) {
		precache = append(precache, cfg.OfflineURL)
	}

	w := &Worker{
		state:    lifecycle.NewState(cfg.Version),
		store:    cfg.Store,
		precache: precache,
		logger:   cfg.Logger.With(observe.F("component", "worker"), observe.F("version", cfg.Version)),
	}

	var err error
	w.manager, err = lifecycle.NewManager(lifecycle.Config{
		State:       w.state,
		Store:       cfg.Store,
		Fetcher:     cfg.Fetcher,
		Clients:     (*clients)(w),
		Concurrency: cfg.PrecacheConcurrency,
		Logger:      cfg.Logger,
		Tracer:      cfg.Tracer,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}

	w.engine, err = intercept.New(intercept.Config{
		Origin:     cfg.Origin,
		Store:      cfg.Store,
		Version:    w.state,
		Fetcher:    cfg.Fetcher,
		Control:    w.state,
		OfflineURL: cfg.OfflineURL,
		Logger:     cfg.Logger,
		Tracer:     cfg.Tracer,
		Metrics:    cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}

	w.queue, err = queue.New(queue.Config{
		Store:    cfg.Queue,
		Replayer: cfg.Replayer,
		Logger:   cfg.Logger,
		Tracer:   cfg.Tracer,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}

	w.messenger, err = messaging.New(messaging.Config{
		Notifier: cfg.Notifier,
		Windows:  cfg.Windows,
		Promoter: w.manager,
		Version:  w.state,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}
	return w, nil
}

func (w *Worker) State() *lifecycle.State         { return w.state }
func (w *Worker) Engine() *intercept.Engine       { return w.engine }
func (w *Worker) Queue() *queue.Queue             { return w.queue }
func (w *Worker) Messenger() *messaging.Messenger { return w.messenger }

// Clients returns how many times the worker has claimed its clients.
func (w *Worker) Clients() int64 {
	return w.claims.Load()
}

// Handler serves requests cache-first in front of the origin.
func (w *Worker) Handler() http.Handler {
	return w.engine
}

// Client returns an http.Client whose requests go through the worker.
func (w *Worker) Client() *http.Client {
	return &http.Client{Transport: w.engine}
}

// Start installs the precache list and, once promotion is requested,
// activates.
func (w *Worker) Start(ctx context.Context) *Task {
	return w.run(ctx, func(ctx context.Context) error {
		if err := w.manager.Install(ctx, w.precache); err != nil {
			return err
		}
		if !w.state.SkipWaitingRequested() {
			return nil
		}
		return w.manager.Activate(ctx)
	})
}

// Sync replays the offline queue when tag is SyncTag. Other tags settle
// immediately.
func (w *Worker) Sync(ctx context.Context, tag string) *Task {
	if tag != SyncTag {
		w.logger.Debug(ctx, "ignoring sync", observe.F("tag", tag))
		return settled(nil)
	}
	return w.run(ctx, func(ctx context.Context) error {
		report, err := w.queue.Sync(ctx)
		if err != nil {
			return err
		}
		if report.Replayed+report.Failed > 0 {
			w.logger.Info(ctx, "background sync finished",
				observe.F("replayed", report.Replayed),
				observe.F("failed", report.Failed),
			)
		}
		return nil
	})
}

// Push shows the notification for payload. A nil payload uses the default
// body.
func (w *Worker) Push(ctx context.Context, payload []byte) *Task {
	return w.run(ctx, func(ctx context.Context) error {
		_, err := w.messenger.Push(ctx, payload)
		return err
	})
}

// NotificationClick resolves a click on n.
func (w *Worker) NotificationClick(ctx context.Context, n messaging.Notification, action string) *Task {
	return w.run(ctx, func(ctx context.Context) error {
		_, err := w.messenger.Interact(ctx, n, action)
		return err
	})
}

// Message handles a control message; replies go to reply.
func (w *Worker) Message(ctx context.Context, msg *messaging.ControlMessage, reply messaging.ReplyPort) *Task {
	return w.run(ctx, func(ctx context.Context) error {
		return w.messenger.HandleControl(ctx, msg, reply)
	})
}

func (w *Worker) run(ctx context.Context, fn func(context.Context) error) *Task {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return settled(ErrClosed)
	}
	w.tasks.Add(1)
	w.mu.Unlock()

	t := newTask()
	go func() {
		defer w.tasks.Done()
		t.finish(fn(ctx))
	}()
	return t
}

// Close refuses new events and waits for running tasks and pending cache
// writes.
func (w *Worker) Close(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return w.engine.Flush(ctx)
}

// clients is the lifecycle.Clients view of a Worker.
type clients Worker

func (c *clients) Claim(ctx context.Context) error {
	(*Worker)(c).claims.Add(1)
	(*Worker)(c).logger.Info(ctx, "claiming clients")
	return nil
}
