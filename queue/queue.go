package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/offlinekit/observe"
)

// Sentinel errors.
var (
	ErrNilStore       = errors.New("queue: store is nil")
	ErrNilReplayer    = errors.New("queue: replayer is nil")
	ErrInvalidPayload = errors.New("queue: payload must be valid JSON")
	ErrItemNotFound   = errors.New("queue: item not found")
)

// Item is one deferred write.
type Item struct {
	ID         string          `json:"id"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// ResponseRecord is the stored result of a successfully replayed item.
type ResponseRecord struct {
	ItemID     string    `json:"item_id"`
	Result     string    `json:"result"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Store persists queued items and replay results.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Ordering: List returns items oldest first.
// - Complete stores rec and removes its item as one step; a missing item
//   yields ErrItemNotFound and stores nothing.
type Store interface {
	Append(ctx context.Context, item Item) error
	List(ctx context.Context) ([]Item, error)
	Len(ctx context.Context) (int, error)
	Remove(ctx context.Context, id string) (bool, error)
	Complete(ctx context.Context, rec ResponseRecord) error
	Responses(ctx context.Context) ([]ResponseRecord, error)
}

// Replayer submits one item to the network and returns its result.
type Replayer interface {
	Replay(ctx context.Context, item Item) (string, error)
}

// Report summarizes one Sync.
type Report struct {
	Replayed int
	Failed   int
}

// Config configures a Queue.
type Config struct {
	Store    Store
	Replayer Replayer

	Logger  observe.Logger
	Tracer  observe.Tracer
	Metrics observe.Metrics

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// Queue is the offline mutation queue.
type Queue struct {
	store    Store
	replayer Replayer
	logger   observe.Logger
	tracer   observe.Tracer
	metrics  observe.Metrics
	now      func() time.Time
	newID    func() string

	syncMu sync.Mutex
}

// New validates cfg and returns a Queue.
func New(cfg Config) (*Queue, error) {
	if cfg.Store == nil {
		return nil, ErrNilStore
	}
	if cfg.Replayer == nil {
		return nil, ErrNilReplayer
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
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	return &Queue{
		store:    cfg.Store,
		replayer: cfg.Replayer,
		logger:   cfg.Logger.With(observe.F("component", "queue")),
		tracer:   cfg.Tracer,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
		newID:    cfg.NewID,
	}, nil
}

// Enqueue stores payload for later replay.
func (q *Queue) Enqueue(ctx context.Context, payload json.RawMessage) (Item, error) {
	if !json.Valid(payload) {
		return Item{}, ErrInvalidPayload
	}
	item := q.newItem(payload)
	if err := q.append(ctx, item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// Submit is the live write path. It sends payload immediately; when the
// remote is unreachable the payload is queued under the same ID and the
// returned Item is non-nil. Any other failure is returned as is.
func (q *Queue) Submit(ctx context.Context, payload json.RawMessage) (string, *Item, error) {
	if !json.Valid(payload) {
		return "", nil, ErrInvalidPayload
	}
	item := q.newItem(payload)

	result, err := q.replayer.Replay(ctx, item)
	if err == nil {
		return result, nil, nil
	}
	if !Offline(err) {
		return "", nil, err
	}

	if qerr := q.append(ctx, item); qerr != nil {
		return "", nil, errors.Join(err, qerr)
	}
	return "", &item, nil
}

func (q *Queue) newItem(payload json.RawMessage) Item {
	return Item{
		ID:         q.newID(),
		Payload:    append(json.RawMessage(nil), payload...),
		EnqueuedAt: q.now(),
	}
}

func (q *Queue) append(ctx context.Context, item Item) error {
	if err := q.store.Append(ctx, item); err != nil {
		return fmt.Errorf("queue: append: %w", err)
	}
	q.logger.Info(ctx, "queued offline request", observe.F("item_id", item.ID))
	return nil
}

// Sync replays every queued item oldest first. A failing item is logged and
// kept; it never stops the batch. Only a failure to read the queue, or ctx
// ending, is returned. Concurrent calls run one after another.
func (q *Queue) Sync(ctx context.Context) (report Report, err error) {
	q.syncMu.Lock()
	defer q.syncMu.Unlock()

	ctx, span := q.tracer.Start(ctx, observe.SpanSync)
	defer func() {
		span.SetAttributes(
			attribute.Int("queue.replayed", report.Replayed),
			attribute.Int("queue.failed", report.Failed),
		)
		q.tracer.End(span, err)
	}()

	items, err := q.store.List(ctx)
	if err != nil {
		q.logger.Error(ctx, "background sync failed", observe.Err(err))
		return report, fmt.Errorf("queue: list: %w", err)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if q.replay(ctx, item) {
			report.Replayed++
		} else {
			report.Failed++
		}
	}

	q.logger.Info(ctx, "background sync complete",
		observe.F("replayed", report.Replayed),
		observe.F("failed", report.Failed),
	)
	return report, nil
}

func (q *Queue) replay(ctx context.Context, item Item) (ok bool) {
	var err error
	defer func() { q.metrics.RecordReplay(ctx, err) }()

	result, err := q.replayer.Replay(ctx, item)
	if err != nil {
		q.logger.Warn(ctx, "failed to sync request", observe.F("item_id", item.ID), observe.Err(err))
		return false
	}

	err = q.store.Complete(ctx, ResponseRecord{
		ItemID:     item.ID,
		Result:     result,
		RecordedAt: q.now(),
	})
	if err != nil {
		q.logger.Warn(ctx, "failed to record replay result", observe.F("item_id", item.ID), observe.Err(err))
		return false
	}
	return true
}

// Len returns the number of queued items.
func (q *Queue) Len(ctx context.Context) (int, error) {
	return q.store.Len(ctx)
}

// Items lists queued items oldest first.
func (q *Queue) Items(ctx context.Context) ([]Item, error) {
	return q.store.List(ctx)
}

// Responses lists stored replay results.
func (q *Queue) Responses(ctx context.Context) ([]ResponseRecord, error) {
	return q.store.Responses(ctx)
}
