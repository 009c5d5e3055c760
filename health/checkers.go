package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/offlinekit/cache"
	"github.com/jonwraymond/offlinekit/lifecycle"
)

// StoreChecker lists cache generations.
type StoreChecker struct {
	store cache.Store
}

func NewStoreChecker(store cache.Store) *StoreChecker {
	return &StoreChecker{store: store}
}

func (c *StoreChecker) Name() string { return "cache" }

func (c *StoreChecker) Check(ctx context.Context) Result {
	names, err := c.store.Names(ctx)
	if err != nil {
		return Unhealthy("cache store unavailable", err)
	}
	return Healthy(fmt.Sprintf("%d generation(s)", len(names))).
		WithDetails(map[string]any{"generations": names})
}

// Depther reports how many items are waiting.
type Depther interface {
	Len(ctx context.Context) (int, error)
}

// QueueChecker reports the offline queue depth. A backlog at or above warn
// is degraded, since it means replay is not keeping up.
type QueueChecker struct {
	queue Depther
	warn  int
}

// NewQueueChecker returns a QueueChecker. warn <= 0 disables the backlog
// warning.
func NewQueueChecker(q Depther, warn int) *QueueChecker {
	return &QueueChecker{queue: q, warn: warn}
}

func (c *QueueChecker) Name() string { return "queue" }

func (c *QueueChecker) Check(ctx context.Context) Result {
	n, err := c.queue.Len(ctx)
	if err != nil {
		return Unhealthy("offline queue unavailable", err)
	}
	details := map[string]any{"depth": n}
	if c.warn > 0 && n >= c.warn {
		return Degraded(fmt.Sprintf("%d deferred writes pending", n)).WithDetails(details)
	}
	return Healthy(fmt.Sprintf("%d deferred writes pending", n)).WithDetails(details)
}

// Pinger is a database handle.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewPingChecker checks that p answers Ping.
func NewPingChecker(name string, p Pinger) *CheckerFunc {
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		if err := p.Ping(ctx); err != nil {
			return Unhealthy(name+" unreachable", err)
		}
		return Healthy(name + " reachable")
	})
}

// LifecycleChecker maps the worker phase to a status: activated is
// healthy, a worker still installing or waiting is degraded, and a
// redundant or never-installed worker is unhealthy.
type LifecycleChecker struct {
	state *lifecycle.State
}

func NewLifecycleChecker(state *lifecycle.State) *LifecycleChecker {
	return &LifecycleChecker{state: state}
}

func (c *LifecycleChecker) Name() string { return "lifecycle" }

func (c *LifecycleChecker) Check(context.Context) Result {
	snap := c.state.Snapshot()
	details := map[string]any{
		"version":     snap.Version,
		"phase":       string(snap.Phase),
		"controlling": snap.Controlling,
	}

	msg := fmt.Sprintf("%s %s", snap.Version, snap.Phase)
	switch snap.Phase {
	case lifecycle.PhaseActivated:
		return Healthy(msg).WithDetails(details)
	case lifecycle.PhaseInstalling, lifecycle.PhaseInstalled, lifecycle.PhaseActivating:
		return Degraded(msg).WithDetails(details)
	default:
		return Unhealthy(msg, nil).WithDetails(details)
	}
}

var (
	_ Checker = (*StoreChecker)(nil)
	_ Checker = (*QueueChecker)(nil)
	_ Checker = (*LifecycleChecker)(nil)
)
