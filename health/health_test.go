package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/jonwraymond/offlinekit/cache"
	"github.com/jonwraymond/offlinekit/lifecycle"
)

type depth struct {
	n   int
	err error
}

func (d depth) Len(context.Context) (int, error) { return d.n, d.err }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type brokenStore struct{ cache.Store }

func (brokenStore) Names(context.Context) ([]string, error) {
	return nil, errors.New("disk gone")
}

type okFetcher struct{}

func (okFetcher) Get(_ context.Context, url string) (cache.Response, error) {
	return cache.Response{URL: url, Status: http.StatusOK, Body: []byte("x"), Type: cache.TypeBasic}, nil
}

func (okFetcher) Resolve(raw string) string { return "http://app.test" + raw }

func TestQueueChecker(t *testing.T) {
	tests := []struct {
		name string
		q    depth
		warn int
		want Status
	}{
		{"empty", depth{}, 10, StatusHealthy},
		{"below warn", depth{n: 9}, 10, StatusHealthy},
		{"backlog", depth{n: 10}, 10, StatusDegraded},
		{"warning off", depth{n: 500}, 0, StatusHealthy},
		{"store error", depth{err: errors.New("locked")}, 10, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewQueueChecker(tt.q, tt.warn).Check(context.Background())
			if got.Status != tt.want {
				t.Errorf("status = %v, want %v (%s)", got.Status, tt.want, got.Message)
			}
		})
	}
}

func TestStoreChecker(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	if _, err := store.Open(ctx, "v1"); err != nil {
		t.Fatal(err)
	}

	got := NewStoreChecker(store).Check(ctx)
	if got.Status != StatusHealthy {
		t.Fatalf("status = %v", got.Status)
	}
	if names, _ := got.Details["generations"].([]string); !slices.Equal(names, []string{"v1"}) {
		t.Errorf("generations = %v", got.Details["generations"])
	}

	if got := NewStoreChecker(brokenStore{}).Check(ctx); got.Status != StatusUnhealthy || got.Error == nil {
		t.Errorf("broken store = %+v", got)
	}
}

func TestPingChecker(t *testing.T) {
	ctx := context.Background()
	if got := NewPingChecker("queue_db", pinger{}).Check(ctx); got.Status != StatusHealthy {
		t.Errorf("ok ping = %v", got.Status)
	}
	if got := NewPingChecker("queue_db", pinger{errors.New("closed")}).Check(ctx); got.Status != StatusUnhealthy {
		t.Errorf("failed ping = %v", got.Status)
	}
}

func TestLifecycleChecker(t *testing.T) {
	ctx := context.Background()
	state := lifecycle.NewState("agriassist-v1.0.0")
	c := NewLifecycleChecker(state)

	if got := c.Check(ctx); got.Status != StatusUnhealthy || !errors.Is(got.Error, ErrCheckFailed) {
		t.Fatalf("parsed = %+v", got)
	}

	m, err := lifecycle.NewManager(lifecycle.Config{State: state, Store: cache.NewMemoryStore(), Fetcher: okFetcher{}})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Install(ctx, []string{"/"}); err != nil {
		t.Fatal(err)
	}
	if got := c.Check(ctx); got.Status != StatusDegraded {
		t.Errorf("installed = %v", got.Status)
	}
	if err := m.Activate(ctx); err != nil {
		t.Fatal(err)
	}
	got := c.Check(ctx)
	if got.Status != StatusHealthy || got.Details["controlling"] != true {
		t.Errorf("activated = %+v", got)
	}
}

func TestAggregator(t *testing.T) {
	agg := NewAggregator(50 * time.Millisecond)
	agg.Register(NewCheckerFunc("a", func(context.Context) Result { return Healthy("") }))
	agg.Register(NewCheckerFunc("b", func(context.Context) Result { return Degraded("") }))
	agg.Register(NewCheckerFunc("slow", func(ctx context.Context) Result {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return Healthy("late")
	}))
	agg.Register(NewCheckerFunc("a", func(context.Context) Result { return Healthy("replaced") }))

	if got := agg.Names(); !slices.Equal(got, []string{"a", "b", "slow"}) {
		t.Errorf("Names = %v", got)
	}

	results := agg.CheckAll(context.Background())
	if len(results) != 3 {
		t.Fatalf("results = %d", len(results))
	}
	if results["a"].Message != "replaced" {
		t.Errorf("a = %+v", results["a"])
	}
	if !errors.Is(results["slow"].Error, ErrCheckTimeout) {
		t.Errorf("slow = %+v", results["slow"])
	}
	if got := Overall(results); got != StatusUnhealthy {
		t.Errorf("Overall = %v", got)
	}

	if _, err := agg.Check(context.Background(), "missing"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("Check(missing) err = %v", err)
	}
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]Result
		want Status
	}{
		{"none", nil, StatusHealthy},
		{"healthy", map[string]Result{"a": Healthy("")}, StatusHealthy},
		{"degraded", map[string]Result{"a": Healthy(""), "b": Degraded("")}, StatusDegraded},
		{"unhealthy", map[string]Result{"a": Degraded(""), "b": Unhealthy("", nil)}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overall(tt.in); got != tt.want {
				t.Errorf("Overall = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandlers(t *testing.T) {
	tests := []struct {
		name   string
		q      depth
		ready  int
		status string
	}{
		{"healthy", depth{}, http.StatusOK, "healthy"},
		{"degraded", depth{n: 5}, http.StatusOK, "degraded"},
		{"unhealthy", depth{err: errors.New("x")}, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator()
			agg.Register(NewQueueChecker(tt.q, 5))
			mux := http.NewServeMux()
			RegisterHandlers(mux, agg)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != http.StatusOK {
				t.Errorf("healthz = %d", rec.Code)
			}

			rec = httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tt.ready {
				t.Errorf("readyz = %d, want %d", rec.Code, tt.ready)
			}

			rec = httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			var rep Report
			if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if rep.Status != tt.status || rep.Checks["queue"].Status != tt.status {
				t.Errorf("report = %+v", rep)
			}
		})
	}
}
