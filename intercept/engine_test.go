package intercept

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/offlinekit/cache"
)

const origin = "https://app.test"

type staticVersion string

func (v staticVersion) Version() string { return string(v) }

// stubFetcher answers from a table keyed by URL; unknown URLs fail as offline.
type stubFetcher struct {
	mu      sync.Mutex
	answers map[string]cache.Response
	calls   atomic.Int32
	gate    chan struct{}
}

var errOffline = errors.New("dial tcp: network is unreachable")

func (f *stubFetcher) Fetch(ctx context.Context, req *http.Request) (cache.Response, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	resp, ok := f.answers[req.URL.String()]
	f.mu.Unlock()
	if !ok {
		return cache.Response{}, errOffline
	}
	return resp.Clone(), nil
}

// spyStore counts every store and generation call.
type spyStore struct {
	cache.Store
	ops atomic.Int32
}

func (s *spyStore) Has(ctx context.Context, name string) (bool, error) {
	s.ops.Add(1)
	return s.Store.Has(ctx, name)
}

func (s *spyStore) Open(ctx context.Context, name string) (cache.Generation, error) {
	s.ops.Add(1)
	gen, err := s.Store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &spyGeneration{Generation: gen, ops: &s.ops}, nil
}

type spyGeneration struct {
	cache.Generation
	ops *atomic.Int32
}

func (g *spyGeneration) Match(ctx context.Context, key cache.RequestKey) (cache.Response, bool, error) {
	g.ops.Add(1)
	return g.Generation.Match(ctx, key)
}

func (g *spyGeneration) Put(ctx context.Context, key cache.RequestKey, resp cache.Response) error {
	g.ops.Add(1)
	return g.Generation.Put(ctx, key, resp)
}

// brokenStore fails every call.
type brokenStore struct{ cache.Store }

func (brokenStore) Has(context.Context, string) (bool, error) {
	return false, errors.New("quota exceeded")
}

func (brokenStore) Open(context.Context, string) (cache.Generation, error) {
	return nil, errors.New("quota exceeded")
}

// switchControl reports the value it holds.
type switchControl struct{ on atomic.Bool }

func (c *switchControl) Controlling() bool { return c.on.Load() }

func ok(body string) cache.Response {
	return cache.Response{Status: http.StatusOK, Body: []byte(body), Type: cache.TypeBasic}
}

func newEngine(t *testing.T, store cache.Store, f Fetcher) *Engine {
	t.Helper()
	u, _ := url.Parse(origin)
	e, err := New(Config{
		Origin:  u,
		Store:   store,
		Version: staticVersion("v1"),
		Fetcher: f,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

// installed returns a store holding an empty "v1" generation.
func installed(t *testing.T) cache.Store {
	t.Helper()
	store := cache.NewMemoryStore()
	if _, err := store.Open(context.Background(), "v1"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return store
}

func seed(t *testing.T, store cache.Store, rawURL string, resp cache.Response) {
	t.Helper()
	ctx := context.Background()
	gen, _ := store.Open(ctx, "v1")
	key, _ := cache.NewRequestKey(http.MethodGet, rawURL)
	if err := gen.Put(ctx, key, resp); err != nil {
		t.Fatalf("seed Put() error = %v", err)
	}
}

func lookup(t *testing.T, store cache.Store, rawURL string) (cache.Response, bool) {
	t.Helper()
	ctx := context.Background()
	gen, _ := store.Open(ctx, "v1")
	key, _ := cache.NewRequestKey(http.MethodGet, rawURL)
	resp, found, _ := gen.Match(ctx, key)
	return resp, found
}

func TestNew_Validation(t *testing.T) {
	u, _ := url.Parse(origin)
	store := cache.NewMemoryStore()
	f := &stubFetcher{}

	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"origin", Config{Store: store, Version: staticVersion("v1"), Fetcher: f}, ErrMissingOrigin},
		{"store", Config{Origin: u, Version: staticVersion("v1"), Fetcher: f}, cache.ErrNilStore},
		{"version", Config{Origin: u, Store: store, Fetcher: f}, ErrMissingVersion},
		{"fetcher", Config{Origin: u, Store: store, Version: staticVersion("v1")}, ErrMissingFetcher},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEngine_HitMakesNoNetworkCall(t *testing.T) {
	store := cache.NewMemoryStore()
	seed(t, store, origin+"/css/main.css", ok("cached"))
	f := &stubFetcher{answers: map[string]cache.Response{origin + "/css/main.css": ok("fresh")}}
	e := newEngine(t, store, f)

	req := httptest.NewRequest(http.MethodGet, origin+"/css/main.css", nil)
	resp, err := e.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if string(resp.Body) != "cached" {
		t.Errorf("body = %q, want cached", resp.Body)
	}
	if n := f.calls.Load(); n != 0 {
		t.Errorf("network calls = %d, want 0", n)
	}
}

func TestEngine_MissPopulatesCache(t *testing.T) {
	store := installed(t)
	f := &stubFetcher{answers: map[string]cache.Response{origin + "/pages/a.html": ok("page")}}
	e := newEngine(t, store, f)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, origin+"/pages/a.html", nil)
	resp, err := e.Handle(ctx, req)
	if err != nil || string(resp.Body) != "page" {
		t.Fatalf("Handle() = %q, %v", resp.Body, err)
	}
	if err := e.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	stored, found := lookup(t, store, origin+"/pages/a.html")
	if !found || string(stored.Body) != "page" {
		t.Fatalf("cache after miss = %v %q", found, stored.Body)
	}

	_, _ = e.Handle(ctx, req)
	if n := f.calls.Load(); n != 1 {
		t.Errorf("network calls = %d, want 1 (second request served from cache)", n)
	}
}

func TestEngine_UncacheableResponsesAreNotStored(t *testing.T) {
	tests := []struct {
		name string
		resp cache.Response
	}{
		{"not found", cache.Response{Status: http.StatusNotFound, Type: cache.TypeBasic}},
		{"server error", cache.Response{Status: http.StatusInternalServerError, Type: cache.TypeBasic}},
		{"cors", cache.Response{Status: http.StatusOK, Type: cache.TypeCORS}},
		{"opaque", cache.Response{Status: http.StatusOK, Type: cache.TypeOpaque}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := cache.NewMemoryStore()
			f := &stubFetcher{answers: map[string]cache.Response{origin + "/x": tt.resp}}
			e := newEngine(t, store, f)
			ctx := context.Background()

			resp, err := e.Handle(ctx, httptest.NewRequest(http.MethodGet, origin+"/x", nil))
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if resp.Status != tt.resp.Status || resp.Type != tt.resp.Type {
				t.Errorf("Handle() = %d %s, want unmodified", resp.Status, resp.Type)
			}
			_ = e.Flush(ctx)
			if _, found := lookup(t, store, origin+"/x"); found {
				t.Error("uncacheable response was stored")
			}
		})
	}
}

func TestEngine_IneligibleRequestsNeverTouchCache(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
	}{
		{"post", http.MethodPost, origin + "/api/ask"},
		{"delete", http.MethodDelete, origin + "/api/item"},
		{"cross origin get", http.MethodGet, "https://cdn.example/lib.js"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &spyStore{Store: cache.NewMemoryStore()}
			f := &stubFetcher{answers: map[string]cache.Response{tt.target: ok("net")}}
			e := newEngine(t, store, f)
			ctx := context.Background()

			resp, err := e.Handle(ctx, httptest.NewRequest(tt.method, tt.target, nil))
			if err != nil || string(resp.Body) != "net" {
				t.Fatalf("Handle() = %q, %v", resp.Body, err)
			}
			_ = e.Flush(ctx)
			if n := store.ops.Load(); n != 0 {
				t.Errorf("cache operations = %d, want 0", n)
			}
			if n := f.calls.Load(); n != 1 {
				t.Errorf("network calls = %d, want 1", n)
			}
		})
	}
}

func TestEngine_PassThroughFailureIsReturned(t *testing.T) {
	e := newEngine(t, cache.NewMemoryStore(), &stubFetcher{})
	_, err := e.Handle(context.Background(), httptest.NewRequest(http.MethodPost, origin+"/api/ask", nil))
	if !errors.Is(err, errOffline) {
		t.Errorf("Handle() error = %v, want transport error", err)
	}
}

func TestEngine_NetworkFailureFallbacks(t *testing.T) {
	tests := []struct {
		name        string
		header      map[string]string
		seedOffline bool
		wantStatus  int
		wantBody    string
	}{
		{
			name:        "navigation gets offline page",
			header:      map[string]string{"Sec-Fetch-Mode": "navigate", "Sec-Fetch-Dest": "document"},
			seedOffline: true,
			wantStatus:  http.StatusOK,
			wantBody:    "<h1>You are offline</h1>",
		},
		{
			name:       "navigation without offline page gets 503",
			header:     map[string]string{"Sec-Fetch-Dest": "document"},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "Offline content not available",
		},
		{
			name:        "subresource gets 503",
			header:      map[string]string{"Sec-Fetch-Dest": "image"},
			seedOffline: true,
			wantStatus:  http.StatusServiceUnavailable,
			wantBody:    "Offline content not available",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := cache.NewMemoryStore()
			if tt.seedOffline {
				seed(t, store, origin+"/offline.html", ok("<h1>You are offline</h1>"))
			}
			e := newEngine(t, store, &stubFetcher{})

			req := httptest.NewRequest(http.MethodGet, origin+"/pages/crop_calculator.html", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			resp, err := e.Handle(context.Background(), req)
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if resp.Status != tt.wantStatus || string(resp.Body) != tt.wantBody {
				t.Errorf("Handle() = %d %q, want %d %q", resp.Status, resp.Body, tt.wantStatus, tt.wantBody)
			}
			if tt.wantStatus == http.StatusServiceUnavailable && resp.Header.Get("Content-Type") != "text/plain" {
				t.Errorf("Content-Type = %q, want text/plain", resp.Header.Get("Content-Type"))
			}
		})
	}
}

func TestEngine_StoreFailureIsAMiss(t *testing.T) {
	f := &stubFetcher{answers: map[string]cache.Response{origin + "/": ok("home")}}
	e := newEngine(t, brokenStore{}, f)

	resp, err := e.Handle(context.Background(), httptest.NewRequest(http.MethodGet, origin+"/", nil))
	if err != nil || string(resp.Body) != "home" {
		t.Fatalf("Handle() = %q, %v", resp.Body, err)
	}

	req := httptest.NewRequest(http.MethodGet, origin+"/missing", nil)
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	resp, err = e.Handle(context.Background(), req)
	if err != nil || resp.Status != http.StatusServiceUnavailable {
		t.Errorf("Handle() with broken store and network = %d, %v", resp.Status, err)
	}
}

func TestEngine_CoalescesConcurrentMisses(t *testing.T) {
	store := installed(t)
	f := &stubFetcher{
		answers: map[string]cache.Response{origin + "/big.js": ok("js")},
		gate:    make(chan struct{}),
	}
	e := newEngine(t, store, f)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	bodies := make([][]byte, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, _ := e.Handle(ctx, httptest.NewRequest(http.MethodGet, origin+"/big.js", nil))
			bodies[i] = resp.Body
		}()
	}

	// Let the callers pile up behind the single in-flight fetch.
	time.Sleep(100 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	if n := f.calls.Load(); n != 1 {
		t.Errorf("network calls = %d, want 1", n)
	}
	bodies[0][0] = 'X'
	for i := 1; i < callers; i++ {
		if string(bodies[i]) != "js" {
			t.Errorf("caller %d body = %q; responses must not share memory", i, bodies[i])
		}
	}
}

func TestEngine_NilRequest(t *testing.T) {
	e := newEngine(t, cache.NewMemoryStore(), &stubFetcher{})
	if _, err := e.Handle(context.Background(), nil); !errors.Is(err, ErrNilRequest) {
		t.Errorf("Handle(nil) error = %v, want ErrNilRequest", err)
	}
}

func TestEngine_LookupDoesNotCreateGeneration(t *testing.T) {
	store := cache.NewMemoryStore()
	f := &stubFetcher{answers: map[string]cache.Response{origin + "/": ok("home")}}
	e := newEngine(t, store, f)
	ctx := context.Background()

	resp, err := e.Handle(ctx, httptest.NewRequest(http.MethodGet, origin+"/", nil))
	if err != nil || string(resp.Body) != "home" {
		t.Fatalf("Handle() = %q, %v", resp.Body, err)
	}
	_ = e.Flush(ctx)

	names, err := store.Names(ctx)
	if err != nil {
		t.Fatalf("Names() error = %v", err)
	}
	if len(names) != 0 {
		t.Errorf("Names() = %v, want none before install", names)
	}
}

func TestEngine_NotControllingBypassesCache(t *testing.T) {
	u, _ := url.Parse(origin)
	store := &spyStore{Store: cache.NewMemoryStore()}
	seed(t, store.Store, origin+"/css/main.css", ok("cached"))
	f := &stubFetcher{answers: map[string]cache.Response{origin + "/css/main.css": ok("fresh")}}
	control := &switchControl{}
	e, err := New(Config{
		Origin:  u,
		Store:   store,
		Version: staticVersion("v1"),
		Fetcher: f,
		Control: control,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	get := func() (cache.Response, error) {
		return e.Handle(ctx, httptest.NewRequest(http.MethodGet, origin+"/css/main.css", nil))
	}

	resp, err := get()
	if err != nil || string(resp.Body) != "fresh" {
		t.Fatalf("Handle() = %q, %v, want network response", resp.Body, err)
	}
	_ = e.Flush(ctx)
	if n := store.ops.Load(); n != 0 {
		t.Errorf("cache operations = %d, want 0", n)
	}

	f.mu.Lock()
	delete(f.answers, origin+"/css/main.css")
	f.mu.Unlock()
	if _, err := get(); !errors.Is(err, errOffline) {
		t.Errorf("Handle() offline error = %v, want transport error", err)
	}

	control.on.Store(true)
	resp, err = get()
	if err != nil || string(resp.Body) != "cached" {
		t.Errorf("Handle() once controlling = %q, %v, want cached", resp.Body, err)
	}
}
