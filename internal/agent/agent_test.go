package agent_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traderecks888/offline-gateway/internal/agent"
	"github.com/traderecks888/offline-gateway/internal/cachestore"
	"github.com/traderecks888/offline-gateway/internal/logger"
	"github.com/traderecks888/offline-gateway/internal/metrics"
)

// stubFetcher counts calls and answers from a fixed function.
type stubFetcher struct {
	mu    sync.Mutex
	calls int
	fetch func(req *agent.Request) (*cachestore.Response, error)
}

func (f *stubFetcher) Fetch(_ context.Context, req *agent.Request) (*cachestore.Response, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fetch(req)
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func okResponse(body string) *cachestore.Response {
	return &cachestore.Response{
		Status:  http.StatusOK,
		Headers: map[string]string{"Content-Type": "text/plain"},
		Body:    []byte(body),
	}
}

func newTestAgent(t *testing.T, cfg agent.Config, provider cachestore.Provider, fetcher agent.Fetcher) *agent.Agent {
	t.Helper()

	a, err := agent.New(context.Background(), cfg, provider, fetcher, logger.NewNop(), metrics.New())
	require.NoError(t, err)
	return a
}

func TestClassification(t *testing.T) {
	t.Helper()

	testCases := []struct {
		name     string
		request  agent.Request
		htmlLike bool
	}{
		{
			name:     "navigation mode",
			request:  agent.Request{URL: "/dashboard", Method: http.MethodGet, NavigationMode: true},
			htmlLike: true,
		},
		{
			name:     "accept contains text/html",
			request:  agent.Request{URL: "/page", Method: http.MethodGet, Accept: "text/html,application/xhtml+xml"},
			htmlLike: true,
		},
		{
			name:     "destination document",
			request:  agent.Request{URL: "/frame", Method: http.MethodGet, Destination: "document"},
			htmlLike: true,
		},
		{
			name:     "script destination is an asset",
			request:  agent.Request{URL: "/app.js", Method: http.MethodGet, Accept: "*/*", Destination: "script"},
			htmlLike: false,
		},
		{
			name:     "plain asset",
			request:  agent.Request{URL: "/icon.png", Method: http.MethodGet, Accept: "image/png"},
			htmlLike: false,
		},
		{
			name:     "csv export is an asset",
			request:  agent.Request{URL: "/data/latest.csv", Method: http.MethodGet, Accept: "text/csv"},
			htmlLike: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.htmlLike, tc.request.HTMLLike())
		})
	}
}

func TestHTMLNetworkFirstDoesNotStore(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	provider := cachestore.NewMemoryProvider()
	fetcher := &stubFetcher{fetch: func(*agent.Request) (*cachestore.Response, error) {
		return okResponse("fresh shell"), nil
	}}

	a := newTestAgent(t, agent.Config{Generation: "v1"}, provider, fetcher)

	req := &agent.Request{URL: "/index.html", Method: http.MethodGet, NavigationMode: true}
	result, err := a.Fetch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeNetwork, result.Outcome)
	assert.Equal(t, "fresh shell", string(result.Response.Body))
	assert.Equal(t, 1, fetcher.callCount())

	// HTML is never written back: a stale shell must not be servable later
	store, err := provider.Open(ctx, "v1")
	require.NoError(t, err)
	_, err = store.Match(ctx, cachestore.Key(req.Method, req.URL))
	assert.ErrorIs(t, err, cachestore.ErrNotFound)
}

func TestHTMLFallsBackToStoredCopy(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	provider := cachestore.NewMemoryProvider()

	store, err := provider.Open(ctx, "v1")
	require.NoError(t, err)
	req := &agent.Request{URL: "/index.html", Method: http.MethodGet, NavigationMode: true}
	require.NoError(t, store.Put(ctx, cachestore.Key(req.Method, req.URL), okResponse("stored shell")))

	fetcher := &stubFetcher{fetch: func(*agent.Request) (*cachestore.Response, error) {
		return nil, errors.New("connection refused")
	}}
	a := newTestAgent(t, agent.Config{Generation: "v1"}, provider, fetcher)

	result, err := a.Fetch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeFallback, result.Outcome)
	assert.Equal(t, "stored shell", string(result.Response.Body))
}

func TestHTMLFailureWithoutStoredCopy(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	fetchErr := errors.New("connection refused")
	fetcher := &stubFetcher{fetch: func(*agent.Request) (*cachestore.Response, error) {
		return nil, fetchErr
	}}
	a := newTestAgent(t, agent.Config{Generation: "v1"}, cachestore.NewMemoryProvider(), fetcher)

	result, err := a.Fetch(ctx, &agent.Request{URL: "/index.html", Method: http.MethodGet, NavigationMode: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, fetchErr)
	assert.Nil(t, result)
}

func TestAssetCacheHitSkipsNetwork(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	provider := cachestore.NewMemoryProvider()

	store, err := provider.Open(ctx, "v1")
	require.NoError(t, err)
	req := &agent.Request{URL: "/icon.png", Method: http.MethodGet, Accept: "image/png"}
	require.NoError(t, store.Put(ctx, cachestore.Key(req.Method, req.URL), okResponse("icon bytes")))

	fetcher := &stubFetcher{fetch: func(*agent.Request) (*cachestore.Response, error) {
		return okResponse("network icon"), nil
	}}
	a := newTestAgent(t, agent.Config{Generation: "v1"}, provider, fetcher)

	result, err := a.Fetch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeHit, result.Outcome)
	assert.Equal(t, "icon bytes", string(result.Response.Body))
	assert.Zero(t, fetcher.callCount(), "cache hit must not contact the network")
}

func TestAssetMissPopulatesThenHits(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	fetcher := &stubFetcher{fetch: func(*agent.Request) (*cachestore.Response, error) {
		return okResponse("app bundle"), nil
	}}
	a := newTestAgent(t, agent.Config{Generation: "v1"}, cachestore.NewMemoryProvider(), fetcher)

	req := &agent.Request{URL: "/app.js", Method: http.MethodGet, Destination: "script"}

	first, err := a.Fetch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeMiss, first.Outcome)
	assert.Equal(t, "app bundle", string(first.Response.Body))

	second, err := a.Fetch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeHit, second.Outcome)
	assert.Equal(t, "app bundle", string(second.Response.Body))
	assert.Equal(t, 1, fetcher.callCount(), "round trip must not fetch twice")
}

func TestAssetMissNetworkFailurePropagates(t *testing.T) {
	t.Helper()
	fetchErr := errors.New("dns failure")
	fetcher := &stubFetcher{fetch: func(*agent.Request) (*cachestore.Response, error) {
		return nil, fetchErr
	}}
	a := newTestAgent(t, agent.Config{Generation: "v1"}, cachestore.NewMemoryProvider(), fetcher)

	result, err := a.Fetch(context.Background(), &agent.Request{URL: "/app.js", Method: http.MethodGet, Destination: "script"})
	require.Error(t, err)
	assert.ErrorIs(t, err, fetchErr)
	assert.Nil(t, result)
}

// failingPutProvider wraps the memory provider with stores whose writes fail.
type failingPutProvider struct {
	*cachestore.MemoryProvider
}

func (p *failingPutProvider) Open(ctx context.Context, name string) (cachestore.Store, error) {
	store, err := p.MemoryProvider.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &failingPutStore{Store: store}, nil
}

type failingPutStore struct {
	cachestore.Store
}

func (s *failingPutStore) Put(context.Context, string, *cachestore.Response) error {
	return errors.New("quota exceeded")
}

func TestAssetStoreWriteFailureStillServes(t *testing.T) {
	t.Helper()
	fetcher := &stubFetcher{fetch: func(*agent.Request) (*cachestore.Response, error) {
		return okResponse("app bundle"), nil
	}}
	provider := &failingPutProvider{MemoryProvider: cachestore.NewMemoryProvider()}
	a := newTestAgent(t, agent.Config{Generation: "v1"}, provider, fetcher)

	result, err := a.Fetch(context.Background(), &agent.Request{URL: "/app.js", Method: http.MethodGet, Destination: "script"})
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeMiss, result.Outcome)
	assert.Equal(t, "app bundle", string(result.Response.Body))
}

func TestInstallPrecachePopulates(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	fetcher := &stubFetcher{fetch: func(req *agent.Request) (*cachestore.Response, error) {
		return okResponse("precached " + req.URL), nil
	}}
	a := newTestAgent(t, agent.Config{
		Generation: "v1",
		Precache:   []string{"/", "/icon.png"},
	}, cachestore.NewMemoryProvider(), fetcher)

	require.NoError(t, a.Install(ctx))
	assert.Equal(t, 2, fetcher.callCount())

	// A precached asset is a hit with no further network contact
	result, err := a.Fetch(ctx, &agent.Request{URL: "/icon.png", Method: http.MethodGet, Accept: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeHit, result.Outcome)
	assert.Equal(t, 2, fetcher.callCount())
}

func TestInstallSwallowsPrecacheFailures(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	provider := cachestore.NewMemoryProvider()
	fetcher := &stubFetcher{fetch: func(*agent.Request) (*cachestore.Response, error) {
		return nil, errors.New("origin down")
	}}
	a := newTestAgent(t, agent.Config{
		Generation: "v1",
		Precache:   []string{"/icon.png"},
	}, provider, fetcher)

	require.NoError(t, a.Install(ctx), "precache failures must not fail install")

	store, err := provider.Open(ctx, "v1")
	require.NoError(t, err)
	_, err = store.Match(ctx, cachestore.Key(http.MethodGet, "/icon.png"))
	assert.ErrorIs(t, err, cachestore.ErrNotFound)
}

func TestActivatePurgesStaleGenerations(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	provider := cachestore.NewMemoryProvider()

	// Populate an old generation alongside the current one
	old, err := provider.Open(ctx, "v1")
	require.NoError(t, err)
	require.NoError(t, old.Put(ctx, "GET_stale", okResponse("stale")))

	fetcher := &stubFetcher{fetch: func(*agent.Request) (*cachestore.Response, error) {
		return okResponse(""), nil
	}}
	a := newTestAgent(t, agent.Config{Generation: "v2"}, provider, fetcher)

	require.NoError(t, a.Activate(ctx))
	assert.True(t, a.Active())

	names, err := provider.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v2"}, names)
}

func TestActivateIdempotent(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	provider := cachestore.NewMemoryProvider()
	fetcher := &stubFetcher{fetch: func(*agent.Request) (*cachestore.Response, error) {
		return okResponse(""), nil
	}}
	a := newTestAgent(t, agent.Config{Generation: "v1"}, provider, fetcher)

	require.NoError(t, a.Activate(ctx))
	require.NoError(t, a.Activate(ctx), "repeat activation with nothing to purge must not error")

	names, err := provider.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, names)
}

func TestConcurrentMissesBothServe(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	// Gate the fetcher so both requests are in flight before either
	// returns: both must take the miss path.
	var gate sync.WaitGroup
	gate.Add(2)
	fetcher := &stubFetcher{fetch: func(*agent.Request) (*cachestore.Response, error) {
		gate.Done()
		gate.Wait()
		return okResponse("asset"), nil
	}}
	a := newTestAgent(t, agent.Config{Generation: "v1"}, cachestore.NewMemoryProvider(), fetcher)

	req := &agent.Request{URL: "/chart.png", Method: http.MethodGet, Accept: "image/png"}

	var wg sync.WaitGroup
	results := make([]*agent.Result, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = a.Fetch(ctx, req)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, "asset", string(results[i].Response.Body))
	}
	assert.Equal(t, 2, fetcher.callCount())

	// Last write wins; the store holds one valid entry and serves hits
	after, err := a.Fetch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeHit, after.Outcome)
	assert.Equal(t, 2, fetcher.callCount())
}
