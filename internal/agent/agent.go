// Package agent implements the request interception policy for the offline
// gateway. Every intercepted request is classified HTML-like or static
// asset and routed network-first or cache-first against a single current
// cache generation. Stale generations are purged wholesale at activation;
// there is no per-entry expiry.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/traderecks888/offline-gateway/internal/cachestore"
	"github.com/traderecks888/offline-gateway/internal/logger"
	"github.com/traderecks888/offline-gateway/internal/metrics"
)

// Outcome describes how a fetch was answered.
type Outcome string

const (
	// OutcomeNetwork is an HTML-like request answered by the origin.
	OutcomeNetwork Outcome = "network"
	// OutcomeHit is a static asset answered from the store with no
	// network contact.
	OutcomeHit Outcome = "hit"
	// OutcomeMiss is a static asset answered by the origin and written
	// back to the store.
	OutcomeMiss Outcome = "miss"
	// OutcomeFallback is an HTML-like request answered from the store
	// after the origin failed.
	OutcomeFallback Outcome = "fallback"
)

// Policy labels for metrics and response headers.
const (
	PolicyNetworkFirst = "network-first"
	PolicyCacheFirst   = "cache-first"
)

// Result is a served response plus the policy outcome that produced it.
type Result struct {
	Response *cachestore.Response
	Outcome  Outcome
}

// Fetcher fetches a request from the origin. A non-2xx origin response is
// still a response; Fetcher returns an error only when no response was
// obtained at all (transport failure).
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*cachestore.Response, error)
}

// Config is the agent's configuration surface: the current generation name
// and the list of URLs to eagerly populate at install.
type Config struct {
	Generation string
	Precache   []string
}

// Agent intercepts requests and serves them per the offline-first policy.
// One agent owns exactly one current generation for its whole lifetime;
// replacing the generation means constructing a new agent.
type Agent struct {
	cfg      Config
	provider cachestore.Provider
	fetcher  Fetcher
	store    cachestore.Store
	active   atomic.Bool
	log      logger.Logger
	metrics  *metrics.Metrics
}

// New creates an agent and opens its current-generation store.
func New(ctx context.Context, cfg Config, provider cachestore.Provider, fetcher Fetcher, log logger.Logger, m *metrics.Metrics) (*Agent, error) {
	if cfg.Generation == "" {
		return nil, errors.New("agent: generation is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}

	store, err := provider.Open(ctx, cfg.Generation)
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", cfg.Generation, err)
	}

	return &Agent{
		cfg:      cfg,
		provider: provider,
		fetcher:  fetcher,
		store:    store,
		log:      log,
		metrics:  m,
	}, nil
}

// Generation returns the current generation name.
func (a *Agent) Generation() string {
	return a.cfg.Generation
}

// Active reports whether the agent has claimed control of traffic.
func (a *Agent) Active() bool {
	return a.active.Load()
}

// Install eagerly populates the current store with the precache list.
// Population is best-effort: a failed fetch or store write is logged and
// skipped, never failing the install. The agent is eligible for activation
// as soon as Install returns; there is no staged waiting period.
func (a *Agent) Install(ctx context.Context) error {
	var stored int
	for _, rawURL := range a.cfg.Precache {
		req := &Request{URL: rawURL, Method: http.MethodGet}

		resp, err := a.fetcher.Fetch(ctx, req)
		if err != nil {
			a.log.Warn("Precache fetch failed, skipping entry",
				logger.String("url", rawURL),
				logger.Error(err),
			)
			a.metrics.ObservePrecacheFailure()
			continue
		}

		if putErr := a.store.Put(ctx, cachestore.Key(req.Method, req.URL), resp); putErr != nil {
			a.log.Warn("Precache store write failed, skipping entry",
				logger.String("url", rawURL),
				logger.Error(putErr),
			)
			a.metrics.ObservePrecacheFailure()
			continue
		}
		stored++
	}

	a.log.Info("Agent installed",
		logger.String("generation", a.cfg.Generation),
		logger.Int("precache_listed", len(a.cfg.Precache)),
		logger.Int("precache_stored", stored),
	)
	return nil
}

// Activate claims control of traffic and purges every store whose name
// differs from the current generation. This is the sole invalidation
// mechanism. Activating when only the current generation exists deletes
// nothing and is not an error.
func (a *Agent) Activate(ctx context.Context) error {
	names, err := a.provider.Names(ctx)
	if err != nil {
		return fmt.Errorf("enumerate stores: %w", err)
	}

	var purgeErr error
	for _, name := range names {
		if name == a.cfg.Generation {
			continue
		}
		if delErr := a.provider.Delete(ctx, name); delErr != nil {
			a.log.Error("Failed to purge stale generation",
				logger.String("generation", name),
				logger.Error(delErr),
			)
			purgeErr = errors.Join(purgeErr, fmt.Errorf("purge %q: %w", name, delErr))
			continue
		}
		a.metrics.ObservePurgedGeneration()
		a.log.Info("Purged stale generation", logger.String("generation", name))
	}
	if purgeErr != nil {
		return purgeErr
	}

	a.active.Store(true)
	a.log.Info("Agent active", logger.String("generation", a.cfg.Generation))
	return nil
}

// Fetch serves one intercepted request. HTML-like requests are network-first
// and never written to the store; static assets are cache-first with
// populate-on-miss. A failure is contained to this request.
func (a *Agent) Fetch(ctx context.Context, req *Request) (*Result, error) {
	if req.HTMLLike() {
		return a.networkFirst(ctx, req)
	}
	return a.cacheFirst(ctx, req)
}

// networkFirst tries the origin and only consults the store when the origin
// is unreachable. Fresh HTML is never stored, so a stale shell can never be
// served while the origin is up.
func (a *Agent) networkFirst(ctx context.Context, req *Request) (*Result, error) {
	resp, fetchErr := a.fetcher.Fetch(ctx, req)
	if fetchErr == nil {
		a.metrics.ObserveFetch(PolicyNetworkFirst, string(OutcomeNetwork))
		return &Result{Response: resp, Outcome: OutcomeNetwork}, nil
	}

	cached, matchErr := a.store.Match(ctx, cachestore.Key(req.Method, req.URL))
	if matchErr == nil {
		a.log.Info("Origin unreachable, serving cached copy",
			logger.String("url", req.URL),
			logger.Error(fetchErr),
		)
		a.metrics.ObserveFetch(PolicyNetworkFirst, string(OutcomeFallback))
		return &Result{Response: cached, Outcome: OutcomeFallback}, nil
	}
	if !errors.Is(matchErr, cachestore.ErrNotFound) {
		a.log.Warn("Store lookup failed during fallback",
			logger.String("url", req.URL),
			logger.Error(matchErr),
		)
	}

	a.metrics.ObserveFetch(PolicyNetworkFirst, "error")
	return nil, fmt.Errorf("fetch %s: %w", req.URL, fetchErr)
}

// cacheFirst serves from the store when possible and populates it on miss.
// A store write failure never blocks returning the fetched response.
func (a *Agent) cacheFirst(ctx context.Context, req *Request) (*Result, error) {
	key := cachestore.Key(req.Method, req.URL)

	cached, matchErr := a.store.Match(ctx, key)
	if matchErr == nil {
		a.metrics.ObserveFetch(PolicyCacheFirst, string(OutcomeHit))
		return &Result{Response: cached, Outcome: OutcomeHit}, nil
	}
	if !errors.Is(matchErr, cachestore.ErrNotFound) {
		// Treat a failing store read as a miss; the request can still be
		// answered by the origin.
		a.log.Warn("Store lookup failed, treating as miss",
			logger.String("url", req.URL),
			logger.Error(matchErr),
		)
	}

	resp, fetchErr := a.fetcher.Fetch(ctx, req)
	if fetchErr != nil {
		a.metrics.ObserveFetch(PolicyCacheFirst, "error")
		return nil, fmt.Errorf("fetch %s: %w", req.URL, fetchErr)
	}

	// Put stores its own copy, so the caller's body never aliases the
	// stored one. Concurrent misses for the same key overwrite; responses
	// for one key are treated as equivalent.
	if putErr := a.store.Put(ctx, key, resp); putErr != nil {
		a.log.Warn("Store write failed, serving response uncached",
			logger.String("url", req.URL),
			logger.Error(putErr),
		)
	}

	a.metrics.ObserveFetch(PolicyCacheFirst, string(OutcomeMiss))
	return &Result{Response: resp, Outcome: OutcomeMiss}, nil
}
