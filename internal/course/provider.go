package course

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BundleProvider resolves the feature bundle for a course hole.
type BundleProvider interface {
	Bundle(ctx context.Context, courseID string, hole int) (*Bundle, error)
}

// StaticProvider serves bundles from a fixed map, keyed by courseID. Used in
// tests and for embedded course data.
type StaticProvider struct {
	bundles map[string]*Bundle
}

// NewStaticProvider copies the given map.
func NewStaticProvider(bundles map[string]*Bundle) *StaticProvider {
	copied := make(map[string]*Bundle, len(bundles))
	for id, bundle := range bundles {
		copied[id] = bundle
	}
	return &StaticProvider{bundles: copied}
}

func (p *StaticProvider) Bundle(_ context.Context, courseID string, _ int) (*Bundle, error) {
	bundle, ok := p.bundles[courseID]
	if !ok {
		return nil, fmt.Errorf("no bundle for course %q", courseID)
	}
	return bundle, nil
}

// HTTPProvider fetches bundles from a remote course service, with a circuit
// breaker around the upstream and a TTL cache in front of it.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  logrus.FieldLogger

	ttl   time.Duration
	mu    sync.RWMutex
	cache map[string]cachedBundle
}

type cachedBundle struct {
	bundle    *Bundle
	fetchedAt time.Time
}

// HTTPProviderConfig configures an HTTPProvider. Zero durations select
// defaults.
type HTTPProviderConfig struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// NewHTTPProvider builds a provider against the given base URL.
func NewHTTPProvider(config HTTPProviderConfig, log logrus.FieldLogger) *HTTPProvider {
	if log == nil {
		log = logrus.StandardLogger()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "course-bundles",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"component": "circuit_breaker",
				"service":   name,
				"from":      from.String(),
				"to":        to.String(),
			}).Info("Circuit breaker state changed")
		},
	})
	return &HTTPProvider{
		baseURL: config.BaseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  log,
		ttl:     ttl,
		cache:   make(map[string]cachedBundle),
	}
}

func bundleCacheKey(courseID string, hole int) string {
	return fmt.Sprintf("%s/%d", courseID, hole)
}

// Bundle returns the cached bundle when fresh, otherwise fetches through the
// circuit breaker. A stale cache entry is served when the upstream is
// unavailable.
func (p *HTTPProvider) Bundle(ctx context.Context, courseID string, hole int) (*Bundle, error) {
	key := bundleCacheKey(courseID, hole)
	p.mu.RLock()
	cached, ok := p.cache[key]
	p.mu.RUnlock()
	if ok && time.Since(cached.fetchedAt) < p.ttl {
		return cached.bundle, nil
	}

	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.fetch(ctx, courseID, hole)
	})
	if err != nil {
		if ok {
			p.logger.WithError(err).WithField("course", courseID).Warn("Serving stale course bundle")
			return cached.bundle, nil
		}
		return nil, err
	}
	bundle := result.(*Bundle)

	p.mu.Lock()
	p.cache[key] = cachedBundle{bundle: bundle, fetchedAt: time.Now()}
	p.mu.Unlock()
	return bundle, nil
}

func (p *HTTPProvider) fetch(ctx context.Context, courseID string, hole int) (*Bundle, error) {
	endpoint := fmt.Sprintf("%s/courses/%s/holes/%d/bundle", p.baseURL, url.PathEscape(courseID), hole)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build bundle request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bundle request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bundle request returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle body: %w", err)
	}
	var bundle Bundle
	if err := json.Unmarshal(body, &bundle); err != nil {
		return nil, fmt.Errorf("failed to decode bundle: %w", err)
	}
	return &bundle, nil
}
