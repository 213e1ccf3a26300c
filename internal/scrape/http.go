package scrape

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/covisearch/aggregator/internal/websource"
)

const maxBodyBytes = 32 << 20

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	// HostRate and HostBurst seed the adaptive limiter of hosts that have no
	// fixed limiter.
	HostRate     rate.Limit
	HostBurst    int
	RateLimiters map[string]*rate.Limiter
}

// AdaptiveLimiter wraps a rate.Limiter with adaptive rate adjustment.
// On success it increases the rate by 20% (up to 2x initial).
// On 429 it halves the rate (down to initial/4 minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	initialRate rate.Limit
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter that auto-tunes.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		initialRate: initialRate,
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = min(a.currentRate*1.2, a.maxRate)
	a.limiter.SetLimit(a.currentRate)
}

// OnRateLimit halves the rate after a 429.
func (a *AdaptiveLimiter) OnRateLimit(host string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = max(a.currentRate*0.5, a.minRate)
	a.limiter.SetLimit(a.currentRate)
	zap.L().Warn("scrape: reducing rate after 429",
		zap.String("host", host),
		zap.Float64("new_rate", float64(a.currentRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPFetcher fetches and extracts source tables over HTTP with retry and
// per-host rate limiting.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	limiters map[string]*rate.Limiter

	mu       sync.Mutex
	adaptive map[string]*AdaptiveLimiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BackoffBase == 0 {
		opts.BackoffBase = time.Second
	}
	if opts.HostRate == 0 {
		opts.HostRate = 5
	}
	if opts.HostBurst == 0 {
		opts.HostBurst = 5
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "covisearch/1.0"
	}
	limiters := make(map[string]*rate.Limiter, len(opts.RateLimiters))
	for k, v := range opts.RateLimiters {
		limiters[k] = v
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: limiters,
		adaptive: make(map[string]*AdaptiveLimiter),
	}
}

// Fetch requests the instance's resource URL and returns the extracted rows
// that pass its row filters.
func (f *HTTPFetcher) Fetch(ctx context.Context, inst *websource.Instance) ([]map[string]string, error) {
	req, err := f.newRequest(ctx, inst)
	if err != nil {
		return nil, err
	}

	resp, err := f.doWithRetry(ctx, req)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: fetch %s", inst.Name())
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: read %s", inst.Name())
	}
	if block := DetectBlock(resp, body); block != BlockNone {
		return nil, eris.Errorf("scrape: %s: blocked by %s page at %s", inst.Name(), block, inst.URL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("scrape: %s: unexpected status %d from %s", inst.Name(), resp.StatusCode, inst.URL)
	}

	rows, err := Extract(inst.Descriptor.ResponseContentType, body, inst.Descriptor.ColumnSelectors)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: extract %s", inst.Name())
	}
	return FilterRows(rows, inst.RowFilters)
}

func (f *HTTPFetcher) newRequest(ctx context.Context, inst *websource.Instance) (*http.Request, error) {
	var (
		method      = http.MethodGet
		body        io.Reader
		contentType string
	)
	switch inst.Descriptor.RequestContentType {
	case websource.ContentJSON:
		method, body, contentType = http.MethodPost, strings.NewReader(inst.RequestBody), "application/json"
	case websource.ContentFormData:
		method, body, contentType = http.MethodPost, strings.NewReader(formBody(inst.RequestBody)), "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, method, inst.URL, body)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: create request for %s", inst.Name())
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range inst.Descriptor.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// formBody re-encodes a raw "k=v&k2=v2" template result.
func formBody(raw string) string {
	vals := url.Values{}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		vals.Add(k, v)
	}
	return vals.Encode()
}

func (f *HTTPFetcher) limiterFor(host string) (*rate.Limiter, *AdaptiveLimiter) {
	if lim, ok := f.limiters[host]; ok {
		return lim, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.adaptive[host]
	if !ok {
		a = NewAdaptiveLimiter(f.opts.HostRate, f.opts.HostBurst)
		f.adaptive[host] = a
	}
	return nil, a
}

func (f *HTTPFetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	host := req.URL.Host
	fixed, adaptive := f.limiterFor(host)

	var lastErr error
	for attempt := range f.opts.MaxRetries {
		if adaptive != nil {
			if err := adaptive.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "rate limiter wait")
			}
		} else if err := fixed.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		cloned := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, eris.Wrap(err, "scrape: rewind request body")
			}
			cloned.Body = body
		}
		resp, err := f.client.Do(cloned)
		if err != nil {
			lastErr = err
			zap.L().Warn("scrape: request failed, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			f.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http 429 from %s", req.URL.String())
			if adaptive != nil {
				adaptive.OnRateLimit(host)
			}
			f.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http %d from %s", resp.StatusCode, req.URL.String())
			zap.L().Warn("scrape: server error, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			f.backoff(ctx, attempt)
			continue
		}

		if adaptive != nil {
			adaptive.OnSuccess()
		}
		return resp, nil
	}

	return nil, eris.Wrap(lastErr, "all retries exhausted")
}

func (f *HTTPFetcher) backoff(ctx context.Context, attempt int) {
	maxBackoff := 30 * f.opts.BackoffBase
	d := time.Duration(float64(f.opts.BackoffBase) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
