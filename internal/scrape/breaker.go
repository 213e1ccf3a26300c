package scrape

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/covisearch/aggregator/internal/websource"
)

// BreakerState is the state of one source's circuit breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrSourceOpen is returned without a request when a source's breaker is open.
var ErrSourceOpen = eris.New("scrape: source circuit open")

// BreakerOptions controls when a failing source is skipped.
type BreakerOptions struct {
	// FailureThreshold is the number of consecutive failures that open the
	// breaker. Default: 3.
	FailureThreshold int
	// ResetTimeout is how long an open breaker rejects before letting a probe
	// through. Default: 5m.
	ResetTimeout time.Duration
}

type breaker struct {
	state       BreakerState
	failures    int
	lastFailure time.Time
}

// BreakerFetcher wraps a Fetcher with one circuit breaker per source name,
// so a source that keeps failing is not retried for every synonym city or
// resync pass.
type BreakerFetcher struct {
	next Fetcher
	opts BreakerOptions
	now  func() time.Time

	mu       sync.Mutex
	breakers map[string]*breaker
}

// NewBreakerFetcher wraps next.
func NewBreakerFetcher(next Fetcher, opts BreakerOptions) *BreakerFetcher {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 3
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = 5 * time.Minute
	}
	return &BreakerFetcher{
		next:     next,
		opts:     opts,
		now:      time.Now,
		breakers: make(map[string]*breaker),
	}
}

// Fetch implements Fetcher.
func (b *BreakerFetcher) Fetch(ctx context.Context, inst *websource.Instance) ([]map[string]string, error) {
	name := inst.Name()
	if err := b.allow(name); err != nil {
		return nil, eris.Wrapf(err, "source %s", name)
	}
	rows, err := b.next.Fetch(ctx, inst)
	// A cancelled caller says nothing about the source.
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) && ctx.Err() != nil {
		return rows, err
	}
	b.record(name, err)
	return rows, err
}

// State returns the current state of the named source's breaker.
func (b *BreakerFetcher) State(source string) BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	cb, ok := b.breakers[source]
	if !ok {
		return BreakerClosed
	}
	if cb.state == BreakerOpen && b.now().Sub(cb.lastFailure) >= b.opts.ResetTimeout {
		return BreakerHalfOpen
	}
	return cb.state
}

func (b *BreakerFetcher) allow(source string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cb, ok := b.breakers[source]
	if !ok || cb.state != BreakerOpen {
		return nil
	}
	if b.now().Sub(cb.lastFailure) >= b.opts.ResetTimeout {
		b.transition(source, cb, BreakerHalfOpen)
		return nil
	}
	return ErrSourceOpen
}

func (b *BreakerFetcher) record(source string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cb, ok := b.breakers[source]
	if !ok {
		if err == nil {
			return
		}
		cb = &breaker{}
		b.breakers[source] = cb
	}

	if err == nil {
		cb.failures = 0
		if cb.state != BreakerClosed {
			b.transition(source, cb, BreakerClosed)
		}
		return
	}

	cb.failures++
	cb.lastFailure = b.now()
	switch cb.state {
	case BreakerClosed:
		if cb.failures >= b.opts.FailureThreshold {
			b.transition(source, cb, BreakerOpen)
		}
	case BreakerHalfOpen:
		b.transition(source, cb, BreakerOpen)
	}
}

func (b *BreakerFetcher) transition(source string, cb *breaker, to BreakerState) {
	zap.L().Info("scrape: source breaker state change",
		zap.String("source", source),
		zap.Stringer("from", cb.state),
		zap.Stringer("to", to),
		zap.Int("failures", cb.failures),
	)
	cb.state = to
}
