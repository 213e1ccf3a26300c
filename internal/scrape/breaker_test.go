package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covisearch/aggregator/internal/websource"
)

type countingFetcher struct {
	calls int
	err   error
}

func (f *countingFetcher) Fetch(_ context.Context, _ *websource.Instance) ([]map[string]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []map[string]string{{"name": "a"}}, nil
}

func TestBreakerFetcher_OpensAfterThreshold(t *testing.T) {
	next := &countingFetcher{err: errors.New("boom")}
	b := NewBreakerFetcher(next, BreakerOptions{FailureThreshold: 2, ResetTimeout: time.Minute})
	inst := newInstance(t, nil)

	for range 2 {
		_, err := b.Fetch(context.Background(), inst)
		require.Error(t, err)
	}
	assert.Equal(t, BreakerOpen, b.State("leads"))

	_, err := b.Fetch(context.Background(), inst)
	assert.ErrorIs(t, err, ErrSourceOpen)
	assert.Equal(t, 2, next.calls)

	// Other sources are unaffected.
	other := newInstance(t, func(d *websource.Descriptor) { d.Name = "other" })
	next.err = nil
	rows, err := b.Fetch(context.Background(), other)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, BreakerClosed, b.State("other"))
}

func TestBreakerFetcher_HalfOpenProbe(t *testing.T) {
	now := time.Date(2021, 5, 1, 10, 0, 0, 0, time.UTC)
	next := &countingFetcher{err: errors.New("boom")}
	b := NewBreakerFetcher(next, BreakerOptions{FailureThreshold: 1, ResetTimeout: time.Minute})
	b.now = func() time.Time { return now }
	inst := newInstance(t, nil)

	_, _ = b.Fetch(context.Background(), inst)
	assert.Equal(t, BreakerOpen, b.State("leads"))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, BreakerHalfOpen, b.State("leads"))

	// A failed probe reopens.
	_, err := b.Fetch(context.Background(), inst)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSourceOpen)
	assert.Equal(t, BreakerOpen, b.State("leads"))

	// A successful probe closes.
	now = now.Add(2 * time.Minute)
	next.err = nil
	_, err = b.Fetch(context.Background(), inst)
	require.NoError(t, err)
	assert.Equal(t, BreakerClosed, b.State("leads"))
	assert.Equal(t, 3, next.calls)
}

func TestBreakerFetcher_SuccessResetsFailures(t *testing.T) {
	next := &countingFetcher{err: errors.New("boom")}
	b := NewBreakerFetcher(next, BreakerOptions{FailureThreshold: 2})
	inst := newInstance(t, nil)

	_, _ = b.Fetch(context.Background(), inst)
	next.err = nil
	_, _ = b.Fetch(context.Background(), inst)
	next.err = errors.New("boom")
	_, _ = b.Fetch(context.Background(), inst)
	assert.Equal(t, BreakerClosed, b.State("leads"))
}

func TestBreakerFetcher_CancelledCallerNotCounted(t *testing.T) {
	next := &countingFetcher{err: context.Canceled}
	b := NewBreakerFetcher(next, BreakerOptions{FailureThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Fetch(ctx, newInstance(t, nil))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, BreakerClosed, b.State("leads"))
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}
