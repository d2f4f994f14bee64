package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/review-agent/backend/pkg/circuitbreaker"
)

type fakeBackend struct {
	mu       sync.Mutex
	text     string
	err      error
	delay    time.Duration
	requests []Request
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Generate(ctx context.Context, req Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func newTestClient(b Backend, timeout time.Duration, observer CallObserver) *Client {
	profiles := map[Profile]ProfileSpec{
		ProfileGeneration: {Backend: b, Model: "small", Temperature: 0.1, MaxTokens: 120, Timeout: timeout},
		ProfileRepair:     {Backend: b, Model: "large", Temperature: 0.1, MaxTokens: 200, Timeout: timeout},
	}
	var opts []ClientOption
	if observer != nil {
		opts = append(opts, WithObserver(observer))
	}
	return NewClient(profiles, circuitbreaker.Config{FailureThreshold: 2, Timeout: time.Minute}, opts...)
}

func TestCompleteUsesProfileSettings(t *testing.T) {
	b := &fakeBackend{text: "SELECT 1;"}
	c := newTestClient(b, time.Second, nil)

	out, err := c.Complete(context.Background(), ProfileRepair, "fix it")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", out)
	require.Len(t, b.requests, 1)
	assert.Equal(t, Request{Model: "large", Prompt: "fix it", MaxTokens: 200, Temperature: 0.1}, b.requests[0])
}

func TestCompleteNormalizesErrors(t *testing.T) {
	var results []string
	observer := func(_ Profile, result string, _ time.Duration) { results = append(results, result) }

	c := newTestClient(&fakeBackend{err: errors.New("connection refused")}, time.Second, observer)
	_, err := c.Complete(context.Background(), ProfileGeneration, "q")
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.True(t, IsUpstream(err))

	c = newTestClient(&fakeBackend{text: "  \n"}, time.Second, observer)
	_, err = c.Complete(context.Background(), ProfileGeneration, "q")
	require.ErrorIs(t, err, ErrUpstreamUnavailable)

	c = newTestClient(&fakeBackend{text: "late", delay: time.Second}, 10*time.Millisecond, observer)
	_, err = c.Complete(context.Background(), ProfileGeneration, "q")
	require.ErrorIs(t, err, ErrUpstreamTimeout)

	assert.Equal(t, []string{"unavailable", "unavailable", "timeout"}, results)
}

func TestCompleteDoesNotRetry(t *testing.T) {
	b := &fakeBackend{err: errors.New("503 service unavailable")}
	c := newTestClient(b, time.Second, nil)

	_, err := c.Complete(context.Background(), ProfileGeneration, "q")
	require.Error(t, err)
	assert.Len(t, b.requests, 1)
}

func TestBreakerFailsFastAfterRepeatedFailures(t *testing.T) {
	b := &fakeBackend{err: errors.New("connection refused")}
	c := newTestClient(b, time.Second, nil)

	for i := 0; i < 2; i++ {
		_, err := c.Complete(context.Background(), ProfileGeneration, "q")
		require.ErrorIs(t, err, ErrUpstreamUnavailable)
	}
	assert.Equal(t, circuitbreaker.StateOpen, c.BreakerStates()[ProfileGeneration])

	_, err := c.Complete(context.Background(), ProfileGeneration, "q")
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
	require.ErrorContains(t, err, circuitbreaker.ErrCircuitOpen.Error())
	assert.Len(t, b.requests, 2)

	assert.Equal(t, circuitbreaker.StateClosed, c.BreakerStates()[ProfileRepair])
}

func TestCompleteReturnsCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(&fakeBackend{text: "x", delay: time.Second}, time.Second, nil)
	_, err := c.Complete(ctx, ProfileGeneration, "q")
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsUpstream(err))
}

func TestCompleteUnknownProfile(t *testing.T) {
	c := newTestClient(&fakeBackend{text: "x"}, time.Second, nil)
	_, err := c.Complete(context.Background(), Profile("summary"), "q")
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
}
