package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/review-agent/backend/pkg/circuitbreaker"
	"github.com/review-agent/backend/pkg/logger"
)

var (
	// ErrUpstreamUnavailable covers unreachable services, non-success
	// statuses, empty completions and an open circuit breaker.
	ErrUpstreamUnavailable = errors.New("completion service unavailable")
	// ErrUpstreamTimeout is returned when a profile's wait bound is exceeded.
	ErrUpstreamTimeout = errors.New("completion service timed out")

	errEmptyCompletion = errors.New("empty completion")
)

// Profile names one row of the completion profile table.
type Profile string

const (
	ProfileGeneration Profile = "generation"
	ProfileRepair     Profile = "repair"
)

type Request struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Backend is one text-completion service.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

type ProfileSpec struct {
	Backend     Backend
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// CallObserver sees the outcome of every completion call: "ok", "timeout",
// "unavailable" or "canceled".
type CallObserver func(profile Profile, result string, elapsed time.Duration)

type Client struct {
	profiles map[Profile]ProfileSpec
	breakers map[Profile]*circuitbreaker.CircuitBreaker
	observer CallObserver
}

type ClientOption func(*Client)

func WithObserver(o CallObserver) ClientOption {
	return func(c *Client) { c.observer = o }
}

func NewClient(profiles map[Profile]ProfileSpec, breaker circuitbreaker.Config, opts ...ClientOption) *Client {
	if breaker.Logger == nil {
		breaker.Logger = logger.GetLogger()
	}

	c := &Client{
		profiles: profiles,
		breakers: make(map[Profile]*circuitbreaker.CircuitBreaker, len(profiles)),
	}
	for name := range profiles {
		c.breakers[name] = circuitbreaker.NewCircuitBreaker("llm-"+string(name), breaker)
	}
	for _, opt := range opts {
		opt(c)
	}

	for name, p := range profiles {
		logger.Info("Completion profile configured",
			zap.String("profile", string(name)),
			zap.String("provider", p.Backend.Name()),
			zap.String("model", p.Model),
			zap.Int("max_tokens", p.MaxTokens),
			zap.Duration("timeout", p.Timeout),
		)
	}

	return c
}

// Complete sends prompt through the named profile and returns the raw text.
// It never retries; the repair loop owns retry policy. Errors are
// ErrUpstreamUnavailable, ErrUpstreamTimeout or the caller's own context
// cancellation.
func (c *Client) Complete(ctx context.Context, profile Profile, prompt string) (string, error) {
	route, ok := c.profiles[profile]
	if !ok {
		return "", fmt.Errorf("%w: unknown profile %q", ErrUpstreamUnavailable, profile)
	}

	callCtx := ctx
	if route.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, route.Timeout)
		defer cancel()
	}

	start := time.Now()
	var text string
	err := c.breakers[profile].Execute(callCtx, func(ctx context.Context) error {
		out, err := route.Backend.Generate(ctx, Request{
			Model:       route.Model,
			Prompt:      prompt,
			MaxTokens:   route.MaxTokens,
			Temperature: route.Temperature,
		})
		if err != nil {
			return err
		}
		if strings.TrimSpace(out) == "" {
			return errEmptyCompletion
		}
		text = out
		return nil
	})
	elapsed := time.Since(start)

	if err != nil {
		err = normalize(ctx, callCtx, err)
		c.observe(profile, resultOf(err), elapsed)
		logger.Warn("Completion failed",
			zap.String("profile", string(profile)),
			zap.String("provider", route.Backend.Name()),
			zap.Int64("latency_ms", elapsed.Milliseconds()),
			zap.Error(err),
		)
		return "", err
	}

	c.observe(profile, "ok", elapsed)
	logger.Debug("Completion generated",
		zap.String("profile", string(profile)),
		zap.String("provider", route.Backend.Name()),
		zap.Int("length", len(text)),
		zap.Int64("latency_ms", elapsed.Milliseconds()),
	)
	return text, nil
}

// BreakerStates reports the breaker state of each profile.
func (c *Client) BreakerStates() map[Profile]circuitbreaker.State {
	states := make(map[Profile]circuitbreaker.State, len(c.breakers))
	for name, cb := range c.breakers {
		states[name] = cb.State()
	}
	return states
}

func normalize(parent, call context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(call.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}

func resultOf(err error) string {
	switch {
	case errors.Is(err, ErrUpstreamTimeout):
		return "timeout"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "unavailable"
	default:
		return "canceled"
	}
}

func (c *Client) observe(profile Profile, result string, elapsed time.Duration) {
	if c.observer != nil {
		c.observer(profile, result, elapsed)
	}
}

// IsUpstream reports whether err came from the completion service rather
// than from the caller.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, ErrUpstreamTimeout)
}
