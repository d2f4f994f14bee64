package ratelimit

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestTakeRefillsOverTime(t *testing.T) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := New(Config{RequestsPerMinute: 2, Now: clk.now})
	defer rl.Stop()

	_, ok := rl.take("a")
	assert.True(t, ok)
	left, ok := rl.take("a")
	assert.True(t, ok)
	assert.Zero(t, left)
	_, ok = rl.take("a")
	assert.False(t, ok)

	_, ok = rl.take("b")
	assert.True(t, ok, "buckets are per client")

	clk.advance(30 * time.Second)
	_, ok = rl.take("a")
	assert.True(t, ok)
}

func TestEvictIdle(t *testing.T) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := New(Config{RequestsPerMinute: 10, Now: clk.now})
	defer rl.Stop()

	rl.take("a")
	clk.advance(11 * time.Minute)
	rl.evictIdle()
	assert.Empty(t, rl.buckets)
}

func TestMiddlewareRejectsWith429(t *testing.T) {
	rl := New(Config{RequestsPerMinute: 1})
	defer rl.Stop()

	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(ClientHeader, "client-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(ClientHeader, "client-1")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))
}

func TestStopEndsCleanup(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	rl := New(Config{})
	rl.Stop()
	rl.Stop()
}

func TestMiddlewareSharesClientKey(t *testing.T) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := New(Config{RequestsPerMinute: 2, Now: clk.now})
	defer rl.Stop()

	app := fiber.New()
	app.Get("/", rl.Middleware(), func(c *fiber.Ctx) error {
		client, _ := c.Locals(LocalsKey).(string)
		return c.SendString(client)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(ClientHeader, "kiosk-7")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.True(t, rl.Allow("kiosk-7"))
	assert.False(t, rl.Allow("kiosk-7"), "the request and one message spend the bucket")
}
