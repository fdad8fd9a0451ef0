package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedApp(rl *RateLimiter, lim Limit, uid uint) *fiber.App {
	app := fiber.New()
	app.Post("/send", func(c *fiber.Ctx) error {
		if uid != 0 {
			c.Locals("userID", uid)
		}
		return c.Next()
	}, rl.Handler(lim), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	return app
}

func TestRateLimiterDisabledOutsideProduction(t *testing.T) {
	for _, env := range []string{"", "test", "development", "stress"} {
		rl := NewRateLimiter(nil, env)
		d, err := rl.Allow(context.Background(), Limit{Name: "x", Requests: 1, Window: time.Minute}, "ip:1")
		require.NoError(t, err, env)
		assert.True(t, d.Allowed, env)
	}
}

func TestRateLimiterMissingStore(t *testing.T) {
	rl := NewRateLimiter(nil, "production")
	_, err := rl.Allow(context.Background(), LimitSearch, "ip:1")
	assert.ErrorIs(t, err, errNoStore)

	open := newLimitedApp(rl, Limit{Name: "feed", Requests: 1, Window: time.Minute}, 0)
	resp, err := open.Test(httptest.NewRequest(http.MethodPost, "/send", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	closed := newLimitedApp(rl, LimitLogin, 0)
	resp, err = closed.Test(httptest.NewRequest(http.MethodPost, "/send", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "SERVICE_UNAVAILABLE", body["code"])
}

func TestRateLimiterWithMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	lim := Limit{Name: "send_message", Requests: 2, Window: time.Minute}
	app := newLimitedApp(NewRateLimiter(rdb, "production"), lim, 7)

	var last *http.Response
	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/send", nil))
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
		last = resp
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, statuses)
	assert.Equal(t, "0", last.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, last.Header.Get(fiber.HeaderRetryAfter))

	var body map[string]any
	require.NoError(t, json.NewDecoder(last.Body).Decode(&body))
	assert.Equal(t, "Too many requests, please try again later.", body["message"])

	assert.Equal(t, []string{"rl:send_message:user:7"}, mr.Keys())
	assert.Greater(t, mr.TTL("rl:send_message:user:7"), time.Duration(0))

	mr.FastForward(2 * time.Minute)
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/send", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestRateLimiterKeysAnonymousCallersByIP(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	app := newLimitedApp(NewRateLimiter(rdb, "production"), LimitSignup, 0)
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/send", nil))
	require.NoError(t, err)
	assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Remaining"))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "rl:signup:ip:")
}
