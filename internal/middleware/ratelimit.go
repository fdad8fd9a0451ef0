package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"ynetwork/internal/models"
	"ynetwork/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when the counter store is unreachable.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

// Limit is a named fixed-window quota.
type Limit struct {
	Name     string
	Requests int
	Window   time.Duration
	Policy   FailPolicy
}

// Per-action quotas. Counters are keyed per user, or per IP before login.
var (
	LimitSignup        = Limit{Name: "signup", Requests: 3, Window: 10 * time.Minute, Policy: FailClosed}
	LimitLogin         = Limit{Name: "login", Requests: 10, Window: 5 * time.Minute, Policy: FailClosed}
	LimitSearch        = Limit{Name: "search", Requests: 30, Window: time.Minute}
	LimitFollow        = Limit{Name: "follow", Requests: 30, Window: time.Minute}
	LimitCreatePost    = Limit{Name: "create_post", Requests: 10, Window: time.Minute}
	LimitCreateComment = Limit{Name: "create_comment", Requests: 20, Window: time.Minute}
	LimitSendMessage   = Limit{Name: "send_message", Requests: 30, Window: time.Minute}
	LimitCreateGroup   = Limit{Name: "create_group", Requests: 5, Window: time.Hour}
	LimitCreateEvent   = Limit{Name: "create_event", Requests: 10, Window: time.Hour}
	LimitReport        = Limit{Name: "report", Requests: 10, Window: time.Hour}
	LimitUpload        = Limit{Name: "upload", Requests: 20, Window: time.Hour}
)

var errNoStore = errors.New("rate limit store not configured")

// Decision is the outcome of one counter increment.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter enforces Limits with Redis INCR counters.
type RateLimiter struct {
	rdb      *redis.Client
	disabled bool
}

// NewRateLimiter returns a limiter for env. Limits are not enforced in test, development or stress.
func NewRateLimiter(rdb *redis.Client, env string) *RateLimiter {
	switch env {
	case "", "test", "development", "stress":
		return &RateLimiter{rdb: rdb, disabled: true}
	}
	return &RateLimiter{rdb: rdb}
}

// Allow counts one hit of id against lim.
func (r *RateLimiter) Allow(ctx context.Context, lim Limit, id string) (Decision, error) {
	if r.disabled {
		return Decision{Allowed: true, Remaining: lim.Requests}, nil
	}
	if r.rdb == nil {
		return Decision{}, errNoStore
	}

	key := "rl:" + lim.Name + ":" + id
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.ExpireNX(ctx, key, lim.Window)
		ttl = p.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("ratelimit_incr").Inc()
		return Decision{}, err
	}

	count := int(incr.Val())
	d := Decision{Allowed: count <= lim.Requests, Remaining: max(lim.Requests-count, 0)}
	if !d.Allowed {
		d.RetryAfter = ttl.Val()
		if d.RetryAfter <= 0 {
			d.RetryAfter = lim.Window
		}
	}
	return d, nil
}

// Handler returns middleware enforcing lim on the route it wraps.
func (r *RateLimiter) Handler(lim Limit) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
			id = "user:" + strconv.FormatUint(uint64(uid), 10)
		}

		d, err := r.Allow(c.UserContext(), lim, id)
		if err != nil {
			if lim.Policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing closed",
					slog.String("limit", lim.Name),
					slog.String("error", err.Error()),
				)
				return models.RespondWithError(c, fiber.StatusServiceUnavailable,
					models.NewServiceUnavailableError("Service temporarily unavailable, please retry", err))
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(lim.Requests))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(d.RetryAfter.Round(time.Second).Seconds())))
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later."))
		}
		return c.Next()
	}
}
