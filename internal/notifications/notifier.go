// Package notifications provides real-time presence and event delivery.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"ynetwork/internal/observability"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

const (
	userChannelPrefix = "ynetwork:rt:user:"
	broadcastChannel  = "ynetwork:rt:all"
)

// ErrPublishUnavailable is returned while the publish breaker is open.
var ErrPublishUnavailable = errors.New("realtime publish unavailable")

// Delivery is one event received from the fan-out channels.
// UserID is zero for broadcasts.
type Delivery struct {
	UserID uint
	Data   []byte
}

// Broadcast reports whether the delivery targets every connected user.
func (d Delivery) Broadcast() bool { return d.UserID == 0 }

// Notifier fans realtime events out through Redis pub/sub so every API instance can
// deliver them to its own websocket clients. Publishing sits behind a circuit breaker;
// callers fall back to local delivery when it is open.
type Notifier struct {
	rdb     *redis.Client
	breaker *gobreaker.CircuitBreaker
}

// NewNotifier creates a Notifier. A nil client disables fan-out.
func NewNotifier(rdb *redis.Client) *Notifier {
	n := &Notifier{rdb: rdb}
	if rdb != nil {
		n.breaker = newPublishBreaker()
	}
	return n
}

func newPublishBreaker() *gobreaker.CircuitBreaker {
	const name = "realtime_publish"
	observability.CircuitBreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.GlobalLogger.Warn("circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			observability.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
}

// Enabled reports whether a Redis client is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

func (n *Notifier) publish(ctx context.Context, channel string, payload []byte) error {
	_, err := n.breaker.Execute(func() (any, error) {
		return nil, n.rdb.Publish(ctx, channel, payload).Err()
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return ErrPublishUnavailable
	case err != nil:
		observability.RedisErrorRate.WithLabelValues("publish").Inc()
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// PublishUser sends an encoded event to one user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload []byte) error {
	if !n.Enabled() {
		return nil
	}
	return n.publish(ctx, UserChannel(userID), payload)
}

// PublishBroadcast sends an encoded event to every connected user on every instance.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload []byte) error {
	if !n.Enabled() {
		return nil
	}
	return n.publish(ctx, broadcastChannel, payload)
}

// Subscribe listens on the per-user and broadcast channels and calls onDelivery for each
// message until ctx is cancelled. It returns once the subscription is confirmed.
func (n *Notifier) Subscribe(ctx context.Context, onDelivery func(Delivery)) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*", broadcastChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe realtime channels: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				d := Delivery{Data: []byte(msg.Payload)}
				if msg.Channel != broadcastChannel {
					id, ok := parseUserChannel(msg.Channel)
					if !ok {
						observability.GlobalLogger.Warn("invalid realtime channel", slog.String("channel", msg.Channel))
						continue
					}
					d.UserID = id
				}
				safeDeliver(onDelivery, d)
			}
		}
	}()

	return nil
}

func safeDeliver(fn func(Delivery), d Delivery) {
	defer func() {
		if r := recover(); r != nil {
			observability.GlobalLogger.Error("panic in realtime subscriber",
				slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		}
	}()
	fn(d)
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

func parseUserChannel(channel string) (uint, bool) {
	rest, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
