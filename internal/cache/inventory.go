package cache

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"ynetwork/internal/observability"
)

// Every key the API writes lives under this namespace.
const keyspace = "yn:"

// TrendingTagsKey holds the ranked hashtag list served by GET /api/hashtags/trending.
const TrendingTagsKey = keyspace + "hashtags:trending"

const (
	UserTTL         = 5 * time.Minute
	WSTicketTTL     = 30 * time.Second
	TrendingTagsTTL = 2 * time.Minute
	UnreadCountTTL  = time.Minute
)

func idKey(kind string, id uint) string {
	return keyspace + kind + ":" + strconv.FormatUint(uint64(id), 10)
}

// UserKey caches a user's public profile.
func UserKey(userID uint) string { return idKey("user", userID) }

// UnreadCountKey caches a user's unread notification count.
func UnreadCountKey(userID uint) string { return idKey("unread", userID) }

// WSTicketKey maps a one-time websocket ticket to its user.
func WSTicketKey(ticket string) string { return keyspace + "wsticket:" + ticket }

// BlacklistKey marks a revoked token id until the token would have expired.
func BlacklistKey(jti string) string { return keyspace + "revoked:" + jti }

// Invalidate deletes keys. Failures are logged and otherwise ignored; the TTL bounds staleness.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "cache invalidation failed",
			slog.Any("keys", keys), slog.String("error", err.Error()))
	}
}

// InvalidateUser drops the cached profile of each user.
func InvalidateUser(ctx context.Context, userIDs ...uint) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, UserKey(id))
	}
	Invalidate(ctx, keys...)
}

func InvalidateUnreadCount(ctx context.Context, userID uint) {
	Invalidate(ctx, UnreadCountKey(userID))
}
