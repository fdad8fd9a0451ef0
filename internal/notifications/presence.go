package notifications

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"ynetwork/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPresenceOnlineSetKey  = "ws:online_users"
	defaultPresenceLastSeenKeyNS = "ws:last_seen:"
	defaultPresenceTTL           = 90 * time.Second
	defaultReaperInterval        = 60 * time.Second
)

// PresenceMirrorConfig controls the Redis keys and expiry used by PresenceMirror.
type PresenceMirrorConfig struct {
	OnlineSetKey      string
	LastSeenKeyPrefix string
	LastSeenTTL       time.Duration
	ReaperInterval    time.Duration
}

// PresenceMirror copies the local registry into Redis so any instance can list who is online.
// Each online user has a member in a set plus a last-seen key with a TTL; members whose key
// has expired are stale and get reaped.
type PresenceMirror struct {
	rdb *redis.Client

	onlineSetKey      string
	lastSeenKeyPrefix string
	lastSeenTTL       time.Duration
	reaperInterval    time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPresenceMirror returns a mirror. A nil client yields a mirror that does nothing.
func NewPresenceMirror(rdb *redis.Client, cfg PresenceMirrorConfig) *PresenceMirror {
	m := &PresenceMirror{
		rdb:               rdb,
		onlineSetKey:      defaultPresenceOnlineSetKey,
		lastSeenKeyPrefix: defaultPresenceLastSeenKeyNS,
		lastSeenTTL:       defaultPresenceTTL,
		reaperInterval:    defaultReaperInterval,
		stopCh:            make(chan struct{}),
	}
	if cfg.OnlineSetKey != "" {
		m.onlineSetKey = cfg.OnlineSetKey
	}
	if cfg.LastSeenKeyPrefix != "" {
		m.lastSeenKeyPrefix = cfg.LastSeenKeyPrefix
	}
	if cfg.LastSeenTTL > 0 {
		m.lastSeenTTL = cfg.LastSeenTTL
	}
	if cfg.ReaperInterval > 0 {
		m.reaperInterval = cfg.ReaperInterval
	}
	return m
}

// Start runs the reaper until Stop is called.
func (m *PresenceMirror) Start() {
	if m.rdb == nil || m.reaperInterval <= 0 {
		return
	}
	go m.reaperLoop()
}

// Stop ends the reaper loop.
func (m *PresenceMirror) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Touch marks userID as online and refreshes its last-seen expiry.
func (m *PresenceMirror) Touch(ctx context.Context, userID uint) {
	if m.rdb == nil {
		return
	}
	uid := strconv.FormatUint(uint64(userID), 10)
	_, err := m.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, m.onlineSetKey, uid)
		p.SetEx(ctx, m.lastSeenKey(userID), strconv.FormatInt(time.Now().Unix(), 10), m.lastSeenTTL)
		return nil
	})
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("presence_touch").Inc()
		observability.GlobalLogger.Warn("presence touch failed",
			slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
	}
}

// Remove clears userID from the mirror.
func (m *PresenceMirror) Remove(ctx context.Context, userID uint) {
	if m.rdb == nil {
		return
	}
	uid := strconv.FormatUint(uint64(userID), 10)
	_, err := m.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SRem(ctx, m.onlineSetKey, uid)
		p.Del(ctx, m.lastSeenKey(userID))
		return nil
	})
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("presence_remove").Inc()
		observability.GlobalLogger.Warn("presence remove failed",
			slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
	}
}

// OnlineUserIDs returns the users whose last-seen key is still live.
func (m *PresenceMirror) OnlineUserIDs(ctx context.Context) ([]uint, error) {
	if m.rdb == nil {
		return nil, nil
	}
	members, err := m.rdb.SMembers(ctx, m.onlineSetKey).Result()
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("presence_list").Inc()
		return nil, err
	}

	ids := make([]uint, 0, len(members))
	for _, raw := range members {
		id64, parseErr := strconv.ParseUint(raw, 10, 64)
		if parseErr != nil {
			continue
		}
		exists, existsErr := m.rdb.Exists(ctx, m.lastSeenKey(uint(id64))).Result()
		if existsErr != nil || exists == 0 {
			continue
		}
		ids = append(ids, uint(id64))
	}
	return ids, nil
}

// reapOnce removes set members whose last-seen key has expired and returns how many were removed.
func (m *PresenceMirror) reapOnce(ctx context.Context) int {
	if m.rdb == nil {
		return 0
	}
	members, err := m.rdb.SMembers(ctx, m.onlineSetKey).Result()
	if err != nil {
		return 0
	}

	removed := 0
	for _, raw := range members {
		id64, parseErr := strconv.ParseUint(raw, 10, 64)
		if parseErr != nil {
			_ = m.rdb.SRem(ctx, m.onlineSetKey, raw).Err()
			continue
		}
		exists, existsErr := m.rdb.Exists(ctx, m.lastSeenKey(uint(id64))).Result()
		if existsErr != nil || exists > 0 {
			continue
		}
		if m.rdb.SRem(ctx, m.onlineSetKey, raw).Val() > 0 {
			removed++
		}
	}
	return removed
}

func (m *PresenceMirror) reaperLoop() {
	ctx := context.Background()
	ticker := time.NewTicker(m.reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.reapOnce(ctx)
		}
	}
}

func (m *PresenceMirror) lastSeenKey(userID uint) string {
	return m.lastSeenKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}
