package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

// nextEvent pops queued events until one of the wanted type appears.
func nextEvent(t *testing.T, c *Handle, eventType string) json.RawMessage {
	t.Helper()
	deadline := time.After(testEventuallyTimeout)
	for {
		select {
		case raw := <-c.out:
			var env struct {
				Type    string          `json:"type"`
				Payload json.RawMessage `json:"payload"`
			}
			require.NoError(t, json.Unmarshal(raw, &env))
			if env.Type == eventType {
				return env.Payload
			}
		case <-deadline:
			t.Fatalf("no %s event for user %d", eventType, c.UserID)
			return nil
		}
	}
}

func drain(c *Handle) {
	for {
		select {
		case <-c.out:
		default:
			return
		}
	}
}

func TestRegistry_RegisterReplacesHandle(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()

	first, err := r.Register(ctx, 7, nil)
	require.NoError(t, err)
	second, err := r.Register(ctx, 7, nil)
	require.NoError(t, err)

	got, ok := r.Lookup(7)
	require.True(t, ok)
	assert.Same(t, second, got)

	select {
	case <-first.Done():
	default:
		t.Fatal("superseded client was not closed")
	}
	assert.Equal(t, closeSuperseded, first.closing)
	assert.Equal(t, []uint{7}, r.OnlineUserIDs(ctx))
}

func TestRegistry_StaleUnregisterIsNoop(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()

	old, err := r.Register(ctx, 3, nil)
	require.NoError(t, err)
	current, err := r.Register(ctx, 3, nil)
	require.NoError(t, err)

	r.Unregister(old)

	got, ok := r.Lookup(3)
	require.True(t, ok, "stale disconnect must not remove the newer connection")
	assert.Same(t, current, got)

	r.Unregister(current)
	_, ok = r.Lookup(3)
	assert.False(t, ok)
	assert.Empty(t, r.OnlineUserIDs(ctx))
}

func TestRegistry_OnlineListBroadcast(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()

	alice, err := r.Register(ctx, 1, nil)
	require.NoError(t, err)
	drain(alice)

	bob, err := r.Register(ctx, 2, nil)
	require.NoError(t, err)

	var payload OnlineUsersPayload
	require.NoError(t, json.Unmarshal(nextEvent(t, alice, EventGetOnlineUsers), &payload))
	assert.Equal(t, []uint{1, 2}, payload.UserIDs)

	drain(alice)
	r.Unregister(bob)
	require.NoError(t, json.Unmarshal(nextEvent(t, alice, EventGetOnlineUsers), &payload))
	assert.Equal(t, []uint{1}, payload.UserIDs)
}

func TestRegistry_EmitToOnlineAndOfflineUsers(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()

	c, err := r.Register(ctx, 9, nil)
	require.NoError(t, err)
	drain(c)

	r.Emit(ctx, 9, EventNewMessage, map[string]any{"content": "hi"})
	var msg map[string]any
	require.NoError(t, json.Unmarshal(nextEvent(t, c, EventNewMessage), &msg))
	assert.Equal(t, "hi", msg["content"])

	assert.NotPanics(t, func() { r.Emit(ctx, 404, EventNewMessage, map[string]any{}) })
}

func TestHandle_QueueDropsWhenFull(t *testing.T) {
	h := newHandle(1, nil)

	for i := 0; i < outboxSize; i++ {
		require.True(t, h.Queue([]byte("x")))
	}
	assert.False(t, h.Queue([]byte("overflow")))

	h.Close()
	h.Close()
	assert.False(t, h.Queue([]byte("after close")))
}

func TestHandle_FirstCloseReasonWins(t *testing.T) {
	h := newHandle(1, nil)
	h.Close()
	h.closeWith(closeSuperseded)
	assert.Equal(t, closeNormal, h.closing)

	r := NewRegistry(nil, nil)
	ctx := context.Background()
	kept, err := r.Register(ctx, 2, nil)
	require.NoError(t, err)
	r.Unregister(kept)
	assert.Equal(t, closeNormal, kept.closing, "an ordinary disconnect is not a replacement")
}

func TestRegistry_ShutdownRejectsNewClients(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()

	c, err := r.Register(ctx, 1, nil)
	require.NoError(t, err)

	require.NoError(t, r.Shutdown(ctx))
	select {
	case <-c.Done():
	default:
		t.Fatal("client not closed on shutdown")
	}

	_, err = r.Register(ctx, 2, nil)
	assert.ErrorIs(t, err, ErrRegistryClosed)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRegistry_DeliversThroughRedis(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := NewNotifier(rdb)
	r := NewRegistry(NewPresenceMirror(rdb, PresenceMirrorConfig{}), notifier)
	require.NoError(t, r.StartWiring(ctx))

	c, err := r.Register(ctx, 5, nil)
	require.NoError(t, err)

	var payload OnlineUsersPayload
	require.NoError(t, json.Unmarshal(nextEvent(t, c, EventGetOnlineUsers), &payload))
	assert.Equal(t, []uint{5}, payload.UserIDs)

	r.Emit(ctx, 5, EventNewNotification, map[string]any{"type": "like"})
	var n map[string]any
	require.NoError(t, json.Unmarshal(nextEvent(t, c, EventNewNotification), &n))
	assert.Equal(t, "like", n["type"])
}

func TestRegistry_OnlineUsersIncludeOtherInstances(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	other := NewPresenceMirror(rdb, PresenceMirrorConfig{})
	other.Touch(ctx, 42)

	r := NewRegistry(NewPresenceMirror(rdb, PresenceMirrorConfig{}), nil)
	_, err := r.Register(ctx, 1, nil)
	require.NoError(t, err)

	assert.Equal(t, []uint{1, 42}, r.OnlineUserIDs(ctx))
}

func TestPresenceMirror_ReapsExpiredMembers(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	m := NewPresenceMirror(rdb, PresenceMirrorConfig{LastSeenTTL: time.Second})
	m.Touch(ctx, 10)
	m.Touch(ctx, 11)
	require.NoError(t, rdb.SAdd(ctx, defaultPresenceOnlineSetKey, "44").Err())

	mr.FastForward(2 * time.Second)
	m.Touch(ctx, 11)

	assert.Equal(t, 2, m.reapOnce(ctx))
	ids, err := m.OnlineUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint{11}, ids)

	m.Remove(ctx, 11)
	ids, err = m.OnlineUserIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
