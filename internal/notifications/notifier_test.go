package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.PublishUser(context.Background(), 1, []byte("x")))
	assert.NoError(t, n.PublishBroadcast(context.Background(), []byte("x")))
	assert.NoError(t, n.Subscribe(context.Background(), func(Delivery) { t.Fatal("unexpected delivery") }))
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "ynetwork:rt:user:42", UserChannel(42))

	id, ok := parseUserChannel(UserChannel(100))
	assert.True(t, ok)
	assert.Equal(t, uint(100), id)

	for _, bad := range []string{"ynetwork:rt:user:", "ynetwork:rt:user:abc", "ynetwork:rt:user:0", "chat:conv:1", broadcastChannel} {
		_, ok := parseUserChannel(bad)
		assert.False(t, ok, bad)
	}
}

func TestNotifier_SubscribeDeliversTypedEvents(t *testing.T) {
	_, rdb := newTestRedis(t)
	n := NewNotifier(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Delivery, 4)
	require.NoError(t, n.Subscribe(ctx, func(d Delivery) { got <- d }))

	require.NoError(t, n.PublishUser(ctx, 9, []byte("direct")))
	select {
	case d := <-got:
		assert.Equal(t, uint(9), d.UserID)
		assert.False(t, d.Broadcast())
		assert.Equal(t, "direct", string(d.Data))
	case <-time.After(time.Second):
		t.Fatal("user delivery not received")
	}

	require.NoError(t, n.PublishBroadcast(ctx, []byte("everyone")))
	select {
	case d := <-got:
		assert.True(t, d.Broadcast())
		assert.Equal(t, "everyone", string(d.Data))
	case <-time.After(time.Second):
		t.Fatal("broadcast not received")
	}
}

func TestNotifier_SubscriberSurvivesPanic(t *testing.T) {
	_, rdb := newTestRedis(t)
	n := NewNotifier(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 2)
	require.NoError(t, n.Subscribe(ctx, func(d Delivery) {
		if string(d.Data) == "boom" {
			panic("handler failure")
		}
		got <- string(d.Data)
	}))

	require.NoError(t, n.PublishUser(ctx, 1, []byte("boom")))
	require.NoError(t, n.PublishUser(ctx, 1, []byte("after")))

	select {
	case s := <-got:
		assert.Equal(t, "after", s)
	case <-time.After(time.Second):
		t.Fatal("subscriber stopped after panic")
	}
}

func TestNotifier_SubscriberStopsOnCancel(t *testing.T) {
	_, rdb := newTestRedis(t)
	n := NewNotifier(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan string, 4)
	require.NoError(t, n.Subscribe(ctx, func(d Delivery) { got <- string(d.Data) }))

	require.NoError(t, n.PublishUser(context.Background(), 1, []byte("before-cancel")))
	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("delivery before cancel not received")
	}

	cancel()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, n.PublishUser(context.Background(), 1, []byte("after-cancel")))
	assert.Never(t, func() bool {
		select {
		case s := <-got:
			return s == "after-cancel"
		default:
			return false
		}
	}, 200*time.Millisecond, 10*time.Millisecond)
}

func TestNotifier_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	mr, rdb := newTestRedis(t)
	n := NewNotifier(rdb)
	ctx := context.Background()

	mr.SetError("ERR simulated outage")
	for i := 0; i < 5; i++ {
		err := n.PublishUser(ctx, 1, []byte("x"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrPublishUnavailable)
	}

	mr.SetError("")
	assert.ErrorIs(t, n.PublishUser(ctx, 1, []byte("x")), ErrPublishUnavailable)
	assert.ErrorIs(t, n.PublishBroadcast(ctx, []byte("x")), ErrPublishUnavailable)
}
