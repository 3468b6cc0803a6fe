package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisEndpoint(t *testing.T, addr string) *Redis {
	t.Helper()

	r := NewRedis(redis.NewClient(&redis.Options{Addr: addr, Protocol: 2}), zap.NewNop())
	t.Cleanup(func() { _ = r.Close() })

	return r
}

func next(t *testing.T, ch <-chan Message) Message {
	t.Helper()

	select {
	case m, ok := <-ch:
		require.True(t, ok, "channel closed")
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func closed(ch <-chan Message) func() bool {
	return func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}
}

func TestRedisDeliversToOtherEndpointsOnly(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newRedisEndpoint(t, mr.Addr())
	b := newRedisEndpoint(t, mr.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fromA, err := a.Subscribe(ctx)
	require.NoError(t, err)
	fromB, err := b.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, a.Publish(ctx, NewSyncUpdate("store", 3)))

	m := next(t, fromB)
	assert.True(t, m.IsSyncUpdate())
	assert.Equal(t, "store", m.Store)
	assert.Equal(t, uint64(3), m.Revision)
	assert.Equal(t, a.ID(), m.Origin)

	_, ok := receive(t, fromA)
	assert.False(t, ok, "an endpoint doesn't hear itself")
}

func TestRedisIgnoresForeignPayloads(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newRedisEndpoint(t, mr.Addr())
	b := newRedisEndpoint(t, mr.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fromB, err := b.Subscribe(ctx)
	require.NoError(t, err)

	mr.Publish(ChannelName, "not json")
	mr.Publish(ChannelName, `{"type":"PING","timestamp":1}`)
	require.NoError(t, a.Publish(ctx, NewSyncUpdate("store", 4)))

	m := next(t, fromB)
	assert.Equal(t, uint64(4), m.Revision, "only sync updates come through")
}

func TestRedisDropsForSlowSubscribers(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newRedisEndpoint(t, mr.Addr())
	b := newRedisEndpoint(t, mr.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fromB, err := b.Subscribe(ctx)
	require.NoError(t, err)

	for i := 1; i <= 40; i++ {
		require.NoError(t, a.Publish(ctx, NewSyncUpdate("store", uint64(i))))
	}

	require.Eventually(t, func() bool { return len(fromB) == subscriberBuffer }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, subscriberBuffer, len(fromB))

	assert.Equal(t, uint64(1), next(t, fromB).Revision, "the oldest messages are kept")
}

func TestRedisSubscriptionEndsWithContext(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newRedisEndpoint(t, mr.Addr())

	ctx, cancel := context.WithCancel(context.Background())

	fromA, err := a.Subscribe(ctx)
	require.NoError(t, err)

	cancel()
	assert.Eventually(t, closed(fromA), 2*time.Second, 5*time.Millisecond)
}

func TestRedisSubscribeFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	a := newRedisEndpoint(t, addr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := a.Subscribe(ctx)
	assert.ErrorContains(t, err, "redis subscribe")
}
