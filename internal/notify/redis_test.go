package notify

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisGateway(t *testing.T) (*RedisGateway, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisGateway(rdb, "arena:"), mr
}

func TestRedisGatewayQueuesForOfflineUsers(t *testing.T) {
	g, mr := newTestRedisGateway(t)
	ctx := context.Background()
	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	n, err := g.Deliver(ctx, users, Payload{Type: EventLobbyAssigned, TournamentID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, uid := range users {
		queued, err := mr.List(g.inboxKey(uid))
		require.NoError(t, err)
		assert.Len(t, queued, 1)
	}
}

func TestRedisGatewayReplaysInboxThenStreams(t *testing.T) {
	g, mr := newTestRedisGateway(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bob := uuid.New()
	tid := uuid.New()
	_, err := g.Deliver(ctx, []uuid.UUID{bob}, Payload{Type: EventLobbyCredentials, TournamentID: tid})
	require.NoError(t, err)

	ch, err := g.Subscribe(ctx, bob)
	require.NoError(t, err)
	replayed := recvPayload(t, ch)
	assert.Equal(t, EventLobbyCredentials, replayed.Type)
	assert.Equal(t, tid, replayed.TournamentID)

	n, err := g.Deliver(ctx, []uuid.UUID{bob}, Payload{Type: EventMessage, TournamentID: tid})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	live := recvPayload(t, ch)
	assert.Equal(t, EventMessage, live.Type)
	assert.False(t, mr.Exists(g.inboxKey(bob)), "live deliveries skip the inbox")
}

func TestRedisGatewayTrimsInbox(t *testing.T) {
	g, mr := newTestRedisGateway(t)
	g.inboxSize = 2
	ctx := context.Background()
	carol := uuid.New()

	for _, typ := range []string{EventLobbyAssigned, EventLobbyCredentials, EventMessage} {
		_, err := g.Deliver(ctx, []uuid.UUID{carol}, Payload{Type: typ})
		require.NoError(t, err)
	}
	queued, err := mr.List(g.inboxKey(carol))
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Contains(t, queued[0], EventLobbyCredentials)
	assert.Contains(t, queued[1], EventMessage)
}
