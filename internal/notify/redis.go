// internal/notify/redis.go
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	redisBatchSize   = 500
	redisParallelism = 4
	inboxTTL         = 24 * time.Hour
)

// RedisGateway fans payloads out across server instances. Each user has a
// pub/sub channel that live WebSocket sessions listen on; when nobody is
// listening the payload is appended to the user's inbox list instead.
type RedisGateway struct {
	rdb       *redis.Client
	prefix    string
	inboxSize int64
}

// NewRedisGateway uses rdb with keys under prefix (e.g. "arena:").
func NewRedisGateway(rdb *redis.Client, prefix string) *RedisGateway {
	return &RedisGateway{rdb: rdb, prefix: prefix, inboxSize: defaultInboxSize}
}

func (g *RedisGateway) channelKey(uid uuid.UUID) string {
	return g.prefix + "notify:" + uid.String()
}

func (g *RedisGateway) inboxKey(uid uuid.UUID) string {
	return g.prefix + "inbox:" + uid.String()
}

// Deliver publishes in batches of pipelined commands, several batches at
// a time. The count covers users whose publish or inbox write succeeded.
func (g *RedisGateway) Deliver(ctx context.Context, userIDs []uuid.UUID, payload Payload) (int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	var delivered atomic.Int64
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(redisParallelism)
	for start := 0; start < len(userIDs); start += redisBatchSize {
		batch := userIDs[start:min(start+redisBatchSize, len(userIDs))]
		eg.Go(func() error {
			n, err := g.deliverBatch(egCtx, batch, data)
			delivered.Add(int64(n))
			return err
		})
	}
	err = eg.Wait()
	return int(delivered.Load()), err
}

func (g *RedisGateway) deliverBatch(ctx context.Context, batch []uuid.UUID, data []byte) (int, error) {
	pubs := make([]*redis.IntCmd, len(batch))
	_, err := g.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, uid := range batch {
			pubs[i] = p.Publish(ctx, g.channelKey(uid), data)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("publish batch: %w", err)
	}

	delivered := 0
	var offline []uuid.UUID
	for i, cmd := range pubs {
		if cmd.Val() > 0 {
			delivered++
			continue
		}
		offline = append(offline, batch[i])
	}
	if len(offline) == 0 {
		return delivered, nil
	}

	_, err = g.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, uid := range offline {
			key := g.inboxKey(uid)
			p.RPush(ctx, key, data)
			p.LTrim(ctx, key, -g.inboxSize, -1)
			p.Expire(ctx, key, inboxTTL)
		}
		return nil
	})
	if err != nil {
		return delivered, fmt.Errorf("queue inbox batch: %w", err)
	}
	return delivered + len(offline), nil
}

// Subscribe listens on the user's channel until ctx is done, replaying the
// inbox once the subscription is confirmed.
func (g *RedisGateway) Subscribe(ctx context.Context, userID uuid.UUID) (<-chan []byte, error) {
	ps := g.rdb.Subscribe(ctx, g.channelKey(userID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", userID, err)
	}

	out := make(chan []byte, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()

		send := func(b []byte) bool {
			select {
			case out <- b:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			raw, err := g.rdb.LPop(ctx, g.inboxKey(userID)).Bytes()
			if errors.Is(err, redis.Nil) {
				break
			}
			if err != nil {
				log.Warnf("notify: inbox replay for %s failed: %v", userID, err)
				break
			}
			if !send(raw) {
				return
			}
		}

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				if !send([]byte(m.Payload)) {
					return
				}
			}
		}
	}()
	return out, nil
}
