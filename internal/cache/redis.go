// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis opens a Redis client and pings it once.
func ConnectRedis(addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Redis stores entries as a JSON envelope carrying the expiry next to the
// value, and also sets the key's own expiry so Redis evicts it.
type Redis struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

type envelope struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewRedis wraps rdb; keys are namespaced under prefix.
func NewRedis(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, now: time.Now}
}

func (c *Redis) key(k string) string {
	return c.prefix + k
}

func (c *Redis) genKey(k string) string {
	return c.prefix + "gen:" + k
}

// setIfGenScript writes KEYS[2] only while the generation counter in
// KEYS[1] still equals ARGV[1]. A missing counter is generation 0.
var setIfGenScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if (cur or "0") ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

func (c *Redis) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Entry{}, false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	e := Entry{Value: env.Value, ExpiresAt: env.ExpiresAt}
	if e.Expired(c.now()) {
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (c *Redis) Set(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	if !expiresAt.After(c.now()) {
		return nil
	}
	raw, err := json.Marshal(envelope{Value: value, ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.rdb.SetArgs(ctx, c.key(key), raw, redis.SetArgs{ExpireAt: expiresAt}).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *Redis) Generation(ctx context.Context, key string) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.genKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache generation %s: %w", key, err)
	}
	return gen, nil
}

func (c *Redis) SetIfGeneration(ctx context.Context, key string, gen int64, value []byte, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(c.now())
	if ttl < time.Millisecond {
		return false, nil
	}
	raw, err := json.Marshal(envelope{Value: value, ExpiresAt: expiresAt})
	if err != nil {
		return false, fmt.Errorf("cache encode %s: %w", key, err)
	}
	n, err := setIfGenScript.Run(ctx, c.rdb,
		[]string{c.genKey(key), c.key(key)},
		strconv.FormatInt(gen, 10), raw, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("cache set %s: %w", key, err)
	}
	return n == 1, nil
}

// Invalidate bumps each key's generation and deletes its entry in one
// transaction.
func (c *Redis) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Incr(ctx, c.genKey(k))
			p.Del(ctx, c.key(k))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
