// Package dedup remembers recently processed webhook event ids so replays can
// be acknowledged without touching the database.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyFormat  = "storefront:webhook:dedup:%s"
	DefaultTTL = 48 * time.Hour
)

// Store is advisory: a miss never proves an event is new.
type Store interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// Redis keeps one key per event id with a TTL.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func Key(eventID string) string {
	return fmt.Sprintf(keyFormat, eventID)
}

func (r *Redis) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, Key(eventID)).Result()
	return n > 0, err
}

func (r *Redis) Mark(ctx context.Context, eventID string) error {
	return r.rdb.SetNX(ctx, Key(eventID), "1", r.ttl).Err()
}

// Nop never reports an event as seen.
type Nop struct{}

func (Nop) Seen(context.Context, string) (bool, error) { return false, nil }
func (Nop) Mark(context.Context, string) error         { return nil }
