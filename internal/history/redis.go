package history

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a history store shared across bot processes. Processed marks
// expire with the configured window via key TTLs; filter verdicts persist.
type Redis struct {
	client *redis.Client
	prefix string
	window time.Duration
}

// NewRedis connects to the given address and verifies the connection.
func NewRedis(ctx context.Context, addr string, db int, prefix string, window time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	if prefix == "" {
		prefix = "taktik"
	}
	return &Redis{client: client, prefix: prefix, window: window}, nil
}

func (r *Redis) processedKey(account, username string) string {
	return fmt.Sprintf("%s:processed:%s:%s", r.prefix, account, username)
}

func (r *Redis) filteredKey(account, username string) string {
	return fmt.Sprintf("%s:filtered:%s:%s", r.prefix, account, username)
}

func (r *Redis) ProcessedWithin(ctx context.Context, account, username string, window time.Duration) (bool, error) {
	// The TTL set at write time already bounds the window; a narrower query
	// window than the configured one is not supported by this backend.
	n, err := r.client.Exists(ctx, r.processedKey(account, username)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (r *Redis) Filtered(ctx context.Context, account, username string) (bool, error) {
	n, err := r.client.Exists(ctx, r.filteredKey(account, username)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (r *Redis) MarkProcessed(ctx context.Context, account, username string) error {
	return r.client.Set(ctx, r.processedKey(account, username), time.Now().Unix(), r.window).Err()
}

func (r *Redis) MarkFiltered(ctx context.Context, account, username, reason string) error {
	return r.client.Set(ctx, r.filteredKey(account, username), reason, 0).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
