package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nadmax/medrank/internal/ranking"
	"github.com/redis/go-redis/v9"
)

const (
	generationKey  = "medrank:rankings:generation"
	rankingsPrefix = "medrank:rankings:"
)

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Redis{
		client: client,
		ttl:    ttl,
	}, nil
}

func (c *Redis) Lookup(ctx context.Context, fingerprint string) (int64, []ranking.StudentRanking, bool, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, nil, false, fmt.Errorf("failed to read rankings generation: %w", err)
	}

	data, err := c.client.Get(ctx, rankingsKey(gen, fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return gen, nil, false, nil
	}
	if err != nil {
		return gen, nil, false, fmt.Errorf("failed to read rankings: %w", err)
	}

	var rankings []ranking.StudentRanking
	if err := json.Unmarshal(data, &rankings); err != nil {
		return gen, nil, false, fmt.Errorf("failed to decode rankings: %w", err)
	}

	return gen, rankings, true, nil
}

func (c *Redis) Store(ctx context.Context, gen int64, fingerprint string, rankings []ranking.StudentRanking) error {
	data, err := json.Marshal(rankings)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, rankingsKey(gen, fingerprint), data, c.ttl).Err()
}

func (c *Redis) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, generationKey).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}

func rankingsKey(gen int64, fingerprint string) string {
	return fmt.Sprintf("%s%d:%s", rankingsPrefix, gen, fingerprint)
}
