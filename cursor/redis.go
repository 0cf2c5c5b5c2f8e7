package cursor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/truemediaorg/detectbot/model"
	"github.com/truemediaorg/detectbot/twitter"
)

const keyPrefix = "detectbot:cursor:"

// Redis keeps cursors in Redis so they survive restarts and are shared by replicas.
type Redis struct {
	client *redis.Client
	seed   Seeder
}

// NewRedisClient parses a redis:// URL and checks the server answers.
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func NewRedis(client *redis.Client, seed Seeder) *Redis {
	return &Redis{client: client, seed: seed}
}

func (r *Redis) Get(ctx context.Context, platform model.Platform) (string, error) {
	id, err := r.client.Get(ctx, key(platform)).Result()
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("read cursor: %w", err)
	}

	id, err = seedFor(ctx, r.seed, platform)
	if err != nil || id == "" {
		return id, err
	}
	// another replica may have written one meanwhile
	if err := r.client.SetNX(ctx, key(platform), id, 0).Err(); err != nil {
		return "", fmt.Errorf("seed cursor: %w", err)
	}
	return id, nil
}

func (r *Redis) Advance(ctx context.Context, platform model.Platform, id string) error {
	if id == "" {
		return nil
	}
	k := key(platform)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, k).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if twitter.CompareIDs(id, current) <= 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, id, 0)
			return nil
		})
		return err
	}, k)
	if errors.Is(err, redis.TxFailedErr) {
		// lost the race to a concurrent writer; it moved the cursor already
		return nil
	}
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	return nil
}

func key(platform model.Platform) string {
	return keyPrefix + string(platform)
}
