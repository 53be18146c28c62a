package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper records fired (task, reminder) pairs in Redis so concurrent
// instances never send the same reminder twice. Keys expire after the TTL;
// a reminder timestamp is never re-added to a task, so a bounded TTL is
// safe.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(taskID string, ts int64) string {
	return fmt.Sprintf("reminder:%s:%d", taskID, ts)
}

// Add records the pair if it does not already exist. It returns true when
// the pair was newly recorded and the caller owns the send.
func (r *RedisDeduper) Add(ctx context.Context, taskID string, ts int64) (bool, error) {
	return r.client.SetNX(ctx, r.key(taskID, ts), 1, r.ttl).Result()
}

// Remove deletes a previously recorded pair. It is used when the downstream
// enqueue fails so another sweep may retry the reminder.
func (r *RedisDeduper) Remove(ctx context.Context, taskID string, ts int64) error {
	return r.client.Del(ctx, r.key(taskID, ts)).Err()
}

// AddMany records the pairs for one task in a single pipeline and returns
// which timestamps were newly recorded. On error the slice holds the
// results for commands processed before the failure.
func (r *RedisDeduper) AddMany(ctx context.Context, taskID string, timestamps []int64) ([]bool, error) {
	if len(timestamps) == 0 {
		return nil, nil
	}

	results := make([]bool, len(timestamps))
	cmds, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, ts := range timestamps {
			pipe.SetNX(ctx, r.key(taskID, ts), 1, r.ttl)
		}
		return nil
	})
	if err != nil {
		return results, err
	}
	if len(cmds) != len(timestamps) {
		return results, fmt.Errorf("deduper pipeline mismatch: expected %d results, got %d", len(timestamps), len(cmds))
	}
	for i, cmd := range cmds {
		boolCmd, ok := cmd.(*redis.BoolCmd)
		if !ok {
			return results, fmt.Errorf("unexpected redis response type %T", cmd)
		}
		val, cmdErr := boolCmd.Result()
		if cmdErr != nil {
			return results, cmdErr
		}
		results[i] = val
	}
	return results, nil
}
