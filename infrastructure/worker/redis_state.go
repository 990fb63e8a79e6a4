package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statePrefix = "pixvault:"
	// runTTL caps how long finished run state lingers in redis.
	runTTL = 24 * time.Hour
)

// RedisState is the cross-process StateStore.
type RedisState struct {
	client *redis.Client
}

func NewRedisState(client *redis.Client) *RedisState {
	return &RedisState{client: client}
}

func (r *RedisState) statusKey(runKey string) string {
	return statePrefix + runKey + ":status"
}

func (r *RedisState) resultKey(runKey string) string {
	return statePrefix + runKey + ":result"
}

func (r *RedisState) InitRun(ctx context.Context, runKey string, stages []string) error {
	key := r.statusKey(runKey)

	fields := make(map[string]interface{}, len(stages))
	for _, s := range stages {
		fields[s] = StatusPending
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key, r.resultKey(runKey))
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, runTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("init run %s: %w", runKey, err)
	}
	return nil
}

func (r *RedisState) SetStatus(ctx context.Context, runKey, stage, status string) error {
	if err := r.client.HSet(ctx, r.statusKey(runKey), stage, status).Err(); err != nil {
		return fmt.Errorf("set status %s/%s: %w", runKey, stage, err)
	}
	return nil
}

func (r *RedisState) Statuses(ctx context.Context, runKey string) (map[string]string, error) {
	statuses, err := r.client.HGetAll(ctx, r.statusKey(runKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("read statuses %s: %w", runKey, err)
	}
	return statuses, nil
}

// claimScript flips pending→queued atomically so two workers finishing
// sibling stages cannot both enqueue the join stage.
var claimScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
  redis.call("HSET", KEYS[1], ARGV[1], ARGV[3])
  return 1
end
return 0
`)

func (r *RedisState) Claim(ctx context.Context, runKey, stage string) (bool, error) {
	n, err := claimScript.Run(ctx, r.client, []string{r.statusKey(runKey)}, stage, StatusPending, StatusQueued).Int()
	if err != nil {
		return false, fmt.Errorf("claim %s/%s: %w", runKey, stage, err)
	}
	return n == 1, nil
}

func (r *RedisState) SetResult(ctx context.Context, runKey, stage string, data []byte) error {
	key := r.resultKey(runKey)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, stage, data)
	pipe.Expire(ctx, key, runTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set result %s/%s: %w", runKey, stage, err)
	}
	return nil
}

func (r *RedisState) GetResult(ctx context.Context, runKey, stage string) ([]byte, bool, error) {
	data, err := r.client.HGet(ctx, r.resultKey(runKey), stage).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get result %s/%s: %w", runKey, stage, err)
	}
	return data, true, nil
}

func (r *RedisState) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, statePrefix+"lock:"+name, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return ok, nil
}

func (r *RedisState) ReleaseLock(ctx context.Context, name string) error {
	if err := r.client.Del(ctx, statePrefix+"lock:"+name).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}
