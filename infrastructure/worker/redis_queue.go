package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a Queue over redis lists, one list per lane.
type RedisQueue struct {
	client     *redis.Client
	popTimeout time.Duration
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client, popTimeout: 2 * time.Second}
}

func (q *RedisQueue) key(lane string) string {
	return statePrefix + "queue:" + lane
}

func (q *RedisQueue) Enqueue(ctx context.Context, lane string, task *Task) error {
	data, err := task.Encode()
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key(lane), data).Err(); err != nil {
		return fmt.Errorf("enqueue %s to %s: %w", task.Stage, lane, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, lane string) (*Task, error) {
	res, err := q.client.BRPop(ctx, q.popTimeout, q.key(lane)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue from %s: %w", lane, err)
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("dequeue from %s: unexpected reply %v", lane, res)
	}
	return DecodeTask([]byte(res[1]))
}

// Depth reports the queued task count for a lane.
func (q *RedisQueue) Depth(ctx context.Context, lane string) (int64, error) {
	n, err := q.client.LLen(ctx, q.key(lane)).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth %s: %w", lane, err)
	}
	return n, nil
}
