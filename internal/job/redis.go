package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisTTL is how long a task record is kept after its last write.
const DefaultRedisTTL = 24 * time.Hour

// Compile-time check that RedisRepository implements Repository.
var _ Repository = (*RedisRepository)(nil)

// RedisRepository stores tasks as JSON under job:<id> keys with a TTL, so
// status survives process restarts and can be shared between replicas.
type RedisRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisRepository creates a repository on an existing client.
// A non-positive ttl uses DefaultRedisTTL.
func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisRepository{client: client, prefix: "job:", ttl: ttl}
}

func (r *RedisRepository) key(id string) string {
	return r.prefix + id
}

// Save writes the task snapshot and refreshes its TTL.
func (r *RedisRepository) Save(ctx context.Context, task *Task) error {
	snapshot := task.Clone()
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", snapshot.ID, err)
	}
	if err := r.client.Set(ctx, r.key(snapshot.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save task %s: %w", snapshot.ID, err)
	}
	return nil
}

// FindByID loads a task by ID.
func (r *RedisRepository) FindByID(ctx context.Context, id string) (*Task, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}

	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task %s: %w", id, err)
	}
	return &task, nil
}

// List scans all task keys, newest first. Records that expire between the
// scan and the read are skipped.
func (r *RedisRepository) List(ctx context.Context) ([]*Task, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}

	tasks := make([]*Task, 0, len(keys))
	if len(keys) == 0 {
		return tasks, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var task Task
		if err := json.Unmarshal([]byte(s), &task); err != nil {
			return nil, fmt.Errorf("unmarshal task %s: %w", keys[i], err)
		}
		tasks = append(tasks, &task)
	}

	sortNewestFirst(tasks)
	return tasks, nil
}
