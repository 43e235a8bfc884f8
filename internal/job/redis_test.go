package job

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/sora-studio/internal/sora"
)

// newTestRedis connects to REDIS_ADDR or skips.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	db, _ := strconv.Atoi(os.Getenv("REDIS_TEST_DB"))
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisRepository_SaveFind(t *testing.T) {
	client := newTestRedis(t)
	repo := NewRedisRepository(client, time.Minute)
	ctx := context.Background()

	task := NewTask(KindCreate)
	task.Prompt = "a cat"
	require.NoError(t, task.Submit("video_1", "submitted"))
	task.Result = &sora.Video{ID: "video_1", Status: sora.StatusQueued}
	t.Cleanup(func() { client.Del(ctx, "job:"+task.ID) })

	require.NoError(t, repo.Save(ctx, task))

	got, err := repo.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, StatusSubmitted, got.Status)
	assert.Equal(t, ProgressSubmitted, got.Progress)
	assert.Equal(t, "video_1", got.RemoteVideoID)
	require.NotNil(t, got.Result)
	assert.Equal(t, sora.StatusQueued, got.Result.Status)

	ttl, err := client.TTL(ctx, "job:"+task.ID).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestRedisRepository_NotFound(t *testing.T) {
	client := newTestRedis(t)
	repo := NewRedisRepository(client, 0)

	_, err := repo.FindByID(context.Background(), "job_does_not_exist")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.Equal(t, DefaultRedisTTL, repo.ttl)
}

func TestRedisRepository_List(t *testing.T) {
	client := newTestRedis(t)
	repo := NewRedisRepository(client, time.Minute)
	repo.prefix = "test:job:" + strconv.FormatInt(time.Now().UnixNano(), 10) + ":"
	ctx := context.Background()

	older := NewTaskWithID("job_a", KindCreate)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := NewTaskWithID("job_b", KindRemix)
	require.NoError(t, repo.Save(ctx, older))
	require.NoError(t, repo.Save(ctx, newer))
	t.Cleanup(func() { client.Del(ctx, repo.key("job_a"), repo.key("job_b")) })

	tasks, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "job_b", tasks[0].ID)
	assert.Equal(t, "job_a", tasks[1].ID)
}
