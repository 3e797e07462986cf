package cache_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktracker/internal/cache"
	"tasktracker/internal/models"
	"tasktracker/internal/testutil"
)

var client *redis.Client

func TestMain(m *testing.M) {
	c, purge, err := testutil.StartRedis()
	if err != nil {
		log.Printf("redis tests skipped: %v", err)
	} else {
		client = c
	}
	code := m.Run()
	if purge != nil {
		purge()
	}
	os.Exit(code)
}

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	if client == nil {
		t.Skip("no redis available")
	}
	require.NoError(t, client.FlushDB(context.Background()).Err())
	return client
}

func TestTaskCacheRoundTrip(t *testing.T) {
	c := cache.NewRedisTaskCache(redisClient(t))
	ctx := context.Background()

	_, ok := c.Get(ctx, 1)
	assert.False(t, ok)

	task := &models.Task{
		ID:         1,
		Title:      "Cached",
		DueDate:    models.NewDate(2030, 1, 2),
		Priority:   models.PriorityHigh,
		Status:     models.StatusPending,
		AssignedTo: []models.UserRef{{ID: 3, Username: "sam"}},
		Tags:       []models.Tag{},
	}
	c.Set(ctx, task)

	got, ok := c.Get(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, "Cached", got.Title)
	assert.Equal(t, task.DueDate, got.DueDate)
	assert.Equal(t, task.AssignedTo, got.AssignedTo)

	c.Invalidate(ctx, 1)
	_, ok = c.Get(ctx, 1)
	assert.False(t, ok)
}

func TestTaskCacheInvalidateAll(t *testing.T) {
	rc := redisClient(t)
	c := cache.NewRedisTaskCache(rc)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		c.Set(ctx, &models.Task{ID: i, Title: "t"})
	}
	require.NoError(t, rc.Set(ctx, "other", "keep", 0).Err())

	c.InvalidateAll(ctx)
	for i := int64(1); i <= 5; i++ {
		_, ok := c.Get(ctx, i)
		assert.False(t, ok)
	}
	assert.Equal(t, int64(1), rc.Exists(ctx, "other").Val())
}

func TestTaskCacheCorruptEntry(t *testing.T) {
	rc := redisClient(t)
	c := cache.NewRedisTaskCache(rc)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "task:9", "{not json", 0).Err())
	_, ok := c.Get(ctx, 9)
	assert.False(t, ok)
	assert.Equal(t, int64(0), rc.Exists(ctx, "task:9").Val())
}

func TestSessionStore(t *testing.T) {
	s := cache.NewRedisSessionStore(redisClient(t))
	ctx := context.Background()

	ok, err := s.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "abc", 7, time.Minute))
	ok, err = s.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Revoke(ctx, "abc"))
	ok, err = s.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNopImplementations(t *testing.T) {
	ctx := context.Background()
	var c cache.TaskCache = cache.NopTaskCache{}
	c.Set(ctx, &models.Task{ID: 1})
	_, ok := c.Get(ctx, 1)
	assert.False(t, ok)

	var s cache.SessionStore = cache.NopSessionStore{}
	ok, err := s.Exists(ctx, "anything")
	require.NoError(t, err)
	assert.True(t, ok)
}
