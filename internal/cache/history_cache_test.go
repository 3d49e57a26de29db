package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"documind/internal/model"
)

func newTestCache(t *testing.T) (*HistoryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewHistoryCache(client, time.Minute, 5*time.Second), mr
}

func TestHistoryCache_MissReturnsNoHit(t *testing.T) {
	cache, _ := newTestCache(t)

	messages, hit, err := cache.GetHistory(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, messages)
}

func TestHistoryCache_SetGetRoundtrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	stored := []model.Message{
		{ID: 1, SessionID: 9, UserID: 2, Role: model.RoleUser, Content: "question"},
		{ID: 2, SessionID: 9, UserID: 2, Role: model.RoleAssistant, Content: "answer"},
	}
	require.NoError(t, cache.SetHistory(ctx, 9, stored))

	got, hit, err := cache.GetHistory(ctx, 9)
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, got, 2)
	assert.Equal(t, "question", got[0].Content)
	assert.Equal(t, model.RoleAssistant, got[1].Role)
}

func TestHistoryCache_DeleteHistory(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetHistory(ctx, 9, []model.Message{{ID: 1, SessionID: 9}}))
	require.NoError(t, cache.DeleteHistory(ctx, 9))

	_, hit, err := cache.GetHistory(ctx, 9)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestHistoryCache_HistoryExpires(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetHistory(ctx, 9, []model.Message{{ID: 1, SessionID: 9}}))
	mr.FastForward(2 * time.Minute)

	_, hit, err := cache.GetHistory(ctx, 9)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestHistoryCache_DirtyMarkerLifecycle(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	dirty, err := cache.IsDirty(ctx, 9)
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, cache.MarkDirty(ctx, 9))
	dirty, err = cache.IsDirty(ctx, 9)
	require.NoError(t, err)
	assert.True(t, dirty)

	// The marker only needs to outlive the persist-queue window.
	mr.FastForward(6 * time.Second)
	dirty, err = cache.IsDirty(ctx, 9)
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestHistoryCache_SessionsAreIsolated(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetHistory(ctx, 1, []model.Message{{ID: 1, SessionID: 1}}))
	require.NoError(t, cache.MarkDirty(ctx, 1))

	_, hit, err := cache.GetHistory(ctx, 2)
	require.NoError(t, err)
	assert.False(t, hit)

	dirty, err := cache.IsDirty(ctx, 2)
	require.NoError(t, err)
	assert.False(t, dirty)
}
