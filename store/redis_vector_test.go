package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisVectorStore(t *testing.T) *RedisVectorStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisVectorStoreFromClient(client)
}

func TestRedisVectorStore_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisVectorStore(t)

	require.NoError(t, s.Upsert(ctx, []Entry{
		{ID: "a", Vector: []float32{1, 0, 0}, Metadata: map[string]any{"text": "头晕", "patient_name": "张三"}},
		{ID: "b", Vector: []float32{0, 1, 0}, Metadata: map[string]any{"text": "胸闷", "patient_name": "李四"}},
	}))

	results, err := s.Search(ctx, []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Entry.ID)
	assert.Equal(t, "头晕", results[0].Text())
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestRedisVectorStore_Filter(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisVectorStore(t)

	require.NoError(t, s.Upsert(ctx, []Entry{
		{ID: "a", Vector: []float32{1, 0}, Metadata: map[string]any{"patient_name": "张三"}},
		{ID: "b", Vector: []float32{1, 0}, Metadata: map[string]any{"patient_name": "李四"}},
	}))

	results, err := s.Search(ctx, []float32{1, 0}, 10, map[string]any{"patient_name": "李四"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Entry.ID)
}

func TestRedisVectorStore_ClearAndStats(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisVectorStore(t)

	require.NoError(t, s.Upsert(ctx, []Entry{
		{ID: "a", Vector: []float32{1}},
		{ID: "b", Vector: []float32{2}},
	}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, "redis", stats.Backend)

	require.NoError(t, s.Clear(ctx))
	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Entries)
}
