package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisVectorKeyPrefix = "medrag:vec:"
	redisVectorIDSet     = "medrag:vec:ids"
)

// RedisVectorStore keeps one hash per entry and scores candidates
// client side. Suitable for the modest corpus sizes a single
// department produces; a dedicated vector index is out of scope.
type RedisVectorStore struct {
	client *redis.Client
}

var _ VectorStore = (*RedisVectorStore)(nil)

// NewRedisVectorStore connects to the redis:// URL and pings it.
func NewRedisVectorStore(ctx context.Context, url string) (*RedisVectorStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("store: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: connect to redis vector store: %w", err)
	}
	return &RedisVectorStore{client: client}, nil
}

// NewRedisVectorStoreFromClient wraps an existing client; tests use
// this with miniredis.
func NewRedisVectorStoreFromClient(client *redis.Client) *RedisVectorStore {
	return &RedisVectorStore{client: client}
}

// Upsert writes one hash per entry and tracks its ID in a set.
func (s *RedisVectorStore) Upsert(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		vec, err := json.Marshal(e.Vector)
		if err != nil {
			return fmt.Errorf("store: marshal vector %s: %w", e.ID, err)
		}
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("store: marshal metadata %s: %w", e.ID, err)
		}
		key := redisVectorKeyPrefix + e.ID
		if err := s.client.HSet(ctx, key, "vector", vec, "metadata", meta).Err(); err != nil {
			return fmt.Errorf("store: write vector entry %s: %w", e.ID, err)
		}
		if err := s.client.SAdd(ctx, redisVectorIDSet, e.ID).Err(); err != nil {
			return fmt.Errorf("store: track vector entry %s: %w", e.ID, err)
		}
	}
	return nil
}

// Search loads every tracked entry and ranks by cosine similarity.
func (s *RedisVectorStore) Search(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 1
	}

	ids, err := s.client.SMembers(ctx, redisVectorIDSet).Result()
	if err != nil {
		return nil, fmt.Errorf("store: list vector entries: %w", err)
	}

	results := make([]SearchResult, 0, len(ids))
	for _, id := range ids {
		entry, err := s.loadEntry(ctx, id)
		if err != nil {
			return nil, err
		}
		if !matchesFilter(entry.Metadata, filter) {
			continue
		}
		results = append(results, SearchResult{
			Entry: entry,
			Score: cosineSimilarity32(vector, entry.Vector),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (s *RedisVectorStore) loadEntry(ctx context.Context, id string) (Entry, error) {
	fields, err := s.client.HGetAll(ctx, redisVectorKeyPrefix+id).Result()
	if err != nil {
		return Entry{}, fmt.Errorf("store: load vector entry %s: %w", id, err)
	}

	entry := Entry{ID: id}
	if err := json.Unmarshal([]byte(fields["vector"]), &entry.Vector); err != nil {
		return Entry{}, fmt.Errorf("store: decode vector %s: %w", id, err)
	}
	if raw, ok := fields["metadata"]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &entry.Metadata); err != nil {
			return Entry{}, fmt.Errorf("store: decode metadata %s: %w", id, err)
		}
	}
	return entry, nil
}

// Clear removes every tracked entry and the ID set.
func (s *RedisVectorStore) Clear(ctx context.Context) error {
	ids, err := s.client.SMembers(ctx, redisVectorIDSet).Result()
	if err != nil {
		return fmt.Errorf("store: list vector entries: %w", err)
	}
	for _, id := range ids {
		if err := s.client.Del(ctx, redisVectorKeyPrefix+id).Err(); err != nil {
			return fmt.Errorf("store: delete vector entry %s: %w", id, err)
		}
	}
	return s.client.Del(ctx, redisVectorIDSet).Err()
}

// Stats reports the tracked entry count.
func (s *RedisVectorStore) Stats(ctx context.Context) (*Stats, error) {
	n, err := s.client.SCard(ctx, redisVectorIDSet).Result()
	if err != nil {
		return nil, fmt.Errorf("store: count vector entries: %w", err)
	}
	return &Stats{
		Backend:     "redis",
		Entries:     int(n),
		LastUpdated: time.Now(),
	}, nil
}

// Close closes the underlying client.
func (s *RedisVectorStore) Close() error {
	return s.client.Close()
}
