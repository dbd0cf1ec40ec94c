package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDocumentStore_InsertAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDocumentStore()

	fields := map[string]any{"patient_name": "张三", "age": 45, "gender": "男"}
	require.NoError(t, s.Insert(ctx, "张三", fields, map[string]any{"source_type": "pdf"}))

	docs, err := s.Find(ctx, map[string]any{"patient_name": "张三"}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "张三", docs[0].Key)
	assert.Equal(t, 45, docs[0].Fields["age"])
	assert.Equal(t, "pdf", docs[0].Metadata["source_type"])
}

func TestMemoryDocumentStore_Projection(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDocumentStore()

	require.NoError(t, s.Insert(ctx, "张三", map[string]any{
		"patient_name": "张三",
		"age":          45,
		"diagnoses":    []any{"高血压"},
	}, nil))

	docs, err := s.Find(ctx, nil, []string{"patient_name", "diagnoses"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Fields, "patient_name")
	assert.Contains(t, docs[0].Fields, "diagnoses")
	assert.NotContains(t, docs[0].Fields, "age")
}

// Re-inserting the same patient accumulates documents rather than
// overwriting. That mirrors the other backends; deduplication is the
// caller's problem.
func TestMemoryDocumentStore_DuplicateKeysAccumulate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDocumentStore()

	fields := map[string]any{"patient_name": "张三"}
	require.NoError(t, s.Insert(ctx, "张三", fields, nil))
	require.NoError(t, s.Insert(ctx, "张三", fields, nil))

	docs, err := s.Find(ctx, map[string]any{"patient_name": "张三"}, nil)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestMemoryDocumentStore_NoMatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDocumentStore()

	require.NoError(t, s.Insert(ctx, "张三", map[string]any{"patient_name": "张三"}, nil))

	docs, err := s.Find(ctx, map[string]any{"patient_name": "不存在"}, nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}
