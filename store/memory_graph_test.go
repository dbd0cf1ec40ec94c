package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGraph_TraverseByEdgeType(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGraph()

	patient, err := g.AddVertex(ctx, "patient", "张三", nil)
	require.NoError(t, err)
	symptom, err := g.AddVertex(ctx, "symptom", "头晕", nil)
	require.NoError(t, err)
	diag, err := g.AddVertex(ctx, "diagnosis", "高血压2级", nil)
	require.NoError(t, err)

	require.NoError(t, g.AddEdge(ctx, patient, symptom, "has_symptom", nil))
	require.NoError(t, g.AddEdge(ctx, patient, diag, "diagnosed_with", nil))

	paths, err := g.Traverse(ctx,
		VertexFilter{Type: "patient", Name: "张三"},
		"has_symptom",
		VertexFilter{Type: "symptom"})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "张三 -> has_symptom -> 头晕", paths[0].String())
}

func TestMemoryGraph_TraverseAllEdges(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGraph()

	patient, _ := g.AddVertex(ctx, "patient", "张三", nil)
	info, _ := g.AddVertex(ctx, "basic_info", "性别", map[string]any{"value": "男"})
	require.NoError(t, g.AddEdge(ctx, patient, info, "has_basic_info", nil))

	paths, err := g.Traverse(ctx, VertexFilter{Name: "张三"}, "", VertexFilter{})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "张三 -> has_basic_info -> 性别: 男", paths[0].String())
}

func TestMemoryGraph_EdgeRequiresVertices(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGraph()

	id, _ := g.AddVertex(ctx, "patient", "张三", nil)
	err := g.AddEdge(ctx, id, "missing", "has_symptom", nil)
	assert.Error(t, err)
	err = g.AddEdge(ctx, "missing", id, "has_symptom", nil)
	assert.Error(t, err)
}

func TestMemoryGraph_DuplicateVerticesAccumulate(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGraph()

	_, err := g.AddVertex(ctx, "patient", "张三", nil)
	require.NoError(t, err)
	_, err = g.AddVertex(ctx, "patient", "张三", nil)
	require.NoError(t, err)

	stats, err := g.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Vertices)
}

func TestMemoryGraph_Clear(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGraph()

	id, _ := g.AddVertex(ctx, "patient", "张三", nil)
	sym, _ := g.AddVertex(ctx, "symptom", "头晕", nil)
	require.NoError(t, g.AddEdge(ctx, id, sym, "has_symptom", nil))

	require.NoError(t, g.Clear(ctx))
	stats, err := g.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Vertices)
	assert.Equal(t, 0, stats.Edges)
}
