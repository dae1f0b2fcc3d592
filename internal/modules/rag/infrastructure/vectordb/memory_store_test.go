package vectordb

import (
	"context"
	"testing"

	"AuraPilot/internal/modules/rag/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id, docID string, position int, vector []float32) repository.VectorRecord {
	return repository.VectorRecord{
		ID:         id,
		Vector:     vector,
		DocumentID: docID,
		Filename:   docID + ".txt",
		Position:   position,
		Content:    "chunk " + id,
	}
}

func TestMemoryStoreQueryOrderedByScore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "owner-1", []repository.VectorRecord{
		record("d1_chunk_0", "d1", 0, []float32{1, 0, 0}),
		record("d1_chunk_1", "d1", 1, []float32{0.9, 0.1, 0}),
		record("d1_chunk_2", "d1", 2, []float32{0, 1, 0}),
	}))

	hits, err := s.Query(ctx, "owner-1", []float32{1, 0, 0}, 10, 0.3)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "d1_chunk_0", hits[0].ID)
	assert.Equal(t, "d1_chunk_1", hits[1].ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestMemoryStoreQueryTieBreak(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// 同分时先比切片序号，再比文档 ID
	require.NoError(t, s.Upsert(ctx, "owner-1", []repository.VectorRecord{
		record("db_chunk_0", "db", 0, []float32{1, 0}),
		record("da_chunk_0", "da", 0, []float32{1, 0}),
		record("da_chunk_1", "da", 1, []float32{1, 0}),
	}))

	hits, err := s.Query(ctx, "owner-1", []float32{1, 0}, 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "da_chunk_0", hits[0].ID)
	assert.Equal(t, "db_chunk_0", hits[1].ID)
	assert.Equal(t, "da_chunk_1", hits[2].ID)
}

func TestMemoryStoreQueryMinScoreFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "owner-1", []repository.VectorRecord{
		record("d1_chunk_0", "d1", 0, []float32{1, 0}),
		record("d1_chunk_1", "d1", 1, []float32{0, 1}),
	}))

	hits, err := s.Query(ctx, "owner-1", []float32{1, 0}, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "d1_chunk_0", hits[0].ID)
}

func TestMemoryStoreQueryTopKLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "owner-1", []repository.VectorRecord{
		record("d1_chunk_0", "d1", 0, []float32{1, 0}),
		record("d1_chunk_1", "d1", 1, []float32{0.99, 0.01}),
		record("d1_chunk_2", "d1", 2, []float32{0.98, 0.02}),
	}))

	hits, err := s.Query(ctx, "owner-1", []float32{1, 0}, 2, 0)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestMemoryStoreNamespaceIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "owner-1", []repository.VectorRecord{
		record("d1_chunk_0", "d1", 0, []float32{1, 0}),
	}))
	require.NoError(t, s.Upsert(ctx, "owner-2", []repository.VectorRecord{
		record("d2_chunk_0", "d2", 0, []float32{1, 0}),
	}))

	hits, err := s.Query(ctx, "owner-1", []float32{1, 0}, 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "d1", hits[0].DocumentID)

	hits, err = s.Query(ctx, "owner-3", []float32{1, 0}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryStoreUpsertOverwrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "owner-1", []repository.VectorRecord{
		record("d1_chunk_0", "d1", 0, []float32{1, 0}),
	}))
	updated := record("d1_chunk_0", "d1", 0, []float32{0, 1})
	updated.Content = "updated content"
	require.NoError(t, s.Upsert(ctx, "owner-1", []repository.VectorRecord{updated}))

	assert.Equal(t, 1, s.CountByNamespace("owner-1"))
	hits, err := s.Query(ctx, "owner-1", []float32{0, 1}, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "updated content", hits[0].Content)
}

func TestMemoryStoreDeleteByIDs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "owner-1", []repository.VectorRecord{
		record("d1_chunk_0", "d1", 0, []float32{1, 0}),
		record("d1_chunk_1", "d1", 1, []float32{0, 1}),
	}))

	// 删除不存在的 ID 不报错
	require.NoError(t, s.DeleteByIDs(ctx, "owner-1", []string{"d1_chunk_0", "missing"}))
	assert.Equal(t, 1, s.CountByNamespace("owner-1"))

	require.NoError(t, s.DeleteByIDs(ctx, "nonexistent-ns", []string{"whatever"}))
}

func TestCosineMismatchedDimensions(t *testing.T) {
	assert.Equal(t, float32(-1), cosine([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Equal(t, float32(-1), cosine([]float32{0, 0}, []float32{1, 0}))
}
