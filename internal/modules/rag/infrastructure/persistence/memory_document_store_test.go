package persistence

import (
	"context"
	"testing"
	"time"

	"AuraPilot/internal/modules/rag/domain/document"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingDoc(id, owner string) *document.Document {
	return &document.Document{
		Id:       id,
		OwnerId:  owner,
		Filename: id + ".txt",
		Status:   document.StatusPending,
	}
}

func TestMemoryDocumentStoreCasStatus(t *testing.T) {
	s := NewMemoryDocumentStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newPendingDoc("doc-1", "owner-1")))

	ok, err := s.CasStatus(ctx, "doc-1", []string{document.StatusPending, document.StatusFailed}, document.StatusProcessing)
	require.NoError(t, err)
	assert.True(t, ok)

	// 已是 processing，再抢一次必须失败
	ok, err = s.CasStatus(ctx, "doc-1", []string{document.StatusPending, document.StatusFailed}, document.StatusProcessing)
	require.NoError(t, err)
	assert.False(t, ok)

	d, err := s.GetByID(ctx, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, document.StatusProcessing, d.Status)
}

func TestMemoryDocumentStoreCasStatusClearsErrorMessage(t *testing.T) {
	s := NewMemoryDocumentStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newPendingDoc("doc-1", "owner-1")))
	require.NoError(t, s.MarkFailed(ctx, "doc-1", "embedding failed: boom"))

	// failed → processing 重建：不能带着上一次的 error_message
	ok, err := s.CasStatus(ctx, "doc-1", []string{document.StatusFailed}, document.StatusProcessing)
	require.NoError(t, err)
	require.True(t, ok)

	d, err := s.GetByID(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, document.StatusProcessing, d.Status)
	assert.Empty(t, d.ErrorMessage)
}

func TestMemoryDocumentStoreCasStatusMissingDoc(t *testing.T) {
	s := NewMemoryDocumentStore()
	ok, err := s.CasStatus(context.Background(), "nope", []string{document.StatusPending}, document.StatusProcessing)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryDocumentStoreMarkIndexedClearsError(t *testing.T) {
	s := NewMemoryDocumentStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newPendingDoc("doc-1", "owner-1")))

	require.NoError(t, s.MarkFailed(ctx, "doc-1", "embedding timeout"))
	d, _ := s.GetByID(ctx, "doc-1")
	assert.Equal(t, document.StatusFailed, d.Status)
	assert.Equal(t, "embedding timeout", d.ErrorMessage)
	assert.Equal(t, 0, d.ChunkCount)

	require.NoError(t, s.MarkIndexed(ctx, "doc-1", 7))
	d, _ = s.GetByID(ctx, "doc-1")
	assert.Equal(t, document.StatusIndexed, d.Status)
	assert.Equal(t, 7, d.ChunkCount)
	assert.Empty(t, d.ErrorMessage)
}

func TestMemoryDocumentStoreGetMissingReturnsNil(t *testing.T) {
	s := NewMemoryDocumentStore()
	d, err := s.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestMemoryDocumentStoreListByOwner(t *testing.T) {
	s := NewMemoryDocumentStore()
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"doc-a", "doc-b", "doc-c"} {
		doc := newPendingDoc(id, "owner-1")
		doc.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.Create(ctx, doc))
	}
	require.NoError(t, s.Create(ctx, newPendingDoc("doc-x", "owner-2")))

	docs, total, err := s.ListByOwner(ctx, "owner-1", 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, docs, 3)
	// 创建时间倒序
	assert.Equal(t, "doc-c", docs[0].Id)
	assert.Equal(t, "doc-a", docs[2].Id)

	docs, total, err = s.ListByOwner(ctx, "owner-1", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-b", docs[0].Id)

	docs, total, err = s.ListByOwner(ctx, "owner-1", 10, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Empty(t, docs)
}

func TestMemoryDocumentStoreDelete(t *testing.T) {
	s := NewMemoryDocumentStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newPendingDoc("doc-1", "owner-1")))
	require.NoError(t, s.Delete(ctx, "doc-1"))
	d, err := s.GetByID(ctx, "doc-1")
	require.NoError(t, err)
	assert.Nil(t, d)

	// 删除不存在的也不报错
	require.NoError(t, s.Delete(ctx, "doc-1"))
}
