package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"AuraPilot/internal/modules/rag/domain/document"
	"AuraPilot/internal/modules/rag/domain/repository"
	"AuraPilot/internal/modules/rag/infrastructure/chunking"
	mockembed "AuraPilot/internal/modules/rag/infrastructure/embedding"
	"AuraPilot/internal/modules/rag/infrastructure/extract"
	"AuraPilot/internal/modules/rag/infrastructure/persistence"
	"AuraPilot/internal/modules/rag/infrastructure/vectordb"

	einoembedding "github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 8

type mapFileLoader struct {
	files map[string][]byte
}

func (m *mapFileLoader) Load(documentID string) ([]byte, error) {
	raw, ok := m.files[documentID]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", documentID)
	}
	return raw, nil
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...einoembedding.Option) ([][]float64, error) {
	return nil, errors.New("upstream unavailable")
}

type ingestFixture struct {
	docRepo  repository.DocumentRepository
	vs       *vectordb.MemoryStore
	files    *mapFileLoader
	pipeline *IngestPipeline
}

func newIngestFixture(t *testing.T, embedder einoembedding.Embedder) *ingestFixture {
	t.Helper()
	f := &ingestFixture{
		docRepo: persistence.NewMemoryDocumentStore(),
		vs:      vectordb.NewMemoryStore(),
		files:   &mapFileLoader{files: make(map[string][]byte)},
	}
	if embedder == nil {
		embedder = mockembed.NewMockEmbedder(testDim)
	}
	p, err := NewIngestPipeline(f.docRepo, f.vs, embedder, f.files,
		extract.NewExtractor(), chunking.NewSimpleChunker(100, 10), testDim)
	require.NoError(t, err)
	f.pipeline = p
	return f
}

func (f *ingestFixture) addDoc(t *testing.T, id, owner, filename string, content []byte) {
	t.Helper()
	require.NoError(t, f.docRepo.Create(context.Background(), &document.Document{
		Id:       id,
		OwnerId:  owner,
		Filename: filename,
		ByteSize: int64(len(content)),
		Status:   document.StatusPending,
	}))
	f.files.files[id] = content
}

func TestIngestSuccessLifecycle(t *testing.T) {
	f := newIngestFixture(t, nil)
	ctx := context.Background()
	text := strings.Repeat("分布式系统中的一致性协议。", 30)
	f.addDoc(t, "doc-1", "owner-1", "notes.txt", []byte(text))

	res, err := f.pipeline.Ingest(ctx, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Failed)
	assert.Greater(t, res.ChunkCount, 1)
	assert.Equal(t, "owner-1", res.OwnerID)

	d, err := f.docRepo.GetByID(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, document.StatusIndexed, d.Status)
	assert.Equal(t, res.ChunkCount, d.ChunkCount)
	assert.Empty(t, d.ErrorMessage)

	assert.Equal(t, res.ChunkCount, f.vs.CountByNamespace("owner-1"))
}

func TestIngestDocumentNotFound(t *testing.T) {
	f := newIngestFixture(t, nil)
	_, err := f.pipeline.Ingest(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrDocumentNotFound)
}

func TestIngestBusyRejected(t *testing.T) {
	f := newIngestFixture(t, nil)
	ctx := context.Background()
	f.addDoc(t, "doc-1", "owner-1", "notes.txt", []byte("some content"))

	ok, err := f.docRepo.CasStatus(ctx, "doc-1",
		[]string{document.StatusPending}, document.StatusProcessing)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.pipeline.Ingest(ctx, "doc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrDocumentBusy)

	// 状态不归本任务管，不能被改成 failed
	d, _ := f.docRepo.GetByID(ctx, "doc-1")
	assert.Equal(t, document.StatusProcessing, d.Status)
}

func TestIngestEmptyContentFails(t *testing.T) {
	f := newIngestFixture(t, nil)
	ctx := context.Background()
	f.addDoc(t, "doc-1", "owner-1", "blank.txt", []byte("   \n\t  "))

	_, err := f.pipeline.Ingest(ctx, "doc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrExtraction)

	d, _ := f.docRepo.GetByID(ctx, "doc-1")
	assert.Equal(t, document.StatusFailed, d.Status)
	assert.Contains(t, d.ErrorMessage, "no extractable content")
	assert.Equal(t, 0, d.ChunkCount)
	assert.Equal(t, 0, f.vs.CountByNamespace("owner-1"))
}

func TestIngestUnsupportedTypeFails(t *testing.T) {
	f := newIngestFixture(t, nil)
	ctx := context.Background()
	f.addDoc(t, "doc-1", "owner-1", "binary.exe", []byte("MZ..."))

	_, err := f.pipeline.Ingest(ctx, "doc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrExtraction)

	d, _ := f.docRepo.GetByID(ctx, "doc-1")
	assert.Equal(t, document.StatusFailed, d.Status)
}

func TestIngestEmbedFailureRollsBack(t *testing.T) {
	// 先用正常 embedder 索引成功，再用故障 embedder 重建：
	// 失败后老向量也要清掉，不留半索引文档
	good := newIngestFixture(t, nil)
	ctx := context.Background()
	text := strings.Repeat("向量化失败回滚测试。", 40)
	good.addDoc(t, "doc-1", "owner-1", "notes.txt", []byte(text))

	res, err := good.pipeline.Ingest(ctx, "doc-1")
	require.NoError(t, err)
	require.Greater(t, res.ChunkCount, 0)
	require.Equal(t, res.ChunkCount, good.vs.CountByNamespace("owner-1"))

	bad, err := NewIngestPipeline(good.docRepo, good.vs, failingEmbedder{}, good.files,
		extract.NewExtractor(), chunking.NewSimpleChunker(100, 10), testDim)
	require.NoError(t, err)

	_, err = bad.Ingest(ctx, "doc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrEmbedding)

	d, _ := good.docRepo.GetByID(ctx, "doc-1")
	assert.Equal(t, document.StatusFailed, d.Status)
	assert.Equal(t, 0, d.ChunkCount)
	assert.Equal(t, 0, good.vs.CountByNamespace("owner-1"))
}

func TestIngestReindexTrimsSurplusVectors(t *testing.T) {
	f := newIngestFixture(t, nil)
	ctx := context.Background()
	longText := strings.Repeat("这是一篇很长的文档，会被切成很多片。", 30)
	f.addDoc(t, "doc-1", "owner-1", "notes.txt", []byte(longText))

	res, err := f.pipeline.Ingest(ctx, "doc-1")
	require.NoError(t, err)
	oldCount := res.ChunkCount
	require.Greater(t, oldCount, 2)

	// 换成短文件后重建，多出来的尾部向量必须被删掉
	f.files.files["doc-1"] = []byte(strings.Repeat("短文档。", 30))
	res, err = f.pipeline.Ingest(ctx, "doc-1")
	require.NoError(t, err)
	require.Less(t, res.ChunkCount, oldCount)

	assert.Equal(t, res.ChunkCount, f.vs.CountByNamespace("owner-1"))
	d, _ := f.docRepo.GetByID(ctx, "doc-1")
	assert.Equal(t, document.StatusIndexed, d.Status)
	assert.Equal(t, res.ChunkCount, d.ChunkCount)
}

func TestIngestReindexOverwritesDeterministicIDs(t *testing.T) {
	f := newIngestFixture(t, nil)
	ctx := context.Background()
	text := strings.Repeat("确定性向量主键。", 40)
	f.addDoc(t, "doc-1", "owner-1", "notes.txt", []byte(text))

	res1, err := f.pipeline.Ingest(ctx, "doc-1")
	require.NoError(t, err)
	res2, err := f.pipeline.Ingest(ctx, "doc-1")
	require.NoError(t, err)

	// 同样的内容重建：切片数一致，向量覆盖而不是累加
	assert.Equal(t, res1.ChunkCount, res2.ChunkCount)
	assert.Equal(t, res2.ChunkCount, f.vs.CountByNamespace("owner-1"))
}

func TestNewIngestPipelineRejectsBadConfig(t *testing.T) {
	em := mockembed.NewMockEmbedder(testDim)
	files := &mapFileLoader{files: make(map[string][]byte)}

	_, err := NewIngestPipeline(nil, vectordb.NewMemoryStore(), em, files,
		extract.NewExtractor(), chunking.NewSimpleChunker(100, 10), testDim)
	assert.ErrorIs(t, err, document.ErrConfiguration)

	_, err = NewIngestPipeline(persistence.NewMemoryDocumentStore(), vectordb.NewMemoryStore(), em, files,
		extract.NewExtractor(), chunking.NewSimpleChunker(100, 10), 0)
	assert.ErrorIs(t, err, document.ErrConfiguration)
}

func TestChunkVectorID(t *testing.T) {
	assert.Equal(t, "doc-1_chunk_0", ChunkVectorID("doc-1", 0))
	assert.Equal(t, "doc-1_chunk_42", ChunkVectorID("doc-1", 42))
	assert.Equal(t, []string{"d_chunk_0", "d_chunk_1"}, ChunkVectorIDs("d", 2))
	assert.Empty(t, ChunkVectorIDs("d", 0))
}
