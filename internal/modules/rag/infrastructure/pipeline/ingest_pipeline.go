package pipeline

import (
	"context"
	"fmt"

	"AuraPilot/internal/modules/rag/domain/document"
	"AuraPilot/internal/modules/rag/domain/repository"
	"AuraPilot/internal/modules/rag/infrastructure/chunking"
	"AuraPilot/internal/modules/rag/infrastructure/extract"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/compose"
)

// IngestRequest 索引任务的输入。消息里只传文档 ID，
// 原始字节由 FileLoader 按 ID 取回，inline 与 kafka 两条路径完全一致。
type IngestRequest struct {
	DocumentID string
}

// IngestResult 索引任务的执行结果（用于日志与同步调用方）
type IngestResult struct {
	DocumentID   string `json:"document_id"`
	OwnerID      string `json:"owner_id"`
	Filename     string `json:"filename"`
	ChunkCount   int    `json:"chunk_count"`
	Failed       bool   `json:"failed"`
	ErrorMessage string `json:"error_message,omitempty"`
	ExtractMs    int64  `json:"extract_ms"`
	EmbeddingMs  int64  `json:"embedding_ms"`
	UpsertMs     int64  `json:"upsert_ms"`
	DurationMs   int64  `json:"duration_ms"`
}

// FileLoader 按文档 ID 取回上传的原始字节
type FileLoader interface {
	Load(documentID string) ([]byte, error)
}

// IngestPipeline 文档索引流水线（基于 Eino compose.Graph）。
//
// 设计原则：
// 1. 状态机独占：pending/failed/indexed → processing 的 CAS 是任务锁，
//    抢不到锁直接返回 busy，同一文档任何时刻只有一个索引任务。
// 2. 全有或全无：任何阶段失败都回滚本次已写入的向量并落 failed 终态，
//    不留半索引文档。
// 3. 向量 ID 确定性派生（<doc>_chunk_<pos>），重建索引天然覆盖旧向量。
type IngestPipeline struct {
	docRepo   repository.DocumentRepository
	vs        repository.VectorStore
	embedder  embedding.Embedder
	files     FileLoader
	extractor *extract.Extractor
	chunker   *chunking.SimpleChunker
	vectorDim int
	r         compose.Runnable[*IngestRequest, *IngestResult]
}

func NewIngestPipeline(
	docRepo repository.DocumentRepository,
	vs repository.VectorStore,
	embedder embedding.Embedder,
	files FileLoader,
	extractor *extract.Extractor,
	chunker *chunking.SimpleChunker,
	vectorDim int,
) (*IngestPipeline, error) {
	if docRepo == nil {
		return nil, fmt.Errorf("%w: document repository is nil", document.ErrConfiguration)
	}
	if vs == nil {
		return nil, fmt.Errorf("%w: vector store is nil", document.ErrConfiguration)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is nil", document.ErrConfiguration)
	}
	if files == nil {
		return nil, fmt.Errorf("%w: file loader is nil", document.ErrConfiguration)
	}
	if extractor == nil {
		return nil, fmt.Errorf("%w: extractor is nil", document.ErrConfiguration)
	}
	if chunker == nil {
		return nil, fmt.Errorf("%w: chunker is nil", document.ErrConfiguration)
	}
	if vectorDim <= 0 {
		return nil, fmt.Errorf("%w: invalid vector dim %d", document.ErrConfiguration, vectorDim)
	}

	p := &IngestPipeline{
		docRepo:   docRepo,
		vs:        vs,
		embedder:  embedder,
		files:     files,
		extractor: extractor,
		chunker:   chunker,
		vectorDim: vectorDim,
	}
	r, err := p.buildGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.r = r
	return p, nil
}

// Ingest 执行一次索引任务（封装 Eino Runnable.Invoke）
func (p *IngestPipeline) Ingest(ctx context.Context, documentID string) (*IngestResult, error) {
	if p.r == nil {
		return nil, fmt.Errorf("pipeline runnable is nil")
	}
	return p.r.Invoke(ctx, &IngestRequest{DocumentID: documentID})
}

// ChunkVectorID 向量主键的唯一派生规则：<文档ID>_chunk_<切片序号>。
// 上传、重建、删除三条路径都依赖它对齐同一批向量。
func ChunkVectorID(documentID string, position int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, position)
}

// ChunkVectorIDs 返回文档前 count 个切片的向量 ID
func ChunkVectorIDs(documentID string, count int) []string {
	if count <= 0 {
		return []string{}
	}
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		ids = append(ids, ChunkVectorID(documentID, i))
	}
	return ids
}
