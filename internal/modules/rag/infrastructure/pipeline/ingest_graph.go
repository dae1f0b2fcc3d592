package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"AuraPilot/internal/modules/rag/domain/document"
	"AuraPilot/internal/modules/rag/domain/repository"
	"AuraPilot/pkg/zlog"

	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"
)

// ingestState 索引流水线的中间状态（在节点间传递）
type ingestState struct {
	Req *IngestRequest

	Doc           *document.Document
	Acquired      bool // processing 状态是否由本任务写入
	OldChunkCount int  // 取锁前的切片数，回滚与裁剪多余向量用

	Raw     []byte
	Text    string
	Chunks  []string
	Vectors [][]float32

	Start       time.Time
	ExtractMs   int64
	EmbeddingMs int64
	UpsertMs    int64
	Err         error
}

// buildGraph 节点顺序：Acquire → Extract → Chunk → Embed → Upsert → Finalize
func (p *IngestPipeline) buildGraph(ctx context.Context) (compose.Runnable[*IngestRequest, *IngestResult], error) {
	const (
		Acquire  = "Acquire"
		Extract  = "Extract"
		Chunk    = "Chunk"
		Embed    = "Embed"
		Upsert   = "Upsert"
		Finalize = "Finalize"
	)
	g := compose.NewGraph[*IngestRequest, *IngestResult]()

	_ = g.AddLambdaNode(Acquire, compose.InvokableLambdaWithOption(p.acquireNode), compose.WithNodeName(Acquire))
	_ = g.AddLambdaNode(Extract, compose.InvokableLambdaWithOption(p.extractNode), compose.WithNodeName(Extract))
	_ = g.AddLambdaNode(Chunk, compose.InvokableLambdaWithOption(p.chunkNode), compose.WithNodeName(Chunk))
	_ = g.AddLambdaNode(Embed, compose.InvokableLambdaWithOption(p.embedNode), compose.WithNodeName(Embed))
	_ = g.AddLambdaNode(Upsert, compose.InvokableLambdaWithOption(p.upsertNode), compose.WithNodeName(Upsert))
	_ = g.AddLambdaNode(Finalize, compose.InvokableLambdaWithOption(p.finalizeNode), compose.WithNodeName(Finalize))

	_ = g.AddEdge(compose.START, Acquire)
	_ = g.AddEdge(Acquire, Extract)
	_ = g.AddEdge(Extract, Chunk)
	_ = g.AddEdge(Chunk, Embed)
	_ = g.AddEdge(Embed, Upsert)
	_ = g.AddEdge(Upsert, Finalize)
	_ = g.AddEdge(Finalize, compose.END)

	return g.Compile(ctx, compose.WithGraphName("DocumentIngestPipeline"), compose.WithNodeTriggerMode(compose.AllPredecessor))
}

// acquireNode 节点 1：取文档记录、抢状态锁、取回原始字节
func (p *IngestPipeline) acquireNode(ctx context.Context, req *IngestRequest, _ ...any) (*ingestState, error) {
	st := &ingestState{Req: req, Start: time.Now()}
	if req == nil || strings.TrimSpace(req.DocumentID) == "" {
		st.Err = fmt.Errorf("missing document id")
		return st, nil
	}

	doc, err := p.docRepo.GetByID(ctx, req.DocumentID)
	if err != nil {
		st.Err = err
		return st, nil
	}
	if doc == nil {
		st.Err = document.ErrDocumentNotFound
		return st, nil
	}
	st.Doc = doc
	st.OldChunkCount = doc.ChunkCount

	// CAS 是任务锁：processing 状态的文档说明别的任务在跑，直接拒绝
	ok, err := p.docRepo.CasStatus(ctx, doc.Id,
		[]string{document.StatusPending, document.StatusFailed, document.StatusIndexed},
		document.StatusProcessing)
	if err != nil {
		st.Err = err
		return st, nil
	}
	if !ok {
		st.Err = document.ErrDocumentBusy
		return st, nil
	}
	st.Acquired = true

	raw, err := p.files.Load(doc.Id)
	if err != nil {
		st.Err = fmt.Errorf("%w: stored file missing: %v", document.ErrExtraction, err)
		return st, nil
	}
	st.Raw = raw
	return st, nil
}

// extractNode 节点 2：抽取并清洗正文
func (p *IngestPipeline) extractNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	_ = ctx
	if st == nil {
		return &ingestState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	start := time.Now()
	text, err := p.extractor.Extract(st.Raw, st.Doc.Filename)
	if err != nil {
		st.Err = err
		return st, nil
	}
	st.Text = text
	st.Raw = nil
	st.ExtractMs = time.Since(start).Milliseconds()
	return st, nil
}

// chunkNode 节点 3：切片
func (p *IngestPipeline) chunkNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st == nil {
		return &ingestState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	chunks, err := p.chunker.Split(ctx, st.Text)
	if err != nil {
		st.Err = err
		return st, nil
	}
	if len(chunks) == 0 {
		st.Err = fmt.Errorf("%w: no extractable content", document.ErrExtraction)
		return st, nil
	}
	st.Chunks = chunks
	return st, nil
}

// embedNode 节点 4：整批向量化，任何一条失败整个任务失败
func (p *IngestPipeline) embedNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st == nil {
		return &ingestState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	start := time.Now()
	vecs64, err := p.embedder.EmbedStrings(ctx, st.Chunks)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			st.Err = fmt.Errorf("%w: embedding timeout", document.ErrEmbedding)
		} else {
			st.Err = fmt.Errorf("%w: %v", document.ErrEmbedding, err)
		}
		return st, nil
	}
	if len(vecs64) != len(st.Chunks) {
		st.Err = fmt.Errorf("%w: got %d vectors for %d chunks", document.ErrEmbedding, len(vecs64), len(st.Chunks))
		return st, nil
	}

	vectors := make([][]float32, 0, len(vecs64))
	for i, v64 := range vecs64 {
		if len(v64) != p.vectorDim {
			st.Err = fmt.Errorf("%w: chunk %d dim mismatch got=%d want=%d", document.ErrEmbedding, i, len(v64), p.vectorDim)
			return st, nil
		}
		v32 := make([]float32, len(v64))
		for j := range v64 {
			v32[j] = float32(v64[j])
		}
		vectors = append(vectors, v32)
	}
	st.Vectors = vectors
	st.EmbeddingMs = time.Since(start).Milliseconds()
	return st, nil
}

// upsertNode 节点 5：写入向量并裁掉上一版多出来的尾部向量
func (p *IngestPipeline) upsertNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st == nil {
		return &ingestState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	start := time.Now()
	owner := st.Doc.OwnerId
	records := make([]repository.VectorRecord, 0, len(st.Chunks))
	for i, chunk := range st.Chunks {
		records = append(records, repository.VectorRecord{
			ID:         ChunkVectorID(st.Doc.Id, i),
			Vector:     st.Vectors[i],
			DocumentID: st.Doc.Id,
			Filename:   st.Doc.Filename,
			Position:   i,
			Content:    chunk,
		})
	}
	if err := p.vs.Upsert(ctx, owner, records); err != nil {
		st.Err = fmt.Errorf("%w: %v", document.ErrVectorStore, err)
		return st, nil
	}

	// 新切片数少于旧切片数时，位置靠后的旧向量不会被覆盖，要显式删除
	if st.OldChunkCount > len(st.Chunks) {
		surplus := make([]string, 0, st.OldChunkCount-len(st.Chunks))
		for i := len(st.Chunks); i < st.OldChunkCount; i++ {
			surplus = append(surplus, ChunkVectorID(st.Doc.Id, i))
		}
		if err := p.vs.DeleteByIDs(ctx, owner, surplus); err != nil {
			st.Err = fmt.Errorf("%w: trim surplus vectors: %v", document.ErrVectorStore, err)
			return st, nil
		}
	}
	st.UpsertMs = time.Since(start).Milliseconds()
	return st, nil
}

// finalizeNode 节点 6：落终态。失败路径先回滚本次可能写入的向量再置 failed
func (p *IngestPipeline) finalizeNode(ctx context.Context, st *ingestState, _ ...any) (*IngestResult, error) {
	if st == nil {
		return nil, fmt.Errorf("nil state")
	}

	res := &IngestResult{
		ExtractMs:   st.ExtractMs,
		EmbeddingMs: st.EmbeddingMs,
		UpsertMs:    st.UpsertMs,
	}
	if st.Req != nil {
		res.DocumentID = st.Req.DocumentID
	}
	if st.Doc != nil {
		res.OwnerID = st.Doc.OwnerId
		res.Filename = st.Doc.Filename
	}

	if st.Err == nil {
		res.ChunkCount = len(st.Chunks)
		if err := p.docRepo.MarkIndexed(ctx, st.Doc.Id, res.ChunkCount); err != nil {
			st.Err = err
		}
	}

	if st.Err != nil {
		res.Failed = true
		res.ErrorMessage = failureMessage(st.Err)

		// 锁没抢到或文档不存在时状态不归本任务管，直接返回错误
		if st.Acquired {
			p.rollback(ctx, st)
			if err := p.docRepo.MarkFailed(ctx, st.Doc.Id, res.ErrorMessage); err != nil {
				zlog.Error("文档置失败状态出错",
					zap.String("documentId", st.Doc.Id), zap.Error(err))
			}
		}
	}

	res.DurationMs = time.Since(st.Start).Milliseconds()
	zlog.Info("document ingest done",
		zap.String("documentId", res.DocumentID),
		zap.String("ownerId", res.OwnerID),
		zap.String("filename", res.Filename),
		zap.Int("chunks", res.ChunkCount),
		zap.Bool("failed", res.Failed),
		zap.String("error", res.ErrorMessage),
		zap.Int64("extractMs", res.ExtractMs),
		zap.Int64("embeddingMs", res.EmbeddingMs),
		zap.Int64("upsertMs", res.UpsertMs),
		zap.Int64("durationMs", res.DurationMs),
	)
	return res, st.Err
}

// rollback 删除本次任务可能写入的全部向量 ID（新旧切片数取大者），
// 保证失败文档在向量库里零残留。回滚失败只告警，failed 状态照落。
func (p *IngestPipeline) rollback(ctx context.Context, st *ingestState) {
	if st.Doc == nil {
		return
	}
	count := st.OldChunkCount
	if len(st.Chunks) > count {
		count = len(st.Chunks)
	}
	if count == 0 {
		return
	}
	ids := ChunkVectorIDs(st.Doc.Id, count)
	if err := p.vs.DeleteByIDs(ctx, st.Doc.OwnerId, ids); err != nil {
		zlog.Warn("回滚向量失败",
			zap.String("documentId", st.Doc.Id),
			zap.Int("count", count),
			zap.Error(err))
	}
}

// failureMessage 把底层错误翻译成面向用户的失败原因
func failureMessage(err error) string {
	switch {
	case errors.Is(err, document.ErrDocumentBusy):
		return "document is already being processed"
	case errors.Is(err, document.ErrDocumentNotFound):
		return "document not found"
	case errors.Is(err, document.ErrExtraction):
		return err.Error()
	case errors.Is(err, document.ErrEmbedding):
		return err.Error()
	case errors.Is(err, document.ErrVectorStore):
		return err.Error()
	default:
		return err.Error()
	}
}
