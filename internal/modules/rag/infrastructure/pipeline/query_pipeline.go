package pipeline

import (
	"context"
	"fmt"

	"AuraPilot/internal/modules/rag/application/dto/respond"
	"AuraPilot/internal/modules/rag/domain/document"
	"AuraPilot/internal/modules/rag/domain/repository"
	"AuraPilot/internal/modules/rag/infrastructure/llm"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/compose"
)

// QueryRequest 问答 Pipeline 的输入
type QueryRequest struct {
	OwnerID        string                 // 提问用户（必填，namespace 隔离边界）
	Query          string                 // 用户问题（必填）
	TopK           int                    // 召回条数（默认走配置）
	MinScore       float32                // 相似度阈值（默认走配置）
	Temperature    float32                // 生成温度
	IncludeSources bool                   // 是否返回来源引用
	History        []document.ChatMessage // 最近会话历史（拼入 prompt）
}

// QueryResult 问答 Pipeline 的输出
type QueryResult struct {
	Answer        string              // 最终回答
	Sources       []respond.SourceRef // 实际进入上下文的来源引用
	Hits          []repository.VectorHit
	TotalHits     int    // 过滤后召回条数
	UsedChunks    int    // 实际拼入上下文的切片数
	Empty         bool   // 未命中任何相关内容
	Degraded      bool   // 生成失败、降级返回原文摘录
	GenerateError string // 降级原因（包含 document.ErrGeneration 分类前缀）
	Message       string
	EmbeddingMs   int64
	SearchMs      int64
	GenerateMs    int64
	DurationMs    int64
}

// QueryPipeline 检索问答流水线（基于 Eino compose.Graph）。
//
// 设计原则：
// 1. 检索永远限定在提问用户自己的 namespace 内。
// 2. 零命中不调用生成模型，直接返回兜底回答。
// 3. 生成失败降级：返回已检索到的原文摘录而不是报错，检索结果不浪费。
type QueryPipeline struct {
	vs       repository.VectorStore
	embedder embedding.Embedder
	gen      llm.Generator // 可为 nil（未配置对话模型时永远走降级路径）

	vectorDim       int
	defaultTopK     int
	defaultMinScore float32
	maxContextChars int

	r compose.Runnable[*QueryRequest, *QueryResult]
}

type QueryPipelineConfig struct {
	VectorDim       int
	TopK            int
	MinScore        float32
	MaxContextChars int
}

func NewQueryPipeline(
	vs repository.VectorStore,
	embedder embedding.Embedder,
	gen llm.Generator,
	cfg QueryPipelineConfig,
) (*QueryPipeline, error) {
	if vs == nil {
		return nil, fmt.Errorf("%w: vector store is nil", document.ErrConfiguration)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is nil", document.ErrConfiguration)
	}
	if cfg.VectorDim <= 0 {
		return nil, fmt.Errorf("%w: invalid vector dim %d", document.ErrConfiguration, cfg.VectorDim)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = 4000
	}

	p := &QueryPipeline{
		vs:              vs,
		embedder:        embedder,
		gen:             gen,
		vectorDim:       cfg.VectorDim,
		defaultTopK:     cfg.TopK,
		defaultMinScore: cfg.MinScore,
		maxContextChars: cfg.MaxContextChars,
	}
	r, err := p.buildGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.r = r
	return p, nil
}

// Query 执行一次检索问答（封装 Eino Runnable.Invoke）
func (p *QueryPipeline) Query(ctx context.Context, req *QueryRequest) (*QueryResult, error) {
	if req == nil {
		return nil, fmt.Errorf("query request is nil")
	}
	if p.r == nil {
		return nil, fmt.Errorf("pipeline runnable is nil")
	}
	return p.r.Invoke(ctx, req)
}
