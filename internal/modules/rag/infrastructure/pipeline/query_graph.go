package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"AuraPilot/internal/modules/rag/application/dto/respond"
	"AuraPilot/internal/modules/rag/domain/document"
	"AuraPilot/internal/modules/rag/domain/repository"
	"AuraPilot/pkg/zlog"

	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"
)

const emptyAnswer = "I couldn't find relevant information in your documents to answer this question."

// queryState 问答流水线的中间状态（在节点间传递）
type queryState struct {
	Req *QueryRequest

	QueryVec []float32
	Hits     []repository.VectorHit

	Context    string
	UsedHits   []repository.VectorHit
	Truncated  bool

	Answer   string
	Degraded bool
	GenErr   string

	Start       time.Time
	EmbeddingMs int64
	SearchMs    int64
	GenerateMs  int64
	Err         error
}

// buildGraph 节点顺序：Validate → EmbedQuery → Search → AssembleContext → Generate → BuildResult
func (p *QueryPipeline) buildGraph(ctx context.Context) (compose.Runnable[*QueryRequest, *QueryResult], error) {
	const (
		Validate        = "Validate"
		EmbedQuery      = "EmbedQuery"
		Search          = "Search"
		AssembleContext = "AssembleContext"
		Generate        = "Generate"
		BuildResult     = "BuildResult"
	)
	g := compose.NewGraph[*QueryRequest, *QueryResult]()

	_ = g.AddLambdaNode(Validate, compose.InvokableLambdaWithOption(p.validateNode), compose.WithNodeName(Validate))
	_ = g.AddLambdaNode(EmbedQuery, compose.InvokableLambdaWithOption(p.embedQueryNode), compose.WithNodeName(EmbedQuery))
	_ = g.AddLambdaNode(Search, compose.InvokableLambdaWithOption(p.searchNode), compose.WithNodeName(Search))
	_ = g.AddLambdaNode(AssembleContext, compose.InvokableLambdaWithOption(p.assembleContextNode), compose.WithNodeName(AssembleContext))
	_ = g.AddLambdaNode(Generate, compose.InvokableLambdaWithOption(p.generateNode), compose.WithNodeName(Generate))
	_ = g.AddLambdaNode(BuildResult, compose.InvokableLambdaWithOption(p.buildResultNode), compose.WithNodeName(BuildResult))

	_ = g.AddEdge(compose.START, Validate)
	_ = g.AddEdge(Validate, EmbedQuery)
	_ = g.AddEdge(EmbedQuery, Search)
	_ = g.AddEdge(Search, AssembleContext)
	_ = g.AddEdge(AssembleContext, Generate)
	_ = g.AddEdge(Generate, BuildResult)
	_ = g.AddEdge(BuildResult, compose.END)

	return g.Compile(ctx, compose.WithGraphName("DocumentQueryPipeline"), compose.WithNodeTriggerMode(compose.AllPredecessor))
}

// validateNode 节点 1：校验并规范化请求参数
func (p *QueryPipeline) validateNode(ctx context.Context, req *QueryRequest, _ ...any) (*queryState, error) {
	_ = ctx
	st := &queryState{Req: req, Start: time.Now()}
	if req == nil {
		st.Err = fmt.Errorf("query request is nil")
		return st, nil
	}

	req.OwnerID = strings.TrimSpace(req.OwnerID)
	if req.OwnerID == "" {
		st.Err = fmt.Errorf("missing owner id")
		return st, nil
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		st.Err = fmt.Errorf("missing query")
		return st, nil
	}
	if req.TopK <= 0 {
		req.TopK = p.defaultTopK
	}
	if req.TopK > 50 {
		req.TopK = 50
	}
	if req.MinScore == 0 {
		req.MinScore = p.defaultMinScore
	}
	if req.Temperature < 0 {
		req.Temperature = 0
	}
	if req.Temperature > 2 {
		req.Temperature = 2
	}
	return st, nil
}

// embedQueryNode 节点 2：问题向量化
func (p *QueryPipeline) embedQueryNode(ctx context.Context, st *queryState, _ ...any) (*queryState, error) {
	if st == nil {
		return &queryState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	start := time.Now()
	vecs, err := p.embedder.EmbedStrings(ctx, []string{st.Req.Query})
	if err != nil {
		st.Err = fmt.Errorf("%w: %v", document.ErrEmbedding, err)
		return st, nil
	}
	if len(vecs) == 0 {
		st.Err = fmt.Errorf("%w: empty embedding result", document.ErrEmbedding)
		return st, nil
	}
	vec64 := vecs[0]
	if len(vec64) != p.vectorDim {
		st.Err = fmt.Errorf("%w: query dim mismatch got=%d want=%d", document.ErrEmbedding, len(vec64), p.vectorDim)
		return st, nil
	}
	vec32 := make([]float32, len(vec64))
	for i := range vec64 {
		vec32[i] = float32(vec64[i])
	}
	st.QueryVec = vec32
	st.EmbeddingMs = time.Since(start).Milliseconds()
	return st, nil
}

// searchNode 节点 3：namespace 内向量检索 + 确定性排序
func (p *QueryPipeline) searchNode(ctx context.Context, st *queryState, _ ...any) (*queryState, error) {
	if st == nil {
		return &queryState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	start := time.Now()
	hits, err := p.vs.Query(ctx, st.Req.OwnerID, st.QueryVec, st.Req.TopK, st.Req.MinScore)
	if err != nil {
		st.Err = fmt.Errorf("%w: %v", document.ErrVectorStore, err)
		return st, nil
	}

	// 同分命中按切片位置、再按文档 ID 排序，保证结果可复现
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Position != hits[j].Position {
			return hits[i].Position < hits[j].Position
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})
	st.Hits = hits
	st.SearchMs = time.Since(start).Milliseconds()
	return st, nil
}

// contextSeparator 上下文切片之间的分隔符（纯 ASCII，字节数即 rune 数）
const contextSeparator = "\n\n"

// chunkWithSource 切片文本带上来源文件名，模型回答时可以引用出处
func chunkWithSource(filename, content string) string {
	if filename == "" {
		return content
	}
	return "[" + filename + "] " + content
}

// assembleContextNode 节点 4：按得分顺序拼上下文，受总字符预算约束。
// 来源前缀和分隔符一并计入预算，拼出的上下文 rune 数永远不超上限；
// 首条切片单独超预算时截断保留，避免完全空上下文。
func (p *QueryPipeline) assembleContextNode(ctx context.Context, st *queryState, _ ...any) (*queryState, error) {
	_ = ctx
	if st == nil {
		return &queryState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil || len(st.Hits) == 0 {
		return st, nil
	}

	var sb strings.Builder
	used := make([]repository.VectorHit, 0, len(st.Hits))
	total := 0
	for _, h := range st.Hits {
		content := strings.TrimSpace(h.Content)
		if content == "" {
			continue
		}
		piece := []rune(chunkWithSource(h.Filename, content))
		cost := len(piece)
		if len(used) > 0 {
			cost += len(contextSeparator)
		}
		if total+cost > p.maxContextChars {
			if len(used) == 0 {
				st.Truncated = true
				sb.WriteString(string(piece[:p.maxContextChars]))
				total = p.maxContextChars
				used = append(used, h)
			}
			break
		}
		if len(used) > 0 {
			sb.WriteString(contextSeparator)
		}
		sb.WriteString(string(piece))
		total += cost
		used = append(used, h)
	}
	st.Context = sb.String()
	st.UsedHits = used
	return st, nil
}

// generateNode 节点 5：调用对话模型生成回答，失败走降级
func (p *QueryPipeline) generateNode(ctx context.Context, st *queryState, _ ...any) (*queryState, error) {
	if st == nil {
		return &queryState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}
	// 零命中不浪费一次模型调用
	if len(st.UsedHits) == 0 {
		st.Answer = emptyAnswer
		return st, nil
	}

	start := time.Now()
	if p.gen == nil {
		st.Degraded = true
		st.GenErr = fmt.Errorf("%w: chat model not configured", document.ErrGeneration).Error()
	} else {
		prompt := buildPrompt(st.Req.Query, st.Context, st.Req.History)
		answer, err := p.gen.Generate(ctx, prompt, st.Req.Temperature)
		if err != nil {
			// 失败归类到 ErrGeneration，降级原因随响应与日志一起透出
			st.Degraded = true
			st.GenErr = fmt.Errorf("%w: %v", document.ErrGeneration, err).Error()
		} else {
			st.Answer = strings.TrimSpace(answer)
		}
	}

	if st.Degraded {
		st.Answer = degradedAnswer(st.UsedHits)
	}
	st.GenerateMs = time.Since(start).Milliseconds()
	return st, nil
}

// buildResultNode 节点 6：组装响应并记录观测日志
func (p *QueryPipeline) buildResultNode(ctx context.Context, st *queryState, _ ...any) (*QueryResult, error) {
	_ = ctx
	if st == nil {
		return nil, fmt.Errorf("nil state")
	}

	res := &QueryResult{
		Answer:        st.Answer,
		Hits:          st.Hits,
		TotalHits:     len(st.Hits),
		UsedChunks:    len(st.UsedHits),
		Degraded:      st.Degraded,
		GenerateError: st.GenErr,
		EmbeddingMs:   st.EmbeddingMs,
		SearchMs:      st.SearchMs,
		GenerateMs:    st.GenerateMs,
		DurationMs:    time.Since(st.Start).Milliseconds(),
	}
	if st.Err != nil {
		return res, st.Err
	}

	if len(st.UsedHits) == 0 {
		res.Empty = true
		res.Message = "no relevant information found"
	}
	if st.Degraded {
		res.Message = "answer generation unavailable, returning document excerpts"
	}

	if st.Req.IncludeSources {
		sources := make([]respond.SourceRef, 0, len(st.UsedHits))
		for _, h := range st.UsedHits {
			sources = append(sources, respond.SourceRef{
				DocumentID: h.DocumentID,
				Filename:   h.Filename,
				Score:      h.Score,
				ChunkText:  excerpt(h.Content, 200),
			})
		}
		res.Sources = sources
	}

	owner := ""
	query := ""
	if st.Req != nil {
		owner = st.Req.OwnerID
		query = st.Req.Query
	}
	zlog.Info("document query done",
		zap.String("ownerId", owner),
		zap.String("query", query),
		zap.Int("totalHits", res.TotalHits),
		zap.Int("usedChunks", res.UsedChunks),
		zap.Bool("empty", res.Empty),
		zap.Bool("degraded", res.Degraded),
		zap.Bool("contextTruncated", st.Truncated),
		zap.String("generateError", st.GenErr),
		zap.Int64("embeddingMs", res.EmbeddingMs),
		zap.Int64("searchMs", res.SearchMs),
		zap.Int64("generateMs", res.GenerateMs),
		zap.Int64("durationMs", res.DurationMs),
	)
	return res, nil
}

// buildPrompt 拼最终 prompt：最近几轮会话 + 上下文 + 问题
func buildPrompt(query, context string, history []document.ChatMessage) string {
	var sb strings.Builder
	if len(history) > 0 {
		sb.WriteString("Previous conversation:\n")
		for _, m := range history {
			role := "User"
			if m.Role == document.RoleAssistant {
				role = "Assistant"
			}
			sb.WriteString(fmt.Sprintf("%s: %s\n", role, m.Content))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Use the following context to answer the question. ")
	sb.WriteString("If the context doesn't contain relevant information, say so.\n\n")
	sb.WriteString("Context:\n")
	sb.WriteString(context)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(query)
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}

// degradedAnswer 生成不可用时，把召回原文直接拼给用户
func degradedAnswer(hits []repository.VectorHit) string {
	var sb strings.Builder
	sb.WriteString("Answer generation is temporarily unavailable. Most relevant excerpts from your documents:\n")
	for i, h := range hits {
		if i >= 3 {
			break
		}
		sb.WriteString(fmt.Sprintf("\n%d. %s (relevance: %.2f)\n%s\n",
			i+1, h.Filename, h.Score, excerpt(h.Content, 300)))
	}
	return sb.String()
}

func excerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
