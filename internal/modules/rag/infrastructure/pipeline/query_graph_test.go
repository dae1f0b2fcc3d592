package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"AuraPilot/internal/modules/rag/domain/document"
	"AuraPilot/internal/modules/rag/domain/repository"
	mockembed "AuraPilot/internal/modules/rag/infrastructure/embedding"
	"AuraPilot/internal/modules/rag/infrastructure/llm"
	"AuraPilot/internal/modules/rag/infrastructure/vectordb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	answer     string
	err        error
	calls      int
	lastPrompt string
	lastTemp   float32
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	g.calls++
	g.lastPrompt = prompt
	g.lastTemp = temperature
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

// seedChunks 用和索引流水线一致的方式写入切片向量，保证检索语义对齐
func seedChunks(t *testing.T, vs *vectordb.MemoryStore, owner, docID, filename string, chunks []string) {
	t.Helper()
	em := mockembed.NewMockEmbedder(testDim)
	vecs, err := em.EmbedStrings(context.Background(), chunks)
	require.NoError(t, err)

	records := make([]repository.VectorRecord, 0, len(chunks))
	for i, chunk := range chunks {
		v32 := make([]float32, len(vecs[i]))
		for j := range vecs[i] {
			v32[j] = float32(vecs[i][j])
		}
		records = append(records, repository.VectorRecord{
			ID:         ChunkVectorID(docID, i),
			Vector:     v32,
			DocumentID: docID,
			Filename:   filename,
			Position:   i,
			Content:    chunk,
		})
	}
	require.NoError(t, vs.Upsert(context.Background(), owner, records))
}

func newQueryFixture(t *testing.T, vs *vectordb.MemoryStore, gen *fakeGenerator, maxContextChars int) *QueryPipeline {
	t.Helper()
	var g llm.Generator
	if gen != nil {
		g = gen
	}
	p, err := NewQueryPipeline(vs, mockembed.NewMockEmbedder(testDim), g, QueryPipelineConfig{
		VectorDim:       testDim,
		TopK:            5,
		MinScore:        -1, // mock 向量之间相似度低，测试里不做阈值过滤
		MaxContextChars: maxContextChars,
	})
	require.NoError(t, err)
	return p
}

// promptContext 从最终 prompt 里截出 Context 段
func promptContext(t *testing.T, prompt string) string {
	t.Helper()
	const head = "Context:\n"
	i := strings.Index(prompt, head)
	require.GreaterOrEqual(t, i, 0)
	rest := prompt[i+len(head):]
	j := strings.Index(rest, "\n\nQuestion:")
	require.GreaterOrEqual(t, j, 0)
	return rest[:j]
}

func TestQueryEmptyRetrievalSkipsGeneration(t *testing.T) {
	gen := &fakeGenerator{answer: "should not be called"}
	p := newQueryFixture(t, vectordb.NewMemoryStore(), gen, 4000)

	res, err := p.Query(context.Background(), &QueryRequest{
		OwnerID: "owner-1",
		Query:   "什么是一致性哈希？",
	})
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Equal(t, 0, res.TotalHits)
	assert.Equal(t, "no relevant information found", res.Message)
	assert.Contains(t, res.Answer, "couldn't find relevant information")
	assert.Equal(t, 0, gen.calls, "零命中时不允许调用生成模型")
}

func TestQueryAnswersWithContext(t *testing.T) {
	vs := vectordb.NewMemoryStore()
	seedChunks(t, vs, "owner-1", "doc-1", "raft.md", []string{
		"Raft 将一致性问题分解为领导选举、日志复制与安全性。",
		"领导者负责接收客户端请求并复制日志到跟随者。",
	})
	gen := &fakeGenerator{answer: "Raft 通过领导选举和日志复制达成一致。"}
	p := newQueryFixture(t, vs, gen, 4000)

	res, err := p.Query(context.Background(), &QueryRequest{
		OwnerID:        "owner-1",
		Query:          "Raft 如何工作？",
		Temperature:    0.7,
		IncludeSources: true,
	})
	require.NoError(t, err)
	assert.False(t, res.Empty)
	assert.False(t, res.Degraded)
	assert.Equal(t, "Raft 通过领导选举和日志复制达成一致。", res.Answer)
	assert.Equal(t, 2, res.TotalHits)
	assert.Equal(t, 2, res.UsedChunks)

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, float32(0.7), gen.lastTemp)
	assert.Contains(t, gen.lastPrompt, "Context:")
	assert.Contains(t, gen.lastPrompt, "Raft 如何工作？")
	assert.Contains(t, gen.lastPrompt, "领导选举")
	// 每段上下文带来源文件名前缀
	assert.Contains(t, gen.lastPrompt, "[raft.md] ")

	require.Len(t, res.Sources, 2)
	assert.Equal(t, "doc-1", res.Sources[0].DocumentID)
	assert.Equal(t, "raft.md", res.Sources[0].Filename)
}

func TestQueryHistoryInPrompt(t *testing.T) {
	vs := vectordb.NewMemoryStore()
	seedChunks(t, vs, "owner-1", "doc-1", "raft.md", []string{"领导选举由超时触发。"})
	gen := &fakeGenerator{answer: "ok"}
	p := newQueryFixture(t, vs, gen, 4000)

	_, err := p.Query(context.Background(), &QueryRequest{
		OwnerID: "owner-1",
		Query:   "那跟随者呢？",
		History: []document.ChatMessage{
			{Role: document.RoleUser, Content: "Raft 怎么选主？"},
			{Role: document.RoleAssistant, Content: "通过随机超时发起选举。"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, gen.lastPrompt, "Previous conversation:")
	assert.Contains(t, gen.lastPrompt, "User: Raft 怎么选主？")
	assert.Contains(t, gen.lastPrompt, "Assistant: 通过随机超时发起选举。")
}

func TestQueryContextBudgetLimitsChunks(t *testing.T) {
	vs := vectordb.NewMemoryStore()
	chunks := make([]string, 5)
	for i := range chunks {
		chunks[i] = strings.Repeat("内容", 50) // 每片 100 rune
	}
	seedChunks(t, vs, "owner-1", "doc-1", "big.txt", chunks)
	gen := &fakeGenerator{answer: "ok"}
	// 每片 100 rune + 来源前缀 "[big.txt] " 10 rune = 110，片间分隔符 2。
	// 预算 340：3 片（110+112+112 = 334）放得下，第 4 片放不下
	p := newQueryFixture(t, vs, gen, 340)

	res, err := p.Query(context.Background(), &QueryRequest{
		OwnerID: "owner-1",
		Query:   "总结一下",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, res.TotalHits)
	assert.Equal(t, 3, res.UsedChunks)
	assert.LessOrEqual(t, len([]rune(promptContext(t, gen.lastPrompt))), 340)
}

func TestQueryContextSeparatorCountedInBudget(t *testing.T) {
	vs := vectordb.NewMemoryStore()
	// 每片拼好前缀 "[a.md] "（7 rune）后正好 50 rune，两片加分隔符共 102
	seedChunks(t, vs, "owner-1", "doc-1", "a.md", []string{
		strings.Repeat("甲", 43),
		strings.Repeat("乙", 43),
	})
	gen := &fakeGenerator{answer: "ok"}

	p := newQueryFixture(t, vs, gen, 102)
	res, err := p.Query(context.Background(), &QueryRequest{OwnerID: "owner-1", Query: "问"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.UsedChunks)
	assert.Equal(t, 102, len([]rune(promptContext(t, gen.lastPrompt))))

	// 预算差 1 rune 时第二片连同分隔符一起被拒，上下文绝不超限
	p = newQueryFixture(t, vs, gen, 101)
	res, err = p.Query(context.Background(), &QueryRequest{OwnerID: "owner-1", Query: "问"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.UsedChunks)
	assert.Equal(t, 50, len([]rune(promptContext(t, gen.lastPrompt))))
}

func TestQueryFirstChunkTruncatedWhenOverBudget(t *testing.T) {
	vs := vectordb.NewMemoryStore()
	seedChunks(t, vs, "owner-1", "doc-1", "big.txt", []string{strings.Repeat("长", 500)})
	gen := &fakeGenerator{answer: "ok"}
	p := newQueryFixture(t, vs, gen, 100)

	res, err := p.Query(context.Background(), &QueryRequest{
		OwnerID: "owner-1",
		Query:   "总结一下",
	})
	require.NoError(t, err)
	// 首片超预算时截断保留，不允许空上下文
	assert.Equal(t, 1, res.UsedChunks)
	assert.False(t, res.Empty)
	assert.Equal(t, 100, len([]rune(promptContext(t, gen.lastPrompt))))
}

func TestQueryDegradesOnGeneratorError(t *testing.T) {
	vs := vectordb.NewMemoryStore()
	seedChunks(t, vs, "owner-1", "doc-1", "raft.md", []string{
		"领导选举由超时触发。",
		"日志按索引顺序复制。",
	})
	gen := &fakeGenerator{err: errors.New("model overloaded")}
	p := newQueryFixture(t, vs, gen, 4000)

	res, err := p.Query(context.Background(), &QueryRequest{
		OwnerID: "owner-1",
		Query:   "Raft 如何工作？",
	})
	require.NoError(t, err, "生成失败必须降级而不是报错")
	assert.True(t, res.Degraded)
	assert.Equal(t, "answer generation unavailable, returning document excerpts", res.Message)
	assert.Contains(t, res.GenerateError, document.ErrGeneration.Error())
	assert.Contains(t, res.GenerateError, "model overloaded")
	assert.Contains(t, res.Answer, "relevance:")
	assert.Contains(t, res.Answer, "raft.md")
}

func TestQueryDegradesWhenGeneratorNil(t *testing.T) {
	vs := vectordb.NewMemoryStore()
	seedChunks(t, vs, "owner-1", "doc-1", "raft.md", []string{"领导选举由超时触发。"})
	p := newQueryFixture(t, vs, nil, 4000)

	res, err := p.Query(context.Background(), &QueryRequest{
		OwnerID: "owner-1",
		Query:   "Raft 如何工作？",
	})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Contains(t, res.Answer, "temporarily unavailable")
}

func TestQueryNamespaceIsolation(t *testing.T) {
	vs := vectordb.NewMemoryStore()
	seedChunks(t, vs, "owner-1", "doc-1", "secret.txt", []string{"owner-1 的私有内容"})
	gen := &fakeGenerator{answer: "should not leak"}
	p := newQueryFixture(t, vs, gen, 4000)

	res, err := p.Query(context.Background(), &QueryRequest{
		OwnerID: "owner-2",
		Query:   "私有内容",
	})
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Equal(t, 0, gen.calls)
}

func TestQueryValidation(t *testing.T) {
	p := newQueryFixture(t, vectordb.NewMemoryStore(), &fakeGenerator{}, 4000)
	ctx := context.Background()

	_, err := p.Query(ctx, &QueryRequest{OwnerID: "", Query: "q"})
	assert.Error(t, err)

	_, err = p.Query(ctx, &QueryRequest{OwnerID: "owner-1", Query: "   "})
	assert.Error(t, err)
}

func TestNewQueryPipelineRejectsBadConfig(t *testing.T) {
	_, err := NewQueryPipeline(nil, mockembed.NewMockEmbedder(testDim), nil,
		QueryPipelineConfig{VectorDim: testDim})
	assert.ErrorIs(t, err, document.ErrConfiguration)

	_, err = NewQueryPipeline(vectordb.NewMemoryStore(), mockembed.NewMockEmbedder(testDim), nil,
		QueryPipelineConfig{VectorDim: 0})
	assert.ErrorIs(t, err, document.ErrConfiguration)
}
