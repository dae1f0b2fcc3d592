package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/cloudwego/eino/components/embedding"
)

// MockEmbedder 确定性的兜底向量化实现：向量由文本哈希派生，
// 同样的文本永远得到同样的单位向量。未配置真实模型时使用，
// 使其余流水线无需感知当前是 mock 还是真实模型。
type MockEmbedder struct {
	Dim int
}

func NewMockEmbedder(dim int) *MockEmbedder {
	if dim <= 0 {
		dim = 384
	}
	return &MockEmbedder{Dim: dim}
}

func (m *MockEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	result := make([][]float64, len(texts))
	for i, text := range texts {
		result[i] = m.embedOne(text)
	}
	return result, nil
}

func (m *MockEmbedder) embedOne(text string) []float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64()
	if state == 0 {
		state = 1
	}

	vec := make([]float64, m.Dim)
	var norm float64
	for j := 0; j < m.Dim; j++ {
		// xorshift64，确定性伪随机序列
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		v := float64(int64(state))/float64(math.MaxInt64) - 0.5
		vec[j] = v
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for j := range vec {
			vec[j] /= norm
		}
	}
	return vec
}

var _ embedding.Embedder = (*MockEmbedder)(nil)
