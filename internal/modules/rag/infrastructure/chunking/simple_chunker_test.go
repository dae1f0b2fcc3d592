package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkEmptyText(t *testing.T) {
	c := NewSimpleChunker(512, 50)
	assert.Empty(t, c.Chunk(""))
}

func TestChunkShortTextSingleChunk(t *testing.T) {
	c := NewSimpleChunker(512, 50)
	chunks := c.Chunk("短文本 short text")
	require.Len(t, chunks, 1)
	assert.Equal(t, "短文本 short text", chunks[0])
}

func TestChunkSlidingWindow(t *testing.T) {
	c := NewSimpleChunker(512, 50)
	text := strings.Repeat("a", 1200)

	chunks := c.Chunk(text)
	// 步长 462：窗口 [0,512) [462,974) [924,1200)
	require.Len(t, chunks, 3)
	assert.Equal(t, 512, len([]rune(chunks[0])))
	assert.Equal(t, 512, len([]rune(chunks[1])))
	assert.Equal(t, 276, len([]rune(chunks[2])))
}

func TestChunkOverlapPreservesContinuity(t *testing.T) {
	c := NewSimpleChunker(100, 20)
	var sb strings.Builder
	for i := 0; i < 300; i++ {
		sb.WriteRune(rune('a' + i%26))
	}
	text := sb.String()

	chunks := c.Chunk(text)
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		// 相邻切片共享 overlap 个 rune
		assert.Equal(t, string(prev[len(prev)-20:]), string(cur[:20]))
	}
}

func TestChunkMultibyteRunesNotSplit(t *testing.T) {
	c := NewSimpleChunker(10, 2)
	text := strings.Repeat("中文字符测试", 10)

	chunks := c.Chunk(text)
	for _, chunk := range chunks {
		assert.True(t, strings.ContainsRune("中文字符测试", []rune(chunk)[0]))
		assert.LessOrEqual(t, len([]rune(chunk)), 10)
	}
}

func TestChunkDeterministic(t *testing.T) {
	c := NewSimpleChunker(256, 32)
	text := strings.Repeat("重建索引必须得到同样的切分结果。", 100)

	first := c.Chunk(text)
	second := c.Chunk(text)
	assert.Equal(t, first, second)
}

func TestNewSimpleChunkerClampsOverlap(t *testing.T) {
	c := NewSimpleChunker(100, 150)
	assert.Equal(t, 100, c.ChunkSize)
	assert.Equal(t, 10, c.ChunkOverlap)
}
