package respond

import "time"

// SourceRef 单条来源引用：实际进入上下文的切片
type SourceRef struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Score      float32 `json:"score"`      // 余弦相似度
	ChunkText  string  `json:"chunk_text"` // 切片摘录
}

// ChatQueryRespond 问答响应
type ChatQueryRespond struct {
	Answer     string      `json:"answer"`
	Sources    []SourceRef `json:"sources,omitempty"`
	Empty      bool        `json:"empty"`    // 未命中任何相关内容
	Degraded   bool        `json:"degraded"` // 生成失败、降级返回原文摘录
	Message    string      `json:"message,omitempty"`
	TotalHits  int         `json:"total_hits"`
	UsedChunks int         `json:"used_chunks"`
	Timing     TimingInfo  `json:"timing"`
}

// TimingInfo 各阶段耗时统计
type TimingInfo struct {
	EmbeddingMs int64 `json:"embedding_ms"`
	SearchMs    int64 `json:"search_ms"`
	GenerateMs  int64 `json:"generate_ms"`
	TotalMs     int64 `json:"total_ms"`
}

// ChatMessageRespond 历史消息项
type ChatMessageRespond struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sources   []SourceRef `json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
