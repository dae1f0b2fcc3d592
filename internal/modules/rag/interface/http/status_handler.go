package http

import (
	"AuraPilot/pkg/back"
	"AuraPilot/pkg/redis"

	"github.com/gin-gonic/gin"
)

// ProviderStatus 后端依赖就绪状态（前端设置页展示用）
type ProviderStatus struct {
	EmbeddingProvider string `json:"embedding_provider"`
	EmbeddingModel    string `json:"embedding_model"`
	EmbeddingDim      int    `json:"embedding_dim"`
	ChatModelProvider string `json:"chat_model_provider"`
	ChatModelReady    bool   `json:"chat_model_ready"`
	VectorStore       string `json:"vector_store"` // milvus / memory
	DocumentStore     string `json:"document_store"`
	IngestMode        string `json:"ingest_mode"`
	RedisConnected    bool   `json:"redis_connected"`
}

// StatusHandler 服务状态 HTTP Handler
type StatusHandler struct {
	status ProviderStatus
}

func NewStatusHandler(status ProviderStatus) *StatusHandler {
	return &StatusHandler{status: status}
}

// Status 返回各 provider 就绪状态
//
// 路由: GET /rag/status
func (h *StatusHandler) Status(c *gin.Context) {
	s := h.status
	s.RedisConnected = redis.IsConnected()
	back.Success(c, s)
}
