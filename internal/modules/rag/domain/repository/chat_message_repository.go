package repository

import (
	"context"

	"AuraPilot/internal/modules/rag/domain/document"
)

// ChatMessageRepository 问答会话日志的持久化契约
type ChatMessageRepository interface {
	Append(ctx context.Context, msg *document.ChatMessage) error
	// ListRecent 返回某个用户最近的 limit 条消息，按时间正序
	ListRecent(ctx context.Context, ownerID string, limit int) ([]document.ChatMessage, error)
	ListByOwner(ctx context.Context, ownerID string, skip, limit int) ([]document.ChatMessage, error)
	DeleteByOwner(ctx context.Context, ownerID string) error
}
