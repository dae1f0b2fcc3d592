package repository

import (
	"context"

	"AuraPilot/internal/modules/rag/domain/document"
)

// DocumentRepository 文档记录的持久化契约。
//
// 有两个实现：MySQL（gorm）与内存兜底实现，按配置选择；
// 两者都必须保证 CasStatus 的原子性，它是"同一文档同时只有一个索引任务"的锁。
type DocumentRepository interface {
	Create(ctx context.Context, doc *document.Document) error
	GetByID(ctx context.Context, id string) (*document.Document, error)
	// ListByOwner 按创建时间倒序分页返回某个用户的文档，同时返回总数
	ListByOwner(ctx context.Context, ownerID string, skip, limit int) ([]document.Document, int64, error)
	// CasStatus 仅当当前状态在 from 集合内时切换到 to，返回是否切换成功。
	// 这是索引任务的 advisory lock：pending/failed/indexed → processing。
	// 切换同时清空 error_message，它只允许在 failed 终态有值。
	CasStatus(ctx context.Context, id string, from []string, to string) (bool, error)
	// MarkIndexed 写入终态 indexed：设置 chunk_count 并清空 error_message
	MarkIndexed(ctx context.Context, id string, chunkCount int) error
	// MarkFailed 写入终态 failed：chunk_count 归零并记录失败原因
	MarkFailed(ctx context.Context, id string, errorMessage string) error
	Delete(ctx context.Context, id string) error
}
