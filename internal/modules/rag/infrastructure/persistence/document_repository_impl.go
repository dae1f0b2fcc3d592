package persistence

import (
	"context"
	"time"

	"AuraPilot/internal/modules/rag/domain/document"
	"AuraPilot/internal/modules/rag/domain/repository"

	"gorm.io/gorm"
)

type documentRepositoryImpl struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) repository.DocumentRepository {
	return &documentRepositoryImpl{db: db}
}

func (r *documentRepositoryImpl) Create(ctx context.Context, doc *document.Document) error {
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *documentRepositoryImpl) GetByID(ctx context.Context, id string) (*document.Document, error) {
	var d document.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&d).Error
	if err == nil {
		return &d, nil
	}
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return nil, err
}

func (r *documentRepositoryImpl) ListByOwner(ctx context.Context, ownerID string, skip, limit int) ([]document.Document, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&document.Document{}).
		Where("owner_id = ?", ownerID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}

	var docs []document.Document
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Offset(skip).Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// CasStatus 依赖 UPDATE 的原子性：WHERE 带上旧状态集合，
// RowsAffected == 0 即状态已被别的任务抢走。
// 迁移同时清掉 error_message：它只在 failed 终态有值，
// failed → processing 不能带着上一次的旧错误。
func (r *documentRepositoryImpl) CasStatus(ctx context.Context, id string, from []string, to string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&document.Document{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"status":        to,
			"error_message": "",
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *documentRepositoryImpl) MarkIndexed(ctx context.Context, id string, chunkCount int) error {
	return r.db.WithContext(ctx).Model(&document.Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        document.StatusIndexed,
			"chunk_count":   chunkCount,
			"error_message": "",
			"updated_at":    time.Now(),
		}).Error
}

func (r *documentRepositoryImpl) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	// error_message 列宽 255，超长截断
	if len(errorMessage) > 255 {
		errorMessage = errorMessage[:255]
	}
	return r.db.WithContext(ctx).Model(&document.Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        document.StatusFailed,
			"chunk_count":   0,
			"error_message": errorMessage,
			"updated_at":    time.Now(),
		}).Error
}

func (r *documentRepositoryImpl) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&document.Document{}).Error
}
