package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"AuraPilot/internal/modules/rag/domain/document"
	"AuraPilot/internal/modules/rag/domain/repository"
	"AuraPilot/pkg/redis"
	"AuraPilot/pkg/zlog"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	historyCacheMaxLen = 50
	historyCacheTTL    = 24 * time.Hour
)

// chatMessageRepositoryImpl 会话日志持久化：MySQL 为主存，
// Redis 维护一份最近消息的热缓存，拼 prompt 历史时不打 DB。
// Redis 不可用时静默降级为纯 DB 读写。
type chatMessageRepositoryImpl struct {
	db *gorm.DB
}

func NewChatMessageRepository(db *gorm.DB) repository.ChatMessageRepository {
	return &chatMessageRepositoryImpl{db: db}
}

func historyCacheKey(ownerID string) string {
	return fmt.Sprintf("chat:history:%s", ownerID)
}

func (r *chatMessageRepositoryImpl) Append(ctx context.Context, msg *document.ChatMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return err
	}

	if redis.IsConnected() {
		r.cacheAppend(ctx, msg)
	}
	return nil
}

func (r *chatMessageRepositoryImpl) cacheAppend(ctx context.Context, msg *document.ChatMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	key := historyCacheKey(msg.OwnerId)
	if _, err := redis.RPush(ctx, key, string(payload)); err != nil {
		zlog.Warn("会话历史写缓存失败", zap.String("ownerId", msg.OwnerId), zap.Error(err))
		return
	}
	_ = redis.LTrim(ctx, key, -historyCacheMaxLen, -1)
	_, _ = redis.Expire(ctx, key, historyCacheTTL)
}

// ListRecent 优先走 Redis 热缓存，未命中或数据不足再回源 DB
func (r *chatMessageRepositoryImpl) ListRecent(ctx context.Context, ownerID string, limit int) ([]document.ChatMessage, error) {
	if limit <= 0 {
		return []document.ChatMessage{}, nil
	}

	if redis.IsConnected() {
		if msgs, ok := r.cacheListRecent(ctx, ownerID, limit); ok {
			return msgs, nil
		}
	}

	var msgs []document.ChatMessage
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	// 倒序查出来的，翻回时间正序
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *chatMessageRepositoryImpl) cacheListRecent(ctx context.Context, ownerID string, limit int) ([]document.ChatMessage, bool) {
	raw, err := redis.LRange(ctx, historyCacheKey(ownerID), int64(-limit), -1)
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	msgs := make([]document.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var m document.ChatMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, false
		}
		msgs = append(msgs, m)
	}
	return msgs, true
}

func (r *chatMessageRepositoryImpl) ListByOwner(ctx context.Context, ownerID string, skip, limit int) ([]document.ChatMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}
	var msgs []document.ChatMessage
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id ASC").
		Offset(skip).Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *chatMessageRepositoryImpl) DeleteByOwner(ctx context.Context, ownerID string) error {
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Delete(&document.ChatMessage{}).Error
	if err != nil {
		return err
	}
	if redis.IsConnected() {
		_, _ = redis.Del(ctx, historyCacheKey(ownerID))
	}
	return nil
}
