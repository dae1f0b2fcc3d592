package service

import (
	"context"
	"encoding/json"
	"strings"

	"AuraPilot/internal/modules/rag/application/dto/request"
	"AuraPilot/internal/modules/rag/application/dto/respond"
	"AuraPilot/internal/modules/rag/domain/document"
	"AuraPilot/internal/modules/rag/domain/repository"
	"AuraPilot/internal/modules/rag/infrastructure/pipeline"
	"AuraPilot/pkg/xerr"
	"AuraPilot/pkg/zlog"

	"go.uber.org/zap"
)

const defaultTemperature = 0.7

// ChatService 文档问答服务：调用问答流水线并维护会话日志
type ChatService interface {
	Query(ctx context.Context, req request.ChatQueryRequest, ownerID string) (*respond.ChatQueryRespond, error)
	History(ctx context.Context, ownerID string, skip, limit int) ([]respond.ChatMessageRespond, error)
	ClearHistory(ctx context.Context, ownerID string) error
}

type chatServiceImpl struct {
	pipeline     *pipeline.QueryPipeline
	msgRepo      repository.ChatMessageRepository
	historyTurns int
}

func NewChatService(p *pipeline.QueryPipeline, msgRepo repository.ChatMessageRepository, historyTurns int) ChatService {
	return &chatServiceImpl{pipeline: p, msgRepo: msgRepo, historyTurns: historyTurns}
}

// Query 执行一次问答：拼最近会话历史进 prompt，结束后把问答双方写回日志
func (s *chatServiceImpl) Query(ctx context.Context, req request.ChatQueryRequest, ownerID string) (*respond.ChatQueryRespond, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, xerr.New(xerr.Unauthorized, "未登录")
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, xerr.New(xerr.BadRequest, "问题不能为空")
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}

	var history []document.ChatMessage
	if s.historyTurns > 0 {
		// 一轮 = 一问一答两条消息
		h, err := s.msgRepo.ListRecent(ctx, ownerID, s.historyTurns*2)
		if err != nil {
			zlog.Warn("会话历史读取失败，继续无历史问答",
				zap.String("ownerId", ownerID), zap.Error(err))
		} else {
			history = h
		}
	}

	result, err := s.pipeline.Query(ctx, &pipeline.QueryRequest{
		OwnerID:        ownerID,
		Query:          query,
		TopK:           req.TopK,
		Temperature:    temperature,
		IncludeSources: req.IncludeSources,
		History:        history,
	})
	if err != nil {
		zlog.Error("问答流水线执行失败", zap.String("ownerId", ownerID), zap.Error(err))
		return nil, xerr.ErrServerError
	}

	resp := &respond.ChatQueryRespond{
		Answer:     result.Answer,
		Sources:    result.Sources,
		Empty:      result.Empty,
		Degraded:   result.Degraded,
		Message:    result.Message,
		TotalHits:  result.TotalHits,
		UsedChunks: result.UsedChunks,
		Timing: respond.TimingInfo{
			EmbeddingMs: result.EmbeddingMs,
			SearchMs:    result.SearchMs,
			GenerateMs:  result.GenerateMs,
			TotalMs:     result.DurationMs,
		},
	}

	s.appendLog(ctx, ownerID, query, resp)
	return resp, nil
}

// appendLog 问答日志写失败不影响响应
func (s *chatServiceImpl) appendLog(ctx context.Context, ownerID, query string, resp *respond.ChatQueryRespond) {
	if err := s.msgRepo.Append(ctx, &document.ChatMessage{
		OwnerId: ownerID,
		Role:    document.RoleUser,
		Content: query,
	}); err != nil {
		zlog.Warn("会话日志写入失败", zap.String("ownerId", ownerID), zap.Error(err))
		return
	}

	sourcesJSON := ""
	if len(resp.Sources) > 0 {
		if bs, err := json.Marshal(resp.Sources); err == nil {
			sourcesJSON = string(bs)
		}
	}
	if err := s.msgRepo.Append(ctx, &document.ChatMessage{
		OwnerId:     ownerID,
		Role:        document.RoleAssistant,
		Content:     resp.Answer,
		SourcesJson: sourcesJSON,
	}); err != nil {
		zlog.Warn("会话日志写入失败", zap.String("ownerId", ownerID), zap.Error(err))
	}
}

func (s *chatServiceImpl) History(ctx context.Context, ownerID string, skip, limit int) ([]respond.ChatMessageRespond, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, xerr.New(xerr.Unauthorized, "未登录")
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	msgs, err := s.msgRepo.ListByOwner(ctx, ownerID, skip, limit)
	if err != nil {
		zlog.Error("会话历史查询失败", zap.String("ownerId", ownerID), zap.Error(err))
		return nil, xerr.ErrServerError
	}

	items := make([]respond.ChatMessageRespond, 0, len(msgs))
	for _, m := range msgs {
		item := respond.ChatMessageRespond{
			ID:        m.Id,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
		if m.SourcesJson != "" {
			var sources []respond.SourceRef
			if err := json.Unmarshal([]byte(m.SourcesJson), &sources); err == nil {
				item.Sources = sources
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *chatServiceImpl) ClearHistory(ctx context.Context, ownerID string) error {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return xerr.New(xerr.Unauthorized, "未登录")
	}
	if err := s.msgRepo.DeleteByOwner(ctx, ownerID); err != nil {
		zlog.Error("会话历史清空失败", zap.String("ownerId", ownerID), zap.Error(err))
		return xerr.ErrServerError
	}
	return nil
}
