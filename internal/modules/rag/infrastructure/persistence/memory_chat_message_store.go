package persistence

import (
	"context"
	"sync"
	"time"

	"AuraPilot/internal/modules/rag/domain/document"
	"AuraPilot/internal/modules/rag/domain/repository"
)

// memoryChatMessageStore 会话日志的内存兜底实现
type memoryChatMessageStore struct {
	mu     sync.Mutex
	nextID int64
	msgs   map[string][]document.ChatMessage
}

func NewMemoryChatMessageStore() repository.ChatMessageRepository {
	return &memoryChatMessageStore{nextID: 1, msgs: make(map[string][]document.ChatMessage)}
}

func (s *memoryChatMessageStore) Append(ctx context.Context, msg *document.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.Id = s.nextID
	s.nextID++
	s.msgs[msg.OwnerId] = append(s.msgs[msg.OwnerId], *msg)
	return nil
}

func (s *memoryChatMessageStore) ListRecent(ctx context.Context, ownerID string, limit int) ([]document.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		return []document.ChatMessage{}, nil
	}
	all := s.msgs[ownerID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]document.ChatMessage, len(all))
	copy(out, all)
	return out, nil
}

func (s *memoryChatMessageStore) ListByOwner(ctx context.Context, ownerID string, skip, limit int) ([]document.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}
	all := s.msgs[ownerID]
	if skip >= len(all) {
		return []document.ChatMessage{}, nil
	}
	end := skip + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]document.ChatMessage, end-skip)
	copy(out, all[skip:end])
	return out, nil
}

func (s *memoryChatMessageStore) DeleteByOwner(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.msgs, ownerID)
	return nil
}
