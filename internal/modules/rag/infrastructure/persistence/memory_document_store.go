package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"AuraPilot/internal/modules/rag/domain/document"
	"AuraPilot/internal/modules/rag/domain/repository"
)

// memoryDocumentStore 无 MySQL 时的内存兜底实现，也是流水线测试的底座。
// 互斥锁保证 CasStatus 与 gorm 实现一样是原子的。
type memoryDocumentStore struct {
	mu   sync.Mutex
	docs map[string]document.Document
}

func NewMemoryDocumentStore() repository.DocumentRepository {
	return &memoryDocumentStore{docs: make(map[string]document.Document)}
}

func (s *memoryDocumentStore) Create(ctx context.Context, doc *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	s.docs[doc.Id] = *doc
	return nil
}

func (s *memoryDocumentStore) GetByID(ctx context.Context, id string) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	cp := d
	return &cp, nil
}

func (s *memoryDocumentStore) ListByOwner(ctx context.Context, ownerID string, skip, limit int) ([]document.Document, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []document.Document
	for _, d := range s.docs {
		if d.OwnerId == ownerID {
			all = append(all, d)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].Id < all[j].Id
	})

	total := int64(len(all))
	if limit <= 0 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}
	if skip >= len(all) {
		return []document.Document{}, total, nil
	}
	end := skip + limit
	if end > len(all) {
		end = len(all)
	}
	return all[skip:end], total, nil
}

func (s *memoryDocumentStore) CasStatus(ctx context.Context, id string, from []string, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if d.Status == f {
			d.Status = to
			// error_message 只在 failed 终态有值，离开后即清空
			d.ErrorMessage = ""
			d.UpdatedAt = time.Now()
			s.docs[id] = d
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryDocumentStore) MarkIndexed(ctx context.Context, id string, chunkCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil
	}
	d.Status = document.StatusIndexed
	d.ChunkCount = chunkCount
	d.ErrorMessage = ""
	d.UpdatedAt = time.Now()
	s.docs[id] = d
	return nil
}

func (s *memoryDocumentStore) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil
	}
	if len(errorMessage) > 255 {
		errorMessage = errorMessage[:255]
	}
	d.Status = document.StatusFailed
	d.ChunkCount = 0
	d.ErrorMessage = errorMessage
	d.UpdatedAt = time.Now()
	s.docs[id] = d
	return nil
}

func (s *memoryDocumentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}
