package vectordb

import (
	"context"
	"math"
	"sort"
	"sync"

	"AuraPilot/internal/modules/rag/domain/repository"
)

// MemoryStore is an in-process VectorStore keeping everything in a
// namespace -> id -> record map. Used when no Milvus address is configured
// and as the store under pipeline tests. Brute-force cosine over the
// namespace, which is fine at this scale.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]repository.VectorRecord
}

var _ repository.VectorStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]repository.VectorRecord)}
}

func (s *MemoryStore) Upsert(ctx context.Context, namespace string, records []repository.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.data[namespace]
	if !ok {
		ns = make(map[string]repository.VectorRecord)
		s.data[namespace] = ns
	}
	for _, r := range records {
		cp := r
		cp.Vector = append([]float32(nil), r.Vector...)
		ns[r.ID] = cp
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, namespace string, vector []float32, topK int, minScore float32) ([]repository.VectorHit, error) {
	if topK <= 0 {
		return []repository.VectorHit{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]repository.VectorHit, 0)
	for _, r := range s.data[namespace] {
		score := cosine(vector, r.Vector)
		if score < minScore {
			continue
		}
		hits = append(hits, repository.VectorHit{
			ID:         r.ID,
			Score:      score,
			DocumentID: r.DocumentID,
			Filename:   r.Filename,
			Position:   r.Position,
			Content:    r.Content,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Position != hits[j].Position {
			return hits[i].Position < hits[j].Position
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *MemoryStore) DeleteByIDs(ctx context.Context, namespace string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.data[namespace]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(ns, id)
	}
	return nil
}

// CountByNamespace 返回某 namespace 当前的向量条数（测试用）
func (s *MemoryStore) CountByNamespace(namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[namespace])
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return -1
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
