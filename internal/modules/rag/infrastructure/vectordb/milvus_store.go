package vectordb

import (
	"context"
	"fmt"
	"strings"

	"AuraPilot/internal/modules/rag/domain/repository"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusStore implements repository.VectorStore on top of the Milvus v1 SDK.
//
// Every expression sent to Milvus carries the owner_id filter, so a namespace
// can never read or delete another namespace's vectors even if the caller
// passes foreign IDs.
type MilvusStore struct {
	cli         mclient.Client
	collection  string
	vectorDim   int
	vectorField string
}

var _ repository.VectorStore = (*MilvusStore)(nil)

func NewMilvusStore(cli mclient.Client, collection string, vectorDim int) (*MilvusStore, error) {
	if cli == nil {
		return nil, fmt.Errorf("milvus client is nil")
	}
	if collection == "" {
		return nil, fmt.Errorf("milvus collection name is empty")
	}
	if vectorDim <= 0 {
		return nil, fmt.Errorf("invalid vector dim: %d", vectorDim)
	}
	return &MilvusStore{
		cli:         cli,
		collection:  collection,
		vectorDim:   vectorDim,
		vectorField: "vector",
	}, nil
}

// Upsert writes records by ID; an existing ID is overwritten.
func (s *MilvusStore) Upsert(ctx context.Context, namespace string, records []repository.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	if namespace == "" {
		return fmt.Errorf("upsert requires a namespace")
	}

	ids := make([]string, 0, len(records))
	vectors := make([][]float32, 0, len(records))
	owners := make([]string, 0, len(records))
	docIDs := make([]string, 0, len(records))
	filenames := make([]string, 0, len(records))
	positions := make([]int64, 0, len(records))
	contents := make([]string, 0, len(records))

	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("upsert record missing ID")
		}
		if len(r.Vector) != s.vectorDim {
			return fmt.Errorf("vector dim mismatch for id=%s: got %d want %d", r.ID, len(r.Vector), s.vectorDim)
		}

		ids = append(ids, r.ID)
		vectors = append(vectors, r.Vector)
		owners = append(owners, namespace)
		docIDs = append(docIDs, r.DocumentID)
		filenames = append(filenames, r.Filename)
		positions = append(positions, int64(r.Position))
		contents = append(contents, r.Content)
	}

	_, err := s.cli.Upsert(
		ctx,
		s.collection,
		"", // partition
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnFloatVector(s.vectorField, s.vectorDim, vectors),
		entity.NewColumnVarChar("owner_id", owners),
		entity.NewColumnVarChar("document_id", docIDs),
		entity.NewColumnVarChar("filename", filenames),
		entity.NewColumnInt64("position", positions),
		entity.NewColumnVarChar("content", contents),
	)
	return err
}

// Query searches topK nearest vectors within the namespace, then drops hits
// below minScore client side. Milvus AUTOINDEX has no score threshold knob,
// so the filter has to live here.
func (s *MilvusStore) Query(ctx context.Context, namespace string, vector []float32, topK int, minScore float32) ([]repository.VectorHit, error) {
	if namespace == "" {
		return nil, fmt.Errorf("query requires a namespace")
	}
	if len(vector) != s.vectorDim {
		return nil, fmt.Errorf("query vector dim mismatch: got %d want %d", len(vector), s.vectorDim)
	}
	if topK <= 0 {
		return []repository.VectorHit{}, nil
	}

	sp, _ := entity.NewIndexAUTOINDEXSearchParam(1)
	expr := fmt.Sprintf(`owner_id == "%s"`, escapeExpr(namespace))

	res, err := s.cli.Search(
		ctx,
		s.collection,
		nil,
		expr,
		[]string{"id", "document_id", "filename", "position", "content"},
		[]entity.Vector{entity.FloatVector(vector)},
		s.vectorField,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, err
	}

	hits := make([]repository.VectorHit, 0)
	if len(res) == 0 {
		return hits, nil
	}
	sr := res[0]
	if sr.Err != nil {
		return nil, sr.Err
	}

	getCol := func(name string) entity.Column {
		for _, c := range sr.Fields {
			if c.Name() == name {
				return c
			}
		}
		return nil
	}
	docIDCol := getCol("document_id")
	filenameCol := getCol("filename")
	positionCol := getCol("position")
	contentCol := getCol("content")

	for i := 0; i < sr.ResultCount; i++ {
		score := sr.Scores[i]
		if score < minScore {
			continue
		}

		id, _ := sr.IDs.GetAsString(i)
		hit := repository.VectorHit{
			ID:    id,
			Score: score,
		}
		if docIDCol != nil {
			v, _ := docIDCol.GetAsString(i)
			hit.DocumentID = v
		}
		if filenameCol != nil {
			v, _ := filenameCol.GetAsString(i)
			hit.Filename = v
		}
		if positionCol != nil {
			v, _ := positionCol.GetAsInt64(i)
			hit.Position = int(v)
		}
		if contentCol != nil {
			v, _ := contentCol.GetAsString(i)
			hit.Content = v
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// DeleteByIDs removes the given IDs inside the namespace. Unknown IDs are a no-op.
func (s *MilvusStore) DeleteByIDs(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if namespace == "" {
		return fmt.Errorf("delete requires a namespace")
	}

	quoted := make([]string, 0, len(ids))
	for _, id := range ids {
		quoted = append(quoted, escapeExpr(id))
	}
	expr := fmt.Sprintf(`id in ["%s"] && owner_id == "%s"`,
		strings.Join(quoted, `","`), escapeExpr(namespace))
	return s.cli.Delete(ctx, s.collection, "", expr)
}

// escapeExpr guards against quote injection in expression strings.
func escapeExpr(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
