package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"AuraPilot/internal/modules/rag/application/dto/respond"
	"AuraPilot/internal/modules/rag/domain/document"
	"AuraPilot/internal/modules/rag/domain/repository"
	"AuraPilot/internal/modules/rag/infrastructure/filestore"
	"AuraPilot/internal/modules/rag/infrastructure/pipeline"
	"AuraPilot/internal/modules/rag/infrastructure/queue"
	"AuraPilot/pkg/util"
	"AuraPilot/pkg/xerr"
	"AuraPilot/pkg/zlog"

	"go.uber.org/zap"
)

// 上传约束：与抽取器支持的格式对齐，超限直接拒绝
const maxUploadBytes = 10 << 20

var supportedExtensions = map[string]struct{}{
	"pdf": {}, "docx": {}, "txt": {}, "md": {}, "text": {}, "markdown": {},
}

// DocumentService 文档生命周期管理：上传、查询、重建索引、删除
type DocumentService interface {
	Upload(ctx context.Context, ownerID, filename string, data []byte) (*respond.DocumentUploadRespond, error)
	List(ctx context.Context, ownerID string, skip, limit int) (*respond.DocumentListRespond, error)
	Get(ctx context.Context, ownerID, documentID string) (*respond.DocumentRespond, error)
	Reindex(ctx context.Context, ownerID, documentID string) (*respond.DocumentRespond, error)
	Delete(ctx context.Context, ownerID, documentID string) error
}

type documentServiceImpl struct {
	docRepo    repository.DocumentRepository
	vs         repository.VectorStore
	files      *filestore.LocalStore
	dispatcher queue.Dispatcher
}

func NewDocumentService(
	docRepo repository.DocumentRepository,
	vs repository.VectorStore,
	files *filestore.LocalStore,
	dispatcher queue.Dispatcher,
) DocumentService {
	return &documentServiceImpl{docRepo: docRepo, vs: vs, files: files, dispatcher: dispatcher}
}

// Upload 落库 pending、存原始文件、派发索引任务，立即返回文档 ID。
// 前端拿 ID 轮询 status 直到 indexed 或 failed。
func (s *documentServiceImpl) Upload(ctx context.Context, ownerID, filename string, data []byte) (*respond.DocumentUploadRespond, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, xerr.New(xerr.Unauthorized, "未登录")
	}
	filename = strings.TrimSpace(filepath.Base(filename))
	if filename == "" {
		return nil, xerr.New(xerr.BadRequest, "文件名不能为空")
	}
	if len(data) == 0 {
		return nil, xerr.New(xerr.BadRequest, "文件内容为空")
	}
	if len(data) > maxUploadBytes {
		return nil, xerr.New(xerr.BadRequest, fmt.Sprintf("文件超过 %dMB 上限", maxUploadBytes>>20))
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if _, ok := supportedExtensions[ext]; !ok {
		return nil, xerr.New(xerr.BadRequest, fmt.Sprintf("不支持的文件类型: %s", ext))
	}

	now := time.Now()
	doc := &document.Document{
		Id:        util.GenerateUUID(),
		OwnerId:   ownerID,
		Filename:  filename,
		ByteSize:  int64(len(data)),
		Status:    document.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.files.Save(doc.Id, data); err != nil {
		zlog.Error("上传文件落盘失败", zap.String("documentId", doc.Id), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		_ = s.files.Delete(doc.Id)
		zlog.Error("文档记录创建失败", zap.String("documentId", doc.Id), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	if err := s.dispatcher.Dispatch(ctx, doc.Id); err != nil {
		// 任务没派出去，文档留在 pending，用户可以重建索引补救
		zlog.Error("索引任务派发失败", zap.String("documentId", doc.Id), zap.Error(err))
	}

	return &respond.DocumentUploadRespond{
		ID:       doc.Id,
		Filename: doc.Filename,
		Status:   doc.Status,
	}, nil
}

func (s *documentServiceImpl) List(ctx context.Context, ownerID string, skip, limit int) (*respond.DocumentListRespond, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, xerr.New(xerr.Unauthorized, "未登录")
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}

	docs, total, err := s.docRepo.ListByOwner(ctx, ownerID, skip, limit)
	if err != nil {
		zlog.Error("文档列表查询失败", zap.String("ownerId", ownerID), zap.Error(err))
		return nil, xerr.ErrServerError
	}

	items := make([]respond.DocumentRespond, 0, len(docs))
	for _, d := range docs {
		items = append(items, toDocumentRespond(&d))
	}
	return &respond.DocumentListRespond{
		Documents: items,
		Total:     total,
		Skip:      skip,
		Limit:     limit,
	}, nil
}

func (s *documentServiceImpl) Get(ctx context.Context, ownerID, documentID string) (*respond.DocumentRespond, error) {
	doc, err := s.getOwned(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	resp := toDocumentRespond(doc)
	return &resp, nil
}

// Reindex 重新派发索引任务。确定性向量 ID 保证旧向量被覆盖，
// 多出来的尾部向量由流水线裁剪。
func (s *documentServiceImpl) Reindex(ctx context.Context, ownerID, documentID string) (*respond.DocumentRespond, error) {
	doc, err := s.getOwned(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == document.StatusProcessing {
		return nil, xerr.ErrDocBusy
	}

	if err := s.dispatcher.Dispatch(ctx, doc.Id); err != nil {
		zlog.Error("重建索引派发失败", zap.String("documentId", doc.Id), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	resp := toDocumentRespond(doc)
	return &resp, nil
}

// Delete 级联删除：先清向量库再删记录和原始文件。
// processing 状态拒绝删除，避免和在途索引任务互相踩踏。
func (s *documentServiceImpl) Delete(ctx context.Context, ownerID, documentID string) error {
	doc, err := s.getOwned(ctx, ownerID, documentID)
	if err != nil {
		return err
	}
	if doc.Status == document.StatusProcessing {
		return xerr.ErrDocBusy
	}

	if doc.ChunkCount > 0 {
		ids := pipeline.ChunkVectorIDs(doc.Id, doc.ChunkCount)
		if err := s.vs.DeleteByIDs(ctx, doc.OwnerId, ids); err != nil {
			zlog.Error("删除文档向量失败",
				zap.String("documentId", doc.Id),
				zap.Int("chunkCount", doc.ChunkCount),
				zap.Error(err))
			return xerr.ErrServerError
		}
	}
	if err := s.files.Delete(doc.Id); err != nil {
		zlog.Warn("删除上传文件失败", zap.String("documentId", doc.Id), zap.Error(err))
	}
	if err := s.docRepo.Delete(ctx, doc.Id); err != nil {
		zlog.Error("删除文档记录失败", zap.String("documentId", doc.Id), zap.Error(err))
		return xerr.ErrServerError
	}
	return nil
}

// getOwned 按 ID 取文档并校验归属；他人文档一律按不存在处理，不泄露存在性
func (s *documentServiceImpl) getOwned(ctx context.Context, ownerID, documentID string) (*document.Document, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, xerr.New(xerr.Unauthorized, "未登录")
	}
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, xerr.ErrParam
	}

	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		zlog.Error("文档查询失败", zap.String("documentId", documentID), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	if doc == nil || doc.OwnerId != ownerID {
		return nil, xerr.ErrNotFound
	}
	return doc, nil
}

func toDocumentRespond(d *document.Document) respond.DocumentRespond {
	return respond.DocumentRespond{
		ID:           d.Id,
		Filename:     d.Filename,
		ByteSize:     d.ByteSize,
		Status:       d.Status,
		ChunkCount:   d.ChunkCount,
		ErrorMessage: d.ErrorMessage,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}
