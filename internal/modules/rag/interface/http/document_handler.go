package http

import (
	"io"
	"strings"

	"AuraPilot/internal/modules/rag/application/dto/request"
	"AuraPilot/internal/modules/rag/application/service"
	"AuraPilot/pkg/back"
	"AuraPilot/pkg/xerr"
	"AuraPilot/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DocumentHandler 文档管理 HTTP Handler
type DocumentHandler struct {
	docSvc service.DocumentService
}

func NewDocumentHandler(docSvc service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docSvc: docSvc}
}

// Upload 上传文档（multipart 字段名 file）
//
// 路由: POST /rag/documents
// 鉴权: 需要 JWT（从 authed 分组继承）
func (h *DocumentHandler) Upload(c *gin.Context) {
	uuid := strings.TrimSpace(c.GetString("uuid"))
	if uuid == "" {
		back.Error(c, xerr.Unauthorized, "未登录")
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		back.Error(c, xerr.BadRequest, "缺少 file 字段")
		return
	}
	f, err := fh.Open()
	if err != nil {
		zlog.Error("上传文件打开失败", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		zlog.Error("上传文件读取失败", zap.Error(err))
		back.Error(c, xerr.ErrServerError.Code, xerr.ErrServerError.Message)
		return
	}

	resp, err := h.docSvc.Upload(c.Request.Context(), uuid, fh.Filename, data)
	back.Result(c, resp, err)
}

// List 文档列表
//
// 路由: GET /rag/documents?skip=0&limit=20
func (h *DocumentHandler) List(c *gin.Context) {
	uuid := strings.TrimSpace(c.GetString("uuid"))
	if uuid == "" {
		back.Error(c, xerr.Unauthorized, "未登录")
		return
	}
	var req request.DocumentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	resp, err := h.docSvc.List(c.Request.Context(), uuid, req.Skip, req.Limit)
	back.Result(c, resp, err)
}

// Get 单个文档详情（前端轮询索引状态用）
//
// 路由: GET /rag/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	uuid := strings.TrimSpace(c.GetString("uuid"))
	if uuid == "" {
		back.Error(c, xerr.Unauthorized, "未登录")
		return
	}
	resp, err := h.docSvc.Get(c.Request.Context(), uuid, c.Param("id"))
	back.Result(c, resp, err)
}

// Reindex 重建索引
//
// 路由: POST /rag/documents/:id/reindex
func (h *DocumentHandler) Reindex(c *gin.Context) {
	uuid := strings.TrimSpace(c.GetString("uuid"))
	if uuid == "" {
		back.Error(c, xerr.Unauthorized, "未登录")
		return
	}
	resp, err := h.docSvc.Reindex(c.Request.Context(), uuid, c.Param("id"))
	back.Result(c, resp, err)
}

// Delete 删除文档（级联删除向量）
//
// 路由: DELETE /rag/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	uuid := strings.TrimSpace(c.GetString("uuid"))
	if uuid == "" {
		back.Error(c, xerr.Unauthorized, "未登录")
		return
	}
	err := h.docSvc.Delete(c.Request.Context(), uuid, c.Param("id"))
	back.Result(c, nil, err)
}
