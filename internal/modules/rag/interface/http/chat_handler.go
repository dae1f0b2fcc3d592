package http

import (
	"strings"

	"AuraPilot/internal/modules/rag/application/dto/request"
	"AuraPilot/internal/modules/rag/application/service"
	"AuraPilot/pkg/back"
	"AuraPilot/pkg/xerr"
	"AuraPilot/pkg/zlog"

	"github.com/gin-gonic/gin"
)

// ChatHandler 文档问答 HTTP Handler
type ChatHandler struct {
	chatSvc service.ChatService
}

func NewChatHandler(chatSvc service.ChatService) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc}
}

// Query 文档问答
//
// 路由: POST /rag/chat/query
// 鉴权: 需要 JWT（从 authed 分组继承）
func (h *ChatHandler) Query(c *gin.Context) {
	var req request.ChatQueryRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	uuid := strings.TrimSpace(c.GetString("uuid"))
	if uuid == "" {
		back.Error(c, xerr.Unauthorized, "未登录")
		return
	}

	resp, err := h.chatSvc.Query(c.Request.Context(), req, uuid)
	back.Result(c, resp, err)
}

// History 会话历史
//
// 路由: GET /rag/chat/history?skip=0&limit=50
func (h *ChatHandler) History(c *gin.Context) {
	uuid := strings.TrimSpace(c.GetString("uuid"))
	if uuid == "" {
		back.Error(c, xerr.Unauthorized, "未登录")
		return
	}
	var req request.ChatHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	resp, err := h.chatSvc.History(c.Request.Context(), uuid, req.Skip, req.Limit)
	back.Result(c, resp, err)
}

// ClearHistory 清空会话历史
//
// 路由: DELETE /rag/chat/history
func (h *ChatHandler) ClearHistory(c *gin.Context) {
	uuid := strings.TrimSpace(c.GetString("uuid"))
	if uuid == "" {
		back.Error(c, xerr.Unauthorized, "未登录")
		return
	}
	err := h.chatSvc.ClearHistory(c.Request.Context(), uuid)
	back.Result(c, nil, err)
}
