// Package handler 提供 HTTP 请求处理器
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"rag-answer-api/internal/application/chat"
	"rag-answer-api/internal/interfaces/http/dto"
)

// ChatHandler 问答接口处理器
type ChatHandler struct {
	orchestrator *chat.Orchestrator
}

func NewChatHandler(orchestrator *chat.Orchestrator) *ChatHandler {
	return &ChatHandler{orchestrator: orchestrator}
}

// Chat 处理一轮问答
// @Summary 对话问答
// @Description 基于多源检索证据生成回答
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body dto.ChatRequest true "问答请求"
// @Success 200 {object} dto.Response[dto.ChatResponse]
// @Router /api/v1/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	// 鉴权在外层网关完成，这里只透传用户标识
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		userID = "anonymous"
	}

	result, err := h.orchestrator.Handle(c.Request.Context(), &chat.Request{
		UserID:       userID,
		SessionID:    req.SessionID,
		Question:     req.Question,
		Language:     req.Language,
		Difficulty:   req.Difficulty,
		Bucket:       req.Bucket,
		FollowUp:     req.FollowUp,
		DisableCache: req.NoCache,
	})
	if err != nil {
		dto.FromAppError(c, err)
		return
	}

	dto.Success(c, dto.FromResult(result))
}

// Session 查询会话历史
// @Summary 会话历史
// @Description 返回会话元数据与最近若干条消息
// @Tags Chat
// @Produce json
// @Param id path string true "会话 ID"
// @Param limit query int false "消息条数上限"
// @Success 200 {object} dto.Response[dto.SessionResponse]
// @Router /api/v1/sessions/{id} [get]
func (h *ChatHandler) Session(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	session, turns, err := h.orchestrator.SessionHistory(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		dto.FromAppError(c, err)
		return
	}

	dto.Success(c, dto.FromSession(session, turns))
}
