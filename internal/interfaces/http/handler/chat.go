package handler

import (
	"github.com/gin-gonic/gin"

	"event-discovery-api/internal/application/conversation"
	"event-discovery-api/internal/interfaces/http/dto"
)

// ChatHandler 对话处理器
type ChatHandler struct {
	conversations *conversation.Service
}

// NewChatHandler 创建对话处理器
func NewChatHandler(conversations *conversation.Service) *ChatHandler {
	return &ChatHandler{conversations: conversations}
}

// Message 处理一轮对话
// @Summary 发送对话消息
// @Tags Chat
// @Accept json
// @Produce json
// @Param body body dto.ChatMessageRequest true "对话请求"
// @Success 200 {object} dto.Response[dto.ChatMessageResponse]
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /v1/chat/message [post]
func (h *ChatHandler) Message(c *gin.Context) {
	var req dto.ChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	resp, err := h.conversations.ChatTurn(c.Request.Context(), &conversation.ChatRequest{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Message:   req.Message,
		Intent:    conversation.Intent(req.Intent),
		Limit:     req.Limit,
	})
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.ToChatMessageResponse(resp))
}

// GetSession 获取会话详情
// @Summary 获取会话详情（含全部轮次）
// @Tags Chat
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} dto.Response[dto.SessionResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/chat/sessions/{id} [get]
func (h *ChatHandler) GetSession(c *gin.Context) {
	detail, err := h.conversations.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.ToSessionResponse(detail))
}

// DeleteSession 删除会话
// @Summary 删除会话及其全部轮次
// @Tags Chat
// @Param id path string true "会话 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/chat/sessions/{id} [delete]
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	if err := h.conversations.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		dto.FromError(c, err)
		return
	}
	dto.NoContent(c)
}
