// Package conversation 提供会话编排：抽取、检索、回复与轮次持久化
package conversation

import (
	"event-discovery-api/internal/application/extraction"
	"event-discovery-api/internal/application/matching"
	"event-discovery-api/internal/domain/entity"
)

// Intent 本轮请求的意图
type Intent string

const (
	// IntentSearch 查找活动
	IntentSearch Intent = "search"
	// IntentCreate 创建活动
	IntentCreate Intent = "create"
)

// ChatRequest 一轮对话请求
type ChatRequest struct {
	// SessionID 为空时创建新会话
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	// Intent 显式意图；为空时由消息抽取结果判定
	Intent Intent `json:"intent"`
	// Limit 检索结果条数上限
	Limit int `json:"limit"`
}

// ChatResponse 一轮对话响应
type ChatResponse struct {
	SessionID string `json:"session_id"`
	// Seq 助手轮次在会话中的轮次号
	Seq   int    `json:"seq"`
	Reply string `json:"reply"`

	Intent Intent `json:"intent"`
	// SearchIntent 本轮生效的检索意图（含继承的过滤条件）
	SearchIntent *extraction.SearchIntent `json:"search_intent,omitempty"`
	Events       []*matching.ScoredEvent  `json:"events,omitempty"`
	CreatedEvent *entity.Event            `json:"created_event,omitempty"`
	// MatchMode 匹配引擎实际走的路径
	MatchMode matching.Mode `json:"match_mode,omitempty"`
}

// SessionDetail 会话详情
type SessionDetail struct {
	Session *entity.ConversationSession `json:"session"`
	Turns   []*entity.ConversationTurn  `json:"turns"`
}
