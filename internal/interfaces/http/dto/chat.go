package dto

import (
	"time"

	"event-discovery-api/internal/application/conversation"
)

// ChatMessageRequest 对话请求
type ChatMessageRequest struct {
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Message   string `json:"message" binding:"required"`
	// Intent 显式意图：search（默认）或 create
	Intent string `json:"intent,omitempty" binding:"omitempty,oneof=search create"`
	Limit  int    `json:"limit,omitempty" binding:"omitempty,min=1,max=50"`
}

// ChatMessageResponse 对话响应
type ChatMessageResponse struct {
	SessionID    string                `json:"session_id"`
	Seq          int                   `json:"seq"`
	Reply        string                `json:"reply"`
	Intent       string                `json:"intent"`
	Events       []ScoredEventResponse `json:"events,omitempty"`
	CreatedEvent *EventResponse        `json:"created_event,omitempty"`
	MatchMode    string                `json:"match_mode,omitempty"`
}

// TurnResponse 会话轮次响应
type TurnResponse struct {
	Seq       int       `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionResponse 会话详情响应
type SessionResponse struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Turns     []TurnResponse `json:"turns"`
}

// ToChatMessageResponse 会话结果转响应
func ToChatMessageResponse(r *conversation.ChatResponse) ChatMessageResponse {
	resp := ChatMessageResponse{
		SessionID: r.SessionID,
		Seq:       r.Seq,
		Reply:     r.Reply,
		Intent:    string(r.Intent),
		MatchMode: string(r.MatchMode),
	}
	for _, se := range r.Events {
		resp.Events = append(resp.Events, ScoredEventResponse{
			Event:           ToEventResponse(se.Event),
			Score:           se.Score,
			QueryScore:      se.QueryScore,
			PreferenceScore: se.PreferenceScore,
		})
	}
	if r.CreatedEvent != nil {
		ev := ToEventResponse(r.CreatedEvent)
		resp.CreatedEvent = &ev
	}
	return resp
}

// ToSessionResponse 会话详情转响应
func ToSessionResponse(d *conversation.SessionDetail) SessionResponse {
	resp := SessionResponse{
		ID:        d.Session.ID,
		UserID:    d.Session.UserID,
		CreatedAt: d.Session.CreatedAt,
		UpdatedAt: d.Session.UpdatedAt,
		Turns:     make([]TurnResponse, len(d.Turns)),
	}
	for i, t := range d.Turns {
		resp.Turns[i] = TurnResponse{
			Seq:       t.Seq,
			Role:      string(t.Role),
			Content:   t.Content,
			CreatedAt: t.CreatedAt,
		}
	}
	return resp
}
