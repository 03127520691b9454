// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role 对话角色枚举
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationSession 会话
// 会话没有自动终止态：除显式删除外一直存活。
type ConversationSession struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    string    `json:"user_id,omitempty" gorm:"type:varchar(64);index"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (ConversationSession) TableName() string {
	return "conversation_sessions"
}

// NewConversationSession 创建新会话
func NewConversationSession(userID string) *ConversationSession {
	now := time.Now()
	return &ConversationSession{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ConversationTurn 会话轮次
// 轮次一经追加不可变；Seq 在会话内严格单调且无空洞。
type ConversationTurn struct {
	ID        string          `json:"id" gorm:"type:uuid;primaryKey"`
	SessionID string          `json:"session_id" gorm:"type:uuid;index:idx_turn_session_seq,unique;not null"`
	Seq       int             `json:"seq" gorm:"index:idx_turn_session_seq,unique;not null"`
	Role      Role            `json:"role" gorm:"type:varchar(16);not null"`
	Content   string          `json:"content" gorm:"type:text;not null"`
	Payload   json.RawMessage `json:"payload,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (ConversationTurn) TableName() string {
	return "conversation_turns"
}

// NewConversationTurn 创建新轮次
func NewConversationTurn(sessionID string, seq int, role Role, content string, payload json.RawMessage) *ConversationTurn {
	return &ConversationTurn{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Seq:       seq,
		Role:      role,
		Content:   content,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}
