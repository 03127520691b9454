// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"event-discovery-api/internal/domain/entity"
)

// ConversationSessionRepository 会话仓储接口
type ConversationSessionRepository interface {
	Create(ctx context.Context, session *entity.ConversationSession) error
	GetByID(ctx context.Context, id string) (*entity.ConversationSession, error)
	Update(ctx context.Context, session *entity.ConversationSession) error
	// Delete 删除会话及其全部轮次（需在事务内调用以保证原子性）
	Delete(ctx context.Context, id string) error
}

// ConversationTurnRepository 会话轮次仓储接口
type ConversationTurnRepository interface {
	Create(ctx context.Context, turn *entity.ConversationTurn) error
	// MaxSeq 返回会话内已分配的最大轮次号，无轮次时返回 0
	MaxSeq(ctx context.Context, sessionID string) (int, error)
	// ListBySession 按轮次号升序列出
	ListBySession(ctx context.Context, sessionID string) ([]*entity.ConversationTurn, error)
	// ListRecent 按轮次号升序返回最近 n 条（抽取上下文窗口）
	ListRecent(ctx context.Context, sessionID string, n int) ([]*entity.ConversationTurn, error)
	// DeleteBySession 删除会话的全部轮次
	DeleteBySession(ctx context.Context, sessionID string) error
}
