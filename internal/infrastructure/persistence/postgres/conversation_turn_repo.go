package postgres

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"event-discovery-api/internal/domain/entity"
	"event-discovery-api/internal/domain/repository"
	apperrors "event-discovery-api/pkg/errors"
)

// ConversationTurnRepo 会话轮次仓储 PostgreSQL 实现
type ConversationTurnRepo struct {
	client *Client
}

// NewConversationTurnRepo 创建会话轮次仓储
func NewConversationTurnRepo(client *Client) repository.ConversationTurnRepository {
	return &ConversationTurnRepo{client: client}
}

// Create 追加轮次
// (session_id, seq) 上的唯一索引保证并发写入时轮次号不会重复。
func (r *ConversationTurnRepo) Create(ctx context.Context, turn *entity.ConversationTurn) error {
	ctx, span := tracer.Start(ctx, "ConversationTurnRepo.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", turn.SessionID),
		attribute.Int("turn.seq", turn.Seq),
	)

	if err := getDB(ctx, r.client.db).Create(turn).Error; err != nil {
		span.RecordError(err)
		return apperrors.ErrDatabase.WithError(err)
	}
	return nil
}

// MaxSeq 返回会话内已分配的最大轮次号，无轮次时返回 0
func (r *ConversationTurnRepo) MaxSeq(ctx context.Context, sessionID string) (int, error) {
	ctx, span := tracer.Start(ctx, "ConversationTurnRepo.MaxSeq")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	var maxSeq int
	err := getDB(ctx, r.client.db).Model(&entity.ConversationTurn{}).
		Where("session_id = ?", sessionID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		span.RecordError(err)
		return 0, apperrors.ErrDatabase.WithError(err)
	}
	return maxSeq, nil
}

// ListBySession 按轮次号升序列出会话的全部轮次
func (r *ConversationTurnRepo) ListBySession(ctx context.Context, sessionID string) ([]*entity.ConversationTurn, error) {
	ctx, span := tracer.Start(ctx, "ConversationTurnRepo.ListBySession")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	var turns []*entity.ConversationTurn
	err := getDB(ctx, r.client.db).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&turns).Error
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.ErrDatabase.WithError(err)
	}
	return turns, nil
}

// ListRecent 按轮次号升序返回最近 n 条轮次
func (r *ConversationTurnRepo) ListRecent(ctx context.Context, sessionID string, n int) ([]*entity.ConversationTurn, error) {
	ctx, span := tracer.Start(ctx, "ConversationTurnRepo.ListRecent")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.Int("limit", n),
	)

	// 先取 seq 最大的 n 条，再反转为升序
	var turns []*entity.ConversationTurn
	err := getDB(ctx, r.client.db).
		Where("session_id = ?", sessionID).
		Order("seq DESC").
		Limit(n).
		Find(&turns).Error
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.ErrDatabase.WithError(err)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// DeleteBySession 删除会话的全部轮次
func (r *ConversationTurnRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	ctx, span := tracer.Start(ctx, "ConversationTurnRepo.DeleteBySession")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	if err := getDB(ctx, r.client.db).Where("session_id = ?", sessionID).Delete(&entity.ConversationTurn{}).Error; err != nil {
		span.RecordError(err)
		return apperrors.ErrDatabase.WithError(err)
	}
	return nil
}
