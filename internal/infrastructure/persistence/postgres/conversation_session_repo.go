package postgres

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"event-discovery-api/internal/domain/entity"
	"event-discovery-api/internal/domain/repository"
	apperrors "event-discovery-api/pkg/errors"
)

// ConversationSessionRepo 会话仓储 PostgreSQL 实现
type ConversationSessionRepo struct {
	client *Client
}

// NewConversationSessionRepo 创建会话仓储
func NewConversationSessionRepo(client *Client) repository.ConversationSessionRepository {
	return &ConversationSessionRepo{client: client}
}

// Create 创建会话
func (r *ConversationSessionRepo) Create(ctx context.Context, session *entity.ConversationSession) error {
	ctx, span := tracer.Start(ctx, "ConversationSessionRepo.Create")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", session.ID))

	if err := getDB(ctx, r.client.db).Create(session).Error; err != nil {
		span.RecordError(err)
		return apperrors.ErrDatabase.WithError(err)
	}
	return nil
}

// GetByID 根据 ID 获取会话
func (r *ConversationSessionRepo) GetByID(ctx context.Context, id string) (*entity.ConversationSession, error) {
	ctx, span := tracer.Start(ctx, "ConversationSessionRepo.GetByID")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	var session entity.ConversationSession
	err := getDB(ctx, r.client.db).Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrSessionNotFound
		}
		span.RecordError(err)
		return nil, apperrors.ErrDatabase.WithError(err)
	}
	return &session, nil
}

// Update 更新会话
func (r *ConversationSessionRepo) Update(ctx context.Context, session *entity.ConversationSession) error {
	ctx, span := tracer.Start(ctx, "ConversationSessionRepo.Update")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", session.ID))

	result := getDB(ctx, r.client.db).Model(&entity.ConversationSession{}).
		Where("id = ?", session.ID).
		Updates(map[string]interface{}{
			"user_id":    session.UserID,
			"updated_at": session.UpdatedAt,
		})
	if result.Error != nil {
		span.RecordError(result.Error)
		return apperrors.ErrDatabase.WithError(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

// Delete 删除会话及其全部轮次
func (r *ConversationSessionRepo) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "ConversationSessionRepo.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	db := getDB(ctx, r.client.db)
	if err := db.Where("session_id = ?", id).Delete(&entity.ConversationTurn{}).Error; err != nil {
		span.RecordError(err)
		return apperrors.ErrDatabase.WithError(err)
	}
	result := db.Where("id = ?", id).Delete(&entity.ConversationSession{})
	if result.Error != nil {
		span.RecordError(result.Error)
		return apperrors.ErrDatabase.WithError(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}
