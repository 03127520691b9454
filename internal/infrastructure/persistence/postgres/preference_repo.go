package postgres

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"event-discovery-api/internal/domain/entity"
	"event-discovery-api/internal/domain/repository"
	apperrors "event-discovery-api/pkg/errors"
)

// PreferenceRepo 用户偏好画像仓储 PostgreSQL 实现
type PreferenceRepo struct {
	client *Client
}

// NewPreferenceRepo 创建偏好画像仓储
func NewPreferenceRepo(client *Client) repository.PreferenceRepository {
	return &PreferenceRepo{client: client}
}

// Get 获取用户画像，不存在时返回 nil（冷启动）
func (r *PreferenceRepo) Get(ctx context.Context, userID string) (*entity.UserPreferenceProfile, error) {
	ctx, span := tracer.Start(ctx, "PreferenceRepo.Get")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var profile entity.UserPreferenceProfile
	err := getDB(ctx, r.client.db).Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, apperrors.ErrDatabase.WithError(err)
	}
	return &profile, nil
}

// Save 写入用户画像（upsert）
func (r *PreferenceRepo) Save(ctx context.Context, profile *entity.UserPreferenceProfile) error {
	ctx, span := tracer.Start(ctx, "PreferenceRepo.Save")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", profile.UserID),
		attribute.Int64("interaction_count", profile.InteractionCount),
	)

	err := getDB(ctx, r.client.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"vector", "interaction_count", "updated_at"}),
	}).Create(profile).Error
	if err != nil {
		span.RecordError(err)
		return apperrors.ErrDatabase.WithError(err)
	}
	return nil
}
