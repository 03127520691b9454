// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"event-discovery-api/internal/domain/entity"
)

// PreferenceRepository 用户偏好画像仓储接口
type PreferenceRepository interface {
	// Get 获取用户画像，不存在时返回 nil
	Get(ctx context.Context, userID string) (*entity.UserPreferenceProfile, error)

	// Save 写入用户画像（upsert）
	Save(ctx context.Context, profile *entity.UserPreferenceProfile) error
}
