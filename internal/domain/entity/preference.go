// Package entity 定义领域实体
package entity

import (
	"time"
)

// UserPreferenceProfile 用户偏好画像
// 向量只能通过偏好更新规则修改，保持单位长度，可与活动向量做余弦比较。
type UserPreferenceProfile struct {
	UserID           string    `json:"user_id" gorm:"type:varchar(64);primaryKey"`
	Vector           Vector    `json:"vector,omitempty" gorm:"type:jsonb"`
	InteractionCount int64     `json:"interaction_count" gorm:"not null;default:0"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (UserPreferenceProfile) TableName() string {
	return "user_preference_profiles"
}

// NewUserPreferenceProfile 创建空画像（冷启动状态）
func NewUserPreferenceProfile(userID string) *UserPreferenceProfile {
	return &UserPreferenceProfile{
		UserID:    userID,
		Vector:    nil,
		UpdatedAt: time.Now(),
	}
}

// ColdStart 是否尚无任何交互记录
func (p *UserPreferenceProfile) ColdStart() bool {
	return p == nil || p.InteractionCount == 0 || len(p.Vector) == 0
}
