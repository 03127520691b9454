// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"event-discovery-api/internal/domain/entity"
)

// EventFilter 活动标量过滤条件
// 过滤是硬性前置条件，排序阶段不得放宽。
type EventFilter struct {
	Category      entity.EventCategory
	City          string
	MaxPriceCents *int64
	FreeOnly      bool
	From          *time.Time
	To            *time.Time

	// Keyword 降级检索时在 title/description/city 上做 ILIKE 匹配
	Keyword string
}

// EventRepository 活动仓储接口
type EventRepository interface {
	// Create 创建活动
	Create(ctx context.Context, event *entity.Event) error

	// GetByID 根据 ID 获取活动
	GetByID(ctx context.Context, id string) (*entity.Event, error)

	// GetByIDs 批量获取活动，保留传入顺序之外的全部命中项
	GetByIDs(ctx context.Context, ids []string) ([]*entity.Event, error)

	// Update 更新活动
	Update(ctx context.Context, event *entity.Event) error

	// Delete 删除活动
	Delete(ctx context.Context, id string) error

	// ListFiltered 按标量过滤条件列出活动，按开始时间降序（最新优先）
	ListFiltered(ctx context.Context, filter *EventFilter, limit int) ([]*entity.Event, error)

	// ListRecent 列出最近创建的活动（冷启动兜底排序）
	ListRecent(ctx context.Context, limit int) ([]*entity.Event, error)
}
