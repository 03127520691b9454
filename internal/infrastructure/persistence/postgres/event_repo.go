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

// EventRepo 活动仓储 PostgreSQL 实现
type EventRepo struct {
	client *Client
}

// NewEventRepo 创建活动仓储
func NewEventRepo(client *Client) repository.EventRepository {
	return &EventRepo{client: client}
}

// Create 创建活动
func (r *EventRepo) Create(ctx context.Context, event *entity.Event) error {
	ctx, span := tracer.Start(ctx, "EventRepo.Create")
	defer span.End()
	span.SetAttributes(attribute.String("event.id", event.ID))

	if err := getDB(ctx, r.client.db).Create(event).Error; err != nil {
		span.RecordError(err)
		return apperrors.ErrDatabase.WithError(err)
	}
	return nil
}

// GetByID 根据 ID 获取活动
func (r *EventRepo) GetByID(ctx context.Context, id string) (*entity.Event, error) {
	ctx, span := tracer.Start(ctx, "EventRepo.GetByID")
	defer span.End()
	span.SetAttributes(attribute.String("event.id", id))

	var event entity.Event
	err := getDB(ctx, r.client.db).Where("id = ?", id).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrEventNotFound
		}
		span.RecordError(err)
		return nil, apperrors.ErrDatabase.WithError(err)
	}
	return &event, nil
}

// GetByIDs 批量获取活动，返回顺序与传入 ID 顺序一致，未命中的跳过
func (r *EventRepo) GetByIDs(ctx context.Context, ids []string) ([]*entity.Event, error) {
	ctx, span := tracer.Start(ctx, "EventRepo.GetByIDs")
	defer span.End()
	span.SetAttributes(attribute.Int("event.count", len(ids)))

	if len(ids) == 0 {
		return nil, nil
	}

	var events []*entity.Event
	if err := getDB(ctx, r.client.db).Where("id IN ?", ids).Find(&events).Error; err != nil {
		span.RecordError(err)
		return nil, apperrors.ErrDatabase.WithError(err)
	}

	// 恢复传入顺序
	byID := make(map[string]*entity.Event, len(events))
	for _, e := range events {
		byID[e.ID] = e
	}
	ordered := make([]*entity.Event, 0, len(events))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			ordered = append(ordered, e)
		}
	}
	return ordered, nil
}

// Update 更新活动
func (r *EventRepo) Update(ctx context.Context, event *entity.Event) error {
	ctx, span := tracer.Start(ctx, "EventRepo.Update")
	defer span.End()
	span.SetAttributes(attribute.String("event.id", event.ID))

	result := getDB(ctx, r.client.db).Model(&entity.Event{}).
		Where("id = ?", event.ID).
		Select("*").Omit("id", "created_at").
		Updates(event)
	if result.Error != nil {
		span.RecordError(result.Error)
		return apperrors.ErrDatabase.WithError(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrEventNotFound
	}
	return nil
}

// Delete 删除活动
func (r *EventRepo) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "EventRepo.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("event.id", id))

	result := getDB(ctx, r.client.db).Where("id = ?", id).Delete(&entity.Event{})
	if result.Error != nil {
		span.RecordError(result.Error)
		return apperrors.ErrDatabase.WithError(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrEventNotFound
	}
	return nil
}

// ListFiltered 按标量过滤条件列出活动
// 过滤条件是硬性约束；排序为开始时间降序，时间为空的排在最后。
func (r *EventRepo) ListFiltered(ctx context.Context, filter *repository.EventFilter, limit int) ([]*entity.Event, error) {
	ctx, span := tracer.Start(ctx, "EventRepo.ListFiltered")
	defer span.End()
	span.SetAttributes(attribute.Int("limit", limit))

	db := getDB(ctx, r.client.db).Model(&entity.Event{})
	db = applyFilter(db, filter)

	var events []*entity.Event
	err := db.Order("start_time DESC NULLS LAST").Order("id DESC").
		Limit(limit).Find(&events).Error
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.ErrDatabase.WithError(err)
	}
	return events, nil
}

// ListRecent 列出最近创建的活动
func (r *EventRepo) ListRecent(ctx context.Context, limit int) ([]*entity.Event, error) {
	ctx, span := tracer.Start(ctx, "EventRepo.ListRecent")
	defer span.End()
	span.SetAttributes(attribute.Int("limit", limit))

	var events []*entity.Event
	err := getDB(ctx, r.client.db).Model(&entity.Event{}).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Find(&events).Error
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.ErrDatabase.WithError(err)
	}
	return events, nil
}

// applyFilter 将过滤条件转换为 SQL 谓词
func applyFilter(db *gorm.DB, filter *repository.EventFilter) *gorm.DB {
	if filter == nil {
		return db
	}
	if filter.Category != "" {
		db = db.Where("category = ?", filter.Category)
	}
	if filter.City != "" {
		db = db.Where("city ILIKE ?", filter.City)
	}
	if filter.FreeOnly {
		db = db.Where("is_free = ?", true)
	}
	if filter.MaxPriceCents != nil {
		db = db.Where("price_cents <= ?", *filter.MaxPriceCents)
	}
	if filter.From != nil {
		db = db.Where("start_time >= ?", *filter.From)
	}
	if filter.To != nil {
		db = db.Where("start_time <= ?", *filter.To)
	}
	if filter.Keyword != "" {
		pattern := "%" + filter.Keyword + "%"
		db = db.Where("title ILIKE ? OR description ILIKE ? OR city ILIKE ?", pattern, pattern, pattern)
	}
	return db
}
