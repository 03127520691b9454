package milvus

import (
	"context"

	"event-discovery-api/internal/domain/entity"
)

// EventStoreAdapter 将向量仓储适配为活动服务的写入端口
type EventStoreAdapter struct {
	repo *Repository
}

// NewEventStoreAdapter 创建写入适配器
func NewEventStoreAdapter(repo *Repository) *EventStoreAdapter {
	return &EventStoreAdapter{repo: repo}
}

// Insert 写入（或覆盖）活动向量，标量字段随行冗余存储
func (a *EventStoreAdapter) Insert(ctx context.Context, event *entity.Event, vector []float32) error {
	ev := &EventVector{
		ID:         event.ID,
		Vector:     vector,
		Category:   string(event.Category),
		PriceCents: event.PriceCents,
		IsFree:     event.IsFree,
		City:       event.City,
	}
	if event.StartTime != nil {
		ev.StartTime = event.StartTime.Unix()
	}
	return a.repo.InsertEvent(ctx, ev)
}

// Delete 删除活动向量
func (a *EventStoreAdapter) Delete(ctx context.Context, eventID string) error {
	return a.repo.DeleteEvent(ctx, eventID)
}
