// Package events 提供活动生命周期管理
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"event-discovery-api/internal/application/extraction"
	"event-discovery-api/internal/application/preference"
	"event-discovery-api/internal/domain/entity"
	"event-discovery-api/internal/domain/repository"
	apperrors "event-discovery-api/pkg/errors"
	"event-discovery-api/pkg/logger"
)

var tracer = otel.Tracer("events")

const eventCacheTTL = 5 * time.Minute

// VectorStore 活动向量写入端口
type VectorStore interface {
	Insert(ctx context.Context, event *entity.Event, vector []float32) error
	Delete(ctx context.Context, eventID string) error
}

// Embedder 文本向量化端口
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Cache 读穿缓存端口
type Cache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error)
	InvalidateEvent(ctx context.Context, eventID string) error
}

// Extractor 自由文本草稿抽取端口
type Extractor interface {
	ExtractEvent(ctx context.Context, text string, history []extraction.Turn) (*extraction.EventDraft, error)
}

// Summarizer 活动摘要生成端口
type Summarizer interface {
	SummarizeEvent(ctx context.Context, event *entity.Event) (string, error)
}

// Service 活动服务
// 写入顺序是核心不变量：先向量化、再写向量库、最后提交 Postgres 行。
// 行是检索可见性的最终依据，任何一步失败活动都不可见。
type Service struct {
	repo       repository.EventRepository
	vectors    VectorStore
	embedder   Embedder
	cache      Cache
	extractor  Extractor
	summarizer Summarizer
	tracker    *preference.Tracker
}

// NewService 创建活动服务
func NewService(
	repo repository.EventRepository,
	vectors VectorStore,
	embedder Embedder,
	cache Cache,
	extractor Extractor,
	summarizer Summarizer,
	tracker *preference.Tracker,
) *Service {
	return &Service{
		repo:       repo,
		vectors:    vectors,
		embedder:   embedder,
		cache:      cache,
		extractor:  extractor,
		summarizer: summarizer,
		tracker:    tracker,
	}
}

// CreateFromText 从自由文本描述创建活动
// override 中已填写的字段覆盖抽取结果，调用方的显式输入优先于模型判断。
func (s *Service) CreateFromText(ctx context.Context, text string, override *extraction.EventDraft, userID string) (*entity.Event, error) {
	ctx, span := tracer.Start(ctx, "events.CreateFromText")
	defer span.End()

	if s.extractor == nil {
		return nil, apperrors.ErrInvalidEventDraft.WithDetail("free text extraction is not available")
	}

	draft, err := s.extractor.ExtractEvent(ctx, text, nil)
	if err != nil {
		return nil, err
	}
	mergeDraftOverride(draft, override)
	return s.CreateFromDraft(ctx, draft, userID)
}

// CreateFromDraft 从抽取草稿创建活动
func (s *Service) CreateFromDraft(ctx context.Context, draft *extraction.EventDraft, userID string) (*entity.Event, error) {
	event, err := draft.ToEvent()
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, event, userID)
}

// mergeDraftOverride 将调用方显式提供的字段合入抽取草稿
func mergeDraftOverride(draft, override *extraction.EventDraft) {
	if override == nil {
		return
	}
	if strings.TrimSpace(override.Title) != "" {
		draft.Title = override.Title
	}
	if override.Description != "" {
		draft.Description = override.Description
	}
	if override.Category != "" {
		draft.Category = override.Category
	}
	if override.PriceCents != nil {
		draft.PriceCents = override.PriceCents
	}
	if override.IsFree != nil {
		draft.IsFree = override.IsFree
	}
	if override.StartTime != "" {
		draft.StartTime = override.StartTime
	}
	if override.City != "" {
		draft.City = override.City
	}
	if override.Venue != "" {
		draft.Venue = override.Venue
	}
	if len(override.Tags) > 0 {
		draft.Tags = append(draft.Tags, override.Tags...)
	}
}

// Create 创建活动
func (s *Service) Create(ctx context.Context, event *entity.Event, userID string) (*entity.Event, error) {
	ctx, span := tracer.Start(ctx, "events.Create")
	span.SetAttributes(attribute.String("event.id", event.ID))
	defer span.End()

	// AI 摘要失败不阻断创建
	if s.summarizer != nil && event.Summary == "" {
		if summary, err := s.summarizer.SummarizeEvent(ctx, event); err == nil {
			event.Summary = summary
		} else {
			logger.Warn(ctx, "event summary generation failed, creating without summary",
				"event_id", event.ID,
				"error", err.Error(),
			)
		}
	}

	vector, err := s.embedder.EmbedText(ctx, event.EmbeddingText())
	if err != nil {
		return nil, err
	}

	if err := s.vectors.Insert(ctx, event, vector); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, event); err != nil {
		// 行提交失败则补偿删除向量，避免向量库残留孤儿条目
		if delErr := s.vectors.Delete(ctx, event.ID); delErr != nil {
			logger.Error(ctx, "failed to compensate vector insert after row failure", delErr,
				"event_id", event.ID,
			)
		}
		return nil, err
	}

	if s.tracker != nil && userID != "" {
		s.tracker.RecordAsync(userID, preference.SignalEventCreate, vector)
	}

	logger.Info(ctx, "event created",
		"event_id", event.ID,
		"category", string(event.Category),
	)
	return event, nil
}

// Get 获取活动详情（读穿缓存）
func (s *Service) Get(ctx context.Context, id string) (*entity.Event, error) {
	ctx, span := tracer.Start(ctx, "events.Get")
	span.SetAttributes(attribute.String("event.id", id))
	defer span.End()

	if s.cache == nil {
		return s.repo.GetByID(ctx, id)
	}

	data, err := s.cache.GetOrLoadSafe(ctx, cacheKey(id), eventCacheTTL, func() (interface{}, error) {
		return s.repo.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	var event entity.Event
	if err := json.Unmarshal(data, &event); err != nil {
		// 缓存内容损坏时绕过缓存回源
		return s.repo.GetByID(ctx, id)
	}
	return &event, nil
}

// RecordView 记录一次活动浏览的偏好信号
func (s *Service) RecordView(ctx context.Context, event *entity.Event, userID string) {
	if s.tracker == nil || userID == "" {
		return
	}
	vector, err := s.embedder.EmbedText(ctx, event.EmbeddingText())
	if err != nil {
		logger.Debug(ctx, "skip view signal, embedding unavailable", "event_id", event.ID)
		return
	}
	s.tracker.RecordAsync(userID, preference.SignalEventView, vector)
}

// Update 更新活动
// 语义字段（标题/描述/摘要）变更时必须重新向量化，先写向量再提交行。
func (s *Service) Update(ctx context.Context, event *entity.Event) (*entity.Event, error) {
	ctx, span := tracer.Start(ctx, "events.Update")
	span.SetAttributes(attribute.String("event.id", event.ID))
	defer span.End()

	existing, err := s.repo.GetByID(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	event.CreatedAt = existing.CreatedAt
	event.UpdatedAt = time.Now()

	semanticChanged := existing.EmbeddingText() != event.EmbeddingText()
	scalarChanged := existing.Category != event.Category ||
		existing.PriceCents != event.PriceCents ||
		existing.IsFree != event.IsFree ||
		existing.City != event.City ||
		!equalTime(existing.StartTime, event.StartTime)

	if semanticChanged || scalarChanged {
		vector, err := s.embedder.EmbedText(ctx, event.EmbeddingText())
		if err != nil {
			return nil, err
		}
		if err := s.vectors.Insert(ctx, event, vector); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, event); err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.InvalidateEvent(ctx, event.ID)
	}
	return event, nil
}

// Delete 删除活动
// 先删行（立即不可见），向量删除失败只记日志：孤儿向量会在回表阶段被过滤。
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "events.Delete")
	span.SetAttributes(attribute.String("event.id", id))
	defer span.End()

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.vectors.Delete(ctx, id); err != nil {
		logger.Warn(ctx, "failed to delete event vector, orphan will be filtered at read time",
			"event_id", id,
			"error", err.Error(),
		)
	}

	if s.cache != nil {
		_ = s.cache.InvalidateEvent(ctx, id)
	}
	return nil
}

func cacheKey(id string) string {
	return "event:" + id
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
