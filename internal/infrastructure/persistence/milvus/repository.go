// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"event-discovery-api/internal/domain/repository"
	"event-discovery-api/pkg/metrics"
)

// Repository 活动向量仓储
type Repository struct {
	client    *Client
	dimension int
}

// NewRepository 创建活动向量仓储
func NewRepository(client *Client, dimension int) *Repository {
	return &Repository{client: client, dimension: dimension}
}

// Candidate 向量检索候选
// 返回向量本身，供匹配引擎在进程内做确定性打分。
type Candidate struct {
	ID        string
	Vector    []float32
	Score     float32
	StartTime int64
}

// EnsureEventsCollection 确保 events 集合与索引可用（不存在则创建）。
// 约束：不会做 drop/rebuild 等破坏性操作。
func (r *Repository) EnsureEventsCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}

	exists, err := r.client.HasCollection(ctx, CollectionEvents)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.CreateCollection(ctx, EventsSchema(r.dimension)); err != nil {
			return err
		}
		// 新建集合时创建索引；若失败，允许后续由运维介入。
		_ = r.CreateIndex(ctx, CollectionEvents)
	}

	return r.client.LoadCollection(ctx, CollectionEvents)
}

// CreateCollection 创建集合
func (r *Repository) CreateCollection(ctx context.Context, schema *entity.Schema) error {
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", schema.CollectionName)))
	defer span.End()

	schema.CollectionName = r.client.CollectionName(schema.CollectionName)

	err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// CreateIndex 创建 HNSW 索引
func (r *Repository) CreateIndex(ctx context.Context, collection string) error {
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	collName := r.client.CollectionName(collection)

	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := r.client.milvus.CreateIndex(ctx, collName, "vector", idx, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// InsertEvent 写入（或覆盖）活动向量
func (r *Repository) InsertEvent(ctx context.Context, ev *EventVector) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.InsertEvent",
		trace.WithAttributes(attribute.String("event.id", ev.ID)))
	defer span.End()

	collName := r.client.CollectionName(CollectionEvents)

	idCol := entity.NewColumnVarChar("id", []string{ev.ID})
	vectorCol := entity.NewColumnFloatVector("vector", r.dimension, [][]float32{ev.Vector})
	categoryCol := entity.NewColumnVarChar("category", []string{ev.Category})
	priceCol := entity.NewColumnInt64("price_cents", []int64{ev.PriceCents})
	freeCol := entity.NewColumnBool("is_free", []bool{ev.IsFree})
	timeCol := entity.NewColumnInt64("start_time", []int64{ev.StartTime})
	cityCol := entity.NewColumnVarChar("city", []string{strings.ToLower(ev.City)})

	_, err := r.client.milvus.Upsert(ctx, collName, "",
		idCol, vectorCol, categoryCol, priceCol, freeCol, timeCol, cityCol)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert event vector: %w", err)
	}
	return nil
}

// DeleteEvent 删除活动向量
func (r *Repository) DeleteEvent(ctx context.Context, eventID string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.DeleteEvent",
		trace.WithAttributes(attribute.String("event.id", eventID)))
	defer span.End()

	collName := r.client.CollectionName(CollectionEvents)
	filter := fmt.Sprintf(`id == "%s"`, eventID)

	if err := r.client.milvus.Delete(ctx, collName, "", filter); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete event vector: %w", err)
	}
	return nil
}

// SearchEvents 带标量前置过滤的向量检索
// 过滤条件是硬性约束，在向量检索阶段施加，不做事后放宽。
func (r *Repository) SearchEvents(ctx context.Context, queryVector []float32, filter *repository.EventFilter, topK int) ([]*Candidate, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.SearchEvents",
		trace.WithAttributes(attribute.Int("top_k", topK)))
	defer span.End()

	start := time.Now()
	collName := r.client.CollectionName(CollectionEvents)
	expr := buildFilterExpr(filter)

	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := r.client.milvus.Search(ctx,
		collName,
		nil,
		expr,
		[]string{"id", "vector", "start_time"},
		[]entity.Vector{entity.FloatVector(queryVector)},
		"vector",
		entity.COSINE,
		topK,
		sp,
	)
	metrics.MilvusSearchDuration.WithLabelValues(CollectionEvents).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MilvusSearchTotal.WithLabelValues(CollectionEvents, "error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	metrics.MilvusSearchTotal.WithLabelValues(CollectionEvents, "success").Inc()

	var candidates []*Candidate
	for _, result := range results {
		var (
			ids    []string
			times  []int64
			vecCol *entity.ColumnFloatVector
		)
		if idCol, ok := result.Fields.GetColumn("id").(*entity.ColumnVarChar); ok {
			ids = idCol.Data()
		}
		if timeCol, ok := result.Fields.GetColumn("start_time").(*entity.ColumnInt64); ok {
			times = timeCol.Data()
		}
		vecCol, _ = result.Fields.GetColumn("vector").(*entity.ColumnFloatVector)

		for i := 0; i < result.ResultCount; i++ {
			c := &Candidate{Score: result.Scores[i]}
			if i < len(ids) {
				c.ID = ids[i]
			}
			if i < len(times) {
				c.StartTime = times[i]
			}
			if vecCol != nil && i < len(vecCol.Data()) {
				c.Vector = vecCol.Data()[i]
			}
			candidates = append(candidates, c)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(candidates)))
	return candidates, nil
}

// buildFilterExpr 将标量过滤条件转换为 Milvus 布尔表达式
func buildFilterExpr(filter *repository.EventFilter) string {
	if filter == nil {
		return ""
	}
	var parts []string
	if filter.Category != "" {
		parts = append(parts, fmt.Sprintf(`category == "%s"`, escapeExprString(string(filter.Category))))
	}
	if filter.City != "" {
		parts = append(parts, fmt.Sprintf(`city == "%s"`, escapeExprString(strings.ToLower(filter.City))))
	}
	if filter.FreeOnly {
		parts = append(parts, "is_free == true")
	}
	if filter.MaxPriceCents != nil {
		parts = append(parts, fmt.Sprintf("price_cents <= %d", *filter.MaxPriceCents))
	}
	// start_time == 0 表示未知，时间范围过滤一律排除
	if filter.From != nil {
		parts = append(parts, fmt.Sprintf("start_time >= %d", filter.From.Unix()))
	}
	if filter.To != nil {
		parts = append(parts, fmt.Sprintf("start_time > 0 && start_time <= %d", filter.To.Unix()))
	}
	return strings.Join(parts, " && ")
}

// escapeExprString 转义布尔表达式字符串字面量
// 城市等字段来自模型抽取，不可信，未转义的引号会破坏表达式语义。
func escapeExprString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
