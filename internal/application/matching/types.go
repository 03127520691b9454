// Package matching 提供活动的语义匹配与排序
package matching

import (
	"context"

	"event-discovery-api/internal/domain/entity"
	"event-discovery-api/internal/domain/repository"
)

// Candidate 向量召回候选
type Candidate struct {
	ID        string
	Vector    []float32
	StartTime int64
}

// VectorIndex 向量召回端口
type VectorIndex interface {
	Search(ctx context.Context, queryVector []float32, filter *repository.EventFilter, topK int) ([]Candidate, error)
}

// Embedder 查询向量化端口
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Request 一次匹配请求
type Request struct {
	// Query 语义查询文本；为空时走推荐或降级路径
	Query string
	// Filter 硬性标量过滤条件，排序阶段不放宽
	Filter *repository.EventFilter
	// Profile 用户偏好向量；冷启动时为空
	Profile entity.Vector
	// Limit 返回条数上限；<=0 时取默认值
	Limit int
}

// Mode 本次匹配实际走的路径
type Mode string

const (
	// ModeQuery 纯查询语义匹配
	ModeQuery Mode = "query"
	// ModeQueryPreference 查询与偏好加权融合
	ModeQueryPreference Mode = "query_preference"
	// ModeRecommend 无查询，以偏好向量召回
	ModeRecommend Mode = "recommend"
	// ModeColdStart 无查询且无偏好，按时间兜底
	ModeColdStart Mode = "cold_start"
	// ModeDegraded 向量检索不可用，退化为标量过滤
	ModeDegraded Mode = "degraded"
)

// ScoredEvent 带解释的匹配结果
type ScoredEvent struct {
	Event *entity.Event `json:"event"`
	// Score 综合匹配分；降级路径下为 0
	Score float64 `json:"score"`
	// QueryScore 与查询向量的余弦相似度
	QueryScore float64 `json:"query_score,omitempty"`
	// PreferenceScore 与偏好向量的余弦相似度
	PreferenceScore float64 `json:"preference_score,omitempty"`
}

// Result 匹配结果
type Result struct {
	Events []*ScoredEvent `json:"events"`
	Mode   Mode           `json:"mode"`
}
