package dto

import (
	"time"

	"event-discovery-api/internal/application/matching"
	"event-discovery-api/internal/domain/entity"
)

// CreateEventRequest 创建活动请求
// Text 非空时走自由文本抽取路径，结构化字段作为覆盖；否则 Title 必填。
type CreateEventRequest struct {
	Text        string   `json:"text,omitempty"`
	Title       string   `json:"title" binding:"max=255"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	PriceCents  *int64   `json:"price_cents,omitempty"`
	IsFree      *bool    `json:"is_free,omitempty"`
	StartTime   *string  `json:"start_time,omitempty"`
	City        string   `json:"city,omitempty"`
	Venue       string   `json:"venue,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	// UserID 可选；提供时创建行为计入偏好画像
	UserID string `json:"user_id,omitempty"`
}

// UpdateEventRequest 更新活动请求
type UpdateEventRequest struct {
	Title       string   `json:"title" binding:"required,max=255"`
	Description string   `json:"description,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Category    string   `json:"category,omitempty"`
	PriceCents  *int64   `json:"price_cents,omitempty"`
	StartTime   *string  `json:"start_time,omitempty"`
	City        string   `json:"city,omitempty"`
	Venue       string   `json:"venue,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// SearchEventsQuery 活动检索查询参数
type SearchEventsQuery struct {
	Q             string `form:"q"`
	Category      string `form:"category"`
	City          string `form:"city"`
	MaxPriceCents *int64 `form:"max_price_cents"`
	FreeOnly      bool   `form:"free_only"`
	From          string `form:"from"`
	To            string `form:"to"`
	Limit         int    `form:"limit"`
	UserID        string `form:"user_id"`
}

// EventResponse 活动响应
type EventResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Category    string     `json:"category"`
	PriceCents  int64      `json:"price_cents"`
	IsFree      bool       `json:"is_free"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	City        string     `json:"city,omitempty"`
	Venue       string     `json:"venue,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ScoredEventResponse 带匹配解释的活动响应
type ScoredEventResponse struct {
	Event           EventResponse `json:"event"`
	Score           float64       `json:"score"`
	QueryScore      float64       `json:"query_score,omitempty"`
	PreferenceScore float64       `json:"preference_score,omitempty"`
}

// SearchEventsResponse 活动检索响应
type SearchEventsResponse struct {
	Events []ScoredEventResponse `json:"events"`
	// Mode 匹配引擎实际走的路径（query/query_preference/recommend/cold_start/degraded）
	Mode string `json:"mode"`
}

// ToEventResponse 实体转响应
func ToEventResponse(e *entity.Event) EventResponse {
	return EventResponse{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Summary:     e.Summary,
		Category:    string(e.Category),
		PriceCents:  e.PriceCents,
		IsFree:      e.IsFree,
		StartTime:   e.StartTime,
		City:        e.City,
		Venue:       e.Venue,
		Tags:        e.Tags,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// ToSearchEventsResponse 匹配结果转响应
func ToSearchEventsResponse(result *matching.Result) SearchEventsResponse {
	events := make([]ScoredEventResponse, len(result.Events))
	for i, se := range result.Events {
		events[i] = ScoredEventResponse{
			Event:           ToEventResponse(se.Event),
			Score:           se.Score,
			QueryScore:      se.QueryScore,
			PreferenceScore: se.PreferenceScore,
		}
	}
	return SearchEventsResponse{
		Events: events,
		Mode:   string(result.Mode),
	}
}
