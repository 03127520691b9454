// Package extraction 提供会话文本的结构化抽取
package extraction

import (
	"strings"
	"time"

	"event-discovery-api/internal/domain/entity"
	apperrors "event-discovery-api/pkg/errors"
)

// Mode 抽取模式
type Mode string

const (
	// ModeEventCreation 从描述文本中抽取活动草稿
	ModeEventCreation Mode = "event_creation"
	// ModeSearchIntent 从查询文本中抽取检索意图
	ModeSearchIntent Mode = "search_intent"
)

// EventDraft 活动草稿（抽取产物，入库前需通过校验）
type EventDraft struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	PriceCents  *int64   `json:"price_cents,omitempty"`
	IsFree      *bool    `json:"is_free,omitempty"`
	StartTime   string   `json:"start_time,omitempty"`
	City        string   `json:"city,omitempty"`
	Venue       string   `json:"venue,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Validate 校验草稿的最低要求
func (d *EventDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return apperrors.ErrInvalidEventDraft.WithDetail("title is required")
	}
	if d.PriceCents != nil && *d.PriceCents < 0 {
		return apperrors.ErrInvalidEventDraft.WithDetail("price_cents must be non-negative")
	}
	if d.StartTime != "" {
		if _, err := parseTime(d.StartTime); err != nil {
			return apperrors.ErrInvalidEventDraft.WithDetail("start_time is not a valid timestamp")
		}
	}
	return nil
}

// ToEvent 将草稿转换为活动实体
func (d *EventDraft) ToEvent() (*entity.Event, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	event := entity.NewEvent(strings.TrimSpace(d.Title))
	event.Description = strings.TrimSpace(d.Description)
	event.Category = entity.ParseCategory(d.Category)
	event.City = strings.TrimSpace(d.City)
	event.Venue = strings.TrimSpace(d.Venue)

	switch {
	case d.PriceCents != nil:
		event.SetPrice(*d.PriceCents)
	case d.IsFree != nil && *d.IsFree:
		event.SetPrice(0)
	}
	if d.IsFree != nil {
		event.IsFree = *d.IsFree || event.PriceCents == 0
	}

	if d.StartTime != "" {
		t, err := parseTime(d.StartTime)
		if err == nil {
			event.StartTime = &t
		}
	}

	for _, tag := range d.Tags {
		event.AddTag(tag)
	}
	return event, nil
}

// SearchIntent 检索意图（抽取产物）
type SearchIntent struct {
	// Intent 消息意图判定：search（默认）或 create
	Intent string `json:"intent,omitempty"`
	// Query 语义查询文本；为空时退化为纯过滤检索
	Query         string   `json:"query,omitempty"`
	Category      string   `json:"category,omitempty"`
	City          string   `json:"city,omitempty"`
	MaxPriceCents *int64   `json:"max_price_cents,omitempty"`
	FreeOnly      bool     `json:"free_only,omitempty"`
	From          string   `json:"from,omitempty"`
	To            string   `json:"to,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
}

// Validate 校验意图的最低要求
func (s *SearchIntent) Validate() error {
	if s.MaxPriceCents != nil && *s.MaxPriceCents < 0 {
		return apperrors.ErrMalformedExtraction.WithDetail("max_price_cents must be non-negative")
	}
	for _, ts := range []string{s.From, s.To} {
		if ts == "" {
			continue
		}
		if _, err := parseTime(ts); err != nil {
			return apperrors.ErrMalformedExtraction.WithDetail("time bound is not a valid timestamp")
		}
	}
	return nil
}

// FromTime 解析下界时间，未设置或非法时返回 nil
func (s *SearchIntent) FromTime() *time.Time {
	return optionalTime(s.From)
}

// ToTime 解析上界时间，未设置或非法时返回 nil
func (s *SearchIntent) ToTime() *time.Time {
	return optionalTime(s.To)
}

func optionalTime(ts string) *time.Time {
	if ts == "" {
		return nil
	}
	t, err := parseTime(ts)
	if err != nil {
		return nil
	}
	return &t
}

// parseTime 接受日期或 RFC3339 时间戳
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Parse(time.RFC3339, s)
}
