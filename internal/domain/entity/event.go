// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventCategory 活动分类
type EventCategory string

const (
	CategoryMusic         EventCategory = "music"
	CategoryFood          EventCategory = "food"
	CategorySports        EventCategory = "sports"
	CategoryArts          EventCategory = "arts"
	CategoryNetworking    EventCategory = "networking"
	CategoryEducation     EventCategory = "education"
	CategoryFamily        EventCategory = "family"
	CategoryUncategorized EventCategory = "uncategorized"
)

// ParseCategory 解析分类字符串，未知值一律归入 uncategorized
func ParseCategory(s string) EventCategory {
	switch EventCategory(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryMusic, CategoryFood, CategorySports, CategoryArts,
		CategoryNetworking, CategoryEducation, CategoryFamily:
		return EventCategory(strings.ToLower(strings.TrimSpace(s)))
	default:
		return CategoryUncategorized
	}
}

// Event 活动记录
// 向量存储在 Milvus，Postgres 行是检索可见性的最终依据：
// 行只在向量写入成功后提交，保证活动不会在缺失向量的状态下可搜。
type Event struct {
	ID          string        `json:"id" gorm:"type:uuid;primaryKey"`
	Title       string        `json:"title" gorm:"type:varchar(255);not null"`
	Description string        `json:"description,omitempty" gorm:"type:text"`
	Summary     string        `json:"summary,omitempty" gorm:"type:text"`
	Category    EventCategory `json:"category" gorm:"type:varchar(32);not null;default:'uncategorized'"`
	PriceCents  int64         `json:"price_cents" gorm:"not null;default:0"`
	IsFree      bool          `json:"is_free" gorm:"not null;default:false"`
	StartTime   *time.Time    `json:"start_time,omitempty" gorm:"index"`
	City        string        `json:"city,omitempty" gorm:"type:varchar(100);index"`
	Venue       string        `json:"venue,omitempty" gorm:"type:varchar(255)"`
	Tags        StringSlice   `json:"tags,omitempty" gorm:"type:jsonb"`
	CreatedAt   time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Event) TableName() string {
	return "events"
}

// NewEvent 创建新活动
func NewEvent(title string) *Event {
	now := time.Now()
	return &Event{
		ID:        uuid.New().String(),
		Title:     title,
		Category:  CategoryUncategorized,
		Tags:      StringSlice{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddTag 添加标签（去重，顺序无关）
func (e *Event) AddTag(tag string) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return
	}
	for _, t := range e.Tags {
		if strings.EqualFold(t, tag) {
			return
		}
	}
	e.Tags = append(e.Tags, tag)
}

// SetPrice 设置价格；0 视为免费
func (e *Event) SetPrice(cents int64) {
	if cents < 0 {
		cents = 0
	}
	e.PriceCents = cents
	e.IsFree = cents == 0
}

// EmbeddingText 拼接参与向量化的文本字段。
// 任一字段的语义性修改都必须触发重新向量化。
func (e *Event) EmbeddingText() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{e.Title, e.Description, e.Summary} {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, strings.TrimSpace(s))
		}
	}
	return strings.Join(parts, "\n")
}
