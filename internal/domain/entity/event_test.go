package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseCategory(t *testing.T) {
	assert.Equal(t, CategoryMusic, ParseCategory("music"))
	assert.Equal(t, CategoryFood, ParseCategory("  Food "))
	assert.Equal(t, CategorySports, ParseCategory("SPORTS"))
	assert.Equal(t, CategoryUncategorized, ParseCategory("concert"))
	assert.Equal(t, CategoryUncategorized, ParseCategory(""))
}

func TestNewEvent(t *testing.T) {
	event := NewEvent("Jazz Night")

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "Jazz Night", event.Title)
	assert.Equal(t, CategoryUncategorized, event.Category)
	assert.NotNil(t, event.Tags)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestEvent_AddTag(t *testing.T) {
	event := NewEvent("Jazz Night")

	event.AddTag("jazz")
	event.AddTag("live")
	assert.Equal(t, StringSlice{"jazz", "live"}, event.Tags)

	// 重复标签不追加（大小写不敏感）
	event.AddTag("jazz")
	event.AddTag("JAZZ")
	assert.Len(t, event.Tags, 2)

	// 空白标签忽略
	event.AddTag("   ")
	event.AddTag("")
	assert.Len(t, event.Tags, 2)
}

func TestEvent_SetPrice(t *testing.T) {
	event := NewEvent("Jazz Night")

	event.SetPrice(2500)
	assert.Equal(t, int64(2500), event.PriceCents)
	assert.False(t, event.IsFree)

	event.SetPrice(0)
	assert.Equal(t, int64(0), event.PriceCents)
	assert.True(t, event.IsFree)

	// 负数价格归零
	event.SetPrice(-100)
	assert.Equal(t, int64(0), event.PriceCents)
	assert.True(t, event.IsFree)
}

func TestEvent_EmbeddingText(t *testing.T) {
	event := NewEvent("Jazz Night")
	assert.Equal(t, "Jazz Night", event.EmbeddingText())

	event.Description = "An evening of live jazz"
	assert.Equal(t, "Jazz Night\nAn evening of live jazz", event.EmbeddingText())

	event.Summary = "Live jazz downtown"
	assert.Equal(t, "Jazz Night\nAn evening of live jazz\nLive jazz downtown", event.EmbeddingText())

	// 空白字段不参与拼接
	event.Description = "   "
	assert.Equal(t, "Jazz Night\nLive jazz downtown", event.EmbeddingText())
}

func TestEvent_EmbeddingTextChangesOnSemanticEdit(t *testing.T) {
	event := NewEvent("Jazz Night")
	event.Description = "An evening of live jazz"
	before := event.EmbeddingText()

	// 标量修改不影响向量化文本
	event.SetPrice(1000)
	now := time.Now()
	event.StartTime = &now
	assert.Equal(t, before, event.EmbeddingText())

	// 语义修改必然改变向量化文本
	event.Title = "Blues Night"
	assert.NotEqual(t, before, event.EmbeddingText())
}
