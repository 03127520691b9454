package milvus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	domain "event-discovery-api/internal/domain/entity"
	"event-discovery-api/internal/domain/repository"
)

func TestBuildFilterExpr(t *testing.T) {
	assert.Equal(t, "", buildFilterExpr(nil))
	assert.Equal(t, "", buildFilterExpr(&repository.EventFilter{}))

	maxPrice := int64(3000)
	from := time.Unix(100, 0)
	to := time.Unix(200, 0)
	expr := buildFilterExpr(&repository.EventFilter{
		Category:      domain.CategoryMusic,
		City:          "Berlin",
		FreeOnly:      true,
		MaxPriceCents: &maxPrice,
		From:          &from,
		To:            &to,
	})

	assert.Equal(t,
		`category == "music" && city == "berlin" && is_free == true && price_cents <= 3000 && start_time >= 100 && start_time > 0 && start_time <= 200`,
		expr)
}

func TestBuildFilterExprUpperBoundExcludesUnknownTime(t *testing.T) {
	to := time.Unix(200, 0)
	expr := buildFilterExpr(&repository.EventFilter{To: &to})

	// start_time == 0 表示未知，上界过滤必须排除
	assert.Equal(t, "start_time > 0 && start_time <= 200", expr)
}

func TestBuildFilterExprEscapesStringValues(t *testing.T) {
	expr := buildFilterExpr(&repository.EventFilter{City: `val"paraiso`})
	assert.Equal(t, `city == "val\"paraiso"`, expr)

	expr = buildFilterExpr(&repository.EventFilter{City: `back\slash`})
	assert.Equal(t, `city == "back\\slash"`, expr)
}

func TestEscapeExprString(t *testing.T) {
	assert.Equal(t, `plain`, escapeExprString(`plain`))
	assert.Equal(t, `it\"s`, escapeExprString(`it"s`))
	assert.Equal(t, `a\\\"b`, escapeExprString(`a\"b`))
}
