package preference

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-discovery-api/internal/domain/entity"
)

func vectorNorm(v entity.Vector) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestSignal_Strength(t *testing.T) {
	assert.Equal(t, 1.0, SignalEventCreate.Strength())
	assert.Equal(t, 0.6, SignalEventView.Strength())
	assert.Equal(t, 0.3, SignalSearch.Strength())
	assert.Equal(t, 0.3, Signal("unknown").Strength())
}

func TestApply_FirstUpdateTakesNormalizedSignal(t *testing.T) {
	got := Apply(nil, []float32{3, 4}, 0.1, 1.0)

	require.Len(t, got, 2)
	assert.InDelta(t, 0.6, float64(got[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(got[1]), 1e-6)
	assert.InDelta(t, 1.0, vectorNorm(got), 1e-6)
}

func TestApply_ResultIsUnitLength(t *testing.T) {
	profile := entity.Vector{1, 0, 0}
	got := Apply(profile, []float32{0, 1, 0}, 0.1, 0.6)

	assert.InDelta(t, 1.0, vectorNorm(got), 1e-6)
	// 信号把画像朝自己的方向拉动
	assert.Greater(t, float64(got[1]), 0.0)
	assert.Greater(t, float64(got[0]), float64(got[1]))
}

func TestApply_ZeroStrengthKeepsProfile(t *testing.T) {
	profile := entity.Vector{0.6, 0.8}
	got := Apply(profile, []float32{1, 0}, 0.1, 0)

	assert.Equal(t, profile, got)
}

func TestApply_EmptySignalKeepsProfile(t *testing.T) {
	profile := entity.Vector{0.6, 0.8}
	assert.Equal(t, profile, Apply(profile, nil, 0.1, 1.0))
}

func TestApply_DimensionMismatchDropsSignal(t *testing.T) {
	profile := entity.Vector{0.6, 0.8}
	got := Apply(profile, []float32{1, 0, 0}, 0.1, 1.0)

	assert.Equal(t, profile, got)
}

func TestApply_EMAConverges(t *testing.T) {
	signal := []float32{0, 1}
	profile := Apply(nil, []float32{1, 0}, 0.1, 1.0)

	// 反复施加同一信号，画像应持续靠近信号方向
	prev := float64(profile[1])
	for i := 0; i < 50; i++ {
		profile = Apply(profile, signal, 0.1, 1.0)
		cur := float64(profile[1])
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
	assert.Greater(t, prev, 0.9)
}

func TestNormalize(t *testing.T) {
	got := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, float64(got[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(got[1]), 1e-6)

	// 零向量原样返回，不产生 NaN
	zero := Normalize([]float32{0, 0})
	assert.Equal(t, entity.Vector{0, 0}, zero)
}
