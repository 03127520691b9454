package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserPreferenceProfile_ColdStart(t *testing.T) {
	var nilProfile *UserPreferenceProfile
	assert.True(t, nilProfile.ColdStart())

	profile := NewUserPreferenceProfile("user-1")
	assert.True(t, profile.ColdStart())

	profile.Vector = Vector{0.6, 0.8}
	profile.InteractionCount = 1
	assert.False(t, profile.ColdStart())

	// 有交互计数但向量为空仍视为冷启动
	profile.Vector = nil
	assert.True(t, profile.ColdStart())
}
