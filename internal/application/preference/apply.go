// Package preference 提供用户偏好画像的学习与维护
package preference

import (
	"math"

	"event-discovery-api/internal/domain/entity"
)

// Signal 偏好信号类型
type Signal string

const (
	// SignalSearch 检索意图带来的弱信号
	SignalSearch Signal = "search"
	// SignalEventView 查看活动详情
	SignalEventView Signal = "event_view"
	// SignalEventCreate 创建活动的强信号
	SignalEventCreate Signal = "event_create"
)

// Strength 各信号的默认学习强度
func (s Signal) Strength() float64 {
	switch s {
	case SignalEventCreate:
		return 1.0
	case SignalEventView:
		return 0.6
	case SignalSearch:
		return 0.3
	default:
		return 0.3
	}
}

// Apply 计算一次偏好更新后的画像向量（纯函数）。
// 首次更新直接取信号向量；之后按指数滑动平均融合：
//
//	profile = normalize(profile*(1-α) + v*α*strength)
//
// strength 为 0 时画像保持不变。结果始终为单位向量。
func Apply(profile entity.Vector, signal []float32, learningRate, strength float64) entity.Vector {
	if len(signal) == 0 || strength <= 0 {
		return profile
	}

	if len(profile) == 0 {
		return Normalize(signal)
	}
	if len(profile) != len(signal) {
		// 维度不符的信号不可融合，丢弃而非污染画像
		return profile
	}

	alpha := learningRate * strength
	merged := make([]float32, len(profile))
	for i := range profile {
		merged[i] = float32(float64(profile[i])*(1-alpha) + float64(signal[i])*alpha)
	}
	return Normalize(merged)
}

// Normalize 归一化为单位向量；零向量原样返回
func Normalize(v []float32) entity.Vector {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		out := make(entity.Vector, len(v))
		copy(out, v)
		return out
	}
	out := make(entity.Vector, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
