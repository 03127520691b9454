// Package embedding 提供文本向量化服务
package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"event-discovery-api/internal/config"
	apperrors "event-discovery-api/pkg/errors"
	"event-discovery-api/pkg/metrics"
)

// Service 向量化服务
// 对底层 Embedder 做维度校验：维度不符说明上游模型配置错误，
// 继续写入只会污染向量库，必须当场失败。
type Service struct {
	embedder  embedding.Embedder
	model     string
	dimension int
	batchSize int
}

// NewService 创建向量化服务
func NewService(embedder embedding.Embedder, cfg *config.EmbeddingConfig) *Service {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Service{
		embedder:  embedder,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: batchSize,
	}
}

// Dimension 返回配置的向量维度
func (s *Service) Dimension() int {
	return s.dimension
}

// EmbedText 向量化单条文本
func (s *Service) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, apperrors.ErrUpstreamUnavailable.WithDetail(
			fmt.Sprintf("expected 1 embedding, got %d", len(vecs)))
	}
	return vecs[0], nil
}

// EmbedTexts 批量向量化
func (s *Service) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, apperrors.ErrEmptyInput
		}
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += s.batchSize {
		end := i + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		start := time.Now()
		vecs, err := s.embedder.EmbedStrings(ctx, texts[i:end])
		metrics.EmbeddingDuration.WithLabelValues(s.model).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.EmbeddingTotal.WithLabelValues(s.model, "error").Inc()
			return nil, apperrors.ErrUpstreamUnavailable.WithError(err)
		}
		metrics.EmbeddingTotal.WithLabelValues(s.model, "success").Inc()

		for _, v := range vecs {
			if len(v) != s.dimension {
				return nil, apperrors.ErrDimensionMismatch.WithDetail(
					fmt.Sprintf("expected %d, got %d", s.dimension, len(v)))
			}
			all = append(all, toFloat32(v))
		}
	}

	if len(all) != len(texts) {
		return nil, apperrors.ErrUpstreamUnavailable.WithDetail(
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(all)))
	}
	return all, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
