package milvus

import (
	"context"

	"event-discovery-api/internal/application/matching"
	"event-discovery-api/internal/domain/repository"
)

// RetrievalAdapter 将向量仓储适配为匹配引擎的召回端口
type RetrievalAdapter struct {
	repo *Repository
}

// NewRetrievalAdapter 创建召回适配器
func NewRetrievalAdapter(repo *Repository) *RetrievalAdapter {
	return &RetrievalAdapter{repo: repo}
}

// Search 实现 matching.VectorIndex
func (a *RetrievalAdapter) Search(ctx context.Context, queryVector []float32, filter *repository.EventFilter, topK int) ([]matching.Candidate, error) {
	candidates, err := a.repo.SearchEvents(ctx, queryVector, filter, topK)
	if err != nil {
		return nil, err
	}
	out := make([]matching.Candidate, len(candidates))
	for i, c := range candidates {
		out[i] = matching.Candidate{
			ID:        c.ID,
			Vector:    c.Vector,
			StartTime: c.StartTime,
		}
	}
	return out, nil
}
