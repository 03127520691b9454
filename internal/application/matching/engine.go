package matching

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"event-discovery-api/internal/config"
	"event-discovery-api/internal/domain/entity"
	"event-discovery-api/internal/domain/repository"
	apperrors "event-discovery-api/pkg/errors"
	"event-discovery-api/pkg/logger"
	"event-discovery-api/pkg/metrics"
)

var tracer = otel.Tracer("matching")

// Engine 匹配引擎
// 召回在向量库完成，打分在进程内完成：相同输入必然产生相同排序。
type Engine struct {
	events   repository.EventRepository
	index    VectorIndex
	embedder Embedder

	queryWeight      float64
	preferenceWeight float64
	epsilon          float64
	defaultLimit     int
	multiplier       int
}

// NewEngine 创建匹配引擎
func NewEngine(events repository.EventRepository, index VectorIndex, embedder Embedder, cfg *config.MatchingConfig) *Engine {
	return &Engine{
		events:           events,
		index:            index,
		embedder:         embedder,
		queryWeight:      cfg.QueryWeight,
		preferenceWeight: cfg.PreferenceWeight,
		epsilon:          cfg.Epsilon,
		defaultLimit:     cfg.DefaultLimit,
		multiplier:       cfg.CandidateMultiplier,
	}
}

// Search 执行一次匹配
func (e *Engine) Search(ctx context.Context, req *Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "matching.Search")
	defer span.End()

	limit := req.Limit
	if limit <= 0 {
		limit = e.defaultLimit
	}

	result, err := e.search(ctx, req, limit)
	if err != nil {
		metrics.MatchSearchTotal.WithLabelValues(string(ModeQuery), "error").Inc()
		return nil, err
	}

	span.SetAttributes(
		attribute.String("match.mode", string(result.Mode)),
		attribute.Int("match.result_count", len(result.Events)),
	)
	metrics.MatchSearchTotal.WithLabelValues(string(result.Mode), "success").Inc()
	metrics.MatchResultCount.WithLabelValues(string(result.Mode)).Observe(float64(len(result.Events)))
	return result, nil
}

func (e *Engine) search(ctx context.Context, req *Request, limit int) (*Result, error) {
	hasQuery := req.Query != ""
	hasProfile := len(req.Profile) > 0

	switch {
	case hasQuery:
		queryVec, err := e.embedder.EmbedText(ctx, req.Query)
		if err != nil {
			// 维度错配是配置级故障，不做降级
			if apperrors.IsCode(err, apperrors.CodeDimensionMismatch) {
				return nil, err
			}
			// 向量化不可用时退化为标量过滤检索
			logger.Warn(ctx, "query embedding unavailable, degrading to filter-only search",
				"error", err.Error(),
			)
			return e.degraded(ctx, req, limit)
		}

		mode := ModeQuery
		if hasProfile {
			mode = ModeQueryPreference
		}
		return e.rank(ctx, queryVec, req.Profile, req.Filter, limit, mode)

	case hasProfile:
		// 无查询：用偏好向量召回个性化推荐
		return e.rank(ctx, req.Profile, nil, req.Filter, limit, ModeRecommend)

	default:
		// 冷启动：最新活动优先
		return e.coldStart(ctx, req.Filter, limit)
	}
}

// rank 召回、打分并排序
func (e *Engine) rank(ctx context.Context, queryVec []float32, profile entity.Vector, filter *repository.EventFilter, limit int, mode Mode) (*Result, error) {
	topK := limit * e.multiplier
	if topK < limit {
		topK = limit
	}

	candidates, err := e.index.Search(ctx, queryVec, filter, topK)
	if err != nil {
		logger.Warn(ctx, "vector search unavailable, degrading to filter-only search",
			"error", err.Error(),
		)
		return e.degraded(ctx, &Request{Filter: filter}, limit)
	}
	if len(candidates) == 0 {
		return &Result{Events: []*ScoredEvent{}, Mode: mode}, nil
	}

	// 打分
	type scored struct {
		id         string
		score      float64
		queryScore float64
		prefScore  float64
		startTime  int64
	}
	scoredList := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		s := scored{id: c.ID, startTime: c.StartTime}
		s.queryScore = Cosine(queryVec, c.Vector)
		if len(profile) > 0 {
			s.prefScore = Cosine(profile, c.Vector)
			s.score = e.queryWeight*s.queryScore + e.preferenceWeight*s.prefScore
		} else {
			s.score = s.queryScore
		}
		scoredList = append(scoredList, s)
	}

	// 分差在 epsilon 内视为并列：开始时间晚者优先，再按 ID 保证全序
	sort.SliceStable(scoredList, func(i, j int) bool {
		a, b := scoredList[i], scoredList[j]
		diff := a.score - b.score
		if diff > e.epsilon {
			return true
		}
		if diff < -e.epsilon {
			return false
		}
		if a.startTime != b.startTime {
			return a.startTime > b.startTime
		}
		return a.id < b.id
	})

	if len(scoredList) > limit {
		scoredList = scoredList[:limit]
	}

	// 回表补全：Postgres 行是可见性依据，向量库中的孤儿条目直接丢弃
	ids := make([]string, len(scoredList))
	for i, s := range scoredList {
		ids[i] = s.id
	}
	events, err := e.events.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*entity.Event, len(events))
	for _, ev := range events {
		byID[ev.ID] = ev
	}

	out := make([]*ScoredEvent, 0, len(scoredList))
	for _, s := range scoredList {
		ev, ok := byID[s.id]
		if !ok {
			continue
		}
		out = append(out, &ScoredEvent{
			Event:           ev,
			Score:           s.score,
			QueryScore:      s.queryScore,
			PreferenceScore: s.prefScore,
		})
	}
	return &Result{Events: out, Mode: mode}, nil
}

// degraded 降级路径：跳过向量检索，仅按标量过滤返回
func (e *Engine) degraded(ctx context.Context, req *Request, limit int) (*Result, error) {
	filter := req.Filter
	if filter == nil {
		filter = &repository.EventFilter{}
	}
	if req.Query != "" && filter.Keyword == "" {
		f := *filter
		f.Keyword = req.Query
		filter = &f
	}

	events, err := e.events.ListFiltered(ctx, filter, limit)
	if err != nil {
		return nil, err
	}

	// 关键词过严导致空结果时，放掉关键词重试一次（过滤条件本身仍硬性保留）
	if len(events) == 0 && filter.Keyword != "" {
		f := *filter
		f.Keyword = ""
		events, err = e.events.ListFiltered(ctx, &f, limit)
		if err != nil {
			return nil, err
		}
	}

	out := make([]*ScoredEvent, len(events))
	for i, ev := range events {
		out[i] = &ScoredEvent{Event: ev}
	}
	return &Result{Events: out, Mode: ModeDegraded}, nil
}

// coldStart 冷启动兜底：最近创建的活动
func (e *Engine) coldStart(ctx context.Context, filter *repository.EventFilter, limit int) (*Result, error) {
	var (
		events []*entity.Event
		err    error
	)
	if filter == nil || *filter == (repository.EventFilter{}) {
		events, err = e.events.ListRecent(ctx, limit)
	} else {
		events, err = e.events.ListFiltered(ctx, filter, limit)
	}
	if err != nil {
		return nil, err
	}

	out := make([]*ScoredEvent, len(events))
	for i, ev := range events {
		out[i] = &ScoredEvent{Event: ev}
	}
	return &Result{Events: out, Mode: ModeColdStart}, nil
}
