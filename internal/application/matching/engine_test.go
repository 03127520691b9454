package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-discovery-api/internal/config"
	"event-discovery-api/internal/domain/entity"
	"event-discovery-api/internal/domain/repository"
	apperrors "event-discovery-api/pkg/errors"
)

// fakeEventRepo 内存版活动仓储，只实现引擎用到的读路径
type fakeEventRepo struct {
	events      map[string]*entity.Event
	recent      []*entity.Event
	filtered    []*entity.Event
	lastFilter  *repository.EventFilter
	filterCalls []repository.EventFilter
	listErr     error
}

func newFakeEventRepo(events ...*entity.Event) *fakeEventRepo {
	m := make(map[string]*entity.Event, len(events))
	for _, e := range events {
		m[e.ID] = e
	}
	return &fakeEventRepo{events: m}
}

func (r *fakeEventRepo) Create(context.Context, *entity.Event) error { return nil }
func (r *fakeEventRepo) Update(context.Context, *entity.Event) error { return nil }
func (r *fakeEventRepo) Delete(context.Context, string) error        { return nil }

func (r *fakeEventRepo) GetByID(_ context.Context, id string) (*entity.Event, error) {
	e, ok := r.events[id]
	if !ok {
		return nil, apperrors.ErrEventNotFound
	}
	return e, nil
}

func (r *fakeEventRepo) GetByIDs(_ context.Context, ids []string) ([]*entity.Event, error) {
	out := make([]*entity.Event, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.events[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) ListFiltered(_ context.Context, filter *repository.EventFilter, _ int) ([]*entity.Event, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.lastFilter = filter
	r.filterCalls = append(r.filterCalls, *filter)
	if filter.Keyword != "" && len(r.filtered) == 0 {
		return nil, nil
	}
	return r.filtered, nil
}

func (r *fakeEventRepo) ListRecent(_ context.Context, _ int) ([]*entity.Event, error) {
	return r.recent, nil
}

type fakeIndex struct {
	candidates []Candidate
	err        error
	lastTopK   int
	lastFilter *repository.EventFilter
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, filter *repository.EventFilter, topK int) ([]Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastTopK = topK
	f.lastFilter = filter
	return f.candidates, nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func matchingConfig() *config.MatchingConfig {
	return &config.MatchingConfig{
		QueryWeight:         0.7,
		PreferenceWeight:    0.3,
		Epsilon:             1e-6,
		DefaultLimit:        9,
		CandidateMultiplier: 3,
	}
}

func testEvent(id string) *entity.Event {
	return &entity.Event{ID: id, Title: "event " + id}
}

func TestEngine_QueryRanksByCosine(t *testing.T) {
	repo := newFakeEventRepo(testEvent("a"), testEvent("b"), testEvent("c"))
	index := &fakeIndex{candidates: []Candidate{
		{ID: "a", Vector: []float32{0, 1}},
		{ID: "b", Vector: []float32{1, 0}},
		{ID: "c", Vector: []float32{0.7, 0.7}},
	}}
	engine := NewEngine(repo, index, &fakeEmbedder{vector: []float32{1, 0}}, matchingConfig())

	result, err := engine.Search(context.Background(), &Request{Query: "jazz", Limit: 3})
	require.NoError(t, err)

	assert.Equal(t, ModeQuery, result.Mode)
	require.Len(t, result.Events, 3)
	assert.Equal(t, "b", result.Events[0].Event.ID)
	assert.Equal(t, "c", result.Events[1].Event.ID)
	assert.Equal(t, "a", result.Events[2].Event.ID)
	assert.InDelta(t, 1.0, result.Events[0].QueryScore, 1e-9)
}

func TestEngine_NoAdmittedCandidatesReturnsEmptyList(t *testing.T) {
	// 过滤条件收敛到零候选时返回空列表，不是错误
	repo := newFakeEventRepo()
	index := &fakeIndex{}
	engine := NewEngine(repo, index, &fakeEmbedder{vector: []float32{1, 0}}, matchingConfig())

	result, err := engine.Search(context.Background(), &Request{
		Query:  "underwater basket weaving",
		Filter: &repository.EventFilter{FreeOnly: true},
		Limit:  5,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Empty(t, result.Events)
}

func TestEngine_JazzUnderThirtyDollars(t *testing.T) {
	cheap := testEvent("cheap-jazz")
	free := testEvent("free-jam")
	repo := newFakeEventRepo(cheap, free)
	// 向量检索只返回通过价格过滤的候选
	index := &fakeIndex{candidates: []Candidate{
		{ID: "free-jam", Vector: []float32{0.9, 0.44}},
		{ID: "cheap-jazz", Vector: []float32{1, 0}},
	}}
	engine := NewEngine(repo, index, &fakeEmbedder{vector: []float32{1, 0}}, matchingConfig())

	maxPrice := int64(3000)
	result, err := engine.Search(context.Background(), &Request{
		Query:  "jazz under 30 dollars this week",
		Filter: &repository.EventFilter{MaxPriceCents: &maxPrice},
		Limit:  5,
	})
	require.NoError(t, err)

	// 价格上限作为硬过滤传入向量检索
	require.NotNil(t, index.lastFilter)
	require.NotNil(t, index.lastFilter.MaxPriceCents)
	assert.Equal(t, int64(3000), *index.lastFilter.MaxPriceCents)

	require.Len(t, result.Events, 2)
	assert.Equal(t, "cheap-jazz", result.Events[0].Event.ID)
	assert.Equal(t, "free-jam", result.Events[1].Event.ID)
}

func TestEngine_SelfQueryRanksEventFirst(t *testing.T) {
	// 用活动自身文本的向量做查询，该活动必须排第一
	self := []float32{0.6, 0.8}
	repo := newFakeEventRepo(testEvent("self"), testEvent("near"), testEvent("far"))
	index := &fakeIndex{candidates: []Candidate{
		{ID: "far", Vector: []float32{1, 0}},
		{ID: "self", Vector: self},
		{ID: "near", Vector: []float32{0.5, 0.85}},
	}}
	engine := NewEngine(repo, index, &fakeEmbedder{vector: self}, matchingConfig())

	result, err := engine.Search(context.Background(), &Request{Query: "event self", Limit: 3})
	require.NoError(t, err)
	require.NotEmpty(t, result.Events)
	assert.Equal(t, "self", result.Events[0].Event.ID)
}

func TestEngine_QueryIsDeterministic(t *testing.T) {
	repo := newFakeEventRepo(testEvent("a"), testEvent("b"), testEvent("c"))
	index := &fakeIndex{candidates: []Candidate{
		{ID: "c", Vector: []float32{1, 0}},
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{1, 0}},
	}}
	engine := NewEngine(repo, index, &fakeEmbedder{vector: []float32{1, 0}}, matchingConfig())

	var firstOrder []string
	for i := 0; i < 5; i++ {
		result, err := engine.Search(context.Background(), &Request{Query: "jazz", Limit: 3})
		require.NoError(t, err)
		order := make([]string, len(result.Events))
		for j, e := range result.Events {
			order[j] = e.Event.ID
		}
		if firstOrder == nil {
			firstOrder = order
		} else {
			assert.Equal(t, firstOrder, order)
		}
	}
}

func TestEngine_EpsilonTieBreak(t *testing.T) {
	repo := newFakeEventRepo(testEvent("a"), testEvent("b"), testEvent("c"))
	// 三者余弦分相同：开始时间晚者优先，再按 ID 升序
	index := &fakeIndex{candidates: []Candidate{
		{ID: "c", Vector: []float32{1, 0}, StartTime: 100},
		{ID: "a", Vector: []float32{1, 0}, StartTime: 200},
		{ID: "b", Vector: []float32{1, 0}, StartTime: 100},
	}}
	engine := NewEngine(repo, index, &fakeEmbedder{vector: []float32{1, 0}}, matchingConfig())

	result, err := engine.Search(context.Background(), &Request{Query: "jazz", Limit: 3})
	require.NoError(t, err)

	require.Len(t, result.Events, 3)
	assert.Equal(t, "a", result.Events[0].Event.ID)
	assert.Equal(t, "b", result.Events[1].Event.ID)
	assert.Equal(t, "c", result.Events[2].Event.ID)
}

func TestEngine_QueryPreferenceWeights(t *testing.T) {
	repo := newFakeEventRepo(testEvent("query-match"), testEvent("pref-match"))
	index := &fakeIndex{candidates: []Candidate{
		{ID: "query-match", Vector: []float32{1, 0}},
		{ID: "pref-match", Vector: []float32{0, 1}},
	}}
	engine := NewEngine(repo, index, &fakeEmbedder{vector: []float32{1, 0}}, matchingConfig())

	result, err := engine.Search(context.Background(), &Request{
		Query:   "jazz",
		Profile: entity.Vector{0, 1},
		Limit:   2,
	})
	require.NoError(t, err)

	assert.Equal(t, ModeQueryPreference, result.Mode)
	require.Len(t, result.Events, 2)
	// 查询权重 0.7 高于偏好权重 0.3
	assert.Equal(t, "query-match", result.Events[0].Event.ID)
	assert.InDelta(t, 0.7, result.Events[0].Score, 1e-9)
	assert.InDelta(t, 0.3, result.Events[1].Score, 1e-9)
	assert.InDelta(t, 1.0, result.Events[1].PreferenceScore, 1e-9)
}

func TestEngine_RecommendUsesProfileAsQuery(t *testing.T) {
	repo := newFakeEventRepo(testEvent("a"))
	index := &fakeIndex{candidates: []Candidate{{ID: "a", Vector: []float32{0, 1}}}}
	engine := NewEngine(repo, index, &fakeEmbedder{err: errors.New("must not be called")}, matchingConfig())

	result, err := engine.Search(context.Background(), &Request{Profile: entity.Vector{0, 1}, Limit: 3})
	require.NoError(t, err)

	assert.Equal(t, ModeRecommend, result.Mode)
	require.Len(t, result.Events, 1)
	assert.InDelta(t, 1.0, result.Events[0].Score, 1e-9)
}

func TestEngine_ColdStartListsRecent(t *testing.T) {
	repo := newFakeEventRepo()
	repo.recent = []*entity.Event{testEvent("new"), testEvent("old")}
	engine := NewEngine(repo, &fakeIndex{}, &fakeEmbedder{}, matchingConfig())

	result, err := engine.Search(context.Background(), &Request{})
	require.NoError(t, err)

	assert.Equal(t, ModeColdStart, result.Mode)
	require.Len(t, result.Events, 2)
	assert.Equal(t, "new", result.Events[0].Event.ID)
	assert.Zero(t, result.Events[0].Score)
}

func TestEngine_ColdStartWithFilterUsesListFiltered(t *testing.T) {
	repo := newFakeEventRepo()
	repo.filtered = []*entity.Event{testEvent("filtered")}
	engine := NewEngine(repo, &fakeIndex{}, &fakeEmbedder{}, matchingConfig())

	result, err := engine.Search(context.Background(), &Request{
		Filter: &repository.EventFilter{City: "berlin"},
	})
	require.NoError(t, err)

	assert.Equal(t, ModeColdStart, result.Mode)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "berlin", repo.lastFilter.City)
}

func TestEngine_DegradesOnEmbeddingFailure(t *testing.T) {
	repo := newFakeEventRepo()
	repo.filtered = []*entity.Event{testEvent("fallback")}
	engine := NewEngine(repo, &fakeIndex{}, &fakeEmbedder{err: errors.New("upstream down")}, matchingConfig())

	result, err := engine.Search(context.Background(), &Request{Query: "jazz night"})
	require.NoError(t, err)

	assert.Equal(t, ModeDegraded, result.Mode)
	require.Len(t, result.Events, 1)
	// 查询文本转为关键词过滤
	assert.Equal(t, "jazz night", repo.lastFilter.Keyword)
}

func TestEngine_DegradedRetriesWithoutKeyword(t *testing.T) {
	repo := newFakeEventRepo()
	// 带关键词时无结果（fakeEventRepo 对关键词查询返回空），去掉后命中
	repo.filtered = []*entity.Event{}
	engine := NewEngine(repo, &fakeIndex{}, &fakeEmbedder{err: errors.New("upstream down")}, matchingConfig())

	result, err := engine.Search(context.Background(), &Request{
		Query:  "nonexistent",
		Filter: &repository.EventFilter{City: "berlin"},
	})
	require.NoError(t, err)

	assert.Equal(t, ModeDegraded, result.Mode)
	require.Len(t, repo.filterCalls, 2)
	assert.Equal(t, "nonexistent", repo.filterCalls[0].Keyword)
	assert.Empty(t, repo.filterCalls[1].Keyword)
	// 标量过滤条件在重试时仍硬性保留
	assert.Equal(t, "berlin", repo.filterCalls[1].City)
}

func TestEngine_DegradesOnIndexFailure(t *testing.T) {
	repo := newFakeEventRepo()
	repo.filtered = []*entity.Event{testEvent("fallback")}
	index := &fakeIndex{err: errors.New("milvus unreachable")}
	engine := NewEngine(repo, index, &fakeEmbedder{vector: []float32{1, 0}}, matchingConfig())

	result, err := engine.Search(context.Background(), &Request{Query: "jazz"})
	require.NoError(t, err)
	assert.Equal(t, ModeDegraded, result.Mode)
}

func TestEngine_DimensionMismatchIsFatal(t *testing.T) {
	repo := newFakeEventRepo()
	repo.filtered = []*entity.Event{testEvent("fallback")}
	embedder := &fakeEmbedder{err: apperrors.ErrDimensionMismatch.WithDetail("expected 1536, got 768")}
	engine := NewEngine(repo, &fakeIndex{}, embedder, matchingConfig())

	_, err := engine.Search(context.Background(), &Request{Query: "jazz"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDimensionMismatch))
}

func TestEngine_DropsOrphanCandidates(t *testing.T) {
	// "ghost" 只在向量库有条目，Postgres 行不存在，必须被过滤
	repo := newFakeEventRepo(testEvent("real"))
	index := &fakeIndex{candidates: []Candidate{
		{ID: "ghost", Vector: []float32{1, 0}},
		{ID: "real", Vector: []float32{0.9, 0.1}},
	}}
	engine := NewEngine(repo, index, &fakeEmbedder{vector: []float32{1, 0}}, matchingConfig())

	result, err := engine.Search(context.Background(), &Request{Query: "jazz", Limit: 5})
	require.NoError(t, err)

	require.Len(t, result.Events, 1)
	assert.Equal(t, "real", result.Events[0].Event.ID)
}

func TestEngine_OverRecallAndTruncate(t *testing.T) {
	events := make([]*entity.Event, 0, 10)
	candidates := make([]Candidate, 0, 10)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		events = append(events, testEvent(id))
		candidates = append(candidates, Candidate{ID: id, Vector: []float32{1, 0}})
	}
	repo := newFakeEventRepo(events...)
	index := &fakeIndex{candidates: candidates}
	engine := NewEngine(repo, index, &fakeEmbedder{vector: []float32{1, 0}}, matchingConfig())

	result, err := engine.Search(context.Background(), &Request{Query: "jazz", Limit: 3})
	require.NoError(t, err)

	// 召回 limit*multiplier，返回截断到 limit
	assert.Equal(t, 9, index.lastTopK)
	assert.Len(t, result.Events, 3)
}

func TestEngine_DefaultLimit(t *testing.T) {
	repo := newFakeEventRepo()
	index := &fakeIndex{}
	engine := NewEngine(repo, index, &fakeEmbedder{vector: []float32{1, 0}}, matchingConfig())

	_, err := engine.Search(context.Background(), &Request{Query: "jazz"})
	require.NoError(t, err)
	assert.Equal(t, 27, index.lastTopK)
}
