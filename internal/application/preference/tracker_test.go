package preference

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-discovery-api/internal/domain/entity"
)

// fakePreferenceRepo 内存版画像仓储
type fakePreferenceRepo struct {
	mu       sync.Mutex
	profiles map[string]*entity.UserPreferenceProfile
	getErr   error
	saveErr  error
}

func newFakePreferenceRepo() *fakePreferenceRepo {
	return &fakePreferenceRepo{profiles: make(map[string]*entity.UserPreferenceProfile)}
}

func (r *fakePreferenceRepo) Get(_ context.Context, userID string) (*entity.UserPreferenceProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	p, ok := r.profiles[userID]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (r *fakePreferenceRepo) Save(_ context.Context, profile *entity.UserPreferenceProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	clone := *profile
	r.profiles[profile.UserID] = &clone
	return nil
}

func TestTracker_GetColdStart(t *testing.T) {
	tracker := NewTracker(newFakePreferenceRepo(), 0.1)

	profile, err := tracker.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", profile.UserID)
	assert.True(t, profile.ColdStart())
}

func TestTracker_RecordCreatesProfile(t *testing.T) {
	repo := newFakePreferenceRepo()
	tracker := NewTracker(repo, 0.1)

	err := tracker.Record(context.Background(), "user-1", SignalSearch, []float32{3, 4})
	require.NoError(t, err)

	profile, err := tracker.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, profile.ColdStart())
	assert.Equal(t, int64(1), profile.InteractionCount)
	// 首次更新直接取归一化信号
	assert.InDelta(t, 0.6, float64(profile.Vector[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(profile.Vector[1]), 1e-6)
}

func TestTracker_RecordAccumulatesInteractions(t *testing.T) {
	repo := newFakePreferenceRepo()
	tracker := NewTracker(repo, 0.1)
	ctx := context.Background()

	require.NoError(t, tracker.Record(ctx, "user-1", SignalSearch, []float32{1, 0}))
	require.NoError(t, tracker.Record(ctx, "user-1", SignalEventView, []float32{0, 1}))
	require.NoError(t, tracker.Record(ctx, "user-1", SignalEventCreate, []float32{0, 1}))

	profile, err := tracker.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), profile.InteractionCount)
	assert.InDelta(t, 1.0, vectorNorm(profile.Vector), 1e-6)
}

func TestTracker_RecordIgnoresEmptyInput(t *testing.T) {
	repo := newFakePreferenceRepo()
	tracker := NewTracker(repo, 0.1)
	ctx := context.Background()

	require.NoError(t, tracker.Record(ctx, "", SignalSearch, []float32{1, 0}))
	require.NoError(t, tracker.Record(ctx, "user-1", SignalSearch, nil))
	assert.Empty(t, repo.profiles)
}

func TestTracker_RecordPropagatesSaveError(t *testing.T) {
	repo := newFakePreferenceRepo()
	repo.saveErr = errors.New("save failed")
	tracker := NewTracker(repo, 0.1)

	err := tracker.Record(context.Background(), "user-1", SignalSearch, []float32{1, 0})
	assert.Error(t, err)
}

func TestTracker_ConcurrentRecordsSameUser(t *testing.T) {
	repo := newFakePreferenceRepo()
	tracker := NewTracker(repo, 0.1)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tracker.Record(ctx, "user-1", SignalSearch, []float32{1, 0})
		}()
	}
	wg.Wait()

	// 用户级锁保证 read-modify-write 不交错，交互数不丢失
	profile, err := tracker.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(n), profile.InteractionCount)
}
