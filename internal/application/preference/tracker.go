package preference

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"event-discovery-api/internal/domain/entity"
	"event-discovery-api/internal/domain/repository"
	"event-discovery-api/pkg/logger"
	"event-discovery-api/pkg/metrics"
)

var tracer = otel.Tracer("preference")

// Tracker 偏好画像追踪器
// 同一用户的更新串行执行（read-modify-write 不能交错），不同用户互不阻塞。
type Tracker struct {
	repo         repository.PreferenceRepository
	learningRate float64

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTracker 创建偏好追踪器
func NewTracker(repo repository.PreferenceRepository, learningRate float64) *Tracker {
	return &Tracker{
		repo:         repo,
		learningRate: learningRate,
		locks:        make(map[string]*sync.Mutex),
	}
}

// userLock 获取用户级互斥锁
func (t *Tracker) userLock(userID string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[userID] = l
	}
	return l
}

// Get 获取用户画像，不存在时返回冷启动空画像
func (t *Tracker) Get(ctx context.Context, userID string) (*entity.UserPreferenceProfile, error) {
	ctx, span := tracer.Start(ctx, "preference.Get")
	span.SetAttributes(attribute.String("user.id", userID))
	defer span.End()

	profile, err := t.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return entity.NewUserPreferenceProfile(userID), nil
	}
	return profile, nil
}

// Record 记录一次偏好信号并持久化更新后的画像
func (t *Tracker) Record(ctx context.Context, userID string, signal Signal, vector []float32) error {
	ctx, span := tracer.Start(ctx, "preference.Record")
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("signal", string(signal)),
	)
	defer span.End()

	if userID == "" || len(vector) == 0 {
		return nil
	}

	lock := t.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	profile, err := t.repo.Get(ctx, userID)
	if err != nil {
		metrics.PreferenceUpdateTotal.WithLabelValues(string(signal), "error").Inc()
		return err
	}
	if profile == nil {
		profile = entity.NewUserPreferenceProfile(userID)
	}

	profile.Vector = Apply(profile.Vector, vector, t.learningRate, signal.Strength())
	profile.InteractionCount++
	profile.UpdatedAt = time.Now()

	if err := t.repo.Save(ctx, profile); err != nil {
		metrics.PreferenceUpdateTotal.WithLabelValues(string(signal), "error").Inc()
		return err
	}

	metrics.PreferenceUpdateTotal.WithLabelValues(string(signal), "success").Inc()
	logger.Debug(ctx, "preference profile updated",
		"user_id", userID,
		"signal", string(signal),
		"interaction_count", profile.InteractionCount,
	)
	return nil
}

// RecordAsync 异步记录偏好信号（失败只记日志，不影响主流程）
func (t *Tracker) RecordAsync(userID string, signal Signal, vector []float32) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := t.Record(ctx, userID, signal, vector); err != nil {
			logger.Warn(ctx, "async preference update failed",
				"user_id", userID,
				"signal", string(signal),
				"error", err.Error(),
			)
		}
	}()
}
