// Package redis 提供 Redis 会话锁实现
package redis

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"event-discovery-api/pkg/metrics"
)

// SessionLock 会话级互斥锁
// 同一会话同一时刻只允许一个轮次在处理，后到者立即失败而非排队。
type SessionLock struct {
	client *Client
	ttl    time.Duration
}

// NewSessionLock 创建会话锁
func NewSessionLock(client *Client, ttl time.Duration) *SessionLock {
	return &SessionLock{client: client, ttl: ttl}
}

// lockKey 构建锁键
func lockKey(sessionID string) string {
	return "session:lock:" + sessionID
}

// TryAcquire 尝试获取会话锁，已被持有时返回 false（不阻塞等待）
// token 用于释放时校验持有者，防止误删他人的锁。
func (l *SessionLock) TryAcquire(ctx context.Context, sessionID, token string) (bool, error) {
	ctx, span := tracer.Start(ctx, "sessionlock.TryAcquire")
	span.SetAttributes(attribute.String("session.id", sessionID))
	defer span.End()

	ok, err := l.client.rdb.SetNX(ctx, lockKey(sessionID), token, l.ttl).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to acquire session lock: %w", err)
	}

	span.SetAttributes(attribute.Bool("lock.acquired", ok))
	if ok {
		metrics.ActiveSessions.Inc()
	}
	return ok, nil
}

// releaseScript 仅当持有者匹配时删除锁
var releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Release 释放会话锁
func (l *SessionLock) Release(ctx context.Context, sessionID, token string) error {
	ctx, span := tracer.Start(ctx, "sessionlock.Release")
	span.SetAttributes(attribute.String("session.id", sessionID))
	defer span.End()

	deleted, err := l.client.rdb.Eval(ctx, releaseScript, []string{lockKey(sessionID)}, token).Int64()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to release session lock: %w", err)
	}
	if deleted > 0 {
		metrics.ActiveSessions.Dec()
	}
	return nil
}
