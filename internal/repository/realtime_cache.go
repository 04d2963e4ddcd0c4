package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"room-monitor/internal/domain"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const latestSampleKey = "room-monitor:sensor:latest"

// RealtimeCache 实时数据缓存（Redis）
// 缓存最近一条采样，新连接建立时先查缓存再回落数据库，
// 避免每次 attach 都打一次库。缓存失败只记日志，不影响主流程。
type RealtimeCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRealtimeCache 创建实时缓存
func NewRealtimeCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RealtimeCache {
	return &RealtimeCache{client: client, ttl: ttl, logger: logger}
}

// SetLatestSample 写入最近采样
func (c *RealtimeCache) SetLatestSample(ctx context.Context, sample *domain.SensorSample) error {
	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}

	if err := c.client.Set(ctx, latestSampleKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache latest sample: %w", err)
	}

	return nil
}

// GetLatestSample 读取最近采样，缓存未命中返回 (nil, nil)
func (c *RealtimeCache) GetLatestSample(ctx context.Context) (*domain.SensorSample, error) {
	data, err := c.client.Get(ctx, latestSampleKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest sample cache: %w", err)
	}

	sample := &domain.SensorSample{}
	if err := json.Unmarshal(data, sample); err != nil {
		// 缓存内容损坏按未命中处理，等下一次写入覆盖
		c.logger.Warn("Corrupt latest sample cache entry", zap.Error(err))
		return nil, nil
	}

	return sample, nil
}
