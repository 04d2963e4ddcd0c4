package repository

import (
	"context"
	"errors"

	"room-monitor/internal/domain"
)

// ErrSampleExists 采样元组已入库（幂等命中，非故障）
var ErrSampleExists = errors.New("sensor sample already recorded")

// SampleFilters 历史采样查询过滤器
// Field 限定搜索列：time/temperature/humidity/illuminance，空值为全列匹配
type SampleFilters struct {
	Search string
	Field  string
}

// SampleRepository 传感器采样Repository接口
// Insert 在存储层保证 (时间戳, 温度, 湿度, 光照) 元组幂等，
// 重复插入返回 ErrSampleExists，这是去重窗口之外的持久兜底
type SampleRepository interface {
	// Insert 写入采样并分配ID，重复元组返回 ErrSampleExists
	Insert(ctx context.Context, sample *domain.SensorSample) (*domain.SensorSample, error)

	// Latest 获取最新一条采样，无数据时返回 (nil, nil)
	Latest(ctx context.Context) (*domain.SensorSample, error)

	// List 分页查询历史采样（支持过滤），返回 (记录, 总数, 错误)
	List(ctx context.Context, filters SampleFilters, page, size int) ([]*domain.SensorSample, int, error)
}
