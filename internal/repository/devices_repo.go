package repository

import (
	"context"

	"room-monitor/internal/domain"
)

// DeviceRepository 设备状态Repository接口
// 每个已知设备至多一行，首次写入时懒创建（upsert）
type DeviceRepository interface {
	// SetState 写入设备状态（存在则更新，不存在则插入）
	SetState(ctx context.Context, device domain.Device, isOn bool) error

	// GetStates 获取全部已知设备状态，缺行的设备默认 off
	GetStates(ctx context.Context) (map[domain.Device]bool, error)
}
