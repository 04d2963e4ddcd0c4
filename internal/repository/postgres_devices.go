package repository

import (
	"context"
	"database/sql"
	"fmt"

	"room-monitor/internal/domain"

	"go.uber.org/zap"
)

// PostgresDeviceRepository 设备状态Repository实现
type PostgresDeviceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresDeviceRepository 创建设备状态Repository
func NewPostgresDeviceRepository(db *sql.DB, logger *zap.Logger) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: db, logger: logger}
}

// 确保实现了接口
var _ DeviceRepository = (*PostgresDeviceRepository)(nil)

// SetState 写入设备状态（upsert）
func (r *PostgresDeviceRepository) SetState(ctx context.Context, device domain.Device, isOn bool) error {
	query := `
		INSERT INTO device_states (device_name, is_on, last_updated)
		VALUES ($1, $2, NOW())
		ON CONFLICT (device_name)
		DO UPDATE SET is_on = EXCLUDED.is_on,
		              last_updated = EXCLUDED.last_updated
	`

	if _, err := r.db.ExecContext(ctx, query, string(device), isOn); err != nil {
		return fmt.Errorf("failed to set device state: %w", err)
	}

	return nil
}

// GetStates 获取全部已知设备状态
// 先用默认 off 填满已知集合，再覆盖库中已有行；库里出现的未知名称跳过
func (r *PostgresDeviceRepository) GetStates(ctx context.Context) (map[domain.Device]bool, error) {
	states := make(map[domain.Device]bool, len(domain.AllDevices()))
	for _, d := range domain.AllDevices() {
		states[d] = false
	}

	rows, err := r.db.QueryContext(ctx, `SELECT device_name, is_on FROM device_states`)
	if err != nil {
		return nil, fmt.Errorf("failed to query device states: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var isOn bool
		if err := rows.Scan(&name, &isOn); err != nil {
			return nil, fmt.Errorf("failed to scan device state: %w", err)
		}
		device, ok := domain.ParseDevice(name)
		if !ok {
			r.logger.Warn("Unknown device name in device_states", zap.String("device", name))
			continue
		}
		states[device] = isOn
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate device states: %w", err)
	}

	return states, nil
}
