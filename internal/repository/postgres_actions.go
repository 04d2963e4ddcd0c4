package repository

import (
	"context"
	"database/sql"
	"fmt"

	"room-monitor/internal/domain"

	"go.uber.org/zap"
)

// PostgresActionLogRepository 操作审计日志Repository实现
type PostgresActionLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresActionLogRepository 创建操作日志Repository
func NewPostgresActionLogRepository(db *sql.DB, logger *zap.Logger) *PostgresActionLogRepository {
	return &PostgresActionLogRepository{db: db, logger: logger}
}

// 确保实现了接口
var _ ActionLogRepository = (*PostgresActionLogRepository)(nil)

// Append 追加一条操作记录
func (r *PostgresActionLogRepository) Append(ctx context.Context, entry *domain.ActionLogEntry) error {
	query := `
		INSERT INTO action_log (actor, device_name, action, created_at)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.db.ExecContext(ctx, query,
		entry.Actor,
		string(entry.Device),
		entry.Action,
		entry.Timestamp,
	); err != nil {
		return fmt.Errorf("failed to append action log: %w", err)
	}

	return nil
}

// List 分页查询操作记录
func (r *PostgresActionLogRepository) List(ctx context.Context, page, size int) ([]*domain.ActionLogEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 200 {
		size = 200
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM action_log`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count action log: %w", err)
	}

	query := `
		SELECT id, actor, device_name, action, created_at
		FROM action_log
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, size, (page-1)*size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query action log: %w", err)
	}
	defer rows.Close()

	var entries []*domain.ActionLogEntry
	for rows.Next() {
		entry := &domain.ActionLogEntry{}
		var device string
		if err := rows.Scan(&entry.ID, &entry.Actor, &device, &entry.Action, &entry.Timestamp); err != nil {
			return nil, 0, fmt.Errorf("failed to scan action log entry: %w", err)
		}
		entry.Device = domain.Device(device)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate action log: %w", err)
	}

	return entries, total, nil
}
