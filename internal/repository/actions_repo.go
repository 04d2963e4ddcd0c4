package repository

import (
	"context"

	"room-monitor/internal/domain"
)

// ActionLogRepository 操作审计日志Repository接口（只追加）
type ActionLogRepository interface {
	// Append 追加一条操作记录
	Append(ctx context.Context, entry *domain.ActionLogEntry) error

	// List 分页查询操作记录（按时间倒序），返回 (记录, 总数, 错误)
	List(ctx context.Context, page, size int) ([]*domain.ActionLogEntry, int, error)
}
