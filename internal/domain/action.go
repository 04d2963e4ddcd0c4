package domain

import "time"

// 操作动作取值
const (
	ActionOn  = "ON"
	ActionOff = "OFF"
)

// ActionLogEntry 操作审计日志（对应 action_log 表，只追加）
// 写入为尽力而为：日志失败不阻塞命令本身
type ActionLogEntry struct {
	ID        int64     `db:"id"`
	Actor     string    `db:"actor"`
	Device    Device    `db:"device_name"`
	Action    string    `db:"action"` // ON/OFF
	Timestamp time.Time `db:"created_at"`
}
