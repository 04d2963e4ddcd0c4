package httpapi

import (
	"net/http"
	"time"

	"room-monitor/internal/repository"

	"go.uber.org/zap"
)

// ActionHandler 操作审计查询接口
type ActionHandler struct {
	actions repository.ActionLogRepository
	logger  *zap.Logger
}

// NewActionHandler 创建审计查询处理器
func NewActionHandler(actions repository.ActionLogRepository, logger *zap.Logger) *ActionHandler {
	return &ActionHandler{actions: actions, logger: logger}
}

// actionRow 审计记录的 API 表示
type actionRow struct {
	ID        int64  `json:"id"`
	Actor     string `json:"actor"`
	Device    string `json:"device"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// GetActions 处理 GET /api/actions
func (h *ActionHandler) GetActions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, size := parsePaging(query.Get("page"), query.Get("limit"))

	entries, total, err := h.actions.List(r.Context(), page, size)
	if err != nil {
		h.logger.Error("Failed to list action log", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	rows := make([]actionRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, actionRow{
			ID:        e.ID,
			Actor:     e.Actor,
			Device:    string(e.Device),
			Action:    e.Action,
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"data":       rows,
		"pagination": NewPagination(page, size, total),
	})
}
