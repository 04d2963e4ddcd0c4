package httpapi

import (
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HealthHandler 健康检查接口
type HealthHandler struct {
	db           *sql.DB
	busConnected func() bool
	logger       *zap.Logger
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(db *sql.DB, busConnected func() bool, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, busConnected: busConnected, logger: logger}
}

// Health 处理 GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	database := "connected"
	if h.db == nil || h.db.PingContext(r.Context()) != nil {
		database = "disconnected"
	}

	bus := "disconnected"
	if h.busConnected() {
		bus = "connected"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  database,
		"mqtt":      bus,
	})
}
