package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterRoutes 注册全部路由
func (r *Router) RegisterRoutes(
	stream *StreamHandler,
	sensors *SensorHandler,
	devices *DeviceHandler,
	actions *ActionHandler,
	health *HealthHandler,
) {
	r.handle("/stream", http.MethodGet, stream.Stream)

	r.handle("/api/sensors", http.MethodGet, sensors.GetSensors)
	r.handle("/api/sensors/export", http.MethodGet, sensors.Export)

	r.handle("/api/devices", http.MethodGet, devices.GetDevices)
	r.handle("/api/control", http.MethodPost, devices.Control)

	r.handle("/api/actions", http.MethodGet, actions.GetActions)

	r.handle("/api/health", http.MethodGet, health.Health)
}

func (r *Router) handle(pattern string, method string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	})
}
