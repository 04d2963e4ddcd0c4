package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"room-monitor/internal/broadcaster"
	"room-monitor/internal/domain"
	"room-monitor/internal/repository"

	"go.uber.org/zap"
)

// StreamHandler 实时推送通道（SSE）
// 新连接先收到快照（最近采样 + 全量设备状态 + 当前链路状态），
// 之后按发布顺序接收实时事件
type StreamHandler struct {
	broadcaster  *broadcaster.Broadcaster
	samples      repository.SampleRepository
	devices      repository.DeviceRepository
	cache        *repository.RealtimeCache
	busConnected func() bool
	logger       *zap.Logger
}

// NewStreamHandler 创建推送处理器
func NewStreamHandler(
	bcast *broadcaster.Broadcaster,
	samples repository.SampleRepository,
	devices repository.DeviceRepository,
	cache *repository.RealtimeCache,
	busConnected func() bool,
	logger *zap.Logger,
) *StreamHandler {
	return &StreamHandler{
		broadcaster:  bcast,
		samples:      samples,
		devices:      devices,
		cache:        cache,
		busConnected: busConnected,
		logger:       logger,
	}
}

// Stream 处理 GET /stream
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	conn := h.broadcaster.Register(h.snapshot(r.Context())...)
	defer h.broadcaster.Unregister(conn.ID)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-conn.Done():
			return
		case event := <-conn.Events:
			if err := writeSSE(w, event); err != nil {
				// 写失败视为连接已死，交给 defer 注销
				return
			}
			flusher.Flush()
		}
	}
}

// snapshot 构建连接建立时的初始事件序列
// 任何一项取不到都降级跳过（设备状态退化为全 off），连接本身照常建立
func (h *StreamHandler) snapshot(ctx context.Context) []domain.Event {
	var events []domain.Event

	if sample := h.latestSample(ctx); sample != nil {
		events = append(events, domain.NewSensorEvent(sample))
	}

	states, err := h.devices.GetStates(ctx)
	if err != nil {
		h.logger.Warn("Failed to load device states for snapshot", zap.Error(err))
		states = nil
	}
	events = append(events, domain.NewInitialStateEvent(states))

	events = append(events, domain.NewLinkEvent(h.busConnected()))

	return events
}

// latestSample 取最近一条采样：先查缓存，未命中回落数据库
func (h *StreamHandler) latestSample(ctx context.Context) *domain.SensorSample {
	if h.cache != nil {
		if sample, err := h.cache.GetLatestSample(ctx); err == nil && sample != nil {
			return sample
		} else if err != nil {
			h.logger.Warn("Realtime cache lookup failed", zap.Error(err))
		}
	}

	sample, err := h.samples.Latest(ctx)
	if err != nil {
		h.logger.Warn("Failed to load latest sample for snapshot", zap.Error(err))
		return nil
	}
	return sample
}

func writeSSE(w http.ResponseWriter, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n\n"))
	return err
}
