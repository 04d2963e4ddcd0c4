package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"room-monitor/internal/domain"
	"room-monitor/internal/repository"

	"go.uber.org/zap"
)

// CommandIssuer 命令受理接口（由命令协调器实现）
type CommandIssuer interface {
	Issue(ctx context.Context, deviceName string, requestedOn bool, actor string) (*domain.DeviceState, error)
}

// DeviceHandler 设备状态与控制接口
type DeviceHandler struct {
	devices repository.DeviceRepository
	issuer  CommandIssuer
	logger  *zap.Logger
}

// NewDeviceHandler 创建设备处理器
func NewDeviceHandler(devices repository.DeviceRepository, issuer CommandIssuer, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{devices: devices, issuer: issuer, logger: logger}
}

// GetDevices 处理 GET /api/devices
func (h *DeviceHandler) GetDevices(w http.ResponseWriter, r *http.Request) {
	states, err := h.devices.GetStates(r.Context())
	if err != nil {
		h.logger.Error("Failed to load device states", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	mapping := make(map[string]int, len(states))
	for device, isOn := range states {
		state := 0
		if isOn {
			state = 1
		}
		mapping[string(device)] = state
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": mapping})
}

// controlRequest 控制请求体
type controlRequest struct {
	Device string `json:"device"`
	Action string `json:"action"`
}

// Control 处理 POST /api/control
// 同步返回受理结果；冲突/未知设备/总线断开都作为明确拒绝原因返回
func (h *DeviceHandler) Control(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Device == "" {
		writeError(w, http.StatusBadRequest, "Missing device")
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, "Missing action")
		return
	}

	requestedOn, ok := parseAction(req.Action)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid action")
		return
	}

	state, err := h.issuer.Issue(r.Context(), req.Device, requestedOn, "USER")
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownDevice):
			writeError(w, http.StatusBadRequest, "Invalid device")
		case errors.Is(err, domain.ErrCommandInFlight):
			writeError(w, http.StatusConflict, "Command already in flight")
		case errors.Is(err, domain.ErrBusUnavailable):
			writeError(w, http.StatusServiceUnavailable, "MQTT not connected")
		default:
			h.logger.Error("Failed to issue command", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Command sent",
		"device":  string(state.Device),
		"state":   state.StateValue(),
	})
}

// parseAction 解析动作 token（on/1/true 与 off/0/false）
func parseAction(action string) (bool, bool) {
	switch strings.ToLower(action) {
	case "on", "1", "true":
		return true, true
	case "off", "0", "false":
		return false, true
	}
	return false, false
}
