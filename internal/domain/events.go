package domain

import "time"

// 推送事件类型（/stream 通道的 type 判别字段）
const (
	EventTypeSensor       = "sensor"
	EventTypeDeviceUpdate = "device_update"
	EventTypeInitialState = "initial_state"
	EventTypeLink         = "link"
	EventTypeHeartbeat    = "heartbeat"
)

// 总线链路状态
const (
	LinkConnected    = "connected"
	LinkDisconnected = "disconnected"
)

// Event 推送事件统一接口，实体为可直接 JSON 序列化的 payload
type Event interface {
	EventType() string
}

// SensorEvent 传感器实时事件
type SensorEvent struct {
	Type        string  `json:"type"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Illuminance float64 `json:"illuminance"`
	Timestamp   string  `json:"timestamp"`
}

// NewSensorEvent 由采样构造推送事件
func NewSensorEvent(s *SensorSample) SensorEvent {
	return SensorEvent{
		Type:        EventTypeSensor,
		Temperature: s.Temperature,
		Humidity:    s.Humidity,
		Illuminance: s.Illuminance,
		Timestamp:   s.Timestamp.UTC().Format(time.RFC3339),
	}
}

func (e SensorEvent) EventType() string { return e.Type }

// DeviceUpdateEvent 设备状态变更事件（乐观写与反馈确认共用）
type DeviceUpdateEvent struct {
	Type   string `json:"type"`
	Device Device `json:"device"`
	State  int    `json:"state"` // 0|1
}

// NewDeviceUpdateEvent 构造设备状态事件
func NewDeviceUpdateEvent(device Device, isOn bool) DeviceUpdateEvent {
	state := 0
	if isOn {
		state = 1
	}
	return DeviceUpdateEvent{Type: EventTypeDeviceUpdate, Device: device, State: state}
}

func (e DeviceUpdateEvent) EventType() string { return e.Type }

// InitialStateEvent 连接建立时的全量设备状态快照
type InitialStateEvent struct {
	Type   string         `json:"type"`
	States map[Device]int `json:"states"`
}

// NewInitialStateEvent 由状态映射构造快照事件，未知设备默认 off
func NewInitialStateEvent(states map[Device]bool) InitialStateEvent {
	out := make(map[Device]int, len(AllDevices()))
	for _, d := range AllDevices() {
		out[d] = 0
		if states[d] {
			out[d] = 1
		}
	}
	return InitialStateEvent{Type: EventTypeInitialState, States: out}
}

func (e InitialStateEvent) EventType() string { return e.Type }

// LinkEvent 总线链路状态事件（前端据此禁用/恢复控制面板）
type LinkEvent struct {
	Type   string `json:"type"`
	Status string `json:"status"` // connected|disconnected
}

// NewLinkEvent 构造链路状态事件
func NewLinkEvent(connected bool) LinkEvent {
	status := LinkDisconnected
	if connected {
		status = LinkConnected
	}
	return LinkEvent{Type: EventTypeLink, Status: status}
}

func (e LinkEvent) EventType() string { return e.Type }

// HeartbeatEvent 心跳事件，固定间隔发送，用于探测僵死连接
type HeartbeatEvent struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// NewHeartbeatEvent 构造心跳事件
func NewHeartbeatEvent(now time.Time) HeartbeatEvent {
	return HeartbeatEvent{Type: EventTypeHeartbeat, Timestamp: now.UTC().Format(time.RFC3339)}
}

func (e HeartbeatEvent) EventType() string { return e.Type }
