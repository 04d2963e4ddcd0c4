package domain

import "time"

// Device 受控设备标识（封闭集合，按名称寻址）
// 原硬件固件按 led/fan/spe 三个引脚接线，设备集合在编译期固定
type Device string

const (
	DeviceLED     Device = "led"
	DeviceFan     Device = "fan"
	DeviceSpeaker Device = "spe"
)

// AllDevices 返回全部已知设备（顺序固定，便于快照输出）
func AllDevices() []Device {
	return []Device{DeviceLED, DeviceFan, DeviceSpeaker}
}

// ParseDevice 按名称解析设备，未知名称返回 false
func ParseDevice(name string) (Device, bool) {
	switch Device(name) {
	case DeviceLED, DeviceFan, DeviceSpeaker:
		return Device(name), true
	}
	return "", false
}

// DeviceState 设备状态领域模型（对应 device_states 表，每设备一行）
type DeviceState struct {
	Device      Device    `db:"device_name"`
	IsOn        bool      `db:"is_on"`
	LastUpdated time.Time `db:"last_updated"`
}

// StateValue 状态的 0/1 表示（推送给前端时使用）
func (s DeviceState) StateValue() int {
	if s.IsOn {
		return 1
	}
	return 0
}
