package domain

import "errors"

// 命令入口的同步拒绝原因（对应命令 API 的错误码）
var (
	// ErrUnknownDevice 设备不在已知集合内
	ErrUnknownDevice = errors.New("unknown device")

	// ErrCommandInFlight 该设备已有在途命令（每设备同一时刻至多一条）
	ErrCommandInFlight = errors.New("command already in flight")

	// ErrBusUnavailable 总线断开，命令无法下发
	ErrBusUnavailable = errors.New("bus unavailable")
)
