package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"room-monitor/internal/broadcaster"
	"room-monitor/internal/domain"
	"room-monitor/internal/repository"

	"go.uber.org/zap"
)

// BusPublisher 命令下发所需的总线能力
type BusPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	IsConnected() bool
}

// deviceEntry 单个设备的命令状态（Idle / CommandInFlight）
// 每设备独立互斥：不同设备的命令互不阻塞。
// seq 每次布防超时递增；已触发但尚未拿到锁的旧定时器回调据此识别自己已过期
type deviceEntry struct {
	mu       sync.Mutex
	inFlight bool
	timer    *time.Timer
	seq      uint64
}

// CommandCoordinator 设备命令协调器
// 接受命令 → 下发总线 → 乐观写库 → 审计 → 立即广播；
// 执行器反馈或超时将设备转回 Idle。
// 超时只释放设备（保活控制面），不回滚乐观值，修正交给后续反馈
type CommandCoordinator struct {
	bus           BusPublisher
	devices       repository.DeviceRepository
	actions       repository.ActionLogRepository
	broadcaster   *broadcaster.Broadcaster
	commandPrefix string
	qos           byte
	timeout       time.Duration
	logger        *zap.Logger

	entries map[domain.Device]*deviceEntry
}

// NewCommandCoordinator 创建命令协调器
func NewCommandCoordinator(
	bus BusPublisher,
	devices repository.DeviceRepository,
	actions repository.ActionLogRepository,
	bcast *broadcaster.Broadcaster,
	commandPrefix string,
	qos byte,
	timeout time.Duration,
	logger *zap.Logger,
) *CommandCoordinator {
	entries := make(map[domain.Device]*deviceEntry, len(domain.AllDevices()))
	for _, d := range domain.AllDevices() {
		entries[d] = &deviceEntry{}
	}
	return &CommandCoordinator{
		bus:           bus,
		devices:       devices,
		actions:       actions,
		broadcaster:   bcast,
		commandPrefix: commandPrefix,
		qos:           qos,
		timeout:       timeout,
		logger:        logger,
		entries:       entries,
	}
}

// Issue 受理一条设备命令
// 拒绝条件：未知设备 / 该设备已有在途命令 / 总线不可用。
// 受理后立即广播乐观状态，发起者无需等待物理执行器
func (c *CommandCoordinator) Issue(ctx context.Context, deviceName string, requestedOn bool, actor string) (*domain.DeviceState, error) {
	device, ok := domain.ParseDevice(deviceName)
	if !ok {
		return nil, domain.ErrUnknownDevice
	}

	entry := c.entries[device]
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.inFlight {
		return nil, domain.ErrCommandInFlight
	}
	if !c.bus.IsConnected() {
		return nil, domain.ErrBusUnavailable
	}

	payload := "0"
	action := domain.ActionOff
	if requestedOn {
		payload = "1"
		action = domain.ActionOn
	}

	topic := c.commandPrefix + string(device)
	if err := c.bus.Publish(topic, c.qos, false, []byte(payload)); err != nil {
		c.logger.Error("Failed to publish device command",
			zap.String("device", deviceName),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrBusUnavailable, err)
	}

	entry.inFlight = true
	entry.seq++
	seq := entry.seq
	entry.timer = time.AfterFunc(c.timeout, func() { c.expire(device, seq) })

	now := time.Now().UTC()

	// 乐观写：失败只记日志，实时视图仍以广播为准
	if err := c.devices.SetState(ctx, device, requestedOn); err != nil {
		c.logger.Error("Failed to persist optimistic device state",
			zap.String("device", deviceName),
			zap.Error(err),
		)
	}

	// 审计为尽力而为，失败不阻塞命令
	logEntry := &domain.ActionLogEntry{
		Actor:     actor,
		Device:    device,
		Action:    action,
		Timestamp: now,
	}
	if err := c.actions.Append(ctx, logEntry); err != nil {
		c.logger.Warn("Failed to append action log", zap.Error(err))
	}

	c.broadcaster.Publish(domain.NewDeviceUpdateEvent(device, requestedOn))

	c.logger.Info("Device command issued",
		zap.String("device", deviceName),
		zap.String("action", action),
		zap.String("actor", actor),
	)

	return &domain.DeviceState{Device: device, IsOn: requestedOn, LastUpdated: now}, nil
}

// Reconcile 执行器反馈到达：在设备锁内结清在途命令并持久化权威状态
// 命令的乐观写同样在该锁内完成，因此同一轮对账中反馈写永远后落，
// 不会被乐观值覆盖。对没有在途命令的设备是无害写入（反馈始终权威）
func (c *CommandCoordinator) Reconcile(ctx context.Context, device domain.Device, isOn bool) error {
	entry, ok := c.entries[device]
	if !ok {
		return domain.ErrUnknownDevice
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.timer != nil {
		entry.timer.Stop()
		entry.timer = nil
	}
	wasInFlight := entry.inFlight
	entry.inFlight = false

	if wasInFlight {
		c.logger.Debug("In-flight command reconciled by feedback",
			zap.String("device", string(device)),
		)
	}

	if err := c.devices.SetState(ctx, device, isOn); err != nil {
		return fmt.Errorf("failed to persist feedback state: %w", err)
	}
	return nil
}

// expire 超时强制回到 Idle，放行后续命令
// seq 不匹配说明该超时所属的命令早已被反馈结清、设备可能已受理新命令，
// 迟到的回调直接放弃
func (c *CommandCoordinator) expire(device domain.Device, seq uint64) {
	entry := c.entries[device]

	entry.mu.Lock()
	if entry.seq != seq {
		entry.mu.Unlock()
		return
	}
	wasInFlight := entry.inFlight
	entry.inFlight = false
	entry.timer = nil
	entry.mu.Unlock()

	if wasInFlight {
		c.logger.Warn("No actuator feedback before timeout, releasing device",
			zap.String("device", string(device)),
			zap.Duration("timeout", c.timeout),
		)
	}
}

// InFlight 查询设备是否有在途命令
func (c *CommandCoordinator) InFlight(device domain.Device) bool {
	entry, ok := c.entries[device]
	if !ok {
		return false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.inFlight
}
