package broadcaster

import (
	"sync"
	"time"

	"room-monitor/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Connection 一个已接入的前端推送连接
// 由 Broadcaster 独占管理：Register 创建，Unregister 销毁，从不落库
type Connection struct {
	ID     string
	Events chan domain.Event

	done     chan struct{}
	stopOnce sync.Once
}

// Done 连接关闭通知
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// enqueue 非阻塞入队
// 队列满时丢弃该连接最旧的一条未投递事件再入队：
// 慢消费者只降级自己的完整性，绝不反压采集链路
func (c *Connection) enqueue(event domain.Event) (dropped bool) {
	select {
	case c.Events <- event:
		return false
	default:
	}

	select {
	case <-c.Events:
		dropped = true
	default:
	}

	select {
	case c.Events <- event:
	default:
		// 并发心跳恰好又填满队列，放弃本条
		dropped = true
	}
	return dropped
}

// Broadcaster 推送事件扇出器（连接注册表的属主）
// Publish 之间通过互斥串行化，保证所有连接观察到同一全局事件顺序
type Broadcaster struct {
	queueSize int
	heartbeat time.Duration
	logger    *zap.Logger

	mu    sync.Mutex
	conns map[string]*Connection
}

// NewBroadcaster 创建扇出器
func NewBroadcaster(queueSize int, heartbeat time.Duration, logger *zap.Logger) *Broadcaster {
	if queueSize < 1 {
		queueSize = 16
	}
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Broadcaster{
		queueSize: queueSize,
		heartbeat: heartbeat,
		logger:    logger,
		conns:     make(map[string]*Connection),
	}
}

// Register 接入新连接
// snapshot 在连接进入注册表之前入队，保证快照先于任何后续 Publish 到达；
// 同时启动该连接的心跳定时器
func (b *Broadcaster) Register(snapshot ...domain.Event) *Connection {
	conn := &Connection{
		ID:     uuid.NewString(),
		Events: make(chan domain.Event, b.queueSize),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	for _, event := range snapshot {
		conn.enqueue(event)
	}
	b.conns[conn.ID] = conn
	count := len(b.conns)
	b.mu.Unlock()

	go b.heartbeatLoop(conn)

	b.logger.Info("Viewer connection attached",
		zap.String("connection_id", conn.ID),
		zap.Int("connections", count),
	)
	return conn
}

// Unregister 移除连接并停止其心跳，重复调用为无害操作
func (b *Broadcaster) Unregister(id string) {
	b.mu.Lock()
	conn, ok := b.conns[id]
	if ok {
		delete(b.conns, id)
	}
	count := len(b.conns)
	b.mu.Unlock()

	if !ok {
		return
	}

	conn.stopOnce.Do(func() { close(conn.done) })

	b.logger.Info("Viewer connection detached",
		zap.String("connection_id", id),
		zap.Int("connections", count),
	)
}

// Publish 向所有在线连接投递事件
// 整个投递过程持有注册表锁：并发 Publish 不会交错写入同一连接，
// attach/detach 与投递互斥（入队是非阻塞的，锁内工作量有界）
func (b *Broadcaster) Publish(event domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, conn := range b.conns {
		if conn.enqueue(event) {
			b.logger.Warn("Slow viewer, dropped oldest event",
				zap.String("connection_id", conn.ID),
				zap.String("event_type", event.EventType()),
			)
		}
	}
}

// Close 注销全部连接
// 服务停机时先于 HTTP Shutdown 调用：Shutdown 不会取消请求上下文，
// 推送处理器要靠 done 关闭才能退出，连接不摘会白等满整个停机超时
func (b *Broadcaster) Close() {
	b.mu.Lock()
	conns := b.conns
	b.conns = make(map[string]*Connection)
	b.mu.Unlock()

	for _, conn := range conns {
		conn.stopOnce.Do(func() { close(conn.done) })
	}

	if len(conns) > 0 {
		b.logger.Info("All viewer connections detached", zap.Int("connections", len(conns)))
	}
}

// Connections 当前在线连接数
func (b *Broadcaster) Connections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// heartbeatLoop 按固定间隔向单个连接发送心跳
// 独立于 Publish 活动，传输层可据此发现僵死链路并重连；
// 连接注销后定时器随 done 关闭退出，注销后到期的心跳是空操作
func (b *Broadcaster) heartbeatLoop(conn *Connection) {
	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-conn.done:
			return
		case now := <-ticker.C:
			conn.enqueue(domain.NewHeartbeatEvent(now))
		}
	}
}
