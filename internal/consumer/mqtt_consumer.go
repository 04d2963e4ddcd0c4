package consumer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"room-monitor/internal/broadcaster"
	"room-monitor/internal/config"
	"room-monitor/internal/dedup"
	"room-monitor/internal/domain"
	"room-monitor/internal/mqtt"
	"room-monitor/internal/repository"

	"go.uber.org/zap"
)

// Reconciler 命令对账接口
// 执行器反馈到达时在设备锁内结清在途命令并持久化权威状态，
// 与命令入口的乐观写串行化：同一轮对账中反馈写永远后落
type Reconciler interface {
	Reconcile(ctx context.Context, device domain.Device, isOn bool) error
}

// MQTTConsumer 遥测/反馈消息消费者（摄取路由）
// 处理链：去重窗口 → 幂等入库 → 实时缓存 → 推送扇出；
// 任何一步失败都只影响当前这条消息，不中断订阅流
type MQTTConsumer struct {
	cfg         *config.Config
	mqttClient  *mqtt.Client
	window      *dedup.Window
	samples     repository.SampleRepository
	cache       *repository.RealtimeCache
	broadcaster *broadcaster.Broadcaster
	reconciler  Reconciler
	logger      *zap.Logger
}

// NewMQTTConsumer 创建消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient *mqtt.Client,
	window *dedup.Window,
	samples repository.SampleRepository,
	cache *repository.RealtimeCache,
	bcast *broadcaster.Broadcaster,
	reconciler Reconciler,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		cfg:         cfg,
		mqttClient:  mqttClient,
		window:      window,
		samples:     samples,
		cache:       cache,
		broadcaster: bcast,
		reconciler:  reconciler,
		logger:      logger,
	}
}

// Start 启动消费者
func (c *MQTTConsumer) Start(ctx context.Context) error {
	qos := c.cfg.MQTT.QoS

	// 订阅遥测主题
	if err := c.mqttClient.Subscribe(c.cfg.Monitor.Topics.Telemetry, qos, c.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to telemetry topic: %w", err)
	}

	// 订阅执行器反馈主题（按设备命名空间通配）
	feedbackTopic := c.cfg.Monitor.Topics.FeedbackPrefix + "+"
	if err := c.mqttClient.Subscribe(feedbackTopic, qos, c.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to feedback topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("telemetry_topic", c.cfg.Monitor.Topics.Telemetry),
		zap.String("feedback_topic", feedbackTopic),
	)
	return nil
}

// Stop 停止消费者
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	topics := []string{
		c.cfg.Monitor.Topics.Telemetry,
		c.cfg.Monitor.Topics.FeedbackPrefix + "+",
	}
	if err := c.mqttClient.Unsubscribe(topics...); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// HandleMessage 处理一条总线消息
// 解析失败、存储失败均就地消化为日志，从不向订阅回调抛错中断
func (c *MQTTConsumer) HandleMessage(topic string, payload []byte) error {
	switch {
	case topic == c.cfg.Monitor.Topics.Telemetry:
		c.handleTelemetry(payload)
	case strings.HasPrefix(topic, c.cfg.Monitor.Topics.FeedbackPrefix):
		c.handleFeedback(topic, payload)
	default:
		c.logger.Debug("Ignoring message on unexpected topic", zap.String("topic", topic))
	}
	return nil
}

// handleTelemetry 处理传感器遥测
func (c *MQTTConsumer) handleTelemetry(payload []byte) {
	// 原始报文字节即去重签名；窗口内同签名直接丢弃
	signature := string(payload)
	if c.window.ShouldSuppress(signature, time.Now()) {
		c.logger.Debug("Duplicate telemetry within dedup window, suppressed")
		return
	}

	reading, err := parseTelemetry(payload)
	if err != nil {
		c.logger.Warn("Malformed telemetry payload dropped",
			zap.ByteString("payload", payload),
			zap.Error(err),
		)
		return
	}

	ctx := context.Background()
	sample := &domain.SensorSample{
		Temperature: reading.temperature,
		Humidity:    reading.humidity,
		Illuminance: reading.illuminance,
		// 时间戳取秒精度：同秒的重复投递落在同一唯一元组上，
		// 存储层幂等才真正接得住去重窗口的漏网（重启、背靠背竞争）
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}

	stored, err := c.samples.Insert(ctx, sample)
	if err == repository.ErrSampleExists {
		// 存储层幂等命中：去重窗口漏掉的重复投递，不再重复广播
		c.logger.Debug("Duplicate sensor sample ignored by storage")
		return
	}
	if err != nil {
		// 采样数据允许有损：写失败只意味着这条读数不进历史
		c.logger.Error("Failed to persist sensor sample", zap.Error(err))
		return
	}

	if c.cache != nil {
		if err := c.cache.SetLatestSample(ctx, stored); err != nil {
			c.logger.Warn("Failed to update realtime cache", zap.Error(err))
		}
	}

	c.broadcaster.Publish(domain.NewSensorEvent(stored))
}

// handleFeedback 处理执行器状态反馈
// 反馈是权威值：无论状态有没有变化都广播，
// 让在途乐观命令的观察者总能收到最终结论
func (c *MQTTConsumer) handleFeedback(topic string, payload []byte) {
	name := strings.TrimPrefix(topic, c.cfg.Monitor.Topics.FeedbackPrefix)
	device, ok := domain.ParseDevice(name)
	if !ok {
		c.logger.Warn("Feedback for unknown device dropped", zap.String("topic", topic))
		return
	}

	isOn, err := parseFeedback(payload)
	if err != nil {
		c.logger.Warn("Malformed feedback payload dropped",
			zap.String("device", name),
			zap.ByteString("payload", payload),
			zap.Error(err),
		)
		return
	}

	// 结清与落库都在协调器的设备锁内完成，和乐观写串行化；
	// 写失败不拦广播：前端看到的实时值优先于历史一致性
	if err := c.reconciler.Reconcile(context.Background(), device, isOn); err != nil {
		c.logger.Error("Failed to reconcile device feedback",
			zap.String("device", name),
			zap.Error(err),
		)
	}

	c.broadcaster.Publish(domain.NewDeviceUpdateEvent(device, isOn))
}
