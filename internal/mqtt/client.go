package mqtt

import (
	"fmt"
	"strings"
	"sync"

	"room-monitor/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageHandler 消息处理函数类型
type MessageHandler func(topic string, payload []byte) error

// StatusHandler 链路状态回调（connected=true 表示连接/重连成功）
type StatusHandler func(connected bool)

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client MQTT客户端封装
// 记录全部订阅，自动重连成功后统一重订阅；
// 链路上下线通过 StatusHandler 同步上报，供推送层广播 link 事件。
type Client struct {
	client   mqtt.Client
	config   *config.MQTTConfig
	logger   *zap.Logger
	onStatus StatusHandler

	mu   sync.Mutex
	subs map[string]subscription
}

// NewClient 创建MQTT客户端并完成首次连接
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger, onStatus StatusHandler) (*Client, error) {
	c := &Client{
		config:   cfg,
		logger:   logger,
		onStatus: onStatus,
		subs:     make(map[string]subscription),
	}

	opts := newClientOptions(cfg)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.resubscribe()
		if c.onStatus != nil {
			c.onStatus(true)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logger.Warn("MQTT connection lost", zap.Error(err))
		if c.onStatus != nil {
			c.onStatus(false)
		}
	})

	c.client = mqtt.NewClient(opts)

	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return c, nil
}

// newClientOptions 构建连接参数
// Order=false：消息处理器在独立goroutine执行，
// 入库等慢操作不会卡住 paho 的分发循环
func newClientOptions(cfg *config.MQTTConfig) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	// ClientID 追加随机后缀，避免多实例/重启时互踢
	opts.SetClientID(cfg.ClientID + "-" + strings.Split(uuid.NewString(), "-")[0])

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(false)

	return opts
}

// Subscribe 订阅主题，连接断开重建后会自动重订阅
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	return c.subscribe(topic, qos, handler)
}

func (c *Client) subscribe(topic string, qos byte, handler MessageHandler) error {
	token := c.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			// 记录错误，但不中断订阅流
			c.logger.Warn("MQTT message handler error",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}

	return nil
}

// resubscribe 重连成功后恢复全部订阅
func (c *Client) resubscribe() {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, sub := range c.subs {
		subs[topic] = sub
	}
	c.mu.Unlock()

	for topic, sub := range subs {
		if err := c.subscribe(topic, sub.qos, sub.handler); err != nil {
			c.logger.Error("Resubscribe failed", zap.String("topic", topic), zap.Error(err))
		}
	}
}

// Publish 发布消息
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}

	return nil
}

// Unsubscribe 取消订阅
func (c *Client) Unsubscribe(topics ...string) error {
	c.mu.Lock()
	for _, topic := range topics {
		delete(c.subs, topic)
	}
	c.mu.Unlock()

	token := c.client.Unsubscribe(topics...)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe: %w", token.Error())
	}

	return nil
}

// Disconnect 断开连接
func (c *Client) Disconnect() {
	c.client.Disconnect(250) // 250ms等待时间
}

// IsConnected 检查连接状态
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}
