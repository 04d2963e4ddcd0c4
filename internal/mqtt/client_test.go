package mqtt

import (
	"strings"
	"testing"

	"room-monitor/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientOptions(t *testing.T) {
	cfg := &config.MQTTConfig{
		Broker:   "tcp://broker:1883",
		ClientID: "room-monitor",
		Username: "monitor",
		Password: "secret",
	}

	opts := newClientOptions(cfg)

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "broker:1883", opts.Servers[0].Host)
	assert.Equal(t, "monitor", opts.Username)
	assert.Equal(t, "secret", opts.Password)

	// ClientID 带随机后缀
	assert.True(t, strings.HasPrefix(opts.ClientID, "room-monitor-"))
	assert.Greater(t, len(opts.ClientID), len("room-monitor-"))

	assert.True(t, opts.AutoReconnect)
	assert.True(t, opts.CleanSession)
	// 处理器必须在独立goroutine执行：入库等慢操作不得卡住分发循环
	assert.False(t, opts.Order)
}

func TestNewClientOptions_RandomizedClientID(t *testing.T) {
	cfg := &config.MQTTConfig{Broker: "tcp://broker:1883", ClientID: "room-monitor"}

	first := newClientOptions(cfg)
	second := newClientOptions(cfg)

	assert.NotEqual(t, first.ClientID, second.ClientID)
}
