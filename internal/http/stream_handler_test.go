package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"room-monitor/internal/broadcaster"
	"room-monitor/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupStream(t *testing.T, samples *fakeSampleStore, devices *fakeDeviceStates, busUp bool) (*StreamHandler, *broadcaster.Broadcaster) {
	t.Helper()

	bcast := broadcaster.NewBroadcaster(16, time.Hour, zap.NewNop())
	handler := NewStreamHandler(bcast, samples, devices, nil, func() bool { return busUp }, zap.NewNop())
	return handler, bcast
}

// serveStream 在独立goroutine跑 Stream，等 attach 完成后执行 publish，再断开连接
func serveStream(t *testing.T, handler *StreamHandler, bcast *broadcaster.Broadcaster, publish func()) []map[string]interface{} {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handler.Stream(rec, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return bcast.Connections() == 1 }, time.Second, 5*time.Millisecond)

	if publish != nil {
		publish()
	}

	// 给写循环一点时间把队列清空
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream handler did not exit on context cancel")
	}

	return parseSSE(t, rec.Body.String())
}

func parseSSE(t *testing.T, raw string) []map[string]interface{} {
	t.Helper()

	var events []map[string]interface{}
	for _, line := range strings.Split(raw, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		events = append(events, event)
	}
	return events
}

func TestStream_SnapshotSequence(t *testing.T) {
	samples := &fakeSampleStore{samples: []*domain.SensorSample{sampleAt(3, 23.5)}}
	devices := &fakeDeviceStates{states: map[domain.Device]bool{domain.DeviceLED: true}}
	handler, bcast := setupStream(t, samples, devices, true)

	events := serveStream(t, handler, bcast, nil)

	require.Len(t, events, 3)
	assert.Equal(t, "sensor", events[0]["type"])
	assert.Equal(t, 23.5, events[0]["temperature"])

	assert.Equal(t, "initial_state", events[1]["type"])
	states := events[1]["states"].(map[string]interface{})
	assert.Equal(t, float64(1), states["led"])
	assert.Equal(t, float64(0), states["fan"])

	assert.Equal(t, "link", events[2]["type"])
	assert.Equal(t, "connected", events[2]["status"])
}

func TestStream_SnapshotWithoutSample(t *testing.T) {
	handler, bcast := setupStream(t, &fakeSampleStore{}, &fakeDeviceStates{}, false)

	events := serveStream(t, handler, bcast, nil)

	// 无历史采样时快照只有设备状态和链路状态
	require.Len(t, events, 2)
	assert.Equal(t, "initial_state", events[0]["type"])
	assert.Equal(t, "link", events[1]["type"])
	assert.Equal(t, "disconnected", events[1]["status"])
}

func TestStream_SnapshotDegradesOnStateError(t *testing.T) {
	devices := &fakeDeviceStates{err: assert.AnError}
	handler, bcast := setupStream(t, &fakeSampleStore{}, devices, true)

	events := serveStream(t, handler, bcast, nil)

	// 状态取不到时退化为全 off，连接照常建立
	require.Len(t, events, 2)
	states := events[0]["states"].(map[string]interface{})
	for _, d := range domain.AllDevices() {
		assert.Equal(t, float64(0), states[string(d)])
	}
}

func TestStream_LiveEventsFollowSnapshot(t *testing.T) {
	handler, bcast := setupStream(t, &fakeSampleStore{}, &fakeDeviceStates{}, true)

	events := serveStream(t, handler, bcast, func() {
		bcast.Publish(domain.NewDeviceUpdateEvent(domain.DeviceFan, true))
		bcast.Publish(domain.NewLinkEvent(false))
	})

	require.Len(t, events, 4)
	assert.Equal(t, "initial_state", events[0]["type"])
	assert.Equal(t, "link", events[1]["type"])

	assert.Equal(t, "device_update", events[2]["type"])
	assert.Equal(t, "fan", events[2]["device"])
	assert.Equal(t, float64(1), events[2]["state"])

	assert.Equal(t, "link", events[3]["type"])
	assert.Equal(t, "disconnected", events[3]["status"])
}

func TestStream_DisconnectDetachesConnection(t *testing.T) {
	handler, bcast := setupStream(t, &fakeSampleStore{}, &fakeDeviceStates{}, true)

	serveStream(t, handler, bcast, nil)

	assert.Equal(t, 0, bcast.Connections())
}
