package consumer

import (
	"context"
	"testing"
	"time"

	"room-monitor/internal/broadcaster"
	"room-monitor/internal/config"
	"room-monitor/internal/dedup"
	"room-monitor/internal/domain"
	"room-monitor/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSampleRepo 内存采样存储，可注入错误
type fakeSampleRepo struct {
	inserted []*domain.SensorSample
	nextErr  error
}

func (f *fakeSampleRepo) Insert(_ context.Context, sample *domain.SensorSample) (*domain.SensorSample, error) {
	if f.nextErr != nil {
		err := f.nextErr
		f.nextErr = nil
		return nil, err
	}
	stored := *sample
	stored.ID = int64(len(f.inserted) + 1)
	f.inserted = append(f.inserted, &stored)
	return &stored, nil
}

func (f *fakeSampleRepo) Latest(_ context.Context) (*domain.SensorSample, error) {
	if len(f.inserted) == 0 {
		return nil, nil
	}
	return f.inserted[len(f.inserted)-1], nil
}

func (f *fakeSampleRepo) List(_ context.Context, _ repository.SampleFilters, _, _ int) ([]*domain.SensorSample, int, error) {
	return f.inserted, len(f.inserted), nil
}

// fakeReconciler 记录反馈对账调用，可注入持久化错误
type fakeReconciler struct {
	calls   []reconcileCall
	nextErr error
}

type reconcileCall struct {
	device domain.Device
	isOn   bool
}

func (f *fakeReconciler) Reconcile(_ context.Context, device domain.Device, isOn bool) error {
	if f.nextErr != nil {
		err := f.nextErr
		f.nextErr = nil
		return err
	}
	f.calls = append(f.calls, reconcileCall{device: device, isOn: isOn})
	return nil
}

type consumerFixture struct {
	consumer   *MQTTConsumer
	samples    *fakeSampleRepo
	reconciler *fakeReconciler
	conn       *broadcaster.Connection
}

func setupConsumer(t *testing.T) *consumerFixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.Monitor.Topics.Telemetry = "sensors"
	cfg.Monitor.Topics.FeedbackPrefix = "esp32/"
	cfg.Monitor.DedupWindow = 1500 * time.Millisecond

	samples := &fakeSampleRepo{}
	reconciler := &fakeReconciler{}

	bcast := broadcaster.NewBroadcaster(16, time.Hour, zap.NewNop())
	conn := bcast.Register()
	t.Cleanup(func() { bcast.Unregister(conn.ID) })

	c := NewMQTTConsumer(
		cfg,
		nil, // 测试直接调用 HandleMessage，不经过总线
		dedup.NewWindow(cfg.Monitor.DedupWindow),
		samples,
		nil,
		bcast,
		reconciler,
		zap.NewNop(),
	)

	return &consumerFixture{
		consumer:   c,
		samples:    samples,
		reconciler: reconciler,
		conn:       conn,
	}
}

func receiveEvent(t *testing.T, conn *broadcaster.Connection) domain.Event {
	t.Helper()
	select {
	case e := <-conn.Events:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast event")
		return nil
	}
}

func assertNoEvent(t *testing.T, conn *broadcaster.Connection) {
	t.Helper()
	select {
	case e := <-conn.Events:
		t.Fatalf("unexpected broadcast event %q", e.EventType())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleTelemetry_PersistsAndBroadcasts(t *testing.T) {
	f := setupConsumer(t)

	require.NoError(t, f.consumer.HandleMessage("sensors", []byte("25.5,60.2,340")))

	require.Len(t, f.samples.inserted, 1)
	assert.Equal(t, 25.5, f.samples.inserted[0].Temperature)

	event := receiveEvent(t, f.conn).(domain.SensorEvent)
	assert.Equal(t, domain.EventTypeSensor, event.Type)
	assert.Equal(t, 25.5, event.Temperature)
	assert.Equal(t, 340.0, event.Illuminance)
}

func TestHandleTelemetry_TimestampHasSecondResolution(t *testing.T) {
	f := setupConsumer(t)

	require.NoError(t, f.consumer.HandleMessage("sensors", []byte("25.5,60.2,340")))

	// 秒精度时间戳：同秒重投才可能命中唯一元组，幂等兜底才成立
	require.Len(t, f.samples.inserted, 1)
	assert.Zero(t, f.samples.inserted[0].Timestamp.Nanosecond())
}

func TestHandleTelemetry_DuplicateSuppressedByWindow(t *testing.T) {
	f := setupConsumer(t)

	require.NoError(t, f.consumer.HandleMessage("sensors", []byte("25.5,60.2,340")))
	require.NoError(t, f.consumer.HandleMessage("sensors", []byte("25.5,60.2,340")))

	// 第二条在窗口内被抑制：只有一次入库、一次广播
	assert.Len(t, f.samples.inserted, 1)
	receiveEvent(t, f.conn)
	assertNoEvent(t, f.conn)
}

func TestHandleTelemetry_DistinctPayloadsBothProcessed(t *testing.T) {
	f := setupConsumer(t)

	require.NoError(t, f.consumer.HandleMessage("sensors", []byte("25.5,60.2,340")))
	require.NoError(t, f.consumer.HandleMessage("sensors", []byte("25.6,60.2,340")))

	assert.Len(t, f.samples.inserted, 2)
	receiveEvent(t, f.conn)
	receiveEvent(t, f.conn)
}

func TestHandleTelemetry_StorageDuplicateNotRebroadcast(t *testing.T) {
	f := setupConsumer(t)
	f.samples.nextErr = repository.ErrSampleExists

	// 去重窗口漏掉、存储层幂等命中的重复：静默丢弃
	require.NoError(t, f.consumer.HandleMessage("sensors", []byte("25.5,60.2,340")))

	assert.Len(t, f.samples.inserted, 0)
	assertNoEvent(t, f.conn)
}

func TestHandleTelemetry_InsertFailureDropsReading(t *testing.T) {
	f := setupConsumer(t)
	f.samples.nextErr = assert.AnError

	require.NoError(t, f.consumer.HandleMessage("sensors", []byte("25.5,60.2,340")))

	// 写失败的读数不广播，订阅流不中断
	assertNoEvent(t, f.conn)

	// 下一条正常读数照常处理
	require.NoError(t, f.consumer.HandleMessage("sensors", []byte("26.0,61.0,300")))
	receiveEvent(t, f.conn)
}

func TestHandleTelemetry_MalformedPayloadDropped(t *testing.T) {
	f := setupConsumer(t)

	require.NoError(t, f.consumer.HandleMessage("sensors", []byte("not,numbers")))

	assert.Len(t, f.samples.inserted, 0)
	assertNoEvent(t, f.conn)
}

func TestHandleFeedback_ReconcilesAndBroadcasts(t *testing.T) {
	f := setupConsumer(t)

	require.NoError(t, f.consumer.HandleMessage("esp32/led", []byte("1")))

	// 结清与落库都走协调器（设备锁内），消费者不直接写状态
	require.Len(t, f.reconciler.calls, 1)
	assert.Equal(t, domain.DeviceLED, f.reconciler.calls[0].device)
	assert.True(t, f.reconciler.calls[0].isOn)

	event := receiveEvent(t, f.conn).(domain.DeviceUpdateEvent)
	assert.Equal(t, domain.DeviceLED, event.Device)
	assert.Equal(t, 1, event.State)
}

func TestHandleFeedback_UnknownDeviceDropped(t *testing.T) {
	f := setupConsumer(t)

	require.NoError(t, f.consumer.HandleMessage("esp32/heater", []byte("1")))

	assert.Empty(t, f.reconciler.calls)
	assertNoEvent(t, f.conn)
}

func TestHandleFeedback_BroadcastsEvenIfReconcileFails(t *testing.T) {
	f := setupConsumer(t)
	f.reconciler.nextErr = assert.AnError

	require.NoError(t, f.consumer.HandleMessage("esp32/fan", []byte("0")))

	// 状态写失败不拦广播，实时视图优先
	event := receiveEvent(t, f.conn).(domain.DeviceUpdateEvent)
	assert.Equal(t, domain.DeviceFan, event.Device)
	assert.Equal(t, 0, event.State)
}

func TestHandleFeedback_MalformedPayloadDropped(t *testing.T) {
	f := setupConsumer(t)

	require.NoError(t, f.consumer.HandleMessage("esp32/led", []byte("maybe")))

	assert.Empty(t, f.reconciler.calls)
	assertNoEvent(t, f.conn)
}

func TestHandleMessage_UnexpectedTopicIgnored(t *testing.T) {
	f := setupConsumer(t)

	require.NoError(t, f.consumer.HandleMessage("other/topic", []byte("1")))

	assert.Len(t, f.samples.inserted, 0)
	assertNoEvent(t, f.conn)
}
