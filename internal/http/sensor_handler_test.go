package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"room-monitor/internal/domain"
	"room-monitor/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSampleStore 内存采样存储，记录最近一次过滤条件
type fakeSampleStore struct {
	samples     []*domain.SensorSample
	total       int
	err         error
	lastFilters repository.SampleFilters
	lastPage    int
	lastSize    int
}

func (f *fakeSampleStore) Insert(_ context.Context, sample *domain.SensorSample) (*domain.SensorSample, error) {
	return sample, nil
}

func (f *fakeSampleStore) Latest(_ context.Context) (*domain.SensorSample, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.samples) == 0 {
		return nil, nil
	}
	return f.samples[0], nil
}

func (f *fakeSampleStore) List(_ context.Context, filters repository.SampleFilters, page, size int) ([]*domain.SensorSample, int, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	f.lastFilters = filters
	f.lastPage = page
	f.lastSize = size
	return f.samples, f.total, nil
}

func sampleAt(id int64, temp float64) *domain.SensorSample {
	return &domain.SensorSample{
		ID:          id,
		Temperature: temp,
		Humidity:    55,
		Illuminance: 120,
		Timestamp:   time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC),
	}
}

func TestGetSensors_LatestWithoutPaging(t *testing.T) {
	store := &fakeSampleStore{samples: []*domain.SensorSample{sampleAt(9, 24.5)}}
	handler := NewSensorHandler(store, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/sensors", nil)
	rec := httptest.NewRecorder()
	handler.GetSensors(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(9), data["id"])
	assert.Equal(t, 24.5, data["temperature"])
	assert.Equal(t, "2026-08-28T10:00:00Z", data["timestamp"])
}

func TestGetSensors_LatestEmpty(t *testing.T) {
	handler := NewSensorHandler(&fakeSampleStore{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/sensors", nil)
	rec := httptest.NewRecorder()
	handler.GetSensors(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Nil(t, body["data"])
}

func TestGetSensors_PaginatedList(t *testing.T) {
	store := &fakeSampleStore{
		samples: []*domain.SensorSample{sampleAt(45, 26.1), sampleAt(44, 26.0)},
		total:   45,
	}
	handler := NewSensorHandler(store, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/sensors?page=2&limit=20&search=26&field=temperature", nil)
	rec := httptest.NewRecorder()
	handler.GetSensors(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	// 过滤条件透传到存储层
	assert.Equal(t, "26", store.lastFilters.Search)
	assert.Equal(t, "temperature", store.lastFilters.Field)
	assert.Equal(t, 2, store.lastPage)
	assert.Equal(t, 20, store.lastSize)

	body := decodeBody(t, rec)
	require.Len(t, body["data"], 2)

	pagination := body["pagination"].(map[string]interface{})
	assert.Equal(t, float64(2), pagination["currentPage"])
	assert.Equal(t, float64(3), pagination["totalPages"])
	assert.Equal(t, float64(45), pagination["totalRecords"])
	assert.Equal(t, true, pagination["hasPrev"])
	assert.Equal(t, true, pagination["hasNext"])
}

func TestGetSensors_PagingBounds(t *testing.T) {
	store := &fakeSampleStore{}
	handler := NewSensorHandler(store, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/sensors?page=0&limit=9999", nil)
	rec := httptest.NewRecorder()
	handler.GetSensors(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.lastPage)
	assert.Equal(t, 200, store.lastSize)
}

func TestGetSensors_DatabaseError(t *testing.T) {
	handler := NewSensorHandler(&fakeSampleStore{err: assert.AnError}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/sensors?page=1", nil)
	rec := httptest.NewRecorder()
	handler.GetSensors(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestExport_ReturnsWorkbook(t *testing.T) {
	store := &fakeSampleStore{
		samples: []*domain.SensorSample{sampleAt(1, 22.0)},
		total:   1,
	}
	handler := NewSensorHandler(store, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/sensors/export?search=22&field=temperature", nil)
	rec := httptest.NewRecorder()
	handler.Export(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"),
	)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=sensor-data-")
	assert.NotZero(t, rec.Body.Len())

	// 导出同样透传过滤条件
	assert.Equal(t, "22", store.lastFilters.Search)
}
