package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"room-monitor/internal/domain"
	"room-monitor/internal/repository"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// sensorExportHeader 导出表头
var sensorExportHeader = []string{"ID", "Temperature", "Humidity", "Illuminance", "Recorded At"}

// SensorHandler 采样查询接口
type SensorHandler struct {
	samples repository.SampleRepository
	logger  *zap.Logger
}

// NewSensorHandler 创建采样查询处理器
func NewSensorHandler(samples repository.SampleRepository, logger *zap.Logger) *SensorHandler {
	return &SensorHandler{samples: samples, logger: logger}
}

// sensorRow 采样的 API 表示
type sensorRow struct {
	ID          int64   `json:"id"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Illuminance float64 `json:"illuminance"`
	Timestamp   string  `json:"timestamp"`
}

func toSensorRow(s *domain.SensorSample) sensorRow {
	return sensorRow{
		ID:          s.ID,
		Temperature: s.Temperature,
		Humidity:    s.Humidity,
		Illuminance: s.Illuminance,
		Timestamp:   s.Timestamp.UTC().Format(time.RFC3339),
	}
}

// GetSensors 处理 GET /api/sensors
// 不带分页参数时返回最新一条（仪表盘用），带参数时分页返回历史
func (h *SensorHandler) GetSensors(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if query.Get("page") == "" && query.Get("limit") == "" {
		sample, err := h.samples.Latest(r.Context())
		if err != nil {
			h.logger.Error("Failed to load latest sample", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Database error")
			return
		}
		var data interface{}
		if sample != nil {
			data = toSensorRow(sample)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": data})
		return
	}

	page, size := parsePaging(query.Get("page"), query.Get("limit"))
	filters := repository.SampleFilters{
		Search: query.Get("search"),
		Field:  query.Get("field"),
	}

	samples, total, err := h.samples.List(r.Context(), filters, page, size)
	if err != nil {
		h.logger.Error("Failed to list samples", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	rows := make([]sensorRow, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, toSensorRow(s))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"data":       rows,
		"pagination": NewPagination(page, size, total),
	})
}

// Export 处理 GET /api/sensors/export
// 按当前过滤条件导出 Excel，单次最多导出 10000 行
func (h *SensorHandler) Export(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filters := repository.SampleFilters{
		Search: query.Get("search"),
		Field:  query.Get("field"),
	}

	const exportLimit = 10000
	samples, _, err := h.samples.List(r.Context(), filters, 1, exportLimit)
	if err != nil {
		h.logger.Error("Failed to list samples for export", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	f := excelize.NewFile()
	sheet := "Sensor Data"
	index, err := f.NewSheet(sheet)
	if err != nil {
		h.logger.Error("Failed to create export sheet", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Export error")
		return
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for col, title := range sensorExportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, title)
	}

	for i, s := range samples {
		values := []interface{}{
			s.ID,
			s.Temperature,
			s.Humidity,
			s.Illuminance,
			s.Timestamp.UTC().Format("02/01/2006 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	filename := fmt.Sprintf("sensor-data-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)

	if err := f.Write(w); err != nil {
		h.logger.Error("Failed to write export file", zap.Error(err))
	}
}

// parsePaging 解析分页参数：page>=1，1<=size<=200，默认 20
func parsePaging(pageStr, limitStr string) (int, int) {
	page, _ := strconv.Atoi(pageStr)
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(limitStr)
	if size < 1 {
		size = 20
	}
	if size > 200 {
		size = 200
	}
	return page, size
}
