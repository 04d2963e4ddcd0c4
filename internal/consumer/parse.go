package consumer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type telemetryReading struct {
	temperature float64
	humidity    float64
	illuminance float64
}

// telemetryJSON 结构化遥测报文
// 新固件发 {"t":..,"h":..,"lux":..}，早期版本光照字段叫 lx，两者都认
type telemetryJSON struct {
	Temperature *float64 `json:"t"`
	Humidity    *float64 `json:"h"`
	Illuminance *float64 `json:"lux"`
	IlluminLx   *float64 `json:"lx"`
}

// parseTelemetry 解析遥测报文
// 优先按 JSON 解析，失败回落 CSV（"22.5,60.0,150"）；
// 三个字段必须都是有限数，否则整条丢弃
func parseTelemetry(payload []byte) (telemetryReading, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return telemetryReading{}, errors.New("empty payload")
	}

	if strings.HasPrefix(text, "{") {
		var record telemetryJSON
		if err := json.Unmarshal([]byte(text), &record); err != nil {
			return telemetryReading{}, fmt.Errorf("invalid json payload: %w", err)
		}
		lux := record.Illuminance
		if lux == nil {
			lux = record.IlluminLx
		}
		if record.Temperature == nil || record.Humidity == nil || lux == nil {
			return telemetryReading{}, errors.New("json payload missing fields")
		}
		return newReading(*record.Temperature, *record.Humidity, *lux)
	}

	parts := strings.Split(text, ",")
	if len(parts) < 3 {
		return telemetryReading{}, fmt.Errorf("expected 3 csv fields, got %d", len(parts))
	}

	values := make([]float64, 3)
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return telemetryReading{}, fmt.Errorf("field %d is not a number: %w", i, err)
		}
		values[i] = v
	}

	return newReading(values[0], values[1], values[2])
}

func newReading(t, h, lux float64) (telemetryReading, error) {
	for _, v := range []float64{t, h, lux} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return telemetryReading{}, errors.New("non-finite sensor value")
		}
	}
	return telemetryReading{temperature: t, humidity: h, illuminance: lux}, nil
}

// feedbackJSON 结构化反馈报文 {"status":0|1}
type feedbackJSON struct {
	Status *json.Number `json:"status"`
}

// parseFeedback 解析执行器反馈
// 固件发裸 token（"1"/"0"，旧版还有 "on"/"off"），
// 网关化的设备发 {"status":0|1}，两种都接受
func parseFeedback(payload []byte) (bool, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return false, errors.New("empty payload")
	}

	if strings.HasPrefix(text, "{") {
		var record feedbackJSON
		if err := json.Unmarshal([]byte(text), &record); err != nil {
			return false, fmt.Errorf("invalid json payload: %w", err)
		}
		if record.Status == nil {
			return false, errors.New("json payload missing status")
		}
		n, err := record.Status.Float64()
		if err != nil {
			return false, fmt.Errorf("status is not a number: %w", err)
		}
		return n != 0, nil
	}

	switch strings.ToLower(text) {
	case "1", "on", "true":
		return true, nil
	case "0", "off", "false":
		return false, nil
	}
	return false, fmt.Errorf("unrecognized feedback token %q", text)
}
