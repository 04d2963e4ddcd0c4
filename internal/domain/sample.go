package domain

import "time"

// SensorSample 传感器采样领域模型（对应 sensor_samples 表）
// 一条记录包含同一时刻的温度、湿度、光照三个读数
// 去重身份为 (recorded_at, temperature, humidity, illuminance) 元组，
// 入库后不可变，核心流程不做更新或删除
type SensorSample struct {
	ID          int64     `db:"id"` // BIGSERIAL，入库时分配
	Temperature float64   `db:"temperature"`
	Humidity    float64   `db:"humidity"`
	Illuminance float64   `db:"illuminance"`
	Timestamp   time.Time `db:"recorded_at"` // TIMESTAMPTZ
}
