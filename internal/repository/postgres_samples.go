package repository

import (
	"context"
	"database/sql"
	"fmt"

	"room-monitor/internal/domain"

	"go.uber.org/zap"
)

// PostgresSampleRepository 传感器采样Repository实现
type PostgresSampleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresSampleRepository 创建采样Repository
func NewPostgresSampleRepository(db *sql.DB, logger *zap.Logger) *PostgresSampleRepository {
	return &PostgresSampleRepository{db: db, logger: logger}
}

// 确保实现了接口
var _ SampleRepository = (*PostgresSampleRepository)(nil)

// Insert 写入采样
// 幂等性由 (recorded_at, temperature, humidity, illuminance) 唯一索引保证，
// 冲突时 DO NOTHING 不返回行，映射为 ErrSampleExists
func (r *PostgresSampleRepository) Insert(ctx context.Context, sample *domain.SensorSample) (*domain.SensorSample, error) {
	query := `
		INSERT INTO sensor_samples (temperature, humidity, illuminance, recorded_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (recorded_at, temperature, humidity, illuminance) DO NOTHING
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		sample.Temperature,
		sample.Humidity,
		sample.Illuminance,
		sample.Timestamp,
	).Scan(&id)

	if err == sql.ErrNoRows {
		return nil, ErrSampleExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert sensor sample: %w", err)
	}

	stored := *sample
	stored.ID = id
	return &stored, nil
}

// Latest 获取最新一条采样
func (r *PostgresSampleRepository) Latest(ctx context.Context) (*domain.SensorSample, error) {
	query := `
		SELECT id, temperature, humidity, illuminance, recorded_at
		FROM sensor_samples
		ORDER BY recorded_at DESC
		LIMIT 1
	`

	sample := &domain.SensorSample{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&sample.ID,
		&sample.Temperature,
		&sample.Humidity,
		&sample.Illuminance,
		&sample.Timestamp,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest sample: %w", err)
	}

	return sample, nil
}

// List 分页查询历史采样
func (r *PostgresSampleRepository) List(ctx context.Context, filters SampleFilters, page, size int) ([]*domain.SensorSample, int, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 200 {
		size = 200
	}

	var args []interface{}
	argN := 1
	where := r.buildWhereClause(filters, &args, &argN)

	countQuery := "SELECT COUNT(*) FROM sensor_samples" + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count samples: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, temperature, humidity, illuminance, recorded_at
		FROM sensor_samples%s
		ORDER BY recorded_at DESC
		LIMIT $%d OFFSET $%d
	`, where, argN, argN+1)
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []*domain.SensorSample
	for rows.Next() {
		sample := &domain.SensorSample{}
		if err := rows.Scan(
			&sample.ID,
			&sample.Temperature,
			&sample.Humidity,
			&sample.Illuminance,
			&sample.Timestamp,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate samples: %w", err)
	}

	return samples, total, nil
}

// buildWhereClause 构建 WHERE 子句
// 时间列用 to_char 格式化后做前缀匹配，与前端表格展示格式一致；
// 数值列转文本前缀匹配，保持原系统搜索框的可见行为
func (r *PostgresSampleRepository) buildWhereClause(filters SampleFilters, args *[]interface{}, argN *int) string {
	if filters.Search == "" {
		return ""
	}

	likePattern := filters.Search + "%"
	next := func(value interface{}) string {
		placeholder := fmt.Sprintf("$%d", *argN)
		*args = append(*args, value)
		*argN++
		return placeholder
	}

	switch filters.Field {
	case "time":
		return " WHERE to_char(recorded_at, 'DD/MM/YYYY HH24:MI:SS') LIKE " + next(likePattern)
	case "temperature":
		return " WHERE temperature::text LIKE " + next(likePattern)
	case "humidity":
		return " WHERE humidity::text LIKE " + next(likePattern)
	case "illuminance":
		return " WHERE illuminance::text LIKE " + next(likePattern)
	default:
		p1 := next("%" + filters.Search + "%")
		p2 := next(likePattern)
		p3 := next(likePattern)
		p4 := next(likePattern)
		return fmt.Sprintf(
			" WHERE (to_char(recorded_at, 'DD/MM/YYYY HH24:MI:SS') LIKE %s OR temperature::text LIKE %s OR humidity::text LIKE %s OR illuminance::text LIKE %s)",
			p1, p2, p3, p4,
		)
	}
}
