package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"room-monitor/internal/broadcaster"
	"room-monitor/internal/config"
	"room-monitor/internal/consumer"
	"room-monitor/internal/database"
	"room-monitor/internal/dedup"
	"room-monitor/internal/domain"
	httpapi "room-monitor/internal/http"
	mqttclient "room-monitor/internal/mqtt"
	"room-monitor/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// realtimeCacheTTL 最近采样缓存的保鲜时间
// 传感器每 2s 上报一次，远小于该值；超过即视为数据过期不再用于快照
const realtimeCacheTTL = 10 * time.Minute

// MonitorService 房间监控服务（组合根）
// 负责装配数据库、Redis、MQTT、扇出器、命令协调器、摄取消费者和 HTTP 服务
type MonitorService struct {
	config *config.Config
	logger *zap.Logger

	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttclient.Client
	broadcaster *broadcaster.Broadcaster
	coordinator *CommandCoordinator
	consumer    *consumer.MQTTConsumer
	httpServer  *http.Server
}

// NewMonitorService 创建监控服务并完成全部装配
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	// 初始化数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 初始化Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 创建Repository
	samplesRepo := repository.NewPostgresSampleRepository(db, logger)
	devicesRepo := repository.NewPostgresDeviceRepository(db, logger)
	actionsRepo := repository.NewPostgresActionLogRepository(db, logger)
	cache := repository.NewRealtimeCache(redisClient, realtimeCacheTTL, logger)

	// 扇出器必须先于 MQTT 客户端创建：链路状态回调在首次连接时就会触发
	bcast := broadcaster.NewBroadcaster(
		cfg.Monitor.StreamQueueSize,
		cfg.Monitor.HeartbeatInterval,
		logger,
	)

	// 初始化MQTT，链路上下线同步广播 link 事件，前端据此禁用控制面板
	busClient, err := mqttclient.NewClient(&cfg.MQTT, logger, func(connected bool) {
		if connected {
			logger.Info("MQTT link up")
		} else {
			logger.Warn("MQTT link down")
		}
		bcast.Publish(domain.NewLinkEvent(connected))
	})
	if err != nil {
		redisClient.Close()
		db.Close()
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	// 命令协调器
	coordinator := NewCommandCoordinator(
		busClient,
		devicesRepo,
		actionsRepo,
		bcast,
		cfg.Monitor.Topics.CommandPrefix,
		cfg.MQTT.QoS,
		cfg.Monitor.CommandTimeout,
		logger,
	)

	// 摄取消费者
	window := dedup.NewWindow(cfg.Monitor.DedupWindow)
	mqttConsumer := consumer.NewMQTTConsumer(
		cfg,
		busClient,
		window,
		samplesRepo,
		cache,
		bcast,
		coordinator,
		logger,
	)

	// HTTP 路由
	router := httpapi.NewRouter(logger)
	router.RegisterRoutes(
		httpapi.NewStreamHandler(bcast, samplesRepo, devicesRepo, cache, busClient.IsConnected, logger),
		httpapi.NewSensorHandler(samplesRepo, logger),
		httpapi.NewDeviceHandler(devicesRepo, coordinator, logger),
		httpapi.NewActionHandler(actionsRepo, logger),
		httpapi.NewHealthHandler(db, busClient.IsConnected, logger),
	)

	return &MonitorService{
		config:      cfg,
		logger:      logger,
		db:          db,
		redisClient: redisClient,
		mqttClient:  busClient,
		broadcaster: bcast,
		coordinator: coordinator,
		consumer:    mqttConsumer,
		httpServer: &http.Server{
			Addr:    cfg.HTTP.Addr,
			Handler: router,
		},
	}, nil
}

// Start 启动服务
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting room monitor components")

	// 启动MQTT消费者
	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start MQTT consumer: %w", err)
	}

	// 启动HTTP服务
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.config.HTTP.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server stopped unexpectedly", zap.Error(err))
		}
	}()

	s.logger.Info("Room monitor started successfully")
	return nil
}

// Stop 停止服务
func (s *MonitorService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping room monitor")

	// 先摘推送连接再停 HTTP：Shutdown 不取消请求上下文，
	// 阻塞中的推送处理器要靠 done 关闭退出
	if s.broadcaster != nil {
		s.broadcaster.Close()
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("Error shutting down HTTP server", zap.Error(err))
		}
	}

	// 停止Consumer
	if s.consumer != nil {
		if err := s.consumer.Stop(ctx); err != nil {
			s.logger.Error("Error stopping consumer", zap.Error(err))
		}
	}

	// 断开MQTT
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	// 关闭Redis
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Error closing redis client", zap.Error(err))
		}
	}

	// 关闭数据库
	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Error("Error closing database", zap.Error(err))
		}
	}

	s.logger.Info("Room monitor stopped")
	return nil
}
