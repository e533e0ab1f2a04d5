package container

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/mautops/change-gin/internal/analyzer"
	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/api"
	"github.com/mautops/change-gin/internal/config"
	"github.com/mautops/change-gin/internal/database"
	"github.com/mautops/change-gin/internal/integration"
	"github.com/mautops/change-gin/internal/metrics"
	"github.com/mautops/change-gin/internal/planner"
	"github.com/mautops/change-gin/internal/service"
	"github.com/mautops/change-gin/internal/store"
	"github.com/mautops/change-gin/internal/testrunner"
	"github.com/mautops/change-gin/internal/websocket"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、记录存储、事件日志、分析器和服务
type Container struct {
	cfg    *config.Config
	logger *logrus.Logger

	db          *gorm.DB
	redisClient *redis.Client
	kafkaWriter *kafka.Writer
	asyncEvents *integration.AsyncEventLog
	hub         *websocket.Hub
	collector   *metrics.Collector

	records       store.RecordStore
	manager       integration.ChangeManager
	changeService service.ChangeService
	queryService  service.QueryService
	statsService  service.StatisticsService
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	// 1. 初始化数据库（带重试机制）
	// 默认重试 3 次，初始间隔 1 秒，指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	ctr, err := NewContainerWithDB(cfg, db, logger)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return ctr, nil
}

// NewContainerWithDB 使用已有数据库连接创建容器
func NewContainerWithDB(cfg *config.Config, db *gorm.DB, logger *logrus.Logger) (*Container, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := &Container{cfg: cfg, logger: logger, db: db}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// 2. 初始化变更记录存储
	records, err := c.newRecordStore()
	if err != nil {
		c.Close()
		return nil, err
	}
	c.records = records

	// 3. 初始化事件日志,数据库日志负责查询,Hub 推送实时状态,Kafka 异步发布
	dbEvents := store.NewDBEventLog(db)
	c.hub = websocket.NewHub(records, logger)
	logs := []store.EventLog{dbEvents, c.hub}
	if cfg.Events.Kafka.Enabled {
		c.kafkaWriter = store.NewKafkaWriter(cfg.Events.Kafka.Brokers, cfg.Events.Kafka.Topic)
		c.asyncEvents = integration.NewAsyncEventLog(
			store.NewKafkaEventLog(c.kafkaWriter),
			integration.AsyncEventLogConfig{Workers: 4},
			logger,
		)
		logs = append(logs, c.asyncEvents)
	}
	events := store.NewMultiEventLog(logs...)

	// 4. 初始化影响分析器
	assessor := analyzer.NewAssessor(c.newAnalyzer(), config.Seconds(cfg.Analyzer.Timeout), logger)

	// 5. 初始化测试执行器
	runner := c.newRunner()

	// 6. 初始化回滚计划生成器
	var overrides map[change.Type]planner.Playbook
	if cfg.Rollback.PlaybookFile != "" {
		overrides, err = planner.LoadPlaybooks(cfg.Rollback.PlaybookFile)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to load rollback playbooks: %w", err)
		}
	}

	// 7. 初始化变更管理引擎
	c.manager = integration.NewChangeManager(records, events, assessor, runner, integration.ManagerOptions{
		EventReader: dbEvents,
		Planner:     planner.New(cfg.Rollback.BackupDir, overrides),
		TestTimeout: config.Seconds(cfg.TestRunner.Timeout),
		TestWorkers: cfg.TestRunner.Workers,
		Logger:      logger,
	})

	// 8. 初始化服务
	var statsDB *gorm.DB
	if cfg.Store.Backend == "db" {
		statsDB = db
	}
	c.changeService = service.NewChangeService(c.manager, service.NewBackupService(cfg.Rollback.BackupDir), logger)
	c.queryService = service.NewQueryService(c.manager)
	c.statsService = service.NewStatisticsService(statsDB, records)

	// 9. 初始化指标收集器
	c.collector = metrics.NewCollector(db, c.statsService, config.Seconds(cfg.Metrics.CollectInterval))

	return c, nil
}

func (c *Container) newRecordStore() (store.RecordStore, error) {
	switch c.cfg.Store.Backend {
	case "redis":
		opts := c.cfg.Store.Redis
		c.redisClient = redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		return store.NewRedisRecordStore(c.redisClient, opts.KeyPrefix), nil
	case "memory":
		return store.NewMemoryRecordStore(), nil
	default:
		return store.NewDBRecordStore(c.db), nil
	}
}

func (c *Container) newAnalyzer() analyzer.Analyzer {
	cfg := c.cfg.Analyzer
	if cfg.Provider != "openai" {
		return nil
	}

	primary := analyzer.NewOpenAIAnalyzer(analyzer.OpenAIConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
	})
	return analyzer.NewBreakerAnalyzer(primary, analyzer.BreakerConfig{
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         config.Seconds(cfg.Breaker.Interval),
		Timeout:          config.Seconds(cfg.Breaker.Timeout),
		FailureThreshold: cfg.Breaker.FailureThreshold,
	}, c.logger)
}

func (c *Container) newRunner() testrunner.Runner {
	cfg := c.cfg.TestRunner
	if cfg.Mode == "http" {
		return testrunner.NewHTTPRunner(testrunner.HTTPConfig{
			Endpoint: cfg.Endpoint,
			Token:    cfg.Token,
			Timeout:  config.Seconds(cfg.Timeout),
		})
	}
	return testrunner.NewSimulatedRunner(cfg.Seed, cfg.ReportDir)
}

// StartBackground 启动后台任务
func (c *Container) StartBackground() {
	c.collector.Start()
	go c.hub.Run()
}

// RouterDeps 返回 HTTP 路由依赖
func (c *Container) RouterDeps() api.RouterDeps {
	checks := map[string]api.HealthCheck{}
	if c.redisClient != nil {
		client := c.redisClient
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}

	return api.RouterDeps{
		Config:            c.cfg,
		Logger:            c.logger,
		DB:                c.db,
		HealthChecks:      checks,
		ChangeService:     c.changeService,
		QueryService:      c.queryService,
		StatisticsService: c.statsService,
		Hub:               c.hub,
	}
}

// Hub 获取实时推送 Hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// ChangeManager 获取变更管理引擎
func (c *Container) ChangeManager() integration.ChangeManager {
	return c.manager
}

// ChangeService 获取变更服务
func (c *Container) ChangeService() service.ChangeService {
	return c.changeService
}

// StatisticsService 获取统计服务
func (c *Container) StatisticsService() service.StatisticsService {
	return c.statsService
}

// Close 关闭容器,清理资源
// 先停止事件发布,保证队列中的事件写入后再关闭 Kafka 连接
func (c *Container) Close() error {
	if c.collector != nil {
		c.collector.Stop()
	}
	if c.hub != nil {
		c.hub.Stop()
	}
	if c.asyncEvents != nil {
		c.asyncEvents.Stop()
	}
	if c.kafkaWriter != nil {
		if err := c.kafkaWriter.Close(); err != nil {
			c.logger.WithError(err).Warn("Failed to close kafka writer")
		}
	}
	if c.redisClient != nil {
		_ = c.redisClient.Close()
	}
	if c.db != nil {
		return database.Close(c.db)
	}
	return nil
}
