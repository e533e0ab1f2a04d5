package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mautops/change-gin/internal/testrunner"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Env        string           `mapstructure:"env"` // 环境: development, production
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Store      StoreConfig      `mapstructure:"store"`
	Events     EventsConfig     `mapstructure:"events"`
	Analyzer   AnalyzerConfig   `mapstructure:"analyzer"`
	TestRunner TestRunnerConfig `mapstructure:"testrunner"`
	Rollback   RollbackConfig   `mapstructure:"rollback"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host           string  `mapstructure:"host"`
	Port           int     `mapstructure:"port"`
	RateLimit      float64 `mapstructure:"rate_limit"` // 每秒请求数, 0 表示不限流
	RateBurst      int     `mapstructure:"rate_burst"`
	RequestTimeout int     `mapstructure:"request_timeout"` // 秒
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	Path            string `mapstructure:"path"` // sqlite 文件路径
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 秒
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 秒
}

// StoreConfig 变更记录存储配置
type StoreConfig struct {
	Backend string      `mapstructure:"backend"` // db, redis, memory
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// EventsConfig 审计事件配置
type EventsConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// AnalyzerConfig 影响分析器配置
type AnalyzerConfig struct {
	Provider    string        `mapstructure:"provider"` // openai, none
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     int           `mapstructure:"timeout"` // 秒
	Breaker     BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	MaxRequests      uint32 `mapstructure:"max_requests"`
	Interval         int    `mapstructure:"interval"` // 秒
	Timeout          int    `mapstructure:"timeout"`  // 秒
	FailureThreshold uint32 `mapstructure:"failure_threshold"`
}

// TestRunnerConfig 测试执行器配置
type TestRunnerConfig struct {
	Mode      string `mapstructure:"mode"` // simulated, http
	Endpoint  string `mapstructure:"endpoint"`
	Token     string `mapstructure:"token"`
	Timeout   int    `mapstructure:"timeout"` // 单个测试超时, 秒
	Workers   int    `mapstructure:"workers"`
	Seed      int64  `mapstructure:"seed"`
	ReportDir string `mapstructure:"report_dir"`
}

// RollbackConfig 回滚计划配置
type RollbackConfig struct {
	BackupDir    string `mapstructure:"backup_dir"`
	PlaybookFile string `mapstructure:"playbook_file"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error
	Format string `mapstructure:"format"` // 日志格式: json, text
	Output string `mapstructure:"output"` // 输出位置: stdout, file, both
	File   string `mapstructure:"file"`
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	CollectInterval int `mapstructure:"collect_interval"` // 秒
}

// Seconds 将秒数配置转换为 time.Duration
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Load 加载配置,支持配置文件和环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 如果提供了配置文件路径,从文件加载
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		// 尝试从默认位置加载
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.change-gin")
		// 忽略配置文件不存在的错误,使用默认值
		_ = v.ReadInConfig()
	}

	// 支持环境变量
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验枚举类配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	switch c.Store.Backend {
	case "db", "redis", "memory":
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Backend)
	}
	switch c.Analyzer.Provider {
	case "openai", "none", "":
	default:
		return fmt.Errorf("unsupported analyzer provider: %s", c.Analyzer.Provider)
	}
	switch c.TestRunner.Mode {
	case "simulated", "http":
	default:
		return fmt.Errorf("unsupported test runner mode: %s", c.TestRunner.Mode)
	}
	if c.TestRunner.Mode == "http" && c.TestRunner.Endpoint == "" {
		return fmt.Errorf("testrunner.endpoint is required in http mode")
	}
	if c.TestRunner.Workers < 1 {
		return fmt.Errorf("testrunner.workers must be at least 1")
	}
	// 套件在请求超时内跑完,否则整批结果被丢弃
	if c.Server.RequestTimeout > 0 && c.TestRunner.Timeout > 0 {
		rounds := (testrunner.MaxSuiteSize() + c.TestRunner.Workers - 1) / c.TestRunner.Workers
		if c.TestRunner.Timeout*rounds >= c.Server.RequestTimeout {
			return fmt.Errorf("testrunner.timeout %ds x %d rounds must be below server.request_timeout %ds",
				c.TestRunner.Timeout, rounds, c.Server.RequestTimeout)
		}
	}
	if c.Events.Kafka.Enabled && (len(c.Events.Kafka.Brokers) == 0 || c.Events.Kafka.Topic == "") {
		return fmt.Errorf("events.kafka requires brokers and topic when enabled")
	}
	return nil
}

// IsProduction 判断是否为生产环境
func IsProduction(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return cfg.Env == "production"
}

// Default 返回默认配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	// 环境变量
	env := v.GetString("env")
	if env == "" {
		env = os.Getenv("APP_ENV")
		if env == "" {
			env = "development"
		}
	}
	v.SetDefault("env", env)

	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.rate_burst", 200)
	v.SetDefault("server.request_timeout", 60)

	// 数据库默认配置
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "changes")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "changes.db")

	// 数据库连接池配置（根据环境设置默认值）
	if env == "production" {
		v.SetDefault("database.max_idle_conns", 20)
		v.SetDefault("database.max_open_conns", 200)
		v.SetDefault("database.conn_max_lifetime", 3600) // 1 小时
		v.SetDefault("database.conn_max_idle_time", 300) // 5 分钟
	} else {
		v.SetDefault("database.max_idle_conns", 10)
		v.SetDefault("database.max_open_conns", 100)
		v.SetDefault("database.conn_max_lifetime", 3600) // 1 小时
		v.SetDefault("database.conn_max_idle_time", 600) // 10 分钟
	}

	// 记录存储
	v.SetDefault("store.backend", "db")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.key_prefix", "change")

	// 审计事件
	v.SetDefault("events.kafka.enabled", false)
	v.SetDefault("events.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("events.kafka.topic", "change-events")

	// 影响分析器
	v.SetDefault("analyzer.provider", "none")
	v.SetDefault("analyzer.api_key", "")
	v.SetDefault("analyzer.base_url", "")
	v.SetDefault("analyzer.model", "gpt-4o-mini")
	v.SetDefault("analyzer.temperature", 0.2)
	v.SetDefault("analyzer.timeout", 30)
	v.SetDefault("analyzer.breaker.max_requests", 1)
	v.SetDefault("analyzer.breaker.interval", 60)
	v.SetDefault("analyzer.breaker.timeout", 30)
	v.SetDefault("analyzer.breaker.failure_threshold", 5)

	// 测试执行器
	v.SetDefault("testrunner.mode", "simulated")
	v.SetDefault("testrunner.endpoint", "")
	v.SetDefault("testrunner.token", "")
	v.SetDefault("testrunner.timeout", 25)
	v.SetDefault("testrunner.workers", 4)
	v.SetDefault("testrunner.seed", 0)
	v.SetDefault("testrunner.report_dir", "test_results")

	// 回滚计划
	v.SetDefault("rollback.backup_dir", "backups")
	v.SetDefault("rollback.playbook_file", "")

	// CORS 默认配置
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization", "X-Request-ID"})
	v.SetDefault("cors.max_age", 86400)

	// 日志配置（根据环境设置默认值）
	if env == "production" {
		v.SetDefault("log.level", "warn")
		v.SetDefault("log.format", "json")
	} else {
		v.SetDefault("log.level", "debug")
		v.SetDefault("log.format", "text")
	}
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/change-gin.log")

	// 链路追踪
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.service_name", "change-gin")

	// 指标
	v.SetDefault("metrics.collect_interval", 30)
}
