package api

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mautops/change-gin/internal/config"
	"github.com/sirupsen/logrus"
)

const (
	serviceName     = "change-gin"
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

var (
	defaultLogger *logrus.Logger
	defaultMu     sync.Mutex
)

// JSONFormatter 日志 JSON 格式
type JSONFormatter = logrus.JSONFormatter

// NewLoggerFromConfig 根据日志配置创建 logger,并设为请求日志的默认 logger
// 每条日志都带 service 字段,便于日志聚合时区分服务
func NewLoggerFromConfig(cfg *config.LogConfig) (*logrus.Logger, error) {
	out, err := logOutput(cfg.Output, cfg.File)
	if err != nil {
		return nil, err
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}

	logger := logrus.New()
	logger.SetFormatter(logFormatter(cfg.Format))
	logger.SetLevel(level)
	logger.SetOutput(out)
	logger.AddHook(fieldsHook{"service": serviceName})

	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
	return logger, nil
}

// GetLogger 返回默认 logger,未初始化时使用 info 级别的 JSON 输出
func GetLogger() *logrus.Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = logrus.New()
		defaultLogger.SetFormatter(logFormatter("json"))
		defaultLogger.SetOutput(os.Stdout)
	}
	return defaultLogger
}

func logFormatter(format string) logrus.Formatter {
	if format != "json" {
		return &logrus.TextFormatter{TimestampFormat: timestampLayout, FullTimestamp: true}
	}
	return &logrus.JSONFormatter{
		TimestampFormat: timestampLayout,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "time",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "msg",
		},
	}
}

// logOutput output 取值 stdout、file、both,其他值按 stdout 处理
func logOutput(output string, file string) (io.Writer, error) {
	toFile := output == "file" || output == "both"
	if !toFile {
		return os.Stdout, nil
	}

	if file == "" {
		file = filepath.Join("logs", serviceName+".log")
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	if output == "both" {
		return io.MultiWriter(os.Stdout, f), nil
	}
	return f, nil
}

// fieldsHook 为每条日志补充固定字段,已有同名字段时不覆盖
type fieldsHook logrus.Fields

func (h fieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h fieldsHook) Fire(entry *logrus.Entry) error {
	for k, v := range h {
		if _, ok := entry.Data[k]; !ok {
			entry.Data[k] = v
		}
	}
	return nil
}
