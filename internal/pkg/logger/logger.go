package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New 创建网关使用的 zap logger（JSON 编码，输出到 stdout）
// level: 日志级别 (debug, info, warn, error)，未知级别按 info 处理
func New(level string) (*zap.Logger, error) {
	return NewWithCallerSkip(level, 0)
}

// NewWithCallerSkip 创建 logger 并设置 caller skip
func NewWithCallerSkip(level string, skip int) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(ParseLevel(level))

	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableCaller = false

	// 网关是请求驱动的，采样会丢掉同一路由的重复错误
	config.Sampling = nil

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return WithCallerSkip(logger, skip), nil
}

// ParseLevel 把配置中的字符串转换成 zapcore.Level
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// WithCallerSkip 为现有的 logger 添加 caller skip
func WithCallerSkip(logger *zap.Logger, skip int) *zap.Logger {
	if logger == nil || skip <= 0 {
		return logger
	}
	return logger.WithOptions(zap.AddCallerSkip(skip))
}
