package logger

import (
	"go.uber.org/zap"
)

// Field names shared by every gateway log line.
const (
	FieldRequestID = "request_id"
	FieldRouteKey  = "route_key"
	FieldRouteType = "route_type"
	FieldComponent = "component"
)

// Logger 包装 zap.Logger，提供网关常用的上下文字段
type Logger struct {
	*zap.Logger
}

// Wrap 将 zap.Logger 包装成扩展 Logger，nil 时返回 no-op logger
func Wrap(base *zap.Logger) *Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return &Logger{Logger: base}
}

// Component 返回带 component 字段的子 logger
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String(FieldComponent, name))}
}

// ForRequest 返回绑定 request_id 的子 logger，每个请求一个
func (l *Logger) ForRequest(requestID string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String(FieldRequestID, requestID))}
}

// ForRoute 在请求 logger 上追加路由信息
func (l *Logger) ForRoute(routeKey, routeType string) *Logger {
	fields := []zap.Field{zap.String(FieldRouteKey, routeKey)}
	if routeType != "" {
		fields = append(fields, zap.String(FieldRouteType, routeType))
	}
	return &Logger{Logger: l.Logger.With(fields...)}
}

// Zap returns the underlying zap logger.
func (l *Logger) Zap() *zap.Logger {
	return l.Logger
}
