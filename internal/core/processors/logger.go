package processors

import (
	"time"

	"go.uber.org/zap"

	"meshgate/internal/core"
)

// RequestLogger 记录每个网关请求的开始和结束
type RequestLogger struct {
	name     string
	priority int
}

// NewRequestLogger 创建一个新的请求日志处理器
func NewRequestLogger() *RequestLogger {
	return &RequestLogger{
		name:     "request-logger",
		priority: -100, // 必须是第一个执行
	}
}

// Name 返回处理器名称
func (r *RequestLogger) Name() string {
	return r.name
}

// Priority 返回处理器优先级
func (r *RequestLogger) Priority() int {
	return r.priority
}

// OnRequest 记录请求开始；request_id、route_key、route_type 已经通过 With() 注入到 ctx.Log
func (r *RequestLogger) OnRequest(ctx *core.GatewayContext, body []byte) ([]byte, error) {
	ctx.Log.Info("Request Started",
		zap.Int("body_size", len(body)),
	)

	// 直接返回原始 body，不做修改
	return body, nil
}

// OnResponse 记录请求完成和耗时
func (r *RequestLogger) OnResponse(ctx *core.GatewayContext, res *core.Result) error {
	fields := []zap.Field{
		zap.Duration("latency", time.Since(ctx.StartTime)),
	}
	if res != nil {
		fields = append(fields,
			zap.Int("status", res.Status),
			zap.Bool("json", res.JSON),
			zap.Bool("published", res.Published),
		)
	}
	ctx.Log.Info("Request Finished", fields...)
	return nil
}
