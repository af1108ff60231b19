// Package middleware 提供 HTTP 中间件
package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"toolkitforseo-api/pkg/logger"
	"toolkitforseo-api/pkg/tracer"
)

// Trace OpenTelemetry 追踪中间件
func Trace(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// TraceContext 将 trace_id 注入 Context 与响应头。
// 未启用追踪时用请求 ID 代替，保证错误响应总能关联到日志。
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		traceID := tracer.TraceID(ctx)
		if traceID != "" {
			ctx = logger.WithContext(ctx, logger.TraceIDKey, traceID)
			if spanID := tracer.SpanID(ctx); spanID != "" {
				ctx = logger.WithContext(ctx, logger.SpanIDKey, spanID)
			}
			c.Request = c.Request.WithContext(ctx)
			c.Header("X-Trace-ID", traceID)
		} else {
			traceID = c.GetString("request_id")
		}
		c.Set("trace_id", traceID)

		c.Next()
	}
}
