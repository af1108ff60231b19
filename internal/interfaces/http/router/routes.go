// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"

	"toolkitforseo-api/internal/interfaces/http/handler"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	toolHandler *handler.ToolHandler,
	creditHandler *handler.CreditHandler,
) {
	// 文本工具
	tools := v1.Group("/tools")
	{
		tools.GET("", toolHandler.List)
		tools.POST("/:tool", toolHandler.Run)
	}

	// 额度与用量
	v1.GET("/credits", creditHandler.Summary)
	v1.GET("/credits/check", creditHandler.Check)
	v1.GET("/usage", creditHandler.Usage)
}
