// Package middleware 提供 HTTP 中间件
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"toolkitforseo-api/internal/interfaces/http/dto"
	"toolkitforseo-api/pkg/logger"
	"toolkitforseo-api/pkg/utils"
)

const subscriberIDKey = "subscriber_id"

// AuthConfig 认证配置
type AuthConfig struct {
	// Secret 与外部认证服务共享的 JWT 密钥
	Secret string
	// Issuer JWT 签发者，为空时不校验
	Issuer string
}

// Auth 认证中间件，从 Bearer Token 中解析订阅者 ID
func Auth(cfg AuthConfig) gin.HandlerFunc {
	jwtManager := utils.NewJWTManager(cfg.Secret, cfg.Issuer)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			dto.Abort(c, http.StatusUnauthorized, "Unauthorized")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			dto.Abort(c, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		claims, err := jwtManager.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, utils.ErrExpiredToken) {
				msg = "Token expired"
			}
			dto.Abort(c, http.StatusUnauthorized, msg)
			return
		}

		subscriberID := claims.SubscriberID()
		c.Set(subscriberIDKey, subscriberID)
		ctx := logger.WithContext(c.Request.Context(), logger.SubscriberIDKey, subscriberID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetSubscriberID 获取当前订阅者 ID
func GetSubscriberID(c *gin.Context) string {
	return c.GetString(subscriberIDKey)
}
