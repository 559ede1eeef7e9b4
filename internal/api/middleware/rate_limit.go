package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/response"
)

// RateLimiter 滑动窗口计数器（由 Redis 实现）
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 基于滑动窗口的速率限制中间件，按用户（未认证时按 IP）+ 路由计数
// limiter 为 nil 或 limit <= 0 时不限流；Redis 出错时降级放行
func RateLimit(limiter RateLimiter, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}

		subject := c.GetString(CtxUserID)
		if subject == "" {
			subject = c.ClientIP()
		}
		key := fmt.Sprintf("%s:%s %s", subject, c.Request.Method, c.FullPath())

		allowed, err := limiter.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Warn("限流检查失败，降级放行", zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			response.Error(c, http.StatusTooManyRequests, response.CodeRateLimited, "too many requests, retry later")
			c.Abort()
			return
		}

		c.Next()
	}
}
