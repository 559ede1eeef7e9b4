package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/config"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/api/handler"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/api/middleware"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/jwt"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时不做限流与黑名单检查；gatherer 为 nil 时不暴露 /metrics
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	db *gorm.DB,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		if db != nil {
			if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if gatherer != nil {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// nil *redis.Client 不能直接赋给接口
	var (
		blacklist middleware.TokenBlacklist
		limiter   middleware.RateLimiter
	)
	if rdb != nil {
		blacklist = rdb
		limiter = rdb
	}
	writeLimit := middleware.RateLimit(limiter, cfg.Server.RateLimit.Limit, cfg.Server.RateLimit.Window, logger)
	canWrite := middleware.RoleAuth(jwt.RoleAdmin, jwt.RoleForeman)

	// ── API v1（全部需要认证） ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr, blacklist, logger))
	{
		auth := v1.Group("/auth")
		{
			auth.GET("/me", h.Auth.Me)
			auth.POST("/logout", h.Auth.Logout)
		}

		v1.GET("/sessions/current", h.Session.GetCurrent)

		// 派工模块
		assignments := v1.Group("/assignments")
		{
			assignments.GET("", h.Assignment.List)
			assignments.GET("/:id", h.Assignment.Get)
			assignments.GET("/:id/notes", h.Assignment.ListNotes)

			assignments.POST("", canWrite, writeLimit, h.Assignment.Create)
			assignments.POST("/bulk", canWrite, writeLimit, h.Assignment.Bulk)
			assignments.POST("/import", canWrite, writeLimit, h.Assignment.Import)
			assignments.POST("/sync", middleware.RoleAuth(jwt.RoleAdmin), writeLimit, h.Assignment.Sync)
			assignments.PUT("/:id/status", canWrite, writeLimit, h.Assignment.UpdateStatus)
			assignments.PUT("/:id/luwang", canWrite, writeLimit, h.Assignment.UpdateLuwang)
			assignments.PUT("/:id/worker", canWrite, writeLimit, h.Assignment.Reassign)
			assignments.POST("/:id/notes", canWrite, writeLimit, h.Assignment.AddNote)
		}

		// 导出模块
		export := v1.Group("/export")
		{
			export.GET("/assignments", canWrite, h.Export.ExportAssignments)
		}
	}

	return r
}
