package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/config"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/api/handler"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/api/router"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/repository"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/service"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/syncbus"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/database"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/jwt"
	applogger "github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/logger"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/metrics"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（默认查找 ./config/config.yaml）")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("rounding_policy", cfg.Assignment.RoundingPolicy),
	)

	// 3. 连接数据库并执行迁移
	db, err := database.NewDB(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不限流、不检查黑名单）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，限流与 Token 黑名单不可用", zap.Error(err))
		rdb = nil
	}

	// 5. 指标
	var (
		rec      metrics.Recorder = metrics.NewNop()
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		reg.MustRegister(collectors.NewDBStatsCollector(sqlDB, cfg.Database.Name))
		rec = metrics.NewPrometheus(reg, cfg.Metrics.Namespace)
		gatherer = reg
	}

	// 6. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	txm := repository.NewTxManager(db)
	svc := service.NewService(cfg, repo, rec, logger)

	var revoker handler.TokenRevoker
	if rdb != nil {
		revoker = rdb
	}
	h := handler.NewHandler(svc, txm, revoker, logger)

	// 7. 外部同步消费者（可选）
	var consumer *syncbus.Consumer
	if cfg.NATS.Enabled {
		nc, err := syncbus.Connect(cfg.NATS, logger)
		if err != nil {
			logger.Fatal("NATS 连接失败", zap.Error(err))
		}
		defer nc.Close()

		consumer = syncbus.NewConsumer(nc, cfg.NATS, svc, txm, logger)
		if err := consumer.Start(); err != nil {
			logger.Fatal("同步消费者启动失败", zap.Error(err))
		}
	}

	// 8. 初始化路由
	engine := router.Setup(cfg, h, jwt.NewManager(&cfg.Auth), rdb, db, gatherer, logger)

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			logger.Error("同步消费者关闭异常", zap.Error(err))
		}
	}

	if err := sqlDB.Close(); err != nil {
		logger.Error("关闭数据库连接失败", zap.Error(err))
	}

	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
