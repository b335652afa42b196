package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"crowdvote/internal/domain/campaign"
	campaignRepository "crowdvote/internal/domain/campaign/repository"
	_ "crowdvote/internal/domain/comment"
	"crowdvote/internal/jobs"
	"crowdvote/internal/pkg/config"
	"crowdvote/internal/pkg/middleware"
	"crowdvote/internal/pkg/registry"
	"crowdvote/internal/pkg/worker"
	"crowdvote/pkg/database"
	"crowdvote/pkg/logger"
	"crowdvote/pkg/metrics"
	"crowdvote/pkg/response"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// 1. 配置与日志
	config.LoadConfig()
	cfg := config.GlobalConfig

	zlog, err := logger.Init(cfg.App.Env, cfg.App.Debug)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 存储
	db, err := database.InitDatabase(cfg.Database, cfg.App.Debug, zlog)
	if err != nil {
		zlog.Fatal("init database", zap.Error(err))
	}

	rdb, err := database.InitRedis(cfg.Redis)
	if err != nil {
		// 排行榜缓存可选，连不上时直接读库
		zlog.Warn("redis unavailable, leaderboard cache disabled", zap.Error(err))
		rdb = nil
	}

	// 3. 指标与后台重试队列
	collector := metrics.GetGlobalCollector()
	pool := worker.NewWorkerPool(cfg.Worker.Count, cfg.Worker.Buffer, cfg.Worker.MaxRetry, zlog.Named("worker"), collector)
	pool.Start()

	// 4. HTTP
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware(cfg.Server), middleware.TraceMiddleware(), middleware.LoggerMiddleware(collector))

	r.GET("/health", func(c *gin.Context) {
		if err := database.Ping(db); err != nil {
			response.Error(c, http.StatusServiceUnavailable, response.ErrServerInternal, "database unavailable")
			return
		}
		response.Success(c, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	moduleCtx := &registry.ModuleContext{
		DB:      db,
		Redis:   rdb,
		Router:  r,
		Logger:  zlog,
		Metrics: collector,
		Workers: pool,
		Config:  cfg,
	}
	if err := registry.InitModules(moduleCtx); err != nil {
		zlog.Fatal("init modules", zap.Error(err))
	}

	// 5. 定时对账
	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(cfg.Jobs.ReconcileSpec,
			campaignRepository.NewCampaignRepository(db), campaign.NewService(moduleCtx), zlog)
		if err := scheduler.Start(ctx); err != nil {
			zlog.Fatal("start scheduler", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server shutdown", zap.Error(err))
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	pool.Stop()
	if rdb != nil {
		_ = rdb.Close()
	}
}

func corsMiddleware(cfg config.ServerConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Trace-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Trace-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowOrigins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowOrigins
		c.AllowCredentials = true
	}
	return cors.New(c)
}
