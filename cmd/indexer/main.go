package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blues/ideamarket/internal/chain"
	"github.com/blues/ideamarket/internal/config"
	"github.com/blues/ideamarket/internal/database"
	"github.com/blues/ideamarket/internal/indexer"
	"github.com/blues/ideamarket/internal/logger"
	"github.com/blues/ideamarket/internal/repository"
	"github.com/blues/ideamarket/internal/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Log)
	defer logger.Sync()

	// 索引器只读链上数据，不需要签名私钥
	if err := cfg.Validate(false); err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}

	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}
	store := repository.NewStore(db)

	chainManager, err := chain.NewManager(cfg.Chain)
	if err != nil {
		logger.Fatal("Failed to initialize chain manager: %v", err)
	}
	defer chainManager.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = chainManager.Connect(ctx)
	cancel()
	if err != nil {
		logger.Fatal("Failed to connect to chain: %v", err)
	}

	monitor := indexer.NewMonitor(chainManager, store, cfg.Indexer, cfg.Chain.Confirmations)

	// 启动定时任务
	jobs, err := scheduler.NewManager()
	if err != nil {
		logger.Fatal("Failed to create scheduler: %v", err)
	}
	for _, job := range []scheduler.Job{
		scheduler.NewIndexerJob(monitor, cfg.Indexer.Interval),
		scheduler.NewChainHeadJob(chainManager, 30*time.Second),
	} {
		if err := jobs.Register(job); err != nil {
			logger.Fatal("Failed to register job %s: %v", job.GetName(), err)
		}
	}
	jobs.Start()
	defer jobs.Stop()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		status := monitor.Status(c.Request.Context())
		status["blockchain"] = chainManager.HealthStatus(c.Request.Context())
		if database.Ping(db) != nil {
			status["database"] = "disconnected"
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "connected"
		c.JSON(http.StatusOK, status)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Indexer status server listening on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down indexer...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Status server forced to shutdown: %v", err)
	}
}
