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
	"github.com/blues/ideamarket/internal/content"
	"github.com/blues/ideamarket/internal/database"
	"github.com/blues/ideamarket/internal/graphql"
	"github.com/blues/ideamarket/internal/indexer"
	"github.com/blues/ideamarket/internal/logger"
	"github.com/blues/ideamarket/internal/repository"
	"github.com/blues/ideamarket/internal/router"
	"github.com/blues/ideamarket/internal/storage"
	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg := config.Load()
	logger.Init(cfg.Log)
	defer logger.Sync()

	if err := cfg.Validate(true); err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}
	store := repository.NewStore(db)

	// 初始化链客户端，连接失败时读接口降级，请求时重连
	chainManager, err := chain.NewManager(cfg.Chain)
	if err != nil {
		logger.Fatal("Failed to initialize chain manager: %v", err)
	}
	defer chainManager.Close()
	connectCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	if err := chainManager.Connect(connectCtx); err != nil {
		logger.Error("Chain connection failed, continuing in degraded mode: %v", err)
	}
	cancel()

	// IPFS 固定服务，未配置时使用内存实现
	var pinner storage.Pinner
	if cfg.IPFS.Bucket != "" && cfg.IPFS.AccessKey != "" {
		pinner, err = storage.NewS3Pinner(cfg.IPFS)
		if err != nil {
			logger.Fatal("Failed to initialize IPFS pinner: %v", err)
		}
	} else {
		logger.Warn("IPFS credentials not configured, pinning to memory")
		pinner = storage.NewMemoryPinner(cfg.IPFS.GatewayURL)
	}

	var sealer *content.Sealer
	if cfg.Content.EncryptionKey != "" {
		sealer, err = content.NewSealer(cfg.Content.EncryptionKey)
		if err != nil {
			logger.Fatal("Invalid content encryption key: %v", err)
		}
	} else {
		logger.Warn("Content encryption key not configured, idea creation is disabled")
	}

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(cfg, router.Dependencies{
		Store:    store,
		Chain:    chainManager,
		Pinner:   pinner,
		GraphQL:  graphql.NewClient(cfg.Indexer.GraphQLURL, &http.Client{Timeout: 10 * time.Second}),
		Sealer:   sealer,
		Registry: indexer.NewRegistry(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 启动服务器
	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
	}
}
