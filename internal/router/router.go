package router

import (
	"strconv"
	"time"

	"github.com/blues/ideamarket/internal/config"
	"github.com/blues/ideamarket/internal/content"
	"github.com/blues/ideamarket/internal/graphql"
	"github.com/blues/ideamarket/internal/handler"
	"github.com/blues/ideamarket/internal/indexer"
	"github.com/blues/ideamarket/internal/logger"
	"github.com/blues/ideamarket/internal/logic"
	"github.com/blues/ideamarket/internal/metrics"
	"github.com/blues/ideamarket/internal/repository"
	"github.com/blues/ideamarket/internal/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies 路由依赖的适配器
type Dependencies struct {
	Store    *repository.Store
	Chain    logic.ChainGateway
	Pinner   storage.Pinner
	GraphQL  *graphql.Client
	Sealer   *content.Sealer // 为空时不能创建挂单和读取正文
	Registry *indexer.Registry
}

func Setup(cfg *config.Config, deps Dependencies) *gin.Engine {
	// 请求体校验使用的自定义标签
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := logic.RegisterValidations(v); err != nil {
			logger.Error("Failed to register request validations: %v", err)
		}
	}

	r := gin.New()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(handler.RequestID())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", handler.AdminTokenHeader, handler.RequestIDHeader},
		ExposeHeaders:   []string{"Content-Length", handler.RequestIDHeader},
		MaxAge:          12 * time.Hour,
	}))
	r.Use(metricsMiddleware())

	gateway := cfg.IPFS.GatewayURL
	registry := deps.Registry
	if registry == nil {
		registry = indexer.NewRegistry()
	}

	superheroHandler := handler.NewSuperheroHandler(logic.NewSuperheroLogic(deps.Store, deps.Chain, deps.Pinner, gateway))
	ideaHandler := handler.NewIdeaHandler(logic.NewIdeaLogic(deps.Store, deps.Chain, deps.GraphQL, deps.Pinner, deps.Sealer, gateway))
	teamHandler := handler.NewTeamHandler(logic.NewTeamLogic(deps.Store, deps.Chain))
	purchaseHandler := handler.NewPurchaseHandler(logic.NewPurchaseLogic(deps.Store, deps.Chain, registry))
	chainHandler := handler.NewChainHandler(logic.NewChainLogic(deps.Chain), logic.NewStatsLogic(deps.Store, deps.Chain))

	// 健康检查
	r.GET("/health", chainHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		superheroes := api.Group("/superheroes")
		{
			superheroes.GET("", superheroHandler.GetSuperheroes)
			superheroes.POST("/create", superheroHandler.CreateSuperhero)
			superheroes.POST("/upload-metadata", superheroHandler.UploadMetadata)
			superheroes.POST("/upload-avatar", superheroHandler.UploadAvatar)
			superheroes.GET("/:address", superheroHandler.GetSuperhero)
			superheroes.GET("/:address/profile", superheroHandler.GetProfile)
			superheroes.GET("/:address/is-superhero", superheroHandler.IsSuperhero)
			superheroes.POST("/:address/grant-idea-registry-role",
				handler.AdminAuth(cfg.Server.AdminToken), superheroHandler.GrantIdeaRegistryRole)
		}

		ideas := api.Group("/ideas")
		{
			ideas.GET("", ideaHandler.GetIdeas)
			ideas.POST("/create", ideaHandler.CreateIdea)
			ideas.GET("/:id", ideaHandler.GetIdea)
			ideas.POST("/:id/content", ideaHandler.RetrieveContent)
		}

		teams := api.Group("/teams")
		{
			teams.GET("", teamHandler.GetTeams)
			teams.POST("/create", teamHandler.CreateTeam)
			teams.GET("/:id", teamHandler.GetTeam)
		}

		purchases := api.Group("/purchases")
		{
			purchases.GET("", purchaseHandler.GetPurchases)
			purchases.POST("/record", purchaseHandler.RecordPurchase)
		}

		chain := api.Group("/chain")
		{
			chain.GET("/block-number", chainHandler.GetBlockNumber)
			chain.GET("/tx/:hash", chainHandler.GetTransaction)
			chain.GET("/gas-price", chainHandler.GetGasPrice)
			chain.GET("/balance/:address", chainHandler.GetBalance)
		}

		api.GET("/stats", chainHandler.GetStats)
	}

	return r
}

// metricsMiddleware 按路由模板统计请求数和耗时
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
