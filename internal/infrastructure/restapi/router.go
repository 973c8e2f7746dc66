package restapi

import (
	"net/http"
	"time"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/infrastructure/configloader"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRouter builds the gin engine with the API routes, metrics and
// the Swagger UI.
func SetupRouter(h *Handlers, cfg configloader.ServerConfig, log port.Logger) *gin.Engine {
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSAllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSAllowOrigins
	}
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", RequestIDHeader}
	corsConfig.ExposeHeaders = []string{RequestIDHeader}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(RequestID())
	router.Use(AccessLog(log))
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/session", h.GetSession)
		v1.GET("/session/events", h.StreamSessionEvents)
		v1.POST("/session/connect", h.Connect)
		v1.POST("/session/disconnect", h.Disconnect)
		v1.POST("/session/network", h.SwitchNetwork)

		v1.GET("/balances", h.GetBalances)
		v1.POST("/balances/mint-test-tokens", h.MintTestTokens)
		v1.POST("/balances/wrap", h.Wrap)
		v1.POST("/balances/unwrap", h.Unwrap)
		v1.POST("/balances/transfer", h.Transfer)

		v1.GET("/swap", h.GetSwap)
		v1.PUT("/swap", h.UpdateSwap)
		v1.GET("/swap/quote", h.GetSwapQuote)
		v1.POST("/swap/switch", h.SwitchTokens)
		v1.POST("/swap/execute", h.ExecuteSwap)
		v1.GET("/swap/pools", h.GetPool)
		v1.POST("/swap/pools", h.CreatePool)
		v1.POST("/swap/liquidity", h.AddLiquidity)
		v1.POST("/swap/liquidity/remove", h.RemoveLiquidity)

		v1.GET("/staking", h.GetStaking)
		v1.POST("/staking/stake", h.Stake)
		v1.POST("/staking/unstake", h.Unstake)
		v1.POST("/staking/claim", h.ClaimRewards)

		v1.GET("/borrow", h.GetBorrow)
		v1.PUT("/borrow", h.UpdateBorrow)
		v1.POST("/borrow/execute", h.ExecuteBorrow)
		v1.POST("/borrow/supply", h.Supply)
		v1.POST("/borrow/repay", h.Repay)

		v1.GET("/farms", h.GetFarms)
		v1.POST("/farms/:id/stake", h.FarmStake)
		v1.POST("/farms/:id/unstake", h.FarmUnstake)
		v1.POST("/farms/:id/harvest", h.FarmHarvest)

		v1.GET("/portfolio", h.GetPortfolio)

		v1.GET("/network", h.GetNetwork)
		v1.GET("/tx/:hash", h.GetTransaction)
	}

	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.SwaggerSpecPath != "" {
		router.StaticFile("/docs/swagger.yaml", cfg.SwaggerSpecPath)
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/docs/swagger.yaml")))
	}
	return router
}
