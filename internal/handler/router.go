package handler

import (
	"possystem/internal/config"
	"possystem/internal/infrastructure/lock"
	"possystem/internal/store"

	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
func SetupRouter(s *store.Store, locks *lock.Provider, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(s, locks, cfg)

	api := r.Group("/api/v1")
	{
		// 商品目录
		product := api.Group("/product")
		{
			product.GET("/list", h.ListProducts)
			product.POST("/add", h.AddProduct)
			product.POST("/update", h.UpdateProduct)
		}

		// 客户账本
		client := api.Group("/client")
		{
			client.GET("/list", h.ListClients)
			client.GET("/find", h.FindClient)
			client.POST("/add", h.AddClient)
			client.POST("/credits", h.AdjustCredits)
			client.GET("/history", h.GetHistory)
		}

		// 购买
		purchase := api.Group("/purchase")
		{
			purchase.POST("/execute", h.Purchase)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
