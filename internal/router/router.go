package router

import (
	"github.com/gin-gonic/gin"
	"github.com/mercadito/storefront-backend/config"
	"github.com/mercadito/storefront-backend/internal/app/controller"
	"github.com/mercadito/storefront-backend/internal/middleware"
)

type Router struct {
	productController    *controller.ProductController
	cartController       *controller.CartController
	cartStreamController *controller.CartStreamController
	config               *config.Config
}

func NewRouter(
	productController *controller.ProductController,
	cartController *controller.CartController,
	cartStreamController *controller.CartStreamController,
	cfg *config.Config,
) *Router {
	return &Router{
		productController:    productController,
		cartController:       cartController,
		cartStreamController: cartStreamController,
		config:               cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"message": "Storefront API is running",
		})
	})

	api := router.Group("/api")
	{
		products := api.Group("/products")
		{
			products.GET("", r.productController.ListProducts)
			products.GET("/:id", r.productController.GetProductByID)
		}

		carts := api.Group("/carts")
		{
			carts.GET("/:clientId", r.cartController.GetCart)
			carts.GET("/:clientId/summary", r.cartController.GetCartSummary)
			if r.cartStreamController != nil {
				carts.GET("/:clientId/ws", r.cartStreamController.Stream)
			}
		}

		cart := api.Group("/cart")
		{
			cart.POST("", r.cartController.AddToCart)
			cart.PUT("", r.cartController.UpdateCartItem)
			cart.POST("/convert", r.cartController.ConvertCart)
			cart.DELETE("/:cartId/:productId", r.cartController.RemoveFromCart)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-Request-ID, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", middleware.RequestIDHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
