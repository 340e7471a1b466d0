package routes

import (
	"net/http"
	"time"

	"gasly-backend/config"
	"gasly-backend/handlers"
	"gasly-backend/middleware"
	"gasly-backend/rewards"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// SetupRoutes registers every endpoint on r. policies is the store the
// rewards services read through, usually the Redis-cached one. The returned
// limiter guards the auth endpoints and should be closed on shutdown.
func SetupRoutes(r *gin.Engine, db *gorm.DB, policies rewards.PolicyStore) *middleware.RateLimiter {
	authHandler := &handlers.AuthHandler{DB: db}
	productHandler := &handlers.ProductHandler{DB: db}
	orderHandler := &handlers.OrderHandler{DB: db}
	rewardsHandler := &handlers.RewardsHandler{
		Query:  rewards.NewQueryService(policies, rewards.NewLedger(db)),
		Admin:  rewards.NewAdminService(db, policies),
		Orders: rewards.NewOrderCounter(db),
	}

	authLimiter := middleware.NewRateLimiter(
		config.GetEnvInt("AUTH_RATE_LIMIT", 10),
		config.GetEnvDuration("AUTH_RATE_WINDOW", time.Minute),
	)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		auth.Use(authLimiter.Middleware())
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshTokenHandler)

		api.GET("/products", productHandler.GetProducts)
		api.GET("/products/:id", productHandler.GetProduct)
		api.GET("/orders/transitions", orderHandler.GetOrderTransitions)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware())
	{
		protected.GET("/auth/profile", authHandler.GetProfile)
		protected.PUT("/auth/profile", authHandler.UpdateProfile)
		protected.PUT("/auth/password", authHandler.ChangePassword)

		protected.GET("/orders", orderHandler.GetOrders)
		protected.GET("/orders/:id", orderHandler.GetOrder)

		protected.GET("/rewards", rewardsHandler.GetRewards)
	}

	customer := api.Group("")
	customer.Use(middleware.AuthMiddleware(), middleware.CustomerMiddleware())
	{
		customer.POST("/orders", orderHandler.CreateOrder)
		customer.PUT("/orders/:id/cancel", orderHandler.CancelOrder)
		customer.POST("/rewards/redeem", rewardsHandler.Redeem)
	}

	rider := api.Group("/rider")
	rider.Use(middleware.AuthMiddleware(), middleware.RiderMiddleware())
	{
		rider.GET("/orders", orderHandler.RiderOrders)
		rider.PUT("/orders/:id/delivered", orderHandler.RiderMarkDelivered)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.GET("/products", productHandler.GetProducts)
		admin.POST("/products", productHandler.CreateProduct)
		admin.PUT("/products/:id", productHandler.UpdateProduct)

		admin.GET("/orders", orderHandler.GetOrders)
		admin.PUT("/orders/:id/status", orderHandler.UpdateOrderStatus)
		admin.PUT("/orders/:id/rider", orderHandler.AssignRider)

		admin.GET("/users", authHandler.ListUsers)
		admin.PUT("/users/:id", authHandler.UpdateUser)

		admin.GET("/rewards", rewardsHandler.GetAdminOverview)
		admin.GET("/rewards/members", rewardsHandler.ListMembers)
		admin.PUT("/rewards/policy", rewardsHandler.UpdatePolicy)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return authLimiter
}
