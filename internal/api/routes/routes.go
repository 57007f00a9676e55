package routes

import (
	"fuelops-backend/internal/api/handlers"
	"fuelops-backend/internal/api/middleware"
	"fuelops-backend/internal/config"
	"fuelops-backend/internal/events"
	"fuelops-backend/internal/repository"
	"fuelops-backend/internal/services"
	"fuelops-backend/internal/websocket"
	"fuelops-backend/pkg/cache"
	"fuelops-backend/pkg/ratelimit"
	"fuelops-backend/pkg/redis"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

// Dependencies carries the shared infrastructure handed down from main.
type Dependencies struct {
	DB          *mongo.Database
	RedisClient *redis.Client
	Router      *events.Router
	WSManager   *websocket.Manager
	Config      *config.Config
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	// Rate limiting backed by Redis, falling back to an in-memory limiter
	// when Redis is down.
	var limiter ratelimit.RateLimiter
	if deps.RedisClient != nil && deps.RedisClient.HealthCheck().IsConnected {
		limiter = ratelimit.NewRedisRateLimiter(deps.RedisClient.GetClient(), ratelimit.DefaultConfig())
	} else {
		limiter = ratelimit.NewMemoryRateLimiter(ratelimit.DefaultConfig())
	}
	router.Use(middleware.RateLimitMiddleware(limiter))

	// Initialize repositories
	userRepo := repository.NewUserRepository(deps.DB)
	fuelRequestRepo := repository.NewFuelRequestRepository(deps.DB)

	// Initialize services
	authService := services.NewAuthService(userRepo)
	specProvider := services.NewHTTPSpecProvider(deps.Config.SpecProvider.BaseURL, deps.Config.SpecProvider.Timeout)
	specCache := cache.NewDefaultSpecCache(deps.RedisClient)
	specService := services.NewVehicleSpecService(specProvider, specCache, deps.Config.SpecProvider.Timeout)
	fuelRequestService := services.NewFuelRequestService(fuelRequestRepo, specService, deps.Router)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	fuelRequestHandler := handlers.NewFuelRequestHandler(fuelRequestService)
	specHandler := handlers.NewVehicleSpecHandler(specService)
	wsHandler := handlers.NewWebSocketHandler(deps.WSManager)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.RedisClient)

	// API routes
	api := router.Group("/api/v1")

	api.GET("/health", healthHandler.HealthCheck)

	// Public routes
	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
		auth.POST("/refresh", authHandler.RefreshTokenPublic)
		auth.POST("/register", authHandler.Register)
	}

	// WebSocket endpoint authenticates via token query parameter
	api.GET("/ws", wsHandler.HandleWebSocket)

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware())
	{
		protected.GET("/auth/profile", authHandler.GetProfile)

		// Fuel requests
		fuelRequests := protected.Group("/fuel-requests")
		{
			fuelRequests.GET("", fuelRequestHandler.GetFuelRequests)
			fuelRequests.POST("", fuelRequestHandler.CreateFuelRequest)
			fuelRequests.GET("/stats", middleware.ManagerOnly(), fuelRequestHandler.GetFuelRequestStats)
			fuelRequests.GET("/:id", fuelRequestHandler.GetFuelRequest)
			fuelRequests.GET("/:id/validation", fuelRequestHandler.GetValidationDetails)
			fuelRequests.POST("/:id/approve", middleware.ManagerOnly(), fuelRequestHandler.ApproveFuelRequest)
			fuelRequests.POST("/:id/reject", middleware.ManagerOnly(), fuelRequestHandler.RejectFuelRequest)
			fuelRequests.POST("/:id/cancel", fuelRequestHandler.CancelFuelRequest)
			fuelRequests.POST("/:id/fulfill", middleware.ManagerOnly(), fuelRequestHandler.FulfillFuelRequest)
		}

		// Vehicle specs
		vehicles := protected.Group("/vehicles")
		{
			vehicles.GET("/:id/spec", specHandler.GetVehicleSpec)
			vehicles.PUT("/:id/spec", middleware.ManagerOnly(), specHandler.OverrideVehicleSpec)
			vehicles.GET("/:id/fuel-level", specHandler.GetVehicleFuelLevel)
		}

		// WebSocket administration
		ws := protected.Group("/ws")
		{
			ws.GET("/clients", middleware.ManagerOnly(), wsHandler.GetConnectedClients)
			ws.DELETE("/clients/:clientId", middleware.ManagerOnly(), wsHandler.DisconnectClient)
		}
	}
}
