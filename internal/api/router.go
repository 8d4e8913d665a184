package api

import (
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/stockwatch/backend/internal/config"
	"github.com/stockwatch/backend/internal/handlers"
	"github.com/stockwatch/backend/internal/middleware"
	"github.com/stockwatch/backend/internal/services"
)

// SetupRouter configures all routes and returns the router
func SetupRouter(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *mux.Router {
	// Create a new router
	router := mux.NewRouter()

	// Health check stays outside the rate-limited surface
	router.HandleFunc("/api/health", HealthHandler).Methods("GET")

	// Create services
	authService := services.NewAuthService(db, cfg.JWT)
	userService := services.NewUserService(db)
	companyService := services.NewCompanyService(db, cfg.Import.BatchSize)
	watchlistService := services.NewWatchlistService(db, companyService)

	// Create handlers using services
	authHandler := handlers.NewAuthHandler(authService)
	companyHandler := handlers.NewCompanyHandler(companyService)
	watchlistHandler := handlers.NewWatchlistHandler(watchlistService)

	// Everything under /api is admission-controlled before any handler runs
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(middleware.RateLimitMiddleware(redisClient, cfg.JWT.SecretKey, cfg.RateLimit))

	// Public endpoints (no authentication required)
	authHandler.RegisterRoutes(apiRouter)
	companyHandler.RegisterRoutes(apiRouter)

	// Create a subrouter for authenticated endpoints
	authRouter := apiRouter.PathPrefix("").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg.JWT.SecretKey, userService))

	watchlistHandler.RegisterRoutes(authRouter)

	return router
}
