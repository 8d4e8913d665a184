package main

import (
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/stockwatch/backend/internal/api"
	"github.com/stockwatch/backend/internal/config"
	"github.com/stockwatch/backend/internal/db"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database connection
	database, err := db.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Initialize Redis client; rate limiting fails open without it
	redisClient, err := db.ConnectRedis(cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis, rate limiting disabled: %v", err)
		redisClient = nil
	}

	// Initialize router
	router := api.SetupRouter(database, redisClient, cfg)
	api.PrintRoutes(router)

	// Set up CORS
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	handler := corsMiddleware.Handler(router)

	// Start the server
	log.Printf("Server starting on port %s", cfg.Server.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Server.Port, handler))
}
