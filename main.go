package main

import (
	"log"
	"net/http"
	"os"

	"zap-shift-api/cache"
	"zap-shift-api/config"
	"zap-shift-api/handlers"
	"zap-shift-api/lifecycle"
	"zap-shift-api/logger"
	"zap-shift-api/payments"
	"zap-shift-api/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	// Structured logging to a rotating file
	logger.Setup()

	// Set Gin mode
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.DebugMode)
	}

	// Connect and migrate the database
	config.InitDB()

	// Tracking cache is optional; without REDIS_ADDR lookups go to the DB
	var trackingCache *cache.TrackingCache
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		var err error
		trackingCache, err = cache.New(addr)
		if err != nil {
			log.Fatal("Failed to connect to redis:", err)
		}
		defer trackingCache.Close()
	}

	engine := lifecycle.New(config.DB, payments.NewStripeClient(), trackingCache, os.Getenv("SITE_DOMAIN"))
	handlers.Init(engine)

	// Gin router with default middleware (logger + recovery)
	r := gin.Default()

	// CORS middleware for frontend integration
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	routes.SetupRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	log.Printf("Zap shift server is running on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
