package main

import (
	"log"
	"os"

	"github.com/donatehub/donatehub/config"
	"github.com/donatehub/donatehub/controllers"
	"github.com/donatehub/donatehub/routes"
	"github.com/donatehub/donatehub/utils"
)

func main() {
	// Initialize logger
	if err := utils.InitLogger(); err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}

	// Load environment variables
	_, err := config.LoadConfig()
	if err != nil {
		utils.LogError("Error loading config: %v", err)
		log.Fatal("Error loading config:", err)
	}

	// Initialize database
	config.InitDB()

	// Initialize Redis cache (optional, no-op when unconfigured)
	config.InitRedis()

	// Seed the first admin account from the environment
	controllers.EnsureDefaultAdmin()

	// Set up router
	router := routes.SetupRouter()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	utils.LogInfo("Server starting on port %s", port)
	// Start server
	if err := router.Run(":" + port); err != nil {
		utils.LogError("Error starting server: %v", err)
		log.Fatal("Error starting server:", err)
	}
}
