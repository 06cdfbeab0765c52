package routes

import (
	"net/http"

	"github.com/donatehub/donatehub/controllers"
	"github.com/donatehub/donatehub/middleware"
	"github.com/donatehub/donatehub/utils"
	"github.com/gin-gonic/gin"
)

// SetupRouter initializes and returns the Gin router with all routes
func SetupRouter() *gin.Engine {
	router := gin.New()

	router.Use(utils.LoggerMiddleware())
	router.Use(utils.RecoveryMiddleware())
	router.Use(utils.CORSMiddleware())
	router.Use(utils.RequestIDMiddleware())
	router.Use(utils.SecurityHeadersMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/v1")
	{
		// Public payment surface
		api.POST("/payments", controllers.CreatePayment)
		api.GET("/payments/methods", controllers.GetPaymentMethods)
		api.GET("/payments/:transaction_id", controllers.GetPaymentStatus)

		// Money-moving admin operations live on the payment resource
		api.POST("/payments/:transaction_id/cancel", middleware.AdminAuthMiddleware(), controllers.CancelPayment)
		api.POST("/payments/:transaction_id/refund", middleware.AdminAuthMiddleware(), controllers.RefundPayment)

		// Provider callbacks
		api.POST("/webhooks/:provider", controllers.HandleWebhook)

		// Donation receipts
		api.GET("/donations/:id/receipt", controllers.DownloadDonationReceipt)

		// Scheduler entry points, guarded by a shared secret
		cron := api.Group("/cron", middleware.CronAuthMiddleware())
		{
			cron.POST("/recurring", controllers.RunRecurringCharges)
			cron.POST("/recurring/test", controllers.RunSingleSubscriptionCharge)
		}

		// Admin surface
		admin := api.Group("/admin")
		{
			admin.POST("/login", controllers.AdminLogin)

			protected := admin.Group("", middleware.AdminAuthMiddleware())
			{
				protected.GET("/transactions", controllers.ListTransactions)
				protected.GET("/transactions/export", controllers.DownloadTransactionsExcel)
			}
		}
	}

	return router
}
