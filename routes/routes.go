package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"checkout-service/controllers"
	"checkout-service/middleware"
)

// RegisterHealthRoutes mounts GET /health.
func RegisterHealthRoutes(r *gin.Engine, serviceName string) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	})
}

func RegisterCheckoutRoutes(r *gin.Engine, cc *controllers.CheckoutController, tokens middleware.TokenValidator) {
	checkouts := r.Group("/checkoutapi")
	checkouts.POST("", cc.CreateCheckout)
	checkouts.PUT("/:slug/payment-status", cc.UpdatePaymentStatus)
	checkouts.GET("/:slug", cc.GetCheckout)

	// MetaMask
	checkouts.GET("/metamask/:slug/payment-info", cc.GetWalletPaymentInfo)
	checkouts.POST("/metamask/:slug/verify", cc.VerifyWalletTransaction)

	// Admin
	checkouts.GET("", middleware.AuthMiddleware(tokens), middleware.AdminOnly(), cc.ListCheckouts)
}

// RegisterPayosRoutes mounts the provider-facing routes (no auth).
func RegisterPayosRoutes(r *gin.Engine, pc *controllers.PayosController) {
	payos := r.Group("/payos")
	payos.POST("/webhook", pc.Webhook)
	payos.GET("/check-payment-status", pc.CheckPaymentStatus)
}
