package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "checkout-service/common/errors"
	"checkout-service/models"
	"checkout-service/services"
)

// WebhookHandler applies a verified PayOS webhook.
type WebhookHandler interface {
	HandlePayosWebhook(ctx context.Context, payload models.WebhookPayload) (*services.WebhookResult, error)
}

// PayosController serves the provider-facing /payos routes.
type PayosController struct {
	webhooks        WebhookHandler
	checkoutService services.CheckoutService
	logger          *zap.Logger
}

func NewPayosController(webhooks WebhookHandler, svc services.CheckoutService, logger *zap.Logger) *PayosController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PayosController{webhooks: webhooks, checkoutService: svc, logger: logger}
}

// Webhook handles POST /payos/webhook
func (pc *PayosController) Webhook(c *gin.Context) {
	var payload models.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		pc.logger.Warn("unparsable PayOS webhook", zap.Error(err))
		_ = c.Error(apperrors.BadRequest("Invalid webhook payload", err))
		return
	}

	result, err := pc.webhooks.HandlePayosWebhook(c.Request.Context(), payload)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "result": result.Result})
}

// CheckPaymentStatus handles GET /payos/check-payment-status?orderCode=
func (pc *PayosController) CheckPaymentStatus(c *gin.Context) {
	orderCode := c.Query("orderCode")
	if orderCode == "" {
		_ = c.Error(apperrors.Validation("orderCode is required"))
		return
	}

	status, found, err := pc.checkoutService.GetPaymentStatusByOrderCode(c.Request.Context(), orderCode)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"status": "not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}
