package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "checkout-service/common/errors"
	"checkout-service/models"
	"checkout-service/providers"
	"checkout-service/services"
)

// CheckoutController serves the /checkoutapi routes.
type CheckoutController struct {
	checkoutService services.CheckoutService
	logger          *zap.Logger
}

func NewCheckoutController(svc services.CheckoutService, logger *zap.Logger) *CheckoutController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutController{checkoutService: svc, logger: logger}
}

// CreateCheckout handles POST /checkoutapi
func (cc *CheckoutController) CreateCheckout(c *gin.Context) {
	var req models.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	resp, err := cc.checkoutService.Create(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// UpdatePaymentStatus handles PUT /checkoutapi/:slug/payment-status
func (cc *CheckoutController) UpdatePaymentStatus(c *gin.Context) {
	var req models.UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	checkout, err := cc.checkoutService.UpdatePaymentStatus(c.Request.Context(), c.Param("slug"), req.PaymentStatus)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, checkout)
}

// GetCheckout handles GET /checkoutapi/:slug
func (cc *CheckoutController) GetCheckout(c *gin.Context) {
	checkout, err := cc.checkoutService.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, checkout)
}

// ListCheckouts handles GET /checkoutapi
func (cc *CheckoutController) ListCheckouts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := cc.checkoutService.List(c.Request.Context(), page, limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetWalletPaymentInfo handles GET /checkoutapi/metamask/:slug/payment-info
func (cc *CheckoutController) GetWalletPaymentInfo(c *gin.Context) {
	info, err := cc.checkoutService.GetWalletPaymentInfo(c.Request.Context(), c.Param("slug"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// VerifyWalletTransaction handles POST /checkoutapi/metamask/:slug/verify
func (cc *CheckoutController) VerifyWalletTransaction(c *gin.Context) {
	var req models.WalletVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	checkout, err := cc.checkoutService.VerifyWalletTransaction(c.Request.Context(), c.Param("slug"), providers.WalletClaim{
		TransactionHash: req.TransactionHash,
		Amount:          req.Amount.String(),
		WalletAddress:   req.WalletAddress,
		Network:         req.Network,
		ChainID:         req.ChainIDString(),
		BlockExplorer:   req.BlockExplorer,
	})
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindValidation) {
			cc.logger.Warn("wallet claim rejected",
				zap.String("slug", c.Param("slug")),
				zap.String("tx_hash", req.TransactionHash),
				zap.Error(err))
		}
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "checkout": checkout})
}
