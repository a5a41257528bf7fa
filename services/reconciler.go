package services

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "checkout-service/common/errors"
	"checkout-service/models"
	awspkg "checkout-service/pkg/aws"
	"checkout-service/signature"
)

const payosPaidCode = "00"

const (
	WebhookResultProcessed = "processed"
	WebhookResultNotFound  = "not_found"
)

// SignatureVerifier checks webhook data against its signature.
type SignatureVerifier interface {
	VerifySignature(data map[string]interface{}, sig string) bool
}

type WebhookResult struct {
	Result        string               `json:"result"`
	OrderCode     string               `json:"orderCode,omitempty"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus,omitempty"`
}

// Reconciler applies PayOS webhooks to checkouts.
type Reconciler struct {
	checkouts CheckoutService
	verifier  SignatureVerifier
	metrics   awspkg.MetricsRecorder
	logger    *zap.Logger
}

func NewReconciler(checkouts CheckoutService, verifier SignatureVerifier, metrics awspkg.MetricsRecorder, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{checkouts: checkouts, verifier: verifier, metrics: metrics, logger: logger}
}

// HandlePayosWebhook verifies the payload signature and applies the
// reported status. A valid webhook for an unknown order code is not an
// error: the provider would otherwise keep retrying it.
func (r *Reconciler) HandlePayosWebhook(ctx context.Context, payload models.WebhookPayload) (*WebhookResult, error) {
	data, err := signature.Decode(payload.Data)
	if err != nil {
		return nil, apperrors.BadRequest("Invalid webhook data", err)
	}

	if !r.verifier.VerifySignature(data, payload.Signature) {
		r.logger.Warn("PayOS webhook signature mismatch", zap.Any("order_code", data["orderCode"]))
		r.count(awspkg.MetricWebhookRejected)
		return nil, apperrors.Signature("Invalid signature")
	}

	orderCode := stringField(data, "orderCode")
	providerStatus := stringField(data, "status")
	code := stringField(data, "code")
	status := MapPayosStatus(providerStatus, code)

	checkout, found, err := r.checkouts.UpdateByOrderCode(ctx, orderCode, status, ProviderPayload{
		Raw:    payload.Data,
		Status: providerStatus,
		Code:   code,
	})
	if err != nil {
		return nil, err
	}
	if !found {
		r.logger.Warn("PayOS webhook for unknown order code", zap.String("order_code", orderCode))
		r.count(awspkg.MetricWebhookUnmatched)
		return &WebhookResult{Result: WebhookResultNotFound, OrderCode: orderCode}, nil
	}

	r.logger.Info("PayOS webhook processed",
		zap.String("order_code", orderCode),
		zap.String("provider_status", providerStatus),
		zap.String("payment_status", string(checkout.PaymentStatus)))

	return &WebhookResult{Result: WebhookResultProcessed, OrderCode: orderCode, PaymentStatus: checkout.PaymentStatus}, nil
}

// MapPayosStatus maps a PayOS status to a payment status. Without a status,
// code "00" means the payment went through.
func MapPayosStatus(status, code string) models.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "PAID":
		return models.PaymentStatusPaid
	case "FAILED", "CANCELLED", "CANCELED":
		return models.PaymentStatusFailed
	case "":
		if code == payosPaidCode {
			return models.PaymentStatusPaid
		}
	}
	return models.PaymentStatusPending
}

// recordPayosWebhook stores the raw webhook on the checkout's PayOS info.
func recordPayosWebhook(info *models.PaymentMethodInfo, orderCode string, payload ProviderPayload) {
	if info.Payos == nil {
		extra := info.Extra
		code, _ := strconv.ParseInt(orderCode, 10, 64)
		*info = models.NewPayosInfo(models.PayosInfo{OrderCode: code})
		info.Extra = extra
	} else {
		p := *info.Payos
		info.Payos = &p
	}

	switch {
	case payload.Status != "":
		info.Payos.Status = strings.ToUpper(payload.Status)
	case payload.Code == payosPaidCode:
		info.Payos.Status = "PAID"
	}
	if len(payload.Raw) > 0 {
		info.Payos.LastWebhook = append(json.RawMessage(nil), payload.Raw...)
	}
}

func stringField(data map[string]interface{}, key string) string {
	switch v := data[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func (r *Reconciler) count(metric string) {
	if r.metrics == nil || !r.metrics.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.metrics.RecordCount(ctx, metric, map[string]string{"Provider": "payos"})
	}()
}
