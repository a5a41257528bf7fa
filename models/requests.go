package models

import (
	"encoding/json"
	"strings"
)

type CreateCheckoutRequest struct {
	OrderID       string        `json:"orderId" binding:"required"`
	UserID        string        `json:"userId" binding:"required"`
	Name          string        `json:"name" binding:"required"`
	Phone         string        `json:"phone" binding:"required"`
	Address       string        `json:"address" binding:"required"`
	Email         string        `json:"email" binding:"required,email"`
	PaymentMethod PaymentMethod `json:"paymentMethod" binding:"omitempty,payment_method"`
	ReturnURL     string        `json:"returnUrl" binding:"omitempty,url"`
	CancelURL     string        `json:"cancelUrl" binding:"omitempty,url"`
	// OrderCode is accepted as a number or a numeric string.
	OrderCode json.Number `json:"orderCode"`
}

type UpdatePaymentStatusRequest struct {
	PaymentStatus PaymentStatus `json:"paymentStatus" binding:"required,payment_status"`
}

type WalletVerifyRequest struct {
	TransactionHash string          `json:"transactionHash" binding:"required"`
	Amount          json.Number     `json:"amount" binding:"required"`
	WalletAddress   string          `json:"walletAddress" binding:"required"`
	Network         string          `json:"network"`
	ChainID         json.RawMessage `json:"chainId"`
	BlockExplorer   string          `json:"blockExplorer"`
}

// WebhookPayload is the body PayOS posts to the webhook endpoint.
type WebhookPayload struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Success   *bool           `json:"success,omitempty"`
	Data      json.RawMessage `json:"data" binding:"required"`
	Signature string          `json:"signature" binding:"required"`
}

type CheckoutResponse struct {
	*Checkout
	PayosPaymentLink string `json:"payosPaymentLink,omitempty"`
}

type ListResult struct {
	Items []Checkout `json:"items"`
	Total int64      `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}

// ChainIDString accepts chainId as a JSON number or string ("0x1" or "1").
func (r WalletVerifyRequest) ChainIDString() string {
	raw := strings.TrimSpace(string(r.ChainID))
	if raw == "" || raw == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.ChainID, &s); err == nil {
		return s
	}
	return raw
}
