package providers

import (
	"context"

	"checkout-service/models"
)

// CashProvider handles cash on delivery. Nothing is called upstream.
type CashProvider struct{}

func NewCashProvider() *CashProvider { return &CashProvider{} }

func (p *CashProvider) Method() models.PaymentMethod { return models.PaymentMethodCash }

func (p *CashProvider) Initiate(_ context.Context, _ InitiateRequest) (models.PaymentMethodInfo, error) {
	return models.NewCashInfo(models.CashInfo{Note: "cash on delivery"}), nil
}
