package providers

import (
	"context"
	"errors"
	"fmt"

	"checkout-service/models"
)

// ErrProviderUnavailable is wrapped by every adapter failure.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

// InitiateRequest carries what an adapter needs to start a payment.
type InitiateRequest struct {
	Order        *models.Order
	CheckoutSlug string
	Amount       int64
	// OrderCode is the numeric PayOS correlation code; other rails ignore it.
	OrderCode int64
	ReturnURL string
	CancelURL string
}

// Provider is implemented by every payment rail.
type Provider interface {
	Method() models.PaymentMethod
	// Initiate returns the provider artifact stored on the checkout.
	Initiate(ctx context.Context, req InitiateRequest) (models.PaymentMethodInfo, error)
}

// Registry maps a payment method to its adapter.
type Registry struct {
	providers map[models.PaymentMethod]Provider
}

func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[models.PaymentMethod]Provider, len(ps))}
	for _, p := range ps {
		r.providers[p.Method()] = p
	}
	return r
}

// Get returns the adapter for m, or ErrProviderUnavailable.
func (r *Registry) Get(m models.PaymentMethod) (Provider, error) {
	p, ok := r.providers[m]
	if !ok {
		return nil, fmt.Errorf("%w: no adapter for %q", ErrProviderUnavailable, m)
	}
	return p, nil
}
