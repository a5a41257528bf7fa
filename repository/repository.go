package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"checkout-service/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate key")
)

type CheckoutRepository interface {
	Create(ctx context.Context, checkout *models.Checkout) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Checkout, error)
	GetBySlug(ctx context.Context, slug string) (*models.Checkout, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Checkout, error)
	GetByOrderCode(ctx context.Context, orderCode string) (*models.Checkout, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, offset, limit int) ([]models.Checkout, int64, error)
	// TransitionStatus writes status and info only while the stored status
	// still equals from. It reports whether this call made the change.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.PaymentStatus, info models.PaymentMethodInfo) (bool, error)
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// AdvanceStatus moves the order from one status to another and reports
	// whether it was in from.
	AdvanceStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) (bool, error)
}
