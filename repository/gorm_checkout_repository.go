package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"checkout-service/models"
)

type gormCheckoutRepo struct {
	db *gorm.DB
}

func NewGormCheckoutRepo(db *gorm.DB) CheckoutRepository {
	return &gormCheckoutRepo{db: db}
}

func (r *gormCheckoutRepo) Create(ctx context.Context, checkout *models.Checkout) error {
	return translate(r.db.WithContext(ctx).Create(checkout).Error)
}

func (r *gormCheckoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Checkout, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *gormCheckoutRepo) GetBySlug(ctx context.Context, slug string) (*models.Checkout, error) {
	return r.first(ctx, "slug = ?", slug)
}

func (r *gormCheckoutRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Checkout, error) {
	return r.first(ctx, "order_id = ?", orderID)
}

func (r *gormCheckoutRepo) GetByOrderCode(ctx context.Context, orderCode string) (*models.Checkout, error) {
	if orderCode == "" {
		return nil, ErrNotFound
	}
	return r.first(ctx, "order_code = ?", orderCode)
}

func (r *gormCheckoutRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.Checkout{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

func (r *gormCheckoutRepo) List(ctx context.Context, offset, limit int) ([]models.Checkout, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Checkout{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.Checkout
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error
	return items, total, err
}

func (r *gormCheckoutRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.PaymentStatus, info models.PaymentMethodInfo) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Checkout{}).
		Where("id = ? AND payment_status = ?", id, from).
		Updates(map[string]interface{}{
			"payment_status":      to,
			"payment_method_info": info,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *gormCheckoutRepo) first(ctx context.Context, query string, args ...interface{}) (*models.Checkout, error) {
	var checkout models.Checkout
	if err := r.db.WithContext(ctx).Where(query, args...).First(&checkout).Error; err != nil {
		return nil, translate(err)
	}
	return &checkout, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}
