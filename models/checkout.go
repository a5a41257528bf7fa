package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodBank     PaymentMethod = "bank"
	PaymentMethodPayos    PaymentMethod = "payos"
	PaymentMethodPaypal   PaymentMethod = "paypal"
	PaymentMethodMetamask PaymentMethod = "metamask"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBank, PaymentMethodPayos, PaymentMethodPaypal, PaymentMethodMetamask:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed:
		return true
	}
	return false
}

// Checkout is the payment record bound to exactly one order. Only
// PaymentStatus and PaymentMethodInfo change after creation.
type Checkout struct {
	ID                uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Slug              string            `gorm:"type:varchar(128);uniqueIndex;not null" json:"slug"`
	OrderID           uuid.UUID         `gorm:"type:uuid;uniqueIndex;not null" json:"orderId"`
	UserID            string            `gorm:"type:varchar(64);index;not null" json:"userId"`
	Name              string            `gorm:"type:varchar(255);not null" json:"name"`
	Phone             string            `gorm:"type:varchar(32);not null" json:"phone"`
	Address           string            `gorm:"type:text;not null" json:"address"`
	Email             string            `gorm:"type:varchar(255);not null" json:"email"`
	PaymentMethod     PaymentMethod     `gorm:"type:varchar(20);not null" json:"paymentMethod"`
	PaymentStatus     PaymentStatus     `gorm:"type:varchar(20);not null;default:pending;index" json:"paymentStatus"`
	PaymentMethodInfo PaymentMethodInfo `gorm:"type:jsonb" json:"paymentMethodInfo"`
	OrderCode         string            `gorm:"type:varchar(32);index:idx_checkouts_order_code,unique,where:order_code <> ''" json:"orderCode,omitempty"`
	Amount            int64             `gorm:"not null" json:"amount"`
	CreatedAt         time.Time         `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time         `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt         gorm.DeletedAt    `gorm:"index" json:"-"`
}

func (c *Checkout) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.PaymentStatus == "" {
		c.PaymentStatus = PaymentStatusPending
	}
	return nil
}
