package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type OrderItem struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
	Price     int64  `json:"price"`
	Variant   string `json:"variant,omitempty"`
}

// OrderItems is stored as a jsonb column.
type OrderItems []OrderItem

func (o OrderItems) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	b, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (o *OrderItems) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*o = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("order items: unsupported scan type %T", src)
	}
	return json.Unmarshal(data, o)
}

// Total is the sum of price x quantity over all items.
func (o OrderItems) Total() int64 {
	var total int64
	for _, it := range o {
		total += it.Price * it.Quantity
	}
	return total
}

type Order struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Slug       string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"slug"`
	UserID     string         `gorm:"type:varchar(64);index;not null" json:"userId"`
	OrderItems OrderItems     `gorm:"type:jsonb;not null" json:"orderItems"`
	TotalPrice int64          `gorm:"not null" json:"totalPrice"`
	Status     OrderStatus    `gorm:"type:varchar(20);not null;default:pending" json:"status"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeSave keeps TotalPrice derived from the items. Column-only updates
// carry no items and leave the total alone.
func (o *Order) BeforeSave(tx *gorm.DB) error {
	if len(o.OrderItems) > 0 {
		o.Recalculate()
	}
	return nil
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}
	return nil
}

// Recalculate recomputes TotalPrice from OrderItems.
func (o *Order) Recalculate() {
	o.TotalPrice = o.OrderItems.Total()
}
