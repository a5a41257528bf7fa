package repository

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"checkout-service/models"
)

const (
	checkoutsCollection = "checkouts"
	ordersCollection    = "orders"
)

type checkoutDocument struct {
	ID                string    `bson:"_id"`
	Slug              string    `bson:"slug"`
	OrderID           string    `bson:"orderId"`
	UserID            string    `bson:"userId"`
	Name              string    `bson:"name"`
	Phone             string    `bson:"phone"`
	Address           string    `bson:"address"`
	Email             string    `bson:"email"`
	PaymentMethod     string    `bson:"paymentMethod"`
	PaymentStatus     string    `bson:"paymentStatus"`
	PaymentMethodInfo bson.D    `bson:"paymentMethodInfo,omitempty"`
	OrderCode         string    `bson:"orderCode,omitempty"`
	Amount            int64     `bson:"amount"`
	CreatedAt         time.Time `bson:"createdAt"`
	UpdatedAt         time.Time `bson:"updatedAt"`
}

type orderItemDocument struct {
	ProductID string `bson:"productId"`
	Quantity  int64  `bson:"quantity"`
	Price     int64  `bson:"price"`
	Variant   string `bson:"variant,omitempty"`
}

type orderDocument struct {
	ID         string              `bson:"_id"`
	Slug       string              `bson:"slug"`
	UserID     string              `bson:"userId"`
	OrderItems []orderItemDocument `bson:"orderItems"`
	TotalPrice int64               `bson:"totalPrice"`
	Status     string              `bson:"status"`
	CreatedAt  time.Time           `bson:"createdAt"`
	UpdatedAt  time.Time           `bson:"updatedAt"`
}

// infoToBSON stores the union as a sub-document through its JSON form so
// Extra keys survive the round trip.
func infoToBSON(info models.PaymentMethodInfo) (bson.D, error) {
	if info.IsZero() {
		return nil, nil
	}
	raw, err := info.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		return nil, fmt.Errorf("payment method info to bson: %w", err)
	}
	return doc, nil
}

func infoFromBSON(doc bson.D) (models.PaymentMethodInfo, error) {
	var info models.PaymentMethodInfo
	if len(doc) == 0 {
		return info, nil
	}
	raw, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return info, fmt.Errorf("payment method info from bson: %w", err)
	}
	err = info.UnmarshalJSON(raw)
	return info, err
}

func toCheckoutDocument(c *models.Checkout) (*checkoutDocument, error) {
	info, err := infoToBSON(c.PaymentMethodInfo)
	if err != nil {
		return nil, err
	}
	return &checkoutDocument{
		ID:                c.ID.String(),
		Slug:              c.Slug,
		OrderID:           c.OrderID.String(),
		UserID:            c.UserID,
		Name:              c.Name,
		Phone:             c.Phone,
		Address:           c.Address,
		Email:             c.Email,
		PaymentMethod:     string(c.PaymentMethod),
		PaymentStatus:     string(c.PaymentStatus),
		PaymentMethodInfo: info,
		OrderCode:         c.OrderCode,
		Amount:            c.Amount,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}, nil
}

func (d *checkoutDocument) toModel() (*models.Checkout, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("checkout %q: bad id: %w", d.ID, err)
	}
	orderID, err := uuid.Parse(d.OrderID)
	if err != nil {
		return nil, fmt.Errorf("checkout %q: bad order id: %w", d.ID, err)
	}
	info, err := infoFromBSON(d.PaymentMethodInfo)
	if err != nil {
		return nil, err
	}
	return &models.Checkout{
		ID:                id,
		Slug:              d.Slug,
		OrderID:           orderID,
		UserID:            d.UserID,
		Name:              d.Name,
		Phone:             d.Phone,
		Address:           d.Address,
		Email:             d.Email,
		PaymentMethod:     models.PaymentMethod(d.PaymentMethod),
		PaymentStatus:     models.PaymentStatus(d.PaymentStatus),
		PaymentMethodInfo: info,
		OrderCode:         d.OrderCode,
		Amount:            d.Amount,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}, nil
}

func toOrderDocument(o *models.Order) *orderDocument {
	items := make([]orderItemDocument, 0, len(o.OrderItems))
	for _, it := range o.OrderItems {
		items = append(items, orderItemDocument(it))
	}
	return &orderDocument{
		ID:         o.ID.String(),
		Slug:       o.Slug,
		UserID:     o.UserID,
		OrderItems: items,
		TotalPrice: o.TotalPrice,
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

func (d *orderDocument) toModel() (*models.Order, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("order %q: bad id: %w", d.ID, err)
	}
	items := make(models.OrderItems, 0, len(d.OrderItems))
	for _, it := range d.OrderItems {
		items = append(items, models.OrderItem(it))
	}
	return &models.Order{
		ID:         id,
		Slug:       d.Slug,
		UserID:     d.UserID,
		OrderItems: items,
		TotalPrice: d.TotalPrice,
		Status:     models.OrderStatus(d.Status),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}, nil
}
