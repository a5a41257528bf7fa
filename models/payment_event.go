package models

import "time"

type EventType string

const (
	EventOrderCreated     EventType = "order_created"
	EventPaymentConfirmed EventType = "payment_confirmed"
	EventPaymentFailed    EventType = "payment_failed"
)

// PaymentEvent is emitted to the notification dispatcher after a checkout is
// created or its payment status changes.
type PaymentEvent struct {
	Type          EventType     `json:"type"`
	CheckoutID    string        `json:"checkout_id"`
	CheckoutSlug  string        `json:"checkout_slug"`
	OrderID       string        `json:"order_id"`
	UserID        string        `json:"user_id"`
	Email         string        `json:"email"`
	Name          string        `json:"name"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	OrderCode     string        `json:"order_code,omitempty"`
	Amount        int64         `json:"amount"`
	Currency      string        `json:"currency"`
	Timestamp     time.Time     `json:"timestamp"`
}

// NewPaymentEvent builds an event from the checkout's current state.
func NewPaymentEvent(t EventType, c *Checkout) PaymentEvent {
	return PaymentEvent{
		Type:          t,
		CheckoutID:    c.ID.String(),
		CheckoutSlug:  c.Slug,
		OrderID:       c.OrderID.String(),
		UserID:        c.UserID,
		Email:         c.Email,
		Name:          c.Name,
		PaymentMethod: c.PaymentMethod,
		PaymentStatus: c.PaymentStatus,
		OrderCode:     c.OrderCode,
		Amount:        c.Amount,
		Currency:      "VND",
		Timestamp:     time.Now().UTC(),
	}
}
