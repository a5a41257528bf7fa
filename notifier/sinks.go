package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"checkout-service/models"
	awspkg "checkout-service/pkg/aws"
)

// SNSSink publishes the event JSON to the payment-events topic with an
// event_type attribute for subscription filters.
type SNSSink struct {
	publisher awspkg.SNSPublisher
	topicArn  string
}

func NewSNSSink(publisher awspkg.SNSPublisher, topicArn string) *SNSSink {
	return &SNSSink{publisher: publisher, topicArn: topicArn}
}

func (s *SNSSink) Name() string { return "sns" }

func (s *SNSSink) Send(ctx context.Context, ev models.PaymentEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.publisher.PublishWithAttributes(ctx, s.topicArn, body, map[string]string{
		"event_type": string(ev.Type),
	})
}

// EventPayload is the message format read by notification-service.
type EventPayload struct {
	EventType string                 `json:"event_type"`
	Recipient string                 `json:"recipient"`
	Data      map[string]interface{} `json:"data"`
}

// SQSSink enqueues an EventPayload on the notification queue.
type SQSSink struct {
	sender awspkg.SQSSender
}

func NewSQSSink(sender awspkg.SQSSender) *SQSSink {
	return &SQSSink{sender: sender}
}

func (s *SQSSink) Name() string { return "sqs" }

func (s *SQSSink) Send(ctx context.Context, ev models.PaymentEvent) error {
	body, err := json.Marshal(ToEventPayload(ev))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return s.sender.SendMessage(ctx, string(body))
}

// ToEventPayload maps a payment event onto the notification-service format.
func ToEventPayload(ev models.PaymentEvent) EventPayload {
	return EventPayload{
		EventType: string(ev.Type),
		Recipient: ev.Email,
		Data: map[string]interface{}{
			"email":          ev.Email,
			"name":           ev.Name,
			"user_id":        ev.UserID,
			"order_id":       ev.OrderID,
			"checkout_slug":  ev.CheckoutSlug,
			"payment_method": string(ev.PaymentMethod),
			"payment_status": string(ev.PaymentStatus),
			"amount":         strconv.FormatInt(ev.Amount, 10),
			"currency":       ev.Currency,
		},
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes the event keyed by order id so all events of one order
// land on one partition.
type KafkaSink struct {
	writer messageWriter
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}}
}

func newKafkaSinkWithWriter(w messageWriter) *KafkaSink {
	return &KafkaSink{writer: w}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Send(ctx context.Context, ev models.PaymentEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
