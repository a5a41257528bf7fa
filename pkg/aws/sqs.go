package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSSender is the subset of SQS used by producers.
type SQSSender interface {
	SendMessage(ctx context.Context, body string) error
}

// SQSClient sends messages to a single queue.
type SQSClient struct {
	client   *sqs.Client
	queueURL string
}

// NewSQSClient creates a client bound to the given queue URL.
func NewSQSClient(cfg aws.Config, queueURL string) *SQSClient {
	return &SQSClient{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
	}
}

// QueueURL returns the queue this client sends to.
func (c *SQSClient) QueueURL() string {
	return c.queueURL
}

// SendMessage sends a single message to the queue.
func (c *SQSClient) SendMessage(ctx context.Context, body string) error {
	if c.queueURL == "" {
		return fmt.Errorf("empty queueURL")
	}
	_, err := c.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &c.queueURL,
		MessageBody: &body,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// GetQueueURL retrieves the URL for a queue name
func GetQueueURL(ctx context.Context, cfg aws.Config, queueName string) (string, error) {
	client := sqs.NewFromConfig(cfg)
	result, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: &queueName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get queue URL: %w", err)
	}
	return *result.QueueUrl, nil
}
