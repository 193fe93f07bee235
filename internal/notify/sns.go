// Package notify publishes alert payloads to the notification topic.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	snssvc "github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"
)

// Notifier is the sink alerts are dispatched to. Delivery is
// fire-and-forget: implementations report publish errors but offer no
// delivery confirmation.
type Notifier interface {
	Publish(ctx context.Context, topicARN string, payload any) error
}

// PublishAPIClient is the narrow SNS interface used by SNSNotifier.
type PublishAPIClient interface {
	Publish(ctx context.Context, params *snssvc.PublishInput, optFns ...func(*snssvc.Options)) (*snssvc.PublishOutput, error)
}

// SNSNotifier publishes JSON-serialized payloads to an SNS topic.
type SNSNotifier struct {
	client PublishAPIClient
	log    *zap.Logger
}

// NewSNSNotifier constructs an SNSNotifier around the given SNS client.
func NewSNSNotifier(client PublishAPIClient, log *zap.Logger) *SNSNotifier {
	return &SNSNotifier{client: client, log: log}
}

// Publish implements Notifier.
func (n *SNSNotifier) Publish(ctx context.Context, topicARN string, payload any) error {
	message, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal alert payload: %w", err)
	}

	_, err = n.client.Publish(ctx, &snssvc.PublishInput{
		TopicArn: aws.String(topicARN),
		Message:  aws.String(string(message)),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topicARN, err)
	}

	n.log.Debug("alert published", zap.String("topic", topicARN))
	return nil
}
