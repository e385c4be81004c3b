// Package eventbridge delivers notifications through AWS EventBridge.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"reqtrack-backend/infrastructure/messaging"
)

const source = "reqtrack.backend"

// Publisher implements messaging.Publisher over EventBridge PutEvents.
type Publisher struct {
	client       *eventbridge.Client
	eventBusName string
	logger       *zap.Logger
}

// NewPublisher creates an EventBridge-backed publisher.
func NewPublisher(client *eventbridge.Client, eventBusName string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
	}
}

// Publish sends one notification, retrying transient failures with
// exponential backoff. Callers treat failures as non-fatal; the write
// the notification describes has already committed.
func (p *Publisher) Publish(ctx context.Context, n messaging.Notification) error {
	const maxRetries = 3
	backoff := 100 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err = p.put(ctx, n); err == nil {
			return nil
		}
		if attempt < maxRetries-1 {
			p.logger.Warn("Retrying notification publish",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("failed to publish notification after %d attempts: %w", maxRetries, err)
}

func (p *Publisher) put(ctx context.Context, n messaging.Notification) error {
	detail, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	input := &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(source),
			DetailType:   aws.String(n.Kind),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(n.Timestamp),
		}},
	}

	result, err := p.client.PutEvents(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to publish to EventBridge: %w", err)
	}
	if result.FailedEntryCount > 0 {
		entry := result.Entries[0]
		return fmt.Errorf("EventBridge rejected notification: %s %s",
			aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
	}

	p.logger.Debug("Notification published",
		zap.String("kind", n.Kind),
		zap.String("eventBus", p.eventBusName),
	)
	return nil
}
