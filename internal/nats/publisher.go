package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"workorder-service/internal/models"
)

// ChangeNotification is the message pushed for every committed order event
type ChangeNotification struct {
	TenantID string             `json:"tenant_id"`
	OrderID  string             `json:"order_id"`
	Type     models.EventType   `json:"type"`
	Event    *models.OrderEvent `json:"event"`
}

// Publisher pushes change notifications to JetStream behind a circuit breaker
type Publisher struct {
	client  *Client
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewPublisher creates a new change-notification publisher
func NewPublisher(client *Client, logger *logrus.Logger) *Publisher {
	settings := gobreaker.Settings{
		Name:    "nats-publish",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Publish circuit breaker state changed")
		},
	}

	return &Publisher{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// PublishOrderEvent publishes a committed order event to the subject
// workorders.{tenant_id}.{event_type}
func (p *Publisher) PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error {
	if p.client == nil || !p.client.IsConnected() {
		p.logger.Warn("NATS not connected, skipping event publish")
		return nil
	}

	notification := ChangeNotification{
		TenantID: event.TenantID.String(),
		OrderID:  event.OrderID.String(),
		Type:     event.EventType,
		Event:    event,
	}

	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal change notification: %w", err)
	}

	subject := fmt.Sprintf("workorders.%s.%s", notification.TenantID, event.EventType)

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return p.client.JetStream().Publish(subject, data, nats.Context(ctx))
	})
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"tenant_id": notification.TenantID,
			"order_id":  notification.OrderID,
			"subject":   subject,
		}).WithError(err).Error("Failed to publish change notification")
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"tenant_id": notification.TenantID,
		"order_id":  notification.OrderID,
		"type":      event.EventType,
	}).Debug("Published change notification")
	return nil
}
