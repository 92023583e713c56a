package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/estatedesk/lead-router/pkg/amqp"
	"github.com/estatedesk/lead-router/pkg/logger"
)

// Transport hands an envelope to the delivery system and returns its message id.
type Transport interface {
	Name() string
	Publish(ctx context.Context, env Envelope) (string, error)
}

type amqpPublisher interface {
	Publish(ctx context.Context, msg amqp.Message) error
}

// AMQPTransport publishes envelopes to a RabbitMQ exchange.
type AMQPTransport struct {
	client amqpPublisher
}

// NewAMQPTransport wraps a RabbitMQ publisher.
func NewAMQPTransport(client amqpPublisher) *AMQPTransport {
	return &AMQPTransport{client: client}
}

func (t *AMQPTransport) Name() string { return "amqp" }

func (t *AMQPTransport) Publish(ctx context.Context, env Envelope) (string, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	err = t.client.Publish(ctx, amqp.Message{
		ID:            env.Meta.ID,
		CorrelationID: env.Meta.CorrelationID,
		Type:          env.Meta.Type,
		Body:          body,
		Timestamp:     env.Meta.Time,
	})
	if err != nil {
		return "", err
	}
	return env.Meta.ID, nil
}

type pubsubPublisher interface {
	PublishNotification(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// PubSubTransport publishes envelopes to the GCP notification topic.
type PubSubTransport struct {
	client pubsubPublisher
}

// NewPubSubTransport wraps a Pub/Sub publisher.
func NewPubSubTransport(client pubsubPublisher) *PubSubTransport {
	return &PubSubTransport{client: client}
}

func (t *PubSubTransport) Name() string { return "pubsub" }

func (t *PubSubTransport) Publish(ctx context.Context, env Envelope) (string, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return t.client.PublishNotification(ctx, body, map[string]string{
		"type":           env.Meta.Type,
		"event_id":       env.Meta.ID,
		"correlation_id": env.Meta.CorrelationID,
		"template":       env.Data.Template,
	})
}

// LogTransport writes envelopes to the log instead of delivering them.
type LogTransport struct {
	logg *logger.Logger
}

// NewLogTransport builds a dry-run transport.
func NewLogTransport(logg *logger.Logger) *LogTransport {
	return &LogTransport{logg: logg}
}

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) Publish(ctx context.Context, env Envelope) (string, error) {
	logCtx := t.logg.WithFields(ctx, map[string]any{
		"message_id": env.Meta.ID,
		"template":   env.Data.Template,
		"to":         env.Data.To,
	})
	t.logg.Info(logCtx, "notification (dry run)")
	return env.Meta.ID, nil
}
