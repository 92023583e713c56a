package main

import (
	"context"
	"fmt"

	"github.com/estatedesk/lead-router/api/routes"
	"github.com/estatedesk/lead-router/internal/notifications"
	"github.com/estatedesk/lead-router/pkg/amqp"
	"github.com/estatedesk/lead-router/pkg/config"
	"github.com/estatedesk/lead-router/pkg/logger"
	"github.com/estatedesk/lead-router/pkg/pubsub"
)

// boundTransport carries the selected transport with its readiness probe and closer.
type boundTransport struct {
	notifications.Transport
	Pinger routes.Pinger
	close  func() error
}

func (b boundTransport) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

func newTransport(ctx context.Context, cfg *config.Config, logg *logger.Logger) (boundTransport, error) {
	switch cfg.Notifier.Transport {
	case config.TransportAMQP:
		client, err := amqp.NewClient(ctx, cfg.AMQP, cfg.Notifier.ProducerName, logg)
		if err != nil {
			return boundTransport{}, err
		}
		return boundTransport{Transport: notifications.NewAMQPTransport(client), Pinger: client, close: client.Close}, nil
	case config.TransportPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return boundTransport{}, err
		}
		return boundTransport{Transport: notifications.NewPubSubTransport(client), Pinger: client, close: client.Close}, nil
	case config.TransportLog, "":
		return boundTransport{Transport: notifications.NewLogTransport(logg)}, nil
	default:
		return boundTransport{}, fmt.Errorf("unknown notifier transport %q", cfg.Notifier.Transport)
	}
}
