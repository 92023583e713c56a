package amqp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/estatedesk/lead-router/pkg/config"
	"github.com/estatedesk/lead-router/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultPoolSize    = 4
	defaultConnTimeout = 30 * time.Second
	contentTypeJSON    = "application/json"
)

// ErrNacked is returned when the broker refuses a published message.
var ErrNacked = errors.New("amqp publish not acknowledged")

// Dialer opens a broker connection.
type Dialer func(ctx context.Context, url string, timeout time.Duration) (*amqp.Connection, error)

// Message is one persistent publish.
type Message struct {
	ID            string
	CorrelationID string
	Type          string
	Body          []byte
	Timestamp     time.Time
}

// Client publishes JSON messages to a topic exchange over pooled channels.
type Client struct {
	conn       *amqp.Connection
	pool       *ChannelPool
	cfg        config.AMQPConfig
	appID      string
	retryDelay time.Duration
	logg       *logger.Logger
}

// NewClient dials the broker, declares the exchange and prepares the channel pool.
func NewClient(ctx context.Context, cfg config.AMQPConfig, appID string, logg *logger.Logger) (*Client, error) {
	return NewClientWithDialer(ctx, cfg, appID, logg, dialWithTimeout)
}

// NewClientWithDialer is NewClient with a custom dial function.
func NewClientWithDialer(ctx context.Context, cfg config.AMQPConfig, appID string, logg *logger.Logger, dial Dialer) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("amqp url is required")
	}
	if cfg.Exchange == "" {
		return nil, fmt.Errorf("amqp exchange is required")
	}

	timeout := defaultConnTimeout
	if cfg.ConnTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.ConnTimeoutSeconds) * time.Second
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("context deadline exceeded before connection attempt")
		}
		if remaining < timeout {
			timeout = remaining
		}
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "host", hostOf(cfg.URL)), "connecting to rabbitmq")
	}

	conn, err := dial(ctx, cfg.URL, timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = safeClose(ch)
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", cfg.Exchange, err)
	}
	_ = safeClose(ch)

	size := cfg.PublishPoolSize
	if size <= 0 {
		size = defaultPoolSize
	}
	client := &Client{
		conn:       conn,
		pool:       NewChannelPool(conn, size),
		cfg:        cfg,
		appID:      appID,
		retryDelay: time.Duration(cfg.PoolRetryDelayMs) * time.Millisecond,
		logg:       logg,
	}
	if logg != nil {
		logg.Info(ctx, "rabbitmq client ready")
	}
	return client, nil
}

// Publish sends msg to the configured exchange and routing key and waits for the broker confirm.
func (c *Client) Publish(ctx context.Context, msg Message) error {
	return c.PublishTo(ctx, c.cfg.Exchange, c.cfg.RoutingKey, msg)
}

// PublishTo sends msg to an explicit exchange and routing key.
func (c *Client) PublishTo(ctx context.Context, exchange, routingKey string, msg Message) error {
	if c == nil || c.pool == nil {
		return fmt.Errorf("amqp client not initialized")
	}
	publishing, err := buildPublishing(msg, c.appID)
	if err != nil {
		return err
	}

	ch, err := c.pool.Borrow(ctx, c.retryDelay)
	if err != nil {
		return fmt.Errorf("borrow channel: %w", err)
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, false, false, publishing)
	if err != nil {
		c.pool.Discard(ch)
		return fmt.Errorf("publish: %w", err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		c.pool.Discard(ch)
		return fmt.Errorf("await confirm: %w", err)
	}
	c.pool.Return(ch)
	if !acked {
		return ErrNacked
	}
	return nil
}

// Ping reports whether the underlying connection is still open.
func (c *Client) Ping(context.Context) error {
	if c == nil || c.conn == nil || c.conn.IsClosed() {
		return errConnClosed
	}
	return nil
}

// Close closes the pool and the connection.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if c.pool != nil {
		c.pool.Close()
	}
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn.Close()
	}
	return nil
}

func buildPublishing(msg Message, appID string) (amqp.Publishing, error) {
	if msg.ID == "" {
		return amqp.Publishing{}, fmt.Errorf("message id is required")
	}
	if len(msg.Body) == 0 {
		return amqp.Publishing{}, fmt.Errorf("message body is required")
	}
	correlationID := msg.CorrelationID
	if correlationID == "" {
		correlationID = msg.ID
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return amqp.Publishing{
		ContentType:   contentTypeJSON,
		Body:          msg.Body,
		DeliveryMode:  amqp.Persistent,
		MessageId:     msg.ID,
		CorrelationId: correlationID,
		Type:          msg.Type,
		Timestamp:     ts,
		AppId:         appID,
	}, nil
}

func dialWithTimeout(_ context.Context, rawURL string, timeout time.Duration) (*amqp.Connection, error) {
	return amqp.DialConfig(rawURL, amqp.Config{
		Dial: amqp.DefaultDial(timeout),
	})
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u == nil {
		return ""
	}
	return u.Host
}
