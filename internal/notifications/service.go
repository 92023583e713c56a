package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/estatedesk/lead-router/pkg/db/models"
	"github.com/estatedesk/lead-router/pkg/enums"
	pkgerrors "github.com/estatedesk/lead-router/pkg/errors"
	"github.com/estatedesk/lead-router/pkg/logger"
	"github.com/estatedesk/lead-router/pkg/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	cooldownScope         = "notify"
	defaultCooldown       = 15 * time.Minute
	defaultPublishTimeout = 10 * time.Second
	defaultProducer       = "lead-router"
	maxLoggedErrorLength  = 1000
)

// ErrSuppressed is returned when the recipient is inside a failure cooldown.
var ErrSuppressed = errors.New("notification suppressed by cooldown")

// Notification is one templated message to a broker.
type Notification struct {
	LeadID    uuid.UUID `validate:"required"`
	BrokerID  *uuid.UUID
	To        string `validate:"required,email"`
	Template  string `validate:"required"`
	Variables map[string]any
}

// Sender is the notifier surface the routing engine depends on.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// CooldownStore tracks recipients whose last delivery failed.
type CooldownStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CooldownKey(scope, id string) string
}

// ServiceParams configure the notification service.
type ServiceParams struct {
	Logger         *logger.Logger
	Transport      Transport
	Cooldown       CooldownStore
	Logs           LogRepository
	Metrics        *metrics.RoutingMetrics
	CooldownTTL    time.Duration
	PublishTimeout time.Duration
	Producer       string
}

// Service delivers broker notifications on a best-effort basis.
type Service struct {
	logg           *logger.Logger
	transport      Transport
	cooldown       CooldownStore
	logs           LogRepository
	metrics        *metrics.RoutingMetrics
	cooldownTTL    time.Duration
	publishTimeout time.Duration
	producer       string
	validate       *validator.Validate
	now            func() time.Time
	newID          func() uuid.UUID
}

// NewService builds a notification service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Transport == nil {
		return nil, fmt.Errorf("transport required")
	}
	cooldownTTL := params.CooldownTTL
	if cooldownTTL <= 0 {
		cooldownTTL = defaultCooldown
	}
	publishTimeout := params.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}
	producer := params.Producer
	if producer == "" {
		producer = defaultProducer
	}
	return &Service{
		logg:           params.Logger,
		transport:      params.Transport,
		cooldown:       params.Cooldown,
		logs:           params.Logs,
		metrics:        params.Metrics,
		cooldownTTL:    cooldownTTL,
		publishTimeout: publishTimeout,
		producer:       producer,
		validate:       validator.New(),
		now:            time.Now,
		newID:          uuid.New,
	}, nil
}

// Send validates, applies the failure cooldown, publishes and logs the outcome.
// Invalid input is a validation error; a cooled-down recipient yields ErrSuppressed.
func (s *Service) Send(ctx context.Context, n Notification) error {
	n.To = strings.TrimSpace(n.To)
	if err := s.validate.Struct(n); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification")
	}

	logCtx := s.logg.WithLeadID(ctx, n.LeadID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{"template": n.Template, "transport": s.transport.Name()})
	key := ""
	if s.cooldown != nil {
		key = s.cooldown.CooldownKey(cooldownScope, n.To)
		active, err := s.cooldown.Exists(ctx, key)
		if err != nil {
			s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "cooldown check failed; sending anyway")
		} else if active {
			s.record(logCtx, n, enums.NotificationStatusSuppressed, nil, nil)
			return ErrSuppressed
		}
	}

	env := s.envelope(n)
	pubCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	messageID, err := s.transport.Publish(pubCtx, env)
	cancel()
	if err != nil {
		s.logg.Error(logCtx, "notification publish failed", err)
		if key != "" {
			if cdErr := s.cooldown.Set(ctx, key, "failed", s.cooldownTTL); cdErr != nil {
				s.logg.Warn(s.logg.WithField(logCtx, "error", cdErr.Error()), "cooldown start failed")
			}
		}
		s.record(logCtx, n, enums.NotificationStatusFailed, err, nil)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish notification")
	}

	s.record(logCtx, n, enums.NotificationStatusSent, nil, &messageID)
	s.logg.Debug(s.logg.WithField(logCtx, "message_id", messageID), "notification sent")
	return nil
}

func (s *Service) envelope(n Notification) Envelope {
	variables := n.Variables
	if variables == nil {
		variables = map[string]any{}
	}
	return Envelope{
		Meta: Meta{
			ID:            s.newID().String(),
			Type:          MessageType,
			Time:          s.now().UTC(),
			Producer:      s.producer,
			CorrelationID: n.LeadID.String(),
		},
		Data: Payload{
			Template:  n.Template,
			To:        n.To,
			Variables: variables,
			LeadID:    n.LeadID,
			BrokerID:  n.BrokerID,
		},
	}
}

// record writes the delivery log and metrics. Failures here are only logged.
func (s *Service) record(ctx context.Context, n Notification, status enums.NotificationStatus, sendErr error, messageID *string) {
	s.metrics.IncNotification(n.Template, string(status))
	if s.logs == nil {
		return
	}
	entry := &models.NotificationLog{
		ID:        s.newID(),
		LeadID:    n.LeadID,
		BrokerID:  n.BrokerID,
		Recipient: n.To,
		Template:  n.Template,
		Status:    status,
		MessageID: messageID,
		CreatedAt: s.now().UTC(),
	}
	if sendErr != nil {
		msg := sendErr.Error()
		if len(msg) > maxLoggedErrorLength {
			msg = msg[:maxLoggedErrorLength]
		}
		entry.Error = &msg
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		s.logg.Error(ctx, "notification log write failed", err)
	}
}
