package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/estatedesk/lead-router/internal/dbtest"
	"github.com/estatedesk/lead-router/pkg/amqp"
	"github.com/estatedesk/lead-router/pkg/enums"
	pkgerrors "github.com/estatedesk/lead-router/pkg/errors"
	"github.com/estatedesk/lead-router/pkg/logger"
	"github.com/estatedesk/lead-router/pkg/metrics"
	pkgredis "github.com/estatedesk/lead-router/pkg/redis"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	err       error
	envelopes []Envelope
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Publish(_ context.Context, env Envelope) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.envelopes = append(f.envelopes, env)
	return "msg-" + env.Meta.ID, nil
}

type harness struct {
	svc       *Service
	transport *fakeTransport
	logs      LogRepository
	redis     *miniredis.Miniredis
}

func newHarness(t *testing.T) harness {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	transport := &fakeTransport{}
	logs := NewLogRepository(dbtest.Open(t))
	svc, err := NewService(ServiceParams{
		Logger:      logger.Nop(),
		Transport:   transport,
		Cooldown:    pkgredis.Wrap(raw),
		Logs:        logs,
		CooldownTTL: 15 * time.Minute,
		Producer:    "lead-router-test",
	})
	require.NoError(t, err)
	tick := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return harness{svc: svc, transport: transport, logs: logs, redis: mr}
}

func notification(leadID uuid.UUID) Notification {
	brokerID := uuid.New()
	return Notification{
		LeadID:    leadID,
		BrokerID:  &brokerID,
		To:        "Broker@Example.com",
		Template:  "lead_assigned",
		Variables: map[string]any{"broker_name": "Ana"},
	}
}

func TestSendPublishesEnvelopeAndLogs(t *testing.T) {
	h := newHarness(t)
	leadID := uuid.New()

	require.NoError(t, h.svc.Send(context.Background(), notification(leadID)))

	require.Len(t, h.transport.envelopes, 1)
	env := h.transport.envelopes[0]
	require.Equal(t, MessageType, env.Meta.Type)
	require.Equal(t, "lead-router-test", env.Meta.Producer)
	require.Equal(t, leadID.String(), env.Meta.CorrelationID)
	require.Equal(t, "lead_assigned", env.Data.Template)
	require.Equal(t, "Ana", env.Data.Variables["broker_name"])

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	var wire map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	require.Contains(t, wire["meta"], "correlation_id")
	require.Contains(t, wire["data"], "variables")

	rows, err := h.logs.ListForLead(context.Background(), leadID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, enums.NotificationStatusSent, rows[0].Status)
	require.Equal(t, "msg-"+env.Meta.ID, *rows[0].MessageID)
}

func TestSendRejectsInvalidInput(t *testing.T) {
	h := newHarness(t)

	n := notification(uuid.New())
	n.To = "not-an-address"
	err := h.svc.Send(context.Background(), n)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	n = notification(uuid.New())
	n.Template = ""
	err = h.svc.Send(context.Background(), n)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Empty(t, h.transport.envelopes)
}

func TestFailureStartsCooldownAndSuppressesNextSend(t *testing.T) {
	h := newHarness(t)
	leadID := uuid.New()
	h.transport.err = errors.New("broker unreachable")

	err := h.svc.Send(context.Background(), notification(leadID))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.True(t, h.redis.Exists("lr:cooldown:notify:broker@example.com"))

	h.transport.err = nil
	n := notification(leadID)
	n.To = "broker@example.com"
	require.ErrorIs(t, h.svc.Send(context.Background(), n), ErrSuppressed)
	require.Empty(t, h.transport.envelopes)

	rows, err := h.logs.ListForLead(context.Background(), leadID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, enums.NotificationStatusFailed, rows[0].Status)
	require.Equal(t, "broker unreachable", *rows[0].Error)
	require.Equal(t, enums.NotificationStatusSuppressed, rows[1].Status)

	h.redis.FastForward(16 * time.Minute)
	require.NoError(t, h.svc.Send(context.Background(), n))
	require.Len(t, h.transport.envelopes, 1)
}

func TestCooldownOutageDoesNotBlockDelivery(t *testing.T) {
	h := newHarness(t)
	h.redis.Close()

	require.NoError(t, h.svc.Send(context.Background(), notification(uuid.New())))
	require.Len(t, h.transport.envelopes, 1)
}

func TestSendCountsOutcomes(t *testing.T) {
	h := newHarness(t)
	reg := prometheus.NewRegistry()
	h.svc.metrics = metrics.NewRoutingMetrics(reg)

	require.NoError(t, h.svc.Send(context.Background(), notification(uuid.New())))
	count, err := testutil.GatherAndCount(reg, "lead_router_notifier_notifications_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

type fakeAMQP struct {
	msgs []amqp.Message
}

func (f *fakeAMQP) Publish(_ context.Context, msg amqp.Message) error {
	f.msgs = append(f.msgs, msg)
	return nil
}

type fakePubSub struct {
	data  []byte
	attrs map[string]string
}

func (f *fakePubSub) PublishNotification(_ context.Context, data []byte, attrs map[string]string) (string, error) {
	f.data = data
	f.attrs = attrs
	return "server-id-1", nil
}

func TestTransportsCarryEnvelope(t *testing.T) {
	env := Envelope{
		Meta: Meta{ID: "m-1", Type: MessageType, CorrelationID: "lead-1", Time: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		Data: Payload{Template: "lead_assigned", To: "a@b.test", LeadID: uuid.New()},
	}

	rabbit := &fakeAMQP{}
	id, err := NewAMQPTransport(rabbit).Publish(context.Background(), env)
	require.NoError(t, err)
	require.Equal(t, "m-1", id)
	require.Len(t, rabbit.msgs, 1)
	require.Equal(t, "lead-1", rabbit.msgs[0].CorrelationID)
	var decoded Envelope
	require.NoError(t, json.Unmarshal(rabbit.msgs[0].Body, &decoded))
	require.Equal(t, env.Data.To, decoded.Data.To)

	ps := &fakePubSub{}
	id, err = NewPubSubTransport(ps).Publish(context.Background(), env)
	require.NoError(t, err)
	require.Equal(t, "server-id-1", id)
	require.Equal(t, "lead_assigned", ps.attrs["template"])
	require.NotEmpty(t, ps.data)

	id, err = NewLogTransport(logger.Nop()).Publish(context.Background(), env)
	require.NoError(t, err)
	require.Equal(t, "m-1", id)
}

func TestDeleteOlderThan(t *testing.T) {
	h := newHarness(t)
	leadID := uuid.New()
	require.NoError(t, h.svc.Send(context.Background(), notification(leadID)))

	deleted, err := h.logs.DeleteOlderThan(context.Background(), time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Zero(t, deleted)

	deleted, err = h.logs.DeleteOlderThan(context.Background(), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)
}
