package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailingest/dto"
	"github.com/customeros/mailingest/interfaces"
	"github.com/customeros/mailingest/internal/enum"
	"github.com/customeros/mailingest/internal/logger"
	"github.com/customeros/mailingest/internal/utils"
)

func testLogger() logger.Logger {
	l := logger.NewAppLogger(&logger.Config{LogLevel: "error"})
	l.InitLogger()
	return l
}

type recordingListener struct {
	BaseEventListener
	handled []dto.Event
	err     error
}

func (l *recordingListener) Handle(ctx context.Context, event any) error {
	l.handled = append(l.handled, event.(dto.Event))
	return l.err
}

func newSubscriber() *RabbitMQSubscriber {
	return &RabbitMQSubscriber{logger: testLogger(), listeners: map[string]interfaces.EventListener{}}
}

func encodedEvent(t *testing.T, message interface{}) []byte {
	t.Helper()
	span := opentracing.NoopTracer{}.StartSpan("test")
	ctx := utils.SetAppSourceInContext(context.Background(), "cron")
	event := newEvent(ctx, span, "acct_1", enum.EMAIL_ACCOUNT, message)
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return body
}

func TestQueueArgs(t *testing.T) {
	args := queueArgs(time.Minute)
	assert.Equal(t, ExchangeDeadLetter, args["x-dead-letter-exchange"])
	assert.Equal(t, RoutingKeyDeadLetter, args["x-dead-letter-routing-key"])
	assert.Equal(t, int64(60000), args["x-message-ttl"])
}

func TestTopology_IngestQueueBoundToDirectExchange(t *testing.T) {
	var found bool
	for _, q := range queueTopology {
		if q.queueName == QueueIngestAccount {
			found = true
			assert.Equal(t, ExchangeMailingestDirect, q.exchange)
			assert.Equal(t, RoutingKeyIngestAccount, q.routingKey)
			assert.Equal(t, DLQIngestAccount, q.dlqName)
		}
	}
	assert.True(t, found)
}

func TestNewEvent(t *testing.T) {
	span := opentracing.NoopTracer{}.StartSpan("test")
	ctx := utils.WithCustomContext(context.Background(), &utils.CustomContext{AppSource: "api", UserId: "u1"})

	event := newEvent(ctx, span, "acct_1", enum.EMAIL_ACCOUNT, &dto.IngestAccount{AccountID: "acct_1"})
	assert.Equal(t, "IngestAccount", event.Event.EventType)
	assert.Equal(t, "acct_1", event.Event.EntityId)
	assert.Equal(t, enum.EMAIL_ACCOUNT, event.Event.EntityType)
	assert.Contains(t, event.Event.Id, "event_")
	assert.Equal(t, "api", event.Metadata.AppSource)
	assert.Equal(t, "u1", event.Metadata.UserId)
}

func TestGetEventType(t *testing.T) {
	assert.Equal(t, "IngestAccount", GetEventType[dto.IngestAccount]())
	assert.Equal(t, "IngestionCompleted", GetEventType[*dto.IngestionCompleted]())
}

func TestDispatch_RoutesToListener(t *testing.T) {
	sub := newSubscriber()
	listener := &recordingListener{BaseEventListener: NewBaseEventListener(testLogger(), GetEventType[dto.IngestAccount](), QueueIngestAccount)}
	sub.RegisterListener(listener)

	body := encodedEvent(t, dto.IngestAccount{AccountID: "acct_1", Trigger: "cron"})
	require.NoError(t, sub.dispatch(context.Background(), body, QueueIngestAccount))
	require.Len(t, listener.handled, 1)

	event := listener.handled[0]
	validated, err := listener.ValidateBaseEvent(context.Background(), event)
	require.NoError(t, err)

	decoded, err := DecodeEventData[dto.IngestAccount](context.Background(), validated)
	require.NoError(t, err)
	assert.Equal(t, "acct_1", decoded.AccountID)
	assert.Equal(t, "cron", decoded.Trigger)
}

func TestDispatch_IgnoresUnknownTypeAndWrongQueue(t *testing.T) {
	sub := newSubscriber()
	listener := &recordingListener{BaseEventListener: NewBaseEventListener(testLogger(), GetEventType[dto.IngestAccount](), QueueIngestAccount)}
	sub.RegisterListener(listener)

	require.NoError(t, sub.dispatch(context.Background(), encodedEvent(t, dto.IngestionCompleted{}), QueueIngestAccount))
	require.NoError(t, sub.dispatch(context.Background(), encodedEvent(t, dto.IngestAccount{}), QueueNotifications))
	assert.Empty(t, listener.handled)
}

func TestDispatch_Errors(t *testing.T) {
	sub := newSubscriber()
	boom := errors.New("boom")
	listener := &recordingListener{BaseEventListener: NewBaseEventListener(testLogger(), GetEventType[dto.IngestAccount](), QueueIngestAccount), err: boom}
	sub.RegisterListener(listener)

	assert.Error(t, sub.dispatch(context.Background(), []byte("{not json"), QueueIngestAccount))
	assert.ErrorIs(t, sub.dispatch(context.Background(), encodedEvent(t, dto.IngestAccount{AccountID: "a"}), QueueIngestAccount), boom)
}

func TestValidateBaseEvent_Rejects(t *testing.T) {
	base := NewBaseEventListener(testLogger(), "IngestAccount", QueueIngestAccount)

	_, err := base.ValidateBaseEvent(context.Background(), "not an event")
	assert.Error(t, err)

	_, err = base.ValidateBaseEvent(context.Background(), dto.Event{Event: dto.EventDetails{EventType: "IngestAccount", EntityId: "a"}})
	assert.Error(t, err)

	_, err = base.ValidateBaseEvent(context.Background(), dto.Event{Event: dto.EventDetails{EventType: "IngestAccount", Data: map[string]interface{}{}}})
	assert.Error(t, err)
}
