package events

import (
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailingest/dto"
	"github.com/customeros/mailingest/internal/enum"
	"github.com/customeros/mailingest/internal/tracing"
	"github.com/customeros/mailingest/internal/utils"
)

type exchangeSpec struct {
	name string
	kind string
}

type queueSpec struct {
	queueName  string
	dlqName    string
	exchange   string
	routingKey string
}

var exchangeTopology = []exchangeSpec{
	{name: ExchangeDeadLetter, kind: "direct"},
	{name: ExchangeNotifications, kind: "fanout"},
	{name: ExchangeMailingestDirect, kind: "direct"},
}

var queueTopology = []queueSpec{
	{queueName: QueueNotifications, dlqName: DLQNotifications, exchange: ExchangeNotifications},
	{queueName: QueueIngestAccount, dlqName: DLQIngestAccount, exchange: ExchangeMailingestDirect, routingKey: RoutingKeyIngestAccount},
}

// queueArgs routes expired and rejected messages to the dead letter exchange.
func queueArgs(ttl time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"x-dead-letter-exchange":    ExchangeDeadLetter,
		"x-dead-letter-routing-key": RoutingKeyDeadLetter,
		"x-message-ttl":             int64(ttl.Milliseconds()),
	}
}

func newEvent(ctx context.Context, span opentracing.Span, entityId string, entityType enum.EntityType, message interface{}) dto.Event {
	tracingData := tracing.ExtractTextMapCarrier(span.Context())

	messageType := reflect.TypeOf(message)
	if messageType.Kind() == reflect.Ptr {
		messageType = messageType.Elem()
	}

	return dto.Event{
		Event: dto.EventDetails{
			Id:         utils.GenerateNanoIDWithPrefix("event", 21),
			EntityId:   entityId,
			EntityType: entityType,
			EventType:  messageType.Name(),
			Data:       message,
		},
		Metadata: dto.EventMetadata{
			UberTraceId:   tracingData["uber-trace-id"],
			CorrelationId: uuid.NewString(),
			AppSource:     utils.GetAppSourceFromContext(ctx),
			UserId:        utils.GetUserIdFromContext(ctx),
			Timestamp:     utils.Now().Format(time.RFC3339),
		},
	}
}
