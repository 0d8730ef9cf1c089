package listeners

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailingest/dto"
	"github.com/customeros/mailingest/interfaces"
	"github.com/customeros/mailingest/internal/enum"
	"github.com/customeros/mailingest/internal/logger"
	"github.com/customeros/mailingest/internal/tracing"
	"github.com/customeros/mailingest/internal/utils"
	"github.com/customeros/mailingest/services/events"
	"github.com/customeros/mailingest/services/ingestion"
)

// AccountIngester runs the pipeline for one account, retries included.
type AccountIngester interface {
	Run(ctx context.Context, accountID string) ingestion.Outcome
}

type IngestAccountListener struct {
	events.BaseEventListener
	ingester AccountIngester
}

func NewIngestAccountListener(logger logger.Logger, ingester AccountIngester) interfaces.EventListener {
	return &IngestAccountListener{
		BaseEventListener: events.NewBaseEventListener(
			logger,
			events.GetEventType[dto.IngestAccount](), // subscribed event
			events.QueueIngestAccount,                // listening on Direct queue
		),
		ingester: ingester,
	}
}

// Handle only returns an error for undecodable events. Run failures are already retried and
// recorded by the ingester, so the delivery is acked.
func (l *IngestAccountListener) Handle(ctx context.Context, baseEvent any) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IngestAccountListener.Handle")
	defer span.Finish()
	tracing.SetDefaultListenerSpanTags(ctx, span)
	tracing.LogObjectAsJson(span, "event", baseEvent)

	validatedEvent, err := l.ValidateBaseEvent(ctx, baseEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	request, err := events.DecodeEventData[dto.IngestAccount](ctx, validatedEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	accountID := utils.FirstNonEmpty(request.AccountID, validatedEvent.Event.EntityId)
	if accountID == "" {
		err := errors.New("account id is empty")
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagAccount(span, accountID)
	span.SetTag("trigger", request.Trigger)

	outcome := l.ingester.Run(ctx, accountID)
	span.LogKV("status", outcome.Status.String(), "attempts", outcome.Attempts)
	if outcome.Status == enum.RunStatusFailed {
		l.Logger().Errorf("Ingestion for account %s (trigger %s) failed: %s", accountID, request.Trigger, outcome.Reason)
	}
	return nil
}
