package interfaces

import (
	"context"

	"github.com/customeros/mailingest/dto"
)

type EventPublisher interface {
	PublishIngestAccount(ctx context.Context, message dto.IngestAccount) error
	PublishIngestionCompleted(ctx context.Context, message dto.IngestionCompleted) error
	Close() error
}

type EventListener interface {
	Handle(ctx context.Context, event any) error
	GetEventType() string
	GetQueueName() string
}

type EventSubscriber interface {
	RegisterListener(listener EventListener)
	ListenQueue(queueName string) error
	Close() error
}
