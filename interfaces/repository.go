package interfaces

import (
	"context"

	"github.com/customeros/mailingest/internal/enum"
	"github.com/customeros/mailingest/internal/models"
)

type EmailAccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.EmailAccount, error)
	ListByActive(ctx context.Context, active bool) ([]*models.EmailAccount, error)
	Create(ctx context.Context, account *models.EmailAccount) error
	MarkIngested(ctx context.Context, id string) error
}

type EmailMessageRepository interface {
	GetByMessageID(ctx context.Context, userID, messageID string) (*models.EmailMessage, error)
	ListByThread(ctx context.Context, userID, threadID string) ([]*models.EmailMessage, error)
	Save(ctx context.Context, message *models.EmailMessage) error
	SetCategory(ctx context.Context, id string, category enum.Category) error
}

type EmailThreadRepository interface {
	GetByID(ctx context.Context, userID, threadID string) (*models.EmailThread, error)
	Create(ctx context.Context, thread *models.EmailThread) error
	Update(ctx context.Context, thread *models.EmailThread) error
}

type EmailAttachmentRepository interface {
	ReplaceForMessage(ctx context.Context, messageID string, attachments []*models.EmailAttachment) error
	ListByMessage(ctx context.Context, messageID string) ([]*models.EmailAttachment, error)
}

type ExtractionRepository interface {
	GetByMessageID(ctx context.Context, messageID string) (*models.Extraction, error)
	// CreateIfAbsent returns false without writing when a record already exists for the message.
	CreateIfAbsent(ctx context.Context, extraction *models.Extraction) (bool, error)
}

type IngestionRunRepository interface {
	Create(ctx context.Context, run *models.IngestionRun) error
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.IngestionRun, error)
}
