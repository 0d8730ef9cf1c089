package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/customeros/mailingest/interfaces"
	"github.com/customeros/mailingest/internal/models"
)

// Transactor runs fn against repositories bound to a single database transaction.
// The transaction is committed only when fn returns nil.
type Transactor interface {
	Transaction(ctx context.Context, fn func(repos *Repositories) error) error
}

type Repositories struct {
	Transactor                Transactor
	EmailAccountRepository    interfaces.EmailAccountRepository
	EmailMessageRepository    interfaces.EmailMessageRepository
	EmailThreadRepository     interfaces.EmailThreadRepository
	EmailAttachmentRepository interfaces.EmailAttachmentRepository
	ExtractionRepository      interfaces.ExtractionRepository
	IngestionRunRepository    interfaces.IngestionRunRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Transactor:                &gormTransactor{db: db},
		EmailAccountRepository:    NewEmailAccountRepository(db),
		EmailMessageRepository:    NewEmailMessageRepository(db),
		EmailThreadRepository:     NewEmailThreadRepository(db),
		EmailAttachmentRepository: NewEmailAttachmentRepository(db),
		ExtractionRepository:      NewExtractionRepository(db),
		IngestionRunRepository:    NewIngestionRunRepository(db),
	}
}

type gormTransactor struct {
	db *gorm.DB
}

func (t *gormTransactor) Transaction(ctx context.Context, fn func(repos *Repositories) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(InitRepositories(tx))
	})
}

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.EmailAccount{},
		&models.EmailThread{},
		&models.EmailMessage{},
		&models.EmailAttachment{},
		&models.Extraction{},
		&models.IngestionRun{},
	)
}
