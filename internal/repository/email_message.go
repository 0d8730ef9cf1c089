package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/mailingest/interfaces"
	"github.com/customeros/mailingest/internal/enum"
	"github.com/customeros/mailingest/internal/models"
	"github.com/customeros/mailingest/internal/tracing"
	"github.com/customeros/mailingest/internal/utils"
)

type emailMessageRepository struct {
	db *gorm.DB
}

func NewEmailMessageRepository(db *gorm.DB) interfaces.EmailMessageRepository {
	return &emailMessageRepository{db: db}
}

// GetByMessageID looks a message up by its Message-ID header within one user's mail.
func (r *emailMessageRepository) GetByMessageID(ctx context.Context, userID, messageID string) (*models.EmailMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.GetByMessageID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.SetTag("message_id_header", messageID)

	if messageID == "" {
		return nil, nil
	}

	var message models.EmailMessage
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND message_id_header = ?", userID, messageID).
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &message, nil
}

func (r *emailMessageRepository) ListByThread(ctx context.Context, userID, threadID string) ([]*models.EmailMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.ListByThread")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.SetTag("thread_id", threadID)

	var messages []*models.EmailMessage
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND thread_id = ?", userID, threadID).
		Order("sent_at ASC").
		Find(&messages).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return messages, nil
}

// Save inserts a new message or overwrites every column of an existing one. Associations are
// written by their own repositories.
func (r *emailMessageRepository) Save(ctx context.Context, message *models.EmailMessage) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.Save")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if message == nil {
		err := errors.New("message cannot be nil")
		tracing.TraceErr(span, err)
		return err
	}
	span.SetTag("message_id_header", message.MessageIDHeader)

	db := r.db.WithContext(ctx).Omit(clause.Associations)

	var err error
	if message.ID == "" {
		err = db.Create(message).Error
	} else {
		message.UpdatedAt = utils.Now()
		err = db.Save(message).Error
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to save email message")
	}

	span.SetTag("message_id", message.ID)
	return nil
}

func (r *emailMessageRepository) SetCategory(ctx context.Context, id string, category enum.Category) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.SetCategory")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.SetTag("message_id", id)
	span.SetTag("category", category.String())

	err := r.db.WithContext(ctx).
		Model(&models.EmailMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"category":   category,
			"updated_at": utils.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
