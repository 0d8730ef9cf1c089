package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/customeros/mailingest/interfaces"
	"github.com/customeros/mailingest/internal/models"
	"github.com/customeros/mailingest/internal/tracing"
)

type emailAttachmentRepository struct {
	db *gorm.DB
}

func NewEmailAttachmentRepository(db *gorm.DB) interfaces.EmailAttachmentRepository {
	return &emailAttachmentRepository{db: db}
}

// ReplaceForMessage drops every attachment stored for the message and inserts the given set.
// Callers run it inside a transaction so a failed insert leaves the old set in place.
func (r *emailAttachmentRepository) ReplaceForMessage(ctx context.Context, messageID string, attachments []*models.EmailAttachment) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.ReplaceForMessage")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.SetTag("message_id", messageID)
	span.LogKV("attachments.count", len(attachments))

	if messageID == "" {
		err := errors.New("message id is required")
		tracing.TraceErr(span, err)
		return err
	}

	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Delete(&models.EmailAttachment{}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to delete attachments")
	}

	if len(attachments) == 0 {
		return nil
	}

	for _, attachment := range attachments {
		attachment.MessageID = messageID
	}

	if err := r.db.WithContext(ctx).Create(&attachments).Error; err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to insert attachments")
	}
	return nil
}

func (r *emailAttachmentRepository) ListByMessage(ctx context.Context, messageID string) ([]*models.EmailAttachment, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.ListByMessage")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.SetTag("message_id", messageID)

	var attachments []*models.EmailAttachment
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&attachments).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return attachments, nil
}
