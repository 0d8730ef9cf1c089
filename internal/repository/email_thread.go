package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/customeros/mailingest/interfaces"
	"github.com/customeros/mailingest/internal/models"
	"github.com/customeros/mailingest/internal/tracing"
	"github.com/customeros/mailingest/internal/utils"
)

type emailThreadRepository struct {
	db *gorm.DB
}

func NewEmailThreadRepository(db *gorm.DB) interfaces.EmailThreadRepository {
	return &emailThreadRepository{db: db}
}

func (r *emailThreadRepository) GetByID(ctx context.Context, userID, threadID string) (*models.EmailThread, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.SetTag("thread_id", threadID)

	var thread models.EmailThread
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, threadID).
		First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &thread, nil
}

func (r *emailThreadRepository) Create(ctx context.Context, thread *models.EmailThread) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if thread == nil || thread.ID == "" || thread.UserID == "" {
		err := errors.New("thread id and user id are required")
		tracing.TraceErr(span, err)
		return err
	}
	span.SetTag("thread_id", thread.ID)

	if err := r.db.WithContext(ctx).Create(thread).Error; err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to create email thread")
	}
	return nil
}

// Update writes the mutable thread columns. The composite key is never changed.
func (r *emailThreadRepository) Update(ctx context.Context, thread *models.EmailThread) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.Update")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if thread == nil {
		err := errors.New("thread cannot be nil")
		tracing.TraceErr(span, err)
		return err
	}
	span.SetTag("thread_id", thread.ID)

	thread.UpdatedAt = utils.Now()
	err := r.db.WithContext(ctx).
		Model(&models.EmailThread{}).
		Where("user_id = ? AND id = ?", thread.UserID, thread.ID).
		Updates(map[string]interface{}{
			"account_id":      thread.AccountID,
			"subject":         thread.Subject,
			"snippet":         thread.Snippet,
			"participants":    thread.Participants,
			"last_message_at": thread.LastMessageAt,
			"updated_at":      thread.UpdatedAt,
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to update email thread")
	}
	return nil
}
