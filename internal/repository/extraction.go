package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/mailingest/interfaces"
	"github.com/customeros/mailingest/internal/models"
	"github.com/customeros/mailingest/internal/tracing"
)

type extractionRepository struct {
	db *gorm.DB
}

func NewExtractionRepository(db *gorm.DB) interfaces.ExtractionRepository {
	return &extractionRepository{db: db}
}

func (r *extractionRepository) GetByMessageID(ctx context.Context, messageID string) (*models.Extraction, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "extractionRepository.GetByMessageID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.SetTag("message_id", messageID)

	var extraction models.Extraction
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		First(&extraction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &extraction, nil
}

func (r *extractionRepository) CreateIfAbsent(ctx context.Context, extraction *models.Extraction) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "extractionRepository.CreateIfAbsent")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if extraction == nil || extraction.MessageID == "" {
		err := errors.New("extraction message id is required")
		tracing.TraceErr(span, err)
		return false, err
	}
	span.SetTag("message_id", extraction.MessageID)

	existing, err := r.GetByMessageID(ctx, extraction.MessageID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		span.LogKV("result", "exists")
		return false, nil
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}},
			DoNothing: true,
		}).
		Create(extraction)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return false, errors.Wrap(result.Error, "failed to create extraction")
	}

	created := result.RowsAffected > 0
	span.LogKV("result.created", created)
	return created, nil
}
