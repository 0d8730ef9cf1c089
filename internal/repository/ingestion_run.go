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

type ingestionRunRepository struct {
	db *gorm.DB
}

func NewIngestionRunRepository(db *gorm.DB) interfaces.IngestionRunRepository {
	return &ingestionRunRepository{db: db}
}

func (r *ingestionRunRepository) Create(ctx context.Context, run *models.IngestionRun) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestionRunRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if run == nil {
		err := errors.New("run cannot be nil")
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagAccount(span, run.AccountID)

	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to record ingestion run")
	}
	return nil
}

func (r *ingestionRunRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.IngestionRun, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestionRunRepository.ListByAccount")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	if limit <= 0 {
		limit = 20
	}

	var runs []*models.IngestionRun
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return runs, nil
}
