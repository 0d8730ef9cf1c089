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

type emailAccountRepository struct {
	db *gorm.DB
}

func NewEmailAccountRepository(db *gorm.DB) interfaces.EmailAccountRepository {
	return &emailAccountRepository{db: db}
}

func (r *emailAccountRepository) GetByID(ctx context.Context, id string) (*models.EmailAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.SetTag("account_id", id)

	var account models.EmailAccount
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &account, nil
}

func (r *emailAccountRepository) ListByActive(ctx context.Context, active bool) ([]*models.EmailAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountRepository.ListByActive")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.SetTag("active", active)

	var accounts []*models.EmailAccount
	err := r.db.WithContext(ctx).
		Where("is_active = ?", active).
		Order("id ASC").
		Find(&accounts).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	span.LogKV("result.count", len(accounts))
	return accounts, nil
}

func (r *emailAccountRepository) Create(ctx context.Context, account *models.EmailAccount) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if account == nil {
		err := errors.New("account cannot be nil")
		tracing.TraceErr(span, err)
		return err
	}

	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to create email account")
	}
	return nil
}

func (r *emailAccountRepository) MarkIngested(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountRepository.MarkIngested")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.SetTag("account_id", id)

	now := utils.Now()
	err := r.db.WithContext(ctx).
		Model(&models.EmailAccount{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_ingested_at": now,
			"updated_at":       now,
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
