package ingestion

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailingest/dto"
	"github.com/customeros/mailingest/interfaces"
	"github.com/customeros/mailingest/internal/logger"
	"github.com/customeros/mailingest/internal/models"
	"github.com/customeros/mailingest/internal/tracing"
	"github.com/customeros/mailingest/internal/utils"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 60 * time.Second
)

// Pipeline is one attempt at ingesting an account.
type Pipeline interface {
	Run(ctx context.Context, accountID string) Result
}

type RunnerConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// Runner retries retryable failures with exponential backoff, records every attempt and
// announces the final outcome.
type Runner struct {
	pipeline  Pipeline
	runs      interfaces.IngestionRunRepository
	publisher interfaces.EventPublisher
	log       logger.Logger
	cfg       RunnerConfig
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewRunner accepts a nil publisher, in which case no completion event is sent.
func NewRunner(pipeline Pipeline, runs interfaces.IngestionRunRepository, publisher interfaces.EventPublisher, log logger.Logger, cfg RunnerConfig) *Runner {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &Runner{
		pipeline:  pipeline,
		runs:      runs,
		publisher: publisher,
		log:       log,
		cfg:       cfg,
		sleep:     sleepContext,
	}
}

type Outcome struct {
	Result
	Attempts int
}

func (r *Runner) Run(ctx context.Context, accountID string) Outcome {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Runner.Run")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	var outcome Outcome
	for attempt := 1; ; attempt++ {
		outcome = Outcome{Result: r.pipeline.Run(ctx, accountID), Attempts: attempt}
		r.record(ctx, outcome)

		if !outcome.Retryable || attempt > r.cfg.MaxRetries {
			break
		}
		delay := r.backoff(attempt)
		r.log.Warnf("Ingestion attempt %d for account %s failed, retrying in %s: %s", attempt, accountID, delay, outcome.Reason)
		if err := r.sleep(ctx, delay); err != nil {
			r.log.Warnf("Retry for account %s abandoned: %s", accountID, err.Error())
			break
		}
	}

	span.LogKV("status", outcome.Status.String(), "attempts", outcome.Attempts)
	if outcome.Retryable {
		r.log.Errorf("Ingestion for account %s gave up after %d attempts: %s", accountID, outcome.Attempts, outcome.Reason)
	}
	r.announce(ctx, outcome)
	return outcome
}

// backoff doubles the base delay for every attempt already made.
func (r *Runner) backoff(attempt int) time.Duration {
	return r.cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
}

func (r *Runner) record(ctx context.Context, outcome Outcome) {
	if r.runs == nil {
		return
	}
	finishedAt := outcome.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = utils.Now()
	}
	err := r.runs.Create(ctx, &models.IngestionRun{
		AccountID:  outcome.AccountID,
		Attempt:    outcome.Attempts,
		Status:     outcome.Status,
		FinalState: outcome.FinalState,
		Reason:     outcome.Reason,
		Processed:  outcome.Processed,
		Dropped:    outcome.Dropped,
		Skipped:    outcome.Skipped,
		StartedAt:  outcome.StartedAt,
		FinishedAt: finishedAt,
	})
	if err != nil {
		r.log.Errorf("Failed to record ingestion run for account %s: %s", outcome.AccountID, err.Error())
	}
}

func (r *Runner) announce(ctx context.Context, outcome Outcome) {
	if r.publisher == nil {
		return
	}
	err := r.publisher.PublishIngestionCompleted(ctx, dto.IngestionCompleted{
		AccountID: outcome.AccountID,
		Status:    outcome.Status.String(),
		Reason:    outcome.Reason,
		Processed: outcome.Processed,
		Dropped:   outcome.Dropped,
		Skipped:   outcome.Skipped,
		Attempts:  outcome.Attempts,
	})
	if err != nil {
		r.log.Warnf("Failed to publish completion for account %s: %s", outcome.AccountID, err.Error())
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
