package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailingest/dto"
	"github.com/customeros/mailingest/internal/enum"
	"github.com/customeros/mailingest/internal/logger"
	"github.com/customeros/mailingest/internal/repository/memory"
)

type scriptedPipeline struct {
	results []Result
	calls   int
}

func (p *scriptedPipeline) Run(_ context.Context, accountID string) Result {
	r := p.results[p.calls]
	if p.calls < len(p.results)-1 {
		p.calls++
	}
	r.AccountID = accountID
	return r
}

type recordingPublisher struct {
	completed []dto.IngestionCompleted
}

func (p *recordingPublisher) PublishIngestAccount(context.Context, dto.IngestAccount) error {
	return nil
}

func (p *recordingPublisher) PublishIngestionCompleted(_ context.Context, message dto.IngestionCompleted) error {
	p.completed = append(p.completed, message)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func failed() Result {
	return Result{Status: enum.RunStatusFailed, Reason: "mailbox connection failed", Retryable: true, FinalState: enum.RunStateAborted}
}

func newTestRunner(pipeline Pipeline, store *memory.Store, publisher *recordingPublisher) (*Runner, *[]time.Duration) {
	l := logger.NewAppLogger(&logger.Config{LogLevel: "error"})
	l.InitLogger()
	runner := NewRunner(pipeline, store.Repositories().IngestionRunRepository, publisher, l, RunnerConfig{
		MaxRetries: DefaultMaxRetries,
		RetryDelay: time.Second,
	})
	var delays []time.Duration
	runner.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return runner, &delays
}

func TestRunner_RetriesUntilSuccess(t *testing.T) {
	store := memory.NewStore()
	publisher := &recordingPublisher{}
	pipeline := &scriptedPipeline{results: []Result{
		failed(),
		failed(),
		{Status: enum.RunStatusCompleted, Processed: 7, FinalState: enum.RunStateDone},
	}}
	runner, delays := newTestRunner(pipeline, store, publisher)

	outcome := runner.Run(context.Background(), "acct_1")

	assert.Equal(t, enum.RunStatusCompleted, outcome.Status)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *delays)

	runs, err := store.Repositories().IngestionRunRepository.ListByAccount(context.Background(), "acct_1", 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, enum.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, 3, runs[0].Attempt)
	assert.Equal(t, 7, runs[0].Processed)
	assert.Equal(t, enum.RunStatusFailed, runs[2].Status)

	require.Len(t, publisher.completed, 1)
	assert.Equal(t, "completed", publisher.completed[0].Status)
	assert.Equal(t, 3, publisher.completed[0].Attempts)
}

func TestRunner_GivesUpAfterMaxRetries(t *testing.T) {
	store := memory.NewStore()
	publisher := &recordingPublisher{}
	runner, delays := newTestRunner(&scriptedPipeline{results: []Result{failed()}}, store, publisher)

	outcome := runner.Run(context.Background(), "acct_1")

	assert.Equal(t, enum.RunStatusFailed, outcome.Status)
	assert.Equal(t, 4, outcome.Attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, *delays)

	runs, err := store.Repositories().IngestionRunRepository.ListByAccount(context.Background(), "acct_1", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 4)

	require.Len(t, publisher.completed, 1)
	assert.Equal(t, "failed", publisher.completed[0].Status)
}

func TestRunner_SkippedIsNotRetried(t *testing.T) {
	store := memory.NewStore()
	publisher := &recordingPublisher{}
	pipeline := &scriptedPipeline{results: []Result{{Status: enum.RunStatusSkipped, Reason: "email account is inactive", FinalState: enum.RunStateAborted}}}
	runner, delays := newTestRunner(pipeline, store, publisher)

	outcome := runner.Run(context.Background(), "acct_1")

	assert.Equal(t, enum.RunStatusSkipped, outcome.Status)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Empty(t, *delays)
	require.Len(t, publisher.completed, 1)
	assert.Equal(t, "email account is inactive", publisher.completed[0].Reason)
}

func TestRunner_CancelledContextStopsRetrying(t *testing.T) {
	l := logger.NewAppLogger(&logger.Config{LogLevel: "error"})
	l.InitLogger()
	runner := NewRunner(&scriptedPipeline{results: []Result{failed()}}, nil, nil, l, RunnerConfig{MaxRetries: 3, RetryDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := runner.Run(ctx, "acct_1")

	assert.Equal(t, enum.RunStatusFailed, outcome.Status)
	assert.Equal(t, 1, outcome.Attempts)
}
