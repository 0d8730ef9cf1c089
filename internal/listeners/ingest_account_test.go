package listeners

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailingest/dto"
	"github.com/customeros/mailingest/internal/enum"
	"github.com/customeros/mailingest/internal/logger"
	"github.com/customeros/mailingest/services/events"
	"github.com/customeros/mailingest/services/ingestion"
)

type fakeIngester struct {
	accounts []string
	outcome  ingestion.Outcome
}

func (f *fakeIngester) Run(_ context.Context, accountID string) ingestion.Outcome {
	f.accounts = append(f.accounts, accountID)
	return f.outcome
}

func newListener(ingester AccountIngester) *IngestAccountListener {
	l := logger.NewAppLogger(&logger.Config{LogLevel: "error"})
	l.InitLogger()
	return NewIngestAccountListener(l, ingester).(*IngestAccountListener)
}

func event(entityID string, data interface{}) dto.Event {
	return dto.Event{Event: dto.EventDetails{
		Id:         "event_1",
		EntityId:   entityID,
		EntityType: enum.EMAIL_ACCOUNT,
		EventType:  "IngestAccount",
		Data:       data,
	}}
}

func TestIngestAccountListener_Subscription(t *testing.T) {
	listener := newListener(&fakeIngester{})
	assert.Equal(t, "IngestAccount", listener.GetEventType())
	assert.Equal(t, events.QueueIngestAccount, listener.GetQueueName())
}

func TestIngestAccountListener_RunsAccount(t *testing.T) {
	ingester := &fakeIngester{outcome: ingestion.Outcome{Result: ingestion.Result{Status: enum.RunStatusCompleted}, Attempts: 1}}
	listener := newListener(ingester)

	err := listener.Handle(context.Background(), event("acct_1", map[string]interface{}{"accountId": "acct_1", "trigger": "cron"}))

	require.NoError(t, err)
	assert.Equal(t, []string{"acct_1"}, ingester.accounts)
}

func TestIngestAccountListener_FailedRunIsAcked(t *testing.T) {
	ingester := &fakeIngester{outcome: ingestion.Outcome{Result: ingestion.Result{Status: enum.RunStatusFailed, Reason: "mailbox connection failed"}, Attempts: 4}}
	listener := newListener(ingester)

	err := listener.Handle(context.Background(), event("acct_1", map[string]interface{}{"trigger": "cron"}))

	require.NoError(t, err)
	assert.Equal(t, []string{"acct_1"}, ingester.accounts)
}

func TestIngestAccountListener_RejectsBadEvents(t *testing.T) {
	ingester := &fakeIngester{}
	listener := newListener(ingester)

	assert.Error(t, listener.Handle(context.Background(), "not an event"))
	assert.Error(t, listener.Handle(context.Background(), event("acct_1", "not a map")))
	assert.Empty(t, ingester.accounts)
}
