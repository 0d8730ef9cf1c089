package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailingest/api/handlers"
	"github.com/customeros/mailingest/api/middleware"
	"github.com/customeros/mailingest/dto"
	"github.com/customeros/mailingest/internal/enum"
	"github.com/customeros/mailingest/internal/models"
	"github.com/customeros/mailingest/internal/repository/memory"
	"github.com/customeros/mailingest/services/ingestion"
)

const testAPIKey = "secret-key"

type fakeIngester struct {
	outcome  ingestion.Outcome
	accounts []string
}

func (f *fakeIngester) Run(_ context.Context, accountID string) ingestion.Outcome {
	f.accounts = append(f.accounts, accountID)
	out := f.outcome
	out.AccountID = accountID
	return out
}

type fakePublisher struct {
	queued []dto.IngestAccount
}

func (p *fakePublisher) PublishIngestAccount(_ context.Context, message dto.IngestAccount) error {
	p.queued = append(p.queued, message)
	return nil
}

func (p *fakePublisher) PublishIngestionCompleted(context.Context, dto.IngestionCompleted) error {
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func newRouter(t *testing.T, ingester *fakeIngester, publisher *fakePublisher, store *memory.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var h *handlers.APIHandlers
	if publisher == nil {
		h = handlers.InitHandlers(store.Repositories(), ingester, nil)
	} else {
		h = handlers.InitHandlers(store.Repositories(), ingester, publisher)
	}
	registerRoutes(r, h, testAPIKey)
	return r
}

func do(r *gin.Engine, method, path string, withKey bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if withKey {
		req.Header.Set(middleware.APIKeyHeader, testAPIKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := newRouter(t, &fakeIngester{}, nil, memory.NewStore())
	w := do(r, http.MethodGet, "/health", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestTrigger_RequiresAPIKey(t *testing.T) {
	ingester := &fakeIngester{}
	r := newRouter(t, ingester, nil, memory.NewStore())

	w := do(r, http.MethodPost, "/internal/accounts/acct_1/ingest", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/internal/accounts/acct_1/ingest", nil)
	req.Header.Set(middleware.APIKeyHeader, "wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, ingester.accounts)
}

func TestTrigger_RunsSynchronously(t *testing.T) {
	ingester := &fakeIngester{outcome: ingestion.Outcome{
		Result:   ingestion.Result{Status: enum.RunStatusCompleted, Reason: "processed 2 messages", Processed: 2, Skipped: 1},
		Attempts: 1,
	}}
	r := newRouter(t, ingester, nil, memory.NewStore())

	w := do(r, http.MethodPost, "/internal/accounts/acct_1/ingest", true)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, float64(2), body["processed"])
	assert.Equal(t, float64(1), body["skipped"])
	assert.Equal(t, []string{"acct_1"}, ingester.accounts)
}

func TestTrigger_FailedRunIsUnavailable(t *testing.T) {
	ingester := &fakeIngester{outcome: ingestion.Outcome{
		Result:   ingestion.Result{Status: enum.RunStatusFailed, Reason: "mailbox connection failed", Retryable: true},
		Attempts: 4,
	}}
	r := newRouter(t, ingester, nil, memory.NewStore())

	w := do(r, http.MethodPost, "/internal/accounts/acct_1/ingest", true)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "mailbox connection failed")
}

func TestTrigger_Async(t *testing.T) {
	t.Run("queued", func(t *testing.T) {
		ingester := &fakeIngester{}
		publisher := &fakePublisher{}
		r := newRouter(t, ingester, publisher, memory.NewStore())

		w := do(r, http.MethodPost, "/internal/accounts/acct_1/ingest?async=true", true)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, []dto.IngestAccount{{AccountID: "acct_1", Trigger: handlers.TriggerHTTP}}, publisher.queued)
		assert.Empty(t, ingester.accounts)
	})

	t.Run("no queue", func(t *testing.T) {
		r := newRouter(t, &fakeIngester{}, nil, memory.NewStore())
		w := do(r, http.MethodPost, "/internal/accounts/acct_1/ingest?async=true", true)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestRuns_ListsRecentAttempts(t *testing.T) {
	store := memory.NewStore()
	runs := store.Repositories().IngestionRunRepository
	for attempt := 1; attempt <= 3; attempt++ {
		require.NoError(t, runs.Create(context.Background(), &models.IngestionRun{
			AccountID: "acct_1",
			Attempt:   attempt,
			Status:    enum.RunStatusFailed,
		}))
	}
	r := newRouter(t, &fakeIngester{}, nil, store)

	w := do(r, http.MethodGet, "/internal/accounts/acct_1/runs?limit=2", true)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		AccountID string                `json:"accountId"`
		Runs      []models.IngestionRun `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Runs, 2)
	assert.Equal(t, 3, body.Runs[0].Attempt)

	w = do(r, http.MethodGet, "/internal/accounts/acct_1/runs?limit=zero", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
