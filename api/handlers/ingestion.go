package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailingest/dto"
	"github.com/customeros/mailingest/interfaces"
	"github.com/customeros/mailingest/internal/enum"
	"github.com/customeros/mailingest/internal/models"
	"github.com/customeros/mailingest/internal/tracing"
	"github.com/customeros/mailingest/services/ingestion"
)

const (
	TriggerHTTP     = "http"
	defaultRunLimit = 20
	maxRunLimit     = 100
)

// AccountIngester runs the pipeline for one account, retries included.
type AccountIngester interface {
	Run(ctx context.Context, accountID string) ingestion.Outcome
}

type IngestionHandler struct {
	ingester  AccountIngester
	runs      interfaces.IngestionRunRepository
	publisher interfaces.EventPublisher
}

// NewIngestionHandler accepts a nil publisher; queued triggers are then refused.
func NewIngestionHandler(ingester AccountIngester, runs interfaces.IngestionRunRepository, publisher interfaces.EventPublisher) *IngestionHandler {
	return &IngestionHandler{ingester: ingester, runs: runs, publisher: publisher}
}

type runResponse struct {
	AccountID string `json:"accountId"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Processed int    `json:"processed"`
	Dropped   int    `json:"dropped"`
	Skipped   int    `json:"skipped"`
	Attempts  int    `json:"attempts"`
}

// Trigger runs ingestion for the account in the request path. With ?async=true the run is
// queued instead and the handler answers 202.
func (h *IngestionHandler) Trigger() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "IngestionHandler.Trigger")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		accountID := c.Param("id")
		tracing.TagAccount(span, accountID)

		if async, _ := strconv.ParseBool(c.Query("async")); async {
			if h.publisher == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job queue is not configured"})
				return
			}
			err := h.publisher.PublishIngestAccount(ctx, dto.IngestAccount{AccountID: accountID, Trigger: TriggerHTTP})
			if err != nil {
				tracing.TraceErr(span, err)
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"status": "queued", "accountId": accountID})
			return
		}

		outcome := h.ingester.Run(ctx, accountID)
		status := http.StatusOK
		if outcome.Status == enum.RunStatusFailed {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, runResponse{
			AccountID: accountID,
			Status:    outcome.Status.String(),
			Reason:    outcome.Reason,
			Processed: outcome.Processed,
			Dropped:   outcome.Dropped,
			Skipped:   outcome.Skipped,
			Attempts:  outcome.Attempts,
		})
	}
}

// Runs lists the most recent recorded attempts for the account, newest first.
func (h *IngestionHandler) Runs() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "IngestionHandler.Runs")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		accountID := c.Param("id")
		tracing.TagAccount(span, accountID)

		limit := defaultRunLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = parsed
		}
		if limit > maxRunLimit {
			limit = maxRunLimit
		}

		runs, err := h.runs.ListByAccount(ctx, accountID, limit)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if runs == nil {
			runs = []*models.IngestionRun{}
		}
		c.JSON(http.StatusOK, gin.H{"accountId": accountID, "runs": runs})
	}
}
