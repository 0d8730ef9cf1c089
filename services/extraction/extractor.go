package extraction

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailingest/dto"
	"github.com/customeros/mailingest/interfaces"
	"github.com/customeros/mailingest/internal/enum"
	"github.com/customeros/mailingest/internal/logger"
	"github.com/customeros/mailingest/internal/models"
	"github.com/customeros/mailingest/internal/repository"
	"github.com/customeros/mailingest/internal/tracing"
	"github.com/customeros/mailingest/internal/utils"
)

type Extractor struct {
	ai    interfaces.ChatCompletionClient
	model string
	log   logger.Logger
}

func NewExtractor(ai interfaces.ChatCompletionClient, model string, log logger.Logger) *Extractor {
	return &Extractor{ai: ai, model: model, log: log}
}

// Applies reports whether a message in the given category goes through extraction.
func Applies(category enum.Category) bool {
	return category == enum.CategoryComplaintsSuggestion
}

// Extract asks the backend for a complaint/suggestion record and stores it once per message.
// Backend problems and non-applicable replies yield (nil, nil); only storage errors are returned.
func (e *Extractor) Extract(ctx context.Context, repos *repository.Repositories, message *models.EmailMessage, parsed *dto.ParsedMessage) (*models.Extraction, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Extractor.Extract")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, message.ID)

	if !Applies(message.Category) {
		return nil, nil
	}
	if e.ai == nil || !e.ai.IsConfigured() {
		span.LogKV("skipped", "ai not configured")
		return nil, nil
	}

	existing, err := repos.ExtractionRepository.GetByMessageID(ctx, message.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if existing != nil {
		span.LogKV("skipped", "already extracted")
		return nil, nil
	}

	response, ok := e.ask(ctx, parsed)
	if !ok {
		return nil, nil
	}

	extraction := &models.Extraction{
		MessageID:      message.ID,
		UserID:         message.UserID,
		SubmitterEmail: utils.TruncateRunes(utils.FirstNonEmpty(strings.TrimSpace(response.EmailAddress), parsed.SenderAddress), 255),
		SubmitterName:  utils.TruncateRunes(strings.TrimSpace(utils.FirstNonEmpty(response.CustomerName, parsed.SenderName)), 255),
		IssueType:      response.IssueType,
		CategoryDetail: utils.TruncateRunes(strings.TrimSpace(response.CategoryDetail), 100),
		ProductService: utils.TruncateRunes(strings.TrimSpace(response.ProductService), 100),
		Summary:        strings.TrimSpace(response.Summary),
		Sentiment:      response.Sentiment,
		ExtractedAt:    utils.Now(),
	}

	created, err := repos.ExtractionRepository.CreateIfAbsent(ctx, extraction)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to store extraction")
	}
	if !created {
		return nil, nil
	}

	e.log.Infof("Stored %s extraction for message %s", extraction.IssueType, message.ID)
	return extraction, nil
}

func (e *Extractor) ask(ctx context.Context, parsed *dto.ParsedMessage) (*dto.ExtractionResponse, bool) {
	raw, err := e.ai.Complete(ctx, dto.CompletionRequest{
		Model: e.model,
		Messages: []dto.ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(parsed.SenderAddress, parsed.Subject, parsed.Snippet)},
		},
		SchemaName:  schemaName,
		Schema:      extractionSchema(),
		Temperature: temperature,
	})
	if err != nil {
		e.log.Warnf("Extraction call failed for %s: %v", parsed.MessageID, err)
		return nil, false
	}

	var response dto.ExtractionResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		e.log.Warnf("Extraction returned malformed json for %s: %v", parsed.MessageID, err)
		return nil, false
	}

	if response.IssueType == "" || response.IssueType == IssueTypeNotApplicable {
		return nil, false
	}
	if !utils.IsStringInSlice(response.IssueType, issueTypes) {
		e.log.Warnf("Extraction returned unknown issue type %q for %s", response.IssueType, parsed.MessageID)
		return nil, false
	}
	if strings.TrimSpace(response.Summary) == "" {
		e.log.Warnf("Extraction returned an empty summary for %s", parsed.MessageID)
		return nil, false
	}
	if response.Sentiment != "" && !utils.IsStringInSlice(response.Sentiment, sentiments) {
		e.log.Warnf("Extraction returned unknown sentiment %q for %s", response.Sentiment, parsed.MessageID)
		return nil, false
	}

	return &response, true
}
