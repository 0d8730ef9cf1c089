package classifier

import (
	"context"
	"encoding/json"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailingest/dto"
	"github.com/customeros/mailingest/interfaces"
	"github.com/customeros/mailingest/internal/enum"
	"github.com/customeros/mailingest/internal/logger"
	"github.com/customeros/mailingest/internal/tracing"
)

type classifier struct {
	ai    interfaces.ChatCompletionClient
	model string
	log   logger.Logger
}

// NewClassifier returns a classifier that asks the chat backend first and falls back to keyword
// rules on any failure. A nil client means rules only.
func NewClassifier(ai interfaces.ChatCompletionClient, model string, log logger.Logger) interfaces.Classifier {
	return &classifier{ai: ai, model: model, log: log}
}

func (c *classifier) Classify(ctx context.Context, sender, subject, snippet string) enum.Category {
	span, ctx := opentracing.StartSpanFromContext(ctx, "classifier.Classify")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if category, ok := c.classifyWithAI(ctx, sender, subject, snippet); ok {
		span.SetTag("path", "ai")
		span.SetTag("category", category.String())
		return category
	}

	category := classifyByRules(sender, subject, snippet)
	span.SetTag("path", "rules")
	span.SetTag("category", category.String())
	return category
}

func (c *classifier) classifyWithAI(ctx context.Context, sender, subject, snippet string) (enum.Category, bool) {
	if c.ai == nil || !c.ai.IsConfigured() {
		return "", false
	}

	raw, err := c.ai.Complete(ctx, dto.CompletionRequest{
		Model: c.model,
		Messages: []dto.ChatMessage{
			{Role: "system", Content: systemPrompt()},
			{Role: "user", Content: userPrompt(sender, subject, snippet)},
		},
		SchemaName:  categorySchemaName,
		Schema:      categorySchema(),
		Temperature: categoryTemperature,
		MaxTokens:   categoryMaxTokens,
	})
	if err != nil {
		c.log.Warnf("AI categorization failed, using rules: %v", err)
		return "", false
	}

	var response dto.CategoryResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		c.log.Warnf("AI categorization returned malformed json, using rules: %v", err)
		return "", false
	}

	category, ok := enum.ParseCategory(response.Category)
	if !ok {
		c.log.Warnf("AI categorization returned unknown category %q, using rules", response.Category)
		return "", false
	}
	return category, true
}
