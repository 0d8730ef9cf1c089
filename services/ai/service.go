package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailingest/config"
	"github.com/customeros/mailingest/dto"
	"github.com/customeros/mailingest/interfaces"
	mailerrors "github.com/customeros/mailingest/internal/errors"
	"github.com/customeros/mailingest/internal/tracing"
)

const defaultTimeout = 30 * time.Second

type chatCompletionClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewChatCompletionClient talks to any OpenAI-compatible /chat/completions endpoint.
func NewChatCompletionClient(cfg *config.AIConfig) interfaces.ChatCompletionClient {
	if cfg == nil {
		cfg = &config.AIConfig{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &chatCompletionClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.ApiKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *chatCompletionClient) IsConfigured() bool {
	return c.apiKey != "" && c.baseURL != ""
}

type jsonSchemaFormat struct {
	Name   string                 `json:"name"`
	Strict bool                   `json:"strict"`
	Schema map[string]interface{} `json:"schema"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema jsonSchemaFormat `json:"json_schema"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []dto.ChatMessage `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat   `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message dto.ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *chatCompletionClient) Complete(ctx context.Context, request dto.CompletionRequest) (json.RawMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "chatCompletionClient.Complete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("schema", request.SchemaName)

	if !c.IsConfigured() {
		return nil, mailerrors.ErrAINotConfigured
	}

	model := request.Model
	if model == "" {
		model = c.model
	}

	payload := chatRequest{
		Model:       model,
		Messages:    request.Messages,
		Temperature: request.Temperature,
		MaxTokens:   request.MaxTokens,
	}
	if request.Schema != nil {
		payload.ResponseFormat = &responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaFormat{
				Name:   request.SchemaName,
				Strict: true,
				Schema: request.Schema,
			},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(mailerrors.ErrAIServiceUnavailable, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(mailerrors.ErrAIServiceUnavailable, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(mailerrors.ErrAIServiceUnavailable, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(mailerrors.ErrAIServiceUnavailable, err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = errors.Wrapf(mailerrors.ErrAIServiceUnavailable, "status %d: %s", resp.StatusCode, string(respBody))
		tracing.TraceErr(span, err)
		return nil, err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(mailerrors.ErrAIInvalidResponse, err.Error())
	}
	if chatResp.Error != nil {
		err = errors.Wrap(mailerrors.ErrAIServiceUnavailable, chatResp.Error.Message)
		tracing.TraceErr(span, err)
		return nil, err
	}
	if len(chatResp.Choices) == 0 {
		err = errors.Wrap(mailerrors.ErrAIInvalidResponse, "no choices returned")
		tracing.TraceErr(span, err)
		return nil, err
	}

	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if len(content) == 0 || content[0] != '{' || !json.Valid([]byte(content)) {
		err = errors.Wrap(mailerrors.ErrAIInvalidResponse, "content is not a json object")
		tracing.TraceErr(span, err)
		return nil, err
	}

	return json.RawMessage(content), nil
}
