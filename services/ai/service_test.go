package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailingest/config"
	"github.com/customeros/mailingest/dto"
	mailerrors "github.com/customeros/mailingest/internal/errors"
)

func newServer(t *testing.T, status int, body string, inspect func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inspect != nil {
			inspect(r)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete_SendsSchemaAndReturnsContent(t *testing.T) {
	var captured chatRequest
	srv := newServer(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"{\"category\":\"SPAM\"}"}}]}`, func(r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
	})

	client := NewChatCompletionClient(&config.AIConfig{BaseURL: srv.URL + "/", ApiKey: "secret", Model: "llama3.1-8b", Timeout: time.Second})
	out, err := client.Complete(context.Background(), dto.CompletionRequest{
		Messages:    []dto.ChatMessage{{Role: "user", Content: "hi"}},
		SchemaName:  "email_category_schema",
		Schema:      map[string]interface{}{"type": "object"},
		Temperature: 0.1,
		MaxTokens:   50,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"category":"SPAM"}`, string(out))

	assert.Equal(t, "llama3.1-8b", captured.Model)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_schema", captured.ResponseFormat.Type)
	assert.Equal(t, "email_category_schema", captured.ResponseFormat.JSONSchema.Name)
	assert.True(t, captured.ResponseFormat.JSONSchema.Strict)
	assert.Equal(t, 50, captured.MaxTokens)
}

func TestComplete_NotConfigured(t *testing.T) {
	client := NewChatCompletionClient(&config.AIConfig{BaseURL: "http://localhost"})
	assert.False(t, client.IsConfigured())
	_, err := client.Complete(context.Background(), dto.CompletionRequest{})
	assert.True(t, errors.Is(err, mailerrors.ErrAINotConfigured))
}

func TestComplete_ServerErrorIsHardFailure(t *testing.T) {
	srv := newServer(t, http.StatusServiceUnavailable, `overloaded`, nil)
	client := NewChatCompletionClient(&config.AIConfig{BaseURL: srv.URL, ApiKey: "k"})
	_, err := client.Complete(context.Background(), dto.CompletionRequest{})
	require.Error(t, err)
	assert.True(t, mailerrors.IsAIHardFailure(err))
}

func TestComplete_NonJSONContentIsInvalid(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"SPAM"}}]}`, nil)
	client := NewChatCompletionClient(&config.AIConfig{BaseURL: srv.URL, ApiKey: "k"})
	_, err := client.Complete(context.Background(), dto.CompletionRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, mailerrors.ErrAIInvalidResponse))
	assert.False(t, mailerrors.IsAIHardFailure(err))
}

func TestComplete_NoChoices(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"choices":[]}`, nil)
	client := NewChatCompletionClient(&config.AIConfig{BaseURL: srv.URL, ApiKey: "k"})
	_, err := client.Complete(context.Background(), dto.CompletionRequest{})
	assert.True(t, errors.Is(err, mailerrors.ErrAIInvalidResponse))
}
