package interfaces

import (
	"context"
	"encoding/json"

	"github.com/customeros/mailingest/dto"
)

// ChatCompletionClient returns the structured JSON content of the first choice.
// Hard failures wrap ErrAINotConfigured or ErrAIServiceUnavailable; a reply that is not
// a JSON object wraps ErrAIInvalidResponse.
type ChatCompletionClient interface {
	IsConfigured() bool
	Complete(ctx context.Context, request dto.CompletionRequest) (json.RawMessage, error)
}
