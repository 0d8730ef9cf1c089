package classifier

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailingest/dto"
	"github.com/customeros/mailingest/internal/enum"
	mailerrors "github.com/customeros/mailingest/internal/errors"
	"github.com/customeros/mailingest/internal/logger"
)

type fakeAI struct {
	configured bool
	reply      string
	err        error
	requests   []dto.CompletionRequest
}

func (f *fakeAI) IsConfigured() bool { return f.configured }

func (f *fakeAI) Complete(_ context.Context, request dto.CompletionRequest) (json.RawMessage, error) {
	f.requests = append(f.requests, request)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.reply), nil
}

func testLogger() logger.Logger {
	l := logger.NewAppLogger(&logger.Config{LogLevel: "error"})
	l.InitLogger()
	return l
}

func TestClassify_AIPath(t *testing.T) {
	ai := &fakeAI{configured: true, reply: `{"category":"work"}`}
	c := NewClassifier(ai, "llama3.1-8b", testLogger())

	got := c.Classify(context.Background(), "boss@corp.com", "Quarterly plan", "see attached")
	assert.Equal(t, enum.CategoryWork, got)

	require.Len(t, ai.requests, 1)
	req := ai.requests[0]
	assert.Equal(t, categorySchemaName, req.SchemaName)
	assert.Equal(t, 0.1, req.Temperature)
	assert.Equal(t, 50, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[0].Content, "COMPLAINTS_SUGGESTIONS")
	assert.Contains(t, req.Messages[1].Content, "Sender: boss@corp.com\nSubject: Quarterly plan\nBody Snippet: see attached")
}

func TestClassify_FallbackWhenAIUnavailable(t *testing.T) {
	ai := &fakeAI{configured: true, err: errors.Wrap(mailerrors.ErrAIServiceUnavailable, "timeout")}
	c := NewClassifier(ai, "", testLogger())

	got := c.Classify(context.Background(), "winner@spam.biz", "CONGRATULATIONS YOU HAVE WON!!!", "claim your prize now")
	assert.Equal(t, enum.CategorySpam, got)
}

func TestClassify_FallbackOnBadPayloads(t *testing.T) {
	for _, reply := range []string{`{"category":"NOT_A_CATEGORY"}`, `{"label":"SPAM"}`, `not json`} {
		ai := &fakeAI{configured: true, reply: reply}
		c := NewClassifier(ai, "", testLogger())
		assert.Equal(t, enum.CategorySocial, c.Classify(context.Background(), "notify@linkedin.com", "hi", ""), reply)
	}
}

func TestClassify_NotConfiguredSkipsAI(t *testing.T) {
	ai := &fakeAI{configured: false, reply: `{"category":"WORK"}`}
	c := NewClassifier(ai, "", testLogger())

	assert.Equal(t, enum.CategoryInbox, c.Classify(context.Background(), "friend@home.org", "lunch?", "see you at noon"))
	assert.Empty(t, ai.requests)

	assert.Equal(t, enum.CategoryInbox, NewClassifier(nil, "", testLogger()).Classify(context.Background(), "friend@home.org", "lunch?", ""))
}

func TestClassifyByRules_Order(t *testing.T) {
	cases := []struct {
		name                   string
		sender, subject, body string
		want                   enum.Category
	}{
		{"spam beats social", "x@facebookmail.com", "Claim your prize", "", enum.CategorySpam},
		{"social domain", "notification@facebookmail.com", "New activity", "", enum.CategorySocial},
		{"social subject", "a@b.com", "Ann tagged you in a photo", "", enum.CategorySocial},
		{"newsletter sender", "newsletter@shop.com", "Weekly", "", enum.CategoryNewsletters},
		{"promotion body", "a@shop.com", "Hello", "To unsubscribe click below", enum.CategoryPromotions},
		{"promotion subject", "a@shop.com", "Big discount today", "", enum.CategoryPromotions},
		{"updates", "billing@vendor.com", "Your invoice is ready", "", enum.CategoryUpdates},
		{"forums", "list@googlegroups.com", "Re: question", "", enum.CategoryForums},
		{"forum digest", "a@b.com", "Weekly digest", "", enum.CategoryForums},
		{"finance", "a@b.com", "Payment confirmation", "", enum.CategoryFinance},
		{"default", "a@b.com", "Hi", "how are you", enum.CategoryInbox},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyByRules(tc.sender, tc.subject, tc.body))
		})
	}
}
