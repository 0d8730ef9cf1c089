package threads

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailingest/dto"
	"github.com/customeros/mailingest/internal/logger"
	"github.com/customeros/mailingest/internal/models"
	"github.com/customeros/mailingest/internal/repository/memory"
)

func newTestResolver() *Resolver {
	log := logger.NewAppLogger(&logger.Config{LogLevel: "error"})
	log.InitLogger()
	return NewResolver(log)
}

func at(hour int) *time.Time {
	t := time.Date(2024, 5, 1, hour, 0, 0, 0, time.UTC)
	return &t
}

func TestResolve_MintsThreadFromMessageID(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repositories()
	r := newTestResolver()

	msg := &dto.ParsedMessage{MessageID: "<root@x>", Subject: "Hello", SenderAddress: "a@x.com", SentAt: at(9), BodyText: "first"}
	thread, err := r.Resolve(ctx, repos, Input{UserID: "u1", AccountID: "acct1", Message: msg})
	require.NoError(t, err)
	assert.Equal(t, "<root@x>", thread.ID)
	assert.Equal(t, "Hello", thread.Subject)
	assert.Equal(t, "acct1", thread.AccountID)
	assert.Equal(t, 1, store.ThreadCount())

	require.NoError(t, r.Touch(ctx, repos, thread, msg))
	stored, err := repos.EmailThreadRepository.GetByID(ctx, "u1", "<root@x>")
	require.NoError(t, err)
	assert.Equal(t, *at(9), *stored.LastMessageAt)
	assert.Equal(t, "first", stored.Snippet)
	assert.Equal(t, []string{"a@x.com"}, []string(stored.Participants))
}

func TestResolve_ReplyAdoptsParentThread(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repositories()
	r := newTestResolver()

	require.NoError(t, repos.EmailThreadRepository.Create(ctx, &models.EmailThread{ID: "<root@x>", UserID: "u1", AccountID: "acct1", LastMessageAt: at(9)}))
	require.NoError(t, repos.EmailMessageRepository.Save(ctx, &models.EmailMessage{UserID: "u1", MessageIDHeader: "<root@x>", ThreadID: "<root@x>"}))

	reply := &dto.ParsedMessage{MessageID: "<reply@x>", InReplyTo: "<root@x>", SenderAddress: "b@x.com", SentAt: at(10), BodyText: "reply body"}
	thread, err := r.Resolve(ctx, repos, Input{UserID: "u1", AccountID: "acct1", Message: reply})
	require.NoError(t, err)
	assert.Equal(t, "<root@x>", thread.ID)
	assert.Equal(t, 1, store.ThreadCount())

	require.NoError(t, r.Touch(ctx, repos, thread, reply))
	stored, _ := repos.EmailThreadRepository.GetByID(ctx, "u1", "<root@x>")
	assert.Equal(t, *at(10), *stored.LastMessageAt)
	assert.Equal(t, "reply body", stored.Snippet)
}

func TestResolve_ParentOfOtherUserIsIgnored(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repositories()
	r := newTestResolver()

	require.NoError(t, repos.EmailMessageRepository.Save(ctx, &models.EmailMessage{UserID: "u2", MessageIDHeader: "<root@x>", ThreadID: "<root@x>"}))

	reply := &dto.ParsedMessage{MessageID: "<reply@x>", InReplyTo: "<root@x>"}
	thread, err := r.Resolve(ctx, repos, Input{UserID: "u1", AccountID: "acct1", Message: reply})
	require.NoError(t, err)
	assert.Equal(t, "<reply@x>", thread.ID)
}

func TestResolve_ReferencesInHeaderOrder(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewStore().Repositories()
	r := newTestResolver()

	// first reference is unknown, second has a thread
	require.NoError(t, repos.EmailMessageRepository.Save(ctx, &models.EmailMessage{UserID: "u1", MessageIDHeader: "<mid@x>", ThreadID: "<root@x>"}))
	require.NoError(t, repos.EmailThreadRepository.Create(ctx, &models.EmailThread{ID: "<root@x>", UserID: "u1"}))

	msg := &dto.ParsedMessage{MessageID: "<new@x>", InReplyTo: "<unknown@x>", ReferenceIDs: []string{"<gone@x>", "<mid@x>"}}
	thread, err := r.Resolve(ctx, repos, Input{UserID: "u1", AccountID: "acct1", Message: msg})
	require.NoError(t, err)
	assert.Equal(t, "<root@x>", thread.ID)
	// account link repaired on an existing thread without one
	assert.Equal(t, "acct1", thread.AccountID)
}

func TestResolve_ExistingMessageKeepsThread(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewStore().Repositories()
	r := newTestResolver()

	require.NoError(t, repos.EmailThreadRepository.Create(ctx, &models.EmailThread{ID: "<t@x>", UserID: "u1", AccountID: "acct1"}))
	existing := &models.EmailMessage{UserID: "u1", MessageIDHeader: "<m@x>", ThreadID: "<t@x>"}

	thread, err := r.Resolve(ctx, repos, Input{UserID: "u1", AccountID: "acct1", Message: &dto.ParsedMessage{MessageID: "<m@x>"}, Existing: existing})
	require.NoError(t, err)
	assert.Equal(t, "<t@x>", thread.ID)
}

func TestResolve_SyntheticIDWithoutMessageID(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewStore().Repositories()
	r := newTestResolver()
	r.now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }

	thread, err := r.Resolve(ctx, repos, Input{UserID: "u1", Message: &dto.ParsedMessage{}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(thread.ID, "thread_subject_untitled_20240501T123000"))
}

func TestTouch_OlderMessageDoesNotRewind(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewStore().Repositories()
	r := newTestResolver()

	thread := &models.EmailThread{ID: "<t@x>", UserID: "u1", LastMessageAt: at(12), Snippet: "newest", Participants: []string{"a@x.com"}}
	require.NoError(t, repos.EmailThreadRepository.Create(ctx, thread))

	older := &dto.ParsedMessage{MessageID: "<old@x>", SenderAddress: "b@x.com", SentAt: at(8), BodyText: "older"}
	require.NoError(t, r.Touch(ctx, repos, thread, older))

	stored, _ := repos.EmailThreadRepository.GetByID(ctx, "u1", "<t@x>")
	assert.Equal(t, *at(12), *stored.LastMessageAt)
	assert.Equal(t, "newest", stored.Snippet)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, []string(stored.Participants))

	// a message with no date never advances
	require.NoError(t, r.Touch(ctx, repos, thread, &dto.ParsedMessage{SenderAddress: "a@x.com", BodyText: "undated"}))
	stored, _ = repos.EmailThreadRepository.GetByID(ctx, "u1", "<t@x>")
	assert.Equal(t, "newest", stored.Snippet)
	assert.Len(t, stored.Participants, 2)
}
