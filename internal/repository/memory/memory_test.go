package memory

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailingest/internal/models"
	"github.com/customeros/mailingest/internal/repository"
)

func TestTransaction_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repos := store.Repositories()

	require.NoError(t, repos.EmailMessageRepository.Save(ctx, &models.EmailMessage{UserID: "u1", MessageIDHeader: "<keep@x>"}))

	boom := errors.New("boom")
	err := repos.Transactor.Transaction(ctx, func(tx *repository.Repositories) error {
		require.NoError(t, tx.EmailMessageRepository.Save(ctx, &models.EmailMessage{UserID: "u1", MessageIDHeader: "<drop@x>"}))
		require.NoError(t, tx.EmailThreadRepository.Create(ctx, &models.EmailThread{ID: "<drop@x>", UserID: "u1"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, store.MessageCount())
	assert.Equal(t, 0, store.ThreadCount())

	err = repos.Transactor.Transaction(ctx, func(tx *repository.Repositories) error {
		return tx.EmailMessageRepository.Save(ctx, &models.EmailMessage{UserID: "u1", MessageIDHeader: "<new@x>"})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, store.MessageCount())
}

func TestMessageRepo_UniquePerUser(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()

	require.NoError(t, repos.EmailMessageRepository.Save(ctx, &models.EmailMessage{UserID: "u1", MessageIDHeader: "<a@x>"}))
	require.NoError(t, repos.EmailMessageRepository.Save(ctx, &models.EmailMessage{UserID: "u2", MessageIDHeader: "<a@x>"}))
	assert.Error(t, repos.EmailMessageRepository.Save(ctx, &models.EmailMessage{UserID: "u1", MessageIDHeader: "<a@x>"}))

	found, err := repos.EmailMessageRepository.GetByMessageID(ctx, "u2", "<a@x>")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "u2", found.UserID)

	missing, err := repos.EmailMessageRepository.GetByMessageID(ctx, "u3", "<a@x>")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestExtractionRepo_CreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()

	created, err := repos.ExtractionRepository.CreateIfAbsent(ctx, &models.Extraction{MessageID: "msg_1", Summary: "first"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repos.ExtractionRepository.CreateIfAbsent(ctx, &models.Extraction{MessageID: "msg_1", Summary: "second"})
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := repos.ExtractionRepository.GetByMessageID(ctx, "msg_1")
	require.NoError(t, err)
	assert.Equal(t, "first", stored.Summary)
}
