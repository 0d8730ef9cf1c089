package interfaces

import (
	"context"

	"github.com/customeros/mailingest/dto"
)

// MailboxClient opens sessions. Errors wrap ErrMailboxConnection.
type MailboxClient interface {
	Connect(ctx context.Context, config dto.MailboxConfig) (MailboxSession, error)
}

// MailboxSession is scoped to one account run and must be closed on every exit path.
type MailboxSession interface {
	// FetchRecent returns up to maxCount messages, newest first. Errors wrap ErrMailboxFetch.
	FetchRecent(ctx context.Context, mailbox string, maxCount int) ([]dto.RawMessage, error)
	Close() error
}
