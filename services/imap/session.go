package imap

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailingest/dto"
	mailerrors "github.com/customeros/mailingest/internal/errors"
	"github.com/customeros/mailingest/internal/logger"
	"github.com/customeros/mailingest/internal/tracing"
)

type session struct {
	client    *client.Client
	accountID string
	log       logger.Logger
	closed    bool
}

// FetchRecent selects the mailbox read-only and returns the last maxCount messages, newest first.
// Full bodies are fetched with PEEK so the server does not mark them seen.
func (s *session) FetchRecent(ctx context.Context, mailbox string, maxCount int) ([]dto.RawMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "session.FetchRecent")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, s.accountID)
	span.SetTag("folder.name", mailbox)

	if s.closed {
		return nil, errors.Wrap(mailerrors.ErrMailboxFetch, "session closed")
	}
	if maxCount <= 0 {
		return nil, nil
	}

	mbox, err := s.client.Select(mailbox, true)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(mailerrors.ErrMailboxFetch, "select %s: %v", mailbox, err)
	}
	span.LogKV("mailbox.messages", mbox.Messages)
	if mbox.Messages == 0 {
		return nil, nil
	}

	from := uint32(1)
	if mbox.Messages > uint32(maxCount) {
		from = mbox.Messages - uint32(maxCount) + 1
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, mbox.Messages)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid}

	messages := make(chan *imap.Message, maxCount)
	done := make(chan error, 1)

	s.client.Timeout = fetchTimeout
	defer func() { s.client.Timeout = 0 }()

	go func() {
		done <- s.client.Fetch(seqSet, items, messages)
	}()

	out, readErr := s.collect(messages, section)

	if err := <-done; err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(mailerrors.ErrMailboxFetch, "fetch %s: %v", mailbox, err)
	}
	if readErr != nil {
		tracing.TraceErr(span, readErr)
		return nil, readErr
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(mailerrors.ErrMailboxFetch, err.Error())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SeqNum > out[j].SeqNum })
	span.LogKV("fetched", len(out))
	return out, nil
}

// collect drains messages until the channel closes. A body that cannot be read fails the whole
// fetch, since a partial batch would be committed as if it were complete.
func (s *session) collect(messages <-chan *imap.Message, section *imap.BodySectionName) ([]dto.RawMessage, error) {
	var out []dto.RawMessage
	var readErr error
	for msg := range messages {
		if msg == nil || readErr != nil {
			continue
		}
		literal := msg.GetBody(section)
		if literal == nil {
			s.log.Warnf("[%s] Message %d returned no body", s.accountID, msg.SeqNum)
			continue
		}
		raw, err := io.ReadAll(literal)
		if err != nil {
			readErr = errors.Wrapf(mailerrors.ErrMailboxFetch, "read message %d: %v", msg.SeqNum, err)
			continue
		}
		out = append(out, dto.RawMessage{SeqNum: msg.SeqNum, UID: msg.Uid, Raw: raw})
	}
	if readErr != nil {
		return nil, readErr
	}
	return out, nil
}

// Close logs out, giving up after a short timeout. Calling it twice is a no-op.
func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.client.Timeout = logoutTimeout
	done := make(chan error, 1)
	go func() {
		done <- s.client.Logout()
	}()

	select {
	case err := <-done:
		if err != nil && err != client.ErrAlreadyLoggedOut {
			s.log.Warnf("[%s] Error during logout: %v", s.accountID, err)
			return err
		}
		return nil
	case <-time.After(logoutTimeout):
		s.log.Warnf("[%s] Logout timed out", s.accountID)
		_ = s.client.Terminate()
		return nil
	}
}
