package threads

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailingest/dto"
	"github.com/customeros/mailingest/internal/logger"
	"github.com/customeros/mailingest/internal/models"
	"github.com/customeros/mailingest/internal/repository"
	"github.com/customeros/mailingest/internal/tracing"
	"github.com/customeros/mailingest/internal/utils"
)

const (
	threadSnippetLength = 255
	maxThreadIDLength   = 998
)

// Input is everything resolution needs to know about the incoming message.
type Input struct {
	UserID    string
	AccountID string
	Message   *dto.ParsedMessage
	// Existing is the already persisted copy of the message, if any.
	Existing *models.EmailMessage
}

type strategy struct {
	name string
	find func(ctx context.Context, repos *repository.Repositories, in Input) (string, error)
}

type Resolver struct {
	log        logger.Logger
	strategies []strategy
	now        func() time.Time
}

func NewResolver(log logger.Logger) *Resolver {
	return &Resolver{
		log: log,
		strategies: []strategy{
			{name: "existing", find: fromExisting},
			{name: "in_reply_to", find: fromInReplyTo},
			{name: "references", find: fromReferences},
		},
		now: utils.Now,
	}
}

// Resolve returns the thread the message belongs to, creating it when no strategy matches.
// Parent lookups are a single hop: a parent without a thread does not send us to its own parent.
func (r *Resolver) Resolve(ctx context.Context, repos *repository.Repositories, in Input) (*models.EmailThread, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Resolver.Resolve")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, in.AccountID)

	if in.Message == nil {
		err := errors.New("message is required")
		tracing.TraceErr(span, err)
		return nil, err
	}
	span.SetTag("message_id_header", in.Message.MessageID)

	for _, s := range r.strategies {
		threadID, err := s.find(ctx, repos, in)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, errors.Wrapf(err, "thread lookup via %s", s.name)
		}
		if threadID == "" {
			continue
		}
		span.LogKV("strategy", s.name, "thread_id", threadID)
		return r.ensureThread(ctx, repos, in, threadID)
	}

	threadID := in.Message.MessageID
	if threadID == "" {
		threadID = r.syntheticID(in.Message.Subject)
	}
	span.LogKV("strategy", "mint", "thread_id", threadID)
	return r.ensureThread(ctx, repos, in, threadID)
}

// ensureThread loads the thread row, creating it when missing and repairing a missing account link.
func (r *Resolver) ensureThread(ctx context.Context, repos *repository.Repositories, in Input, threadID string) (*models.EmailThread, error) {
	thread, err := repos.EmailThreadRepository.GetByID(ctx, in.UserID, threadID)
	if err != nil {
		return nil, err
	}

	if thread != nil {
		if thread.AccountID == "" && in.AccountID != "" {
			r.log.Infof("Repairing account link for thread %s", threadID)
			thread.AccountID = in.AccountID
		}
		return thread, nil
	}

	thread = &models.EmailThread{
		ID:           threadID,
		UserID:       in.UserID,
		AccountID:    in.AccountID,
		Subject:      in.Message.Subject,
		Participants: []string{},
	}
	if err := repos.EmailThreadRepository.Create(ctx, thread); err != nil {
		return nil, errors.Wrap(err, "failed to create thread")
	}
	return thread, nil
}

func (r *Resolver) syntheticID(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "untitled"
	}
	id := fmt.Sprintf("thread_subject_%s_%s", subject, r.now().UTC().Format("20060102T150405.000000"))
	return utils.TruncateRunes(id, maxThreadIDLength)
}

// Touch folds the message into the thread's denormalized fields and persists them.
func (r *Resolver) Touch(ctx context.Context, repos *repository.Repositories, thread *models.EmailThread, msg *dto.ParsedMessage) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Resolver.Touch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("thread_id", thread.ID)

	advanced := false
	if msg.SentAt != nil && (thread.LastMessageAt == nil || msg.SentAt.After(*thread.LastMessageAt)) {
		sentAt := *msg.SentAt
		thread.LastMessageAt = &sentAt
		advanced = true
	}
	if advanced || thread.Snippet == "" {
		thread.Snippet = utils.TruncateRunes(msg.BodyText, threadSnippetLength)
	}
	thread.Participants = utils.AppendUnique(thread.Participants, msg.SenderAddress)

	span.LogKV("advanced", advanced)
	if err := repos.EmailThreadRepository.Update(ctx, thread); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to update thread")
	}
	return nil
}

func fromExisting(_ context.Context, _ *repository.Repositories, in Input) (string, error) {
	if in.Existing == nil {
		return "", nil
	}
	return in.Existing.ThreadID, nil
}

func fromInReplyTo(ctx context.Context, repos *repository.Repositories, in Input) (string, error) {
	return parentThread(ctx, repos, in.UserID, in.Message.InReplyTo)
}

func fromReferences(ctx context.Context, repos *repository.Repositories, in Input) (string, error) {
	for _, ref := range in.Message.ReferenceIDs {
		threadID, err := parentThread(ctx, repos, in.UserID, ref)
		if err != nil || threadID != "" {
			return threadID, err
		}
	}
	return "", nil
}

func parentThread(ctx context.Context, repos *repository.Repositories, userID, messageID string) (string, error) {
	if messageID == "" {
		return "", nil
	}
	parent, err := repos.EmailMessageRepository.GetByMessageID(ctx, userID, messageID)
	if err != nil || parent == nil {
		return "", err
	}
	return parent.ThreadID, nil
}
