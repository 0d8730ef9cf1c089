package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailingest/dto"
	"github.com/customeros/mailingest/interfaces"
	"github.com/customeros/mailingest/internal/enum"
	mailerrors "github.com/customeros/mailingest/internal/errors"
	"github.com/customeros/mailingest/internal/logger"
	"github.com/customeros/mailingest/internal/models"
	"github.com/customeros/mailingest/internal/repository"
	"github.com/customeros/mailingest/internal/tracing"
	"github.com/customeros/mailingest/internal/utils"
	"github.com/customeros/mailingest/services/extraction"
	"github.com/customeros/mailingest/services/threads"
)

const (
	DefaultMailbox   = "INBOX"
	DefaultBatchSize = 10
)

type Config struct {
	Mailbox   string
	BatchSize int
}

// Result is the outcome of one run. Counts are zero for runs that did not commit.
type Result struct {
	AccountID  string
	Status     enum.RunStatus
	Reason     string
	Processed  int
	Dropped    int
	Skipped    int
	Retryable  bool
	FinalState enum.RunState
	StartedAt  time.Time
	FinishedAt time.Time
}

type Dependencies struct {
	Repositories *repository.Repositories
	Mailbox      interfaces.MailboxClient
	Credentials  interfaces.CredentialCodec
	Parser       interfaces.MessageParser
	Resolver     *threads.Resolver
	Classifier   interfaces.Classifier
	Extractor    *extraction.Extractor
	Log          logger.Logger
}

type Orchestrator struct {
	repos      *repository.Repositories
	mailbox    interfaces.MailboxClient
	codec      interfaces.CredentialCodec
	parser     interfaces.MessageParser
	resolver   *threads.Resolver
	classifier interfaces.Classifier
	extractor  *extraction.Extractor
	log        logger.Logger
	cfg        Config
	leases     *leaseSet
}

func NewOrchestrator(deps Dependencies, cfg Config) *Orchestrator {
	if cfg.Mailbox == "" {
		cfg.Mailbox = DefaultMailbox
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Orchestrator{
		repos:      deps.Repositories,
		mailbox:    deps.Mailbox,
		codec:      deps.Credentials,
		parser:     deps.Parser,
		resolver:   deps.Resolver,
		classifier: deps.Classifier,
		extractor:  deps.Extractor,
		log:        deps.Log,
		cfg:        cfg,
		leases:     newLeaseSet(),
	}
}

type batchCounts struct {
	processed int
	dropped   int
	skipped   int
}

// run carries the state of a single account run.
type run struct {
	accountID string
	state     enum.RunState
	log       logger.Logger
	result    Result
}

func (r *run) transition(state enum.RunState) {
	r.log.Debugf("run %s: %s -> %s", r.accountID, r.state, state)
	r.state = state
}

func (r *run) finish(status enum.RunStatus, reason string, retryable bool) Result {
	if status == enum.RunStatusCompleted {
		r.transition(enum.RunStateDone)
	} else {
		r.transition(enum.RunStateAborted)
	}
	r.result.Status = status
	r.result.Reason = reason
	r.result.Retryable = retryable
	r.result.FinalState = r.state
	r.result.FinishedAt = utils.Now()
	return r.result
}

func (r *run) skip(err error) Result {
	r.log.Infof("Skipping ingestion for account %s: %s", r.accountID, err.Error())
	return r.finish(enum.RunStatusSkipped, err.Error(), false)
}

func (r *run) fail(err error) Result {
	r.log.Errorf("Ingestion failed for account %s: %s", r.accountID, err.Error())
	return r.finish(enum.RunStatusFailed, err.Error(), true)
}

// Run ingests the most recent messages of one account. It never returns partially committed
// work: either the whole batch is stored or nothing is.
func (o *Orchestrator) Run(ctx context.Context, accountID string) Result {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Orchestrator.Run")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	r := &run{
		accountID: accountID,
		state:     enum.RunStateIdle,
		log:       o.log,
		result:    Result{AccountID: accountID, StartedAt: utils.Now()},
	}

	if !o.leases.acquire(accountID) {
		return r.skip(mailerrors.ErrRunInProgress)
	}
	defer o.leases.release(accountID)

	account, password, err := o.checkPreconditions(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		if mailerrors.IsPrecondition(err) {
			return r.skip(err)
		}
		return r.fail(err)
	}
	ctx = utils.WithAccount(ctx, account.UserID, account.ID)

	r.transition(enum.RunStateConnecting)
	session, err := o.mailbox.Connect(ctx, dto.MailboxConfig{
		AccountID: account.ID,
		Host:      account.ImapServer,
		Port:      account.ImapPort,
		Username:  account.LoginUser(),
		Password:  password,
		TLS:       account.ImapTLS,
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return r.fail(err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			o.log.Warnf("Failed to close mailbox session for account %s: %s", accountID, closeErr.Error())
		}
	}()

	r.transition(enum.RunStateFetching)
	raws, err := session.FetchRecent(ctx, o.cfg.Mailbox, o.cfg.BatchSize)
	if err != nil {
		tracing.TraceErr(span, err)
		return r.fail(err)
	}
	span.LogKV("fetched", len(raws))

	r.transition(enum.RunStateProcessingBatch)
	var counts batchCounts
	err = o.repos.Transactor.Transaction(ctx, func(tx *repository.Repositories) error {
		counts = batchCounts{}
		for _, raw := range raws {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := o.processMessage(ctx, tx, account, raw, &counts); err != nil {
				return errors.Wrapf(err, "message seq %d", raw.SeqNum)
			}
		}
		r.transition(enum.RunStateCommitting)
		return tx.EmailAccountRepository.MarkIngested(ctx, account.ID)
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return r.fail(err)
	}

	r.result.Processed = counts.processed
	r.result.Dropped = counts.dropped
	r.result.Skipped = counts.skipped
	span.LogKV("processed", counts.processed, "dropped", counts.dropped, "skipped", counts.skipped)
	o.log.Infof("Ingested account %s: %d processed, %d dropped, %d skipped", accountID, counts.processed, counts.dropped, counts.skipped)
	return r.finish(enum.RunStatusCompleted, fmt.Sprintf("processed %d messages", counts.processed), false)
}

// checkPreconditions loads the account and decrypts its password without touching the mailbox.
func (o *Orchestrator) checkPreconditions(ctx context.Context, accountID string) (*models.EmailAccount, string, error) {
	account, err := o.repos.EmailAccountRepository.GetByID(ctx, accountID)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to load email account")
	}
	if account == nil {
		return nil, "", mailerrors.ErrAccountNotFound
	}
	if !account.IsActive {
		return nil, "", mailerrors.ErrAccountInactive
	}
	if len(account.EncryptedPassword) == 0 {
		return nil, "", mailerrors.ErrMissingCredentials
	}
	password, err := o.codec.Decrypt(account.EncryptedPassword)
	if err != nil {
		return nil, "", err
	}
	if password == "" {
		return nil, "", mailerrors.ErrMissingCredentials
	}
	if !account.HasServerConfig() {
		return nil, "", mailerrors.ErrMissingServerConfig
	}
	return account, password, nil
}

// processMessage stores one fetched message. Drops and duplicates are counted, not returned;
// any returned error aborts the batch.
func (o *Orchestrator) processMessage(ctx context.Context, repos *repository.Repositories, account *models.EmailAccount, raw dto.RawMessage, counts *batchCounts) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Orchestrator.processMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("seq_num", raw.SeqNum)

	parsed, err := o.parser.Parse(raw.Raw)
	if err != nil {
		if mailerrors.IsDrop(err) {
			o.log.Warnf("Dropping message seq %d for account %s: %s", raw.SeqNum, account.ID, err.Error())
			counts.dropped++
			return nil
		}
		return err
	}
	span.SetTag("message_id_header", parsed.MessageID)

	existing, err := repos.EmailMessageRepository.GetByMessageID(ctx, account.UserID, parsed.MessageID)
	if err != nil {
		return err
	}
	if existing != nil && existing.IsFetchedComplete {
		span.LogKV("skipped", "already ingested")
		counts.skipped++
		return nil
	}

	thread, err := o.resolver.Resolve(ctx, repos, threads.Input{
		UserID:    account.UserID,
		AccountID: account.ID,
		Message:   parsed,
		Existing:  existing,
	})
	if err != nil {
		return err
	}

	message := existing
	if message == nil {
		message = &models.EmailMessage{Category: enum.DefaultCategory}
	}
	applyParsed(message, account, thread, parsed)
	if err := repos.EmailMessageRepository.Save(ctx, message); err != nil {
		return errors.Wrap(err, "failed to save message")
	}

	if err := repos.EmailAttachmentRepository.ReplaceForMessage(ctx, message.ID, toAttachments(parsed.Attachments)); err != nil {
		return errors.Wrap(err, "failed to store attachments")
	}

	if err := o.resolver.Touch(ctx, repos, thread, parsed); err != nil {
		return err
	}

	message.Category = o.classify(ctx, parsed)
	if err := repos.EmailMessageRepository.SetCategory(ctx, message.ID, message.Category); err != nil {
		return errors.Wrap(err, "failed to store category")
	}
	span.SetTag("category", message.Category.String())

	if extraction.Applies(message.Category) {
		if err := o.extract(ctx, repos, message, parsed); err != nil {
			return err
		}
	}

	counts.processed++
	return nil
}

// classify falls back to the default category if the classifier panics.
func (o *Orchestrator) classify(ctx context.Context, parsed *dto.ParsedMessage) (category enum.Category) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Errorf("Classifier panicked for message %s: %v", parsed.MessageID, r)
			category = enum.DefaultCategory
		}
	}()
	return o.classifier.Classify(ctx, parsed.SenderAddress, parsed.Subject, parsed.Snippet)
}

func (o *Orchestrator) extract(ctx context.Context, repos *repository.Repositories, message *models.EmailMessage, parsed *dto.ParsedMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Errorf("Extractor panicked for message %s: %v", parsed.MessageID, r)
			err = nil
		}
	}()
	_, err = o.extractor.Extract(ctx, repos, message, parsed)
	return err
}

func applyParsed(message *models.EmailMessage, account *models.EmailAccount, thread *models.EmailThread, parsed *dto.ParsedMessage) {
	message.UserID = account.UserID
	message.AccountID = account.ID
	message.MessageIDHeader = parsed.MessageID
	message.ThreadID = thread.ID
	message.InReplyTo = parsed.InReplyTo
	message.References = parsed.References
	message.Subject = parsed.Subject
	message.SenderName = parsed.SenderName
	message.SenderAddress = parsed.SenderAddress
	message.RecipientsTo = dto.AddressList(parsed.To)
	message.RecipientsCc = dto.AddressList(parsed.Cc)
	message.RecipientsBcc = dto.AddressList(parsed.Bcc)
	message.SentAt = parsed.SentAt
	message.ReceivedAt = utils.NowPtr()
	message.BodyText = parsed.BodyText
	message.BodyHTML = parsed.BodyHTML
	message.Headers = models.HeadersToJSONMap(parsed.Headers)
	message.IsRead = false
	message.IsFetchedComplete = true
	if message.Category == "" {
		message.Category = enum.DefaultCategory
	}
}

func toAttachments(parsed []dto.ParsedAttachment) []*models.EmailAttachment {
	out := make([]*models.EmailAttachment, 0, len(parsed))
	for _, a := range parsed {
		out = append(out, &models.EmailAttachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			ContentID:   a.ContentID,
			IsInline:    a.IsInline,
			SizeBytes:   a.SizeBytes,
			Content:     a.Payload,
		})
	}
	return out
}

type leaseSet struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newLeaseSet() *leaseSet {
	return &leaseSet{active: make(map[string]struct{})}
}

func (l *leaseSet) acquire(accountID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.active[accountID]; held {
		return false
	}
	l.active[accountID] = struct{}{}
	return true
}

func (l *leaseSet) release(accountID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, accountID)
}
