// Package memory is a map-backed implementation of the repositories, used by service tests.
// Transactions snapshot the whole store and restore it when the callback fails.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/lib/pq"

	"github.com/customeros/mailingest/internal/enum"
	"github.com/customeros/mailingest/internal/models"
	"github.com/customeros/mailingest/internal/repository"
	"github.com/customeros/mailingest/internal/utils"
)

type threadKey struct {
	userID   string
	threadID string
}

type state struct {
	accounts    map[string]models.EmailAccount
	messages    map[string]models.EmailMessage
	threads     map[threadKey]models.EmailThread
	attachments map[string][]models.EmailAttachment
	extractions map[string]models.Extraction
	runs        []models.IngestionRun
}

func newState() state {
	return state{
		accounts:    map[string]models.EmailAccount{},
		messages:    map[string]models.EmailMessage{},
		threads:     map[threadKey]models.EmailThread{},
		attachments: map[string][]models.EmailAttachment{},
		extractions: map[string]models.Extraction{},
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = copyAccount(v)
	}
	for k, v := range s.messages {
		c.messages[k] = copyMessage(v)
	}
	for k, v := range s.threads {
		c.threads[k] = copyThread(v)
	}
	for k, v := range s.attachments {
		list := make([]models.EmailAttachment, len(v))
		copy(list, v)
		c.attachments[k] = list
	}
	for k, v := range s.extractions {
		c.extractions[k] = v
	}
	c.runs = append([]models.IngestionRun(nil), s.runs...)
	return c
}

// Store holds every table. Use Repositories to get a repository set bound to it.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	data state

	// Fail, when set, is consulted before every write; a non-nil result is returned as the
	// write error. Keys are "<table>.<operation>", e.g. "messages.save".
	Fail func(op string) error
}

func NewStore() *Store {
	return &Store{data: newState()}
}

func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Transactor:                &transactor{store: s},
		EmailAccountRepository:    &accountRepo{store: s},
		EmailMessageRepository:    &messageRepo{store: s},
		EmailThreadRepository:     &threadRepo{store: s},
		EmailAttachmentRepository: &attachmentRepo{store: s},
		ExtractionRepository:      &extractionRepo{store: s},
		IngestionRunRepository:    &runRepo{store: s},
	}
}

func (s *Store) fail(op string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op)
}

// Counts used by tests to assert on persisted state.

func (s *Store) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.messages)
}

func (s *Store) ThreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.threads)
}

func (s *Store) ExtractionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.extractions)
}

func (s *Store) AttachmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, list := range s.data.attachments {
		n += len(list)
	}
	return n
}

type transactor struct {
	store *Store
}

func (t *transactor) Transaction(ctx context.Context, fn func(repos *repository.Repositories) error) (err error) {
	t.store.txMu.Lock()
	defer t.store.txMu.Unlock()

	t.store.mu.Lock()
	snapshot := t.store.data.clone()
	t.store.mu.Unlock()

	rollback := func() {
		t.store.mu.Lock()
		t.store.data = snapshot
		t.store.mu.Unlock()
	}

	defer func() {
		if r := recover(); r != nil {
			rollback()
			panic(r)
		}
	}()

	if err = fn(t.store.Repositories()); err != nil {
		rollback()
		return err
	}
	if err = ctx.Err(); err != nil {
		rollback()
		return err
	}
	return nil
}

func copyAccount(a models.EmailAccount) models.EmailAccount {
	a.EncryptedPassword = append([]byte(nil), a.EncryptedPassword...)
	return a
}

func copyMessage(m models.EmailMessage) models.EmailMessage {
	m.RecipientsTo = copyArray(m.RecipientsTo)
	m.RecipientsCc = copyArray(m.RecipientsCc)
	m.RecipientsBcc = copyArray(m.RecipientsBcc)
	if m.Headers != nil {
		headers := make(models.JSONMap, len(m.Headers))
		for k, v := range m.Headers {
			headers[k] = v
		}
		m.Headers = headers
	}
	m.Attachments = nil
	m.Extraction = nil
	return m
}

func copyThread(t models.EmailThread) models.EmailThread {
	t.Participants = copyArray(t.Participants)
	return t
}

func copyArray(a pq.StringArray) pq.StringArray {
	if a == nil {
		return nil
	}
	out := make(pq.StringArray, len(a))
	copy(out, a)
	return out
}

type accountRepo struct {
	store *Store
}

func (r *accountRepo) GetByID(ctx context.Context, id string) (*models.EmailAccount, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.data.accounts[id]
	if !ok {
		return nil, nil
	}
	out := copyAccount(a)
	return &out, nil
}

func (r *accountRepo) ListByActive(ctx context.Context, active bool) ([]*models.EmailAccount, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.EmailAccount
	for _, a := range r.store.data.accounts {
		if a.IsActive == active {
			c := copyAccount(a)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *accountRepo) Create(ctx context.Context, account *models.EmailAccount) error {
	if err := r.store.fail("accounts.create"); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := account.BeforeCreate(nil); err != nil {
		return err
	}
	account.UpdatedAt = account.CreatedAt
	r.store.data.accounts[account.ID] = copyAccount(*account)
	return nil
}

func (r *accountRepo) MarkIngested(ctx context.Context, id string) error {
	if err := r.store.fail("accounts.mark_ingested"); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.data.accounts[id]
	if !ok {
		return nil
	}
	a.LastIngestedAt = utils.NowPtr()
	a.UpdatedAt = utils.Now()
	r.store.data.accounts[id] = a
	return nil
}

type messageRepo struct {
	store *Store
}

func (r *messageRepo) GetByMessageID(ctx context.Context, userID, messageID string) (*models.EmailMessage, error) {
	if messageID == "" {
		return nil, nil
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, m := range r.store.data.messages {
		if m.UserID == userID && m.MessageIDHeader == messageID {
			out := copyMessage(m)
			return &out, nil
		}
	}
	return nil, nil
}

func (r *messageRepo) ListByThread(ctx context.Context, userID, threadID string) ([]*models.EmailMessage, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.EmailMessage
	for _, m := range r.store.data.messages {
		if m.UserID == userID && m.ThreadID == threadID {
			c := copyMessage(m)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SentAt == nil || out[j].SentAt == nil {
			return out[j].SentAt != nil
		}
		return out[i].SentAt.Before(*out[j].SentAt)
	})
	return out, nil
}

func (r *messageRepo) Save(ctx context.Context, message *models.EmailMessage) error {
	if err := r.store.fail("messages.save"); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if message.ID == "" {
		for _, m := range r.store.data.messages {
			if m.UserID == message.UserID && m.MessageIDHeader == message.MessageIDHeader {
				return errDuplicate
			}
		}
		if err := message.BeforeCreate(nil); err != nil {
			return err
		}
		message.UpdatedAt = message.CreatedAt
	} else {
		message.UpdatedAt = utils.Now()
	}
	r.store.data.messages[message.ID] = copyMessage(*message)
	return nil
}

func (r *messageRepo) SetCategory(ctx context.Context, id string, category enum.Category) error {
	if err := r.store.fail("messages.set_category"); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, ok := r.store.data.messages[id]
	if !ok {
		return nil
	}
	m.Category = category
	r.store.data.messages[id] = m
	return nil
}

type threadRepo struct {
	store *Store
}

func (r *threadRepo) GetByID(ctx context.Context, userID, threadID string) (*models.EmailThread, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.data.threads[threadKey{userID, threadID}]
	if !ok {
		return nil, nil
	}
	out := copyThread(t)
	return &out, nil
}

func (r *threadRepo) Create(ctx context.Context, thread *models.EmailThread) error {
	if err := r.store.fail("threads.create"); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := threadKey{thread.UserID, thread.ID}
	if _, exists := r.store.data.threads[key]; exists {
		return errDuplicate
	}
	if err := thread.BeforeCreate(nil); err != nil {
		return err
	}
	r.store.data.threads[key] = copyThread(*thread)
	return nil
}

func (r *threadRepo) Update(ctx context.Context, thread *models.EmailThread) error {
	if err := r.store.fail("threads.update"); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := threadKey{thread.UserID, thread.ID}
	existing, ok := r.store.data.threads[key]
	if !ok {
		return nil
	}
	thread.CreatedAt = existing.CreatedAt
	thread.UpdatedAt = utils.Now()
	r.store.data.threads[key] = copyThread(*thread)
	return nil
}

type attachmentRepo struct {
	store *Store
}

func (r *attachmentRepo) ReplaceForMessage(ctx context.Context, messageID string, attachments []*models.EmailAttachment) error {
	if err := r.store.fail("attachments.replace"); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	list := make([]models.EmailAttachment, 0, len(attachments))
	for _, a := range attachments {
		a.MessageID = messageID
		if err := a.BeforeCreate(nil); err != nil {
			return err
		}
		list = append(list, *a)
	}
	if len(list) == 0 {
		delete(r.store.data.attachments, messageID)
		return nil
	}
	r.store.data.attachments[messageID] = list
	return nil
}

func (r *attachmentRepo) ListByMessage(ctx context.Context, messageID string) ([]*models.EmailAttachment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.EmailAttachment
	for _, a := range r.store.data.attachments[messageID] {
		c := a
		out = append(out, &c)
	}
	return out, nil
}

type extractionRepo struct {
	store *Store
}

func (r *extractionRepo) GetByMessageID(ctx context.Context, messageID string) (*models.Extraction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e, ok := r.store.data.extractions[messageID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r *extractionRepo) CreateIfAbsent(ctx context.Context, extraction *models.Extraction) (bool, error) {
	if err := r.store.fail("extractions.create"); err != nil {
		return false, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.data.extractions[extraction.MessageID]; exists {
		return false, nil
	}
	if err := extraction.BeforeCreate(nil); err != nil {
		return false, err
	}
	r.store.data.extractions[extraction.MessageID] = *extraction
	return true, nil
}

type runRepo struct {
	store *Store
}

func (r *runRepo) Create(ctx context.Context, run *models.IngestionRun) error {
	if err := r.store.fail("runs.create"); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := run.BeforeCreate(nil); err != nil {
		return err
	}
	r.store.data.runs = append(r.store.data.runs, *run)
	return nil
}

func (r *runRepo) ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.IngestionRun, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.IngestionRun
	for i := len(r.store.data.runs) - 1; i >= 0; i-- {
		run := r.store.data.runs[i]
		if run.AccountID != accountID {
			continue
		}
		out = append(out, &run)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
