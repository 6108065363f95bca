package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailbridge-backend/internal/mail/domain"
	"mailbridge-backend/internal/mail/repository"
	"mailbridge-backend/internal/search"
	"mailbridge-backend/pkg/config"
	"mailbridge-backend/pkg/nylas"
)

// fakeAccounts is an in-memory AccountRepository shared by the usecase,
// the mail store fake and the index manager.
type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	blobs    map[string][]byte
}

func newFakeAccounts(accounts ...*domain.Account) *fakeAccounts {
	r := &fakeAccounts{accounts: make(map[string]*domain.Account), blobs: make(map[string][]byte)}
	for _, a := range accounts {
		r.accounts[a.ID] = a
	}
	return r
}

func (r *fakeAccounts) Create(account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = account
	return nil
}

func (r *fakeAccounts) FindByID(id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	copied := *account
	return &copied, nil
}

func (r *fakeAccounts) FindByUserID(userID string) ([]*domain.Account, error) {
	return nil, nil
}

func (r *fakeAccounts) FindAll() ([]*domain.Account, error) {
	return nil, nil
}

func (r *fakeAccounts) LoadBinaryIndex(accountID string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blobs[accountID], nil
}

func (r *fakeAccounts) SaveBinaryIndex(accountID string, blob []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[accountID] = blob
	return nil
}

func (r *fakeAccounts) setDeltaToken(accountID, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account, ok := r.accounts[accountID]; ok {
		account.NextDeltaToken = &token
	}
}

func (r *fakeAccounts) deltaToken(accountID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[accountID]
	if !ok || account.NextDeltaToken == nil {
		return ""
	}
	return *account.NextDeltaToken
}

// fakeMailStore mirrors the real upsert protocol in memory: create-only
// emails keyed by internet message id, one thread per subject, one
// address row per sender, cursor advanced with the batch.
type fakeMailStore struct {
	mu       sync.Mutex
	accounts *fakeAccounts
	emails   map[string]map[string]bool // accountID -> internetMessageID
	threads  map[string]map[string]bool // accountID -> subject
	senders  map[string]map[string]bool // accountID -> address
	calls    int
	failWith error
}

func newFakeMailStore(accounts *fakeAccounts) *fakeMailStore {
	return &fakeMailStore{
		accounts: accounts,
		emails:   make(map[string]map[string]bool),
		threads:  make(map[string]map[string]bool),
		senders:  make(map[string]map[string]bool),
	}
}

func (s *fakeMailStore) SyncEmailsToDatabase(accountID string, records []nylas.EmailRecord, deltaToken string) (*repository.SyncBatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failWith != nil {
		return nil, s.failWith
	}

	if s.emails[accountID] == nil {
		s.emails[accountID] = make(map[string]bool)
		s.threads[accountID] = make(map[string]bool)
		s.senders[accountID] = make(map[string]bool)
	}

	result := &repository.SyncBatchResult{}
	for _, record := range records {
		if record.ID == "" || len(record.From) == 0 {
			result.SkippedMalformed++
			continue
		}
		if s.emails[accountID][record.ID] {
			result.SkippedDuplicates++
			continue
		}
		s.emails[accountID][record.ID] = true
		s.threads[accountID][record.Subject] = true
		s.senders[accountID][record.From[0].Email] = true
		result.Created = append(result.Created, &domain.Email{
			ID:                record.ID,
			AccountID:         accountID,
			InternetMessageID: record.ID,
			Subject:           record.Subject,
			Body:              record.Body,
		})
	}

	if deltaToken != "" {
		s.accounts.setDeltaToken(accountID, deltaToken)
	}
	return result, nil
}

func (s *fakeMailStore) GetEmailsByAccount(accountID string, limit, offset int) ([]*domain.Email, int64, error) {
	return nil, 0, nil
}

func (s *fakeMailStore) GetThreadsByAccount(accountID string, limit, offset int) ([]*domain.Thread, int64, error) {
	return nil, 0, nil
}

// scriptedClient serves canned sync responses. Pages are keyed by the
// token they are requested with: delta tokens and page tokens share one
// map since the controller passes exactly one of the two.
type scriptedClient struct {
	mu            sync.Mutex
	startReplies  []*nylas.SyncResponse
	pages         map[string]*nylas.SyncUpdatedResponse
	startCalls    int
	changeTokens  []string
	webhooks      []nylas.Webhook
	createdHooks  []string
	blockChanges  chan struct{} // when set, GetChanges waits for close
	changeStarted chan struct{}
}

func (c *scriptedClient) StartSync(ctx context.Context, daysWithin int, bodyType string) (*nylas.SyncResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startCalls++
	if len(c.startReplies) == 0 {
		return &nylas.SyncResponse{Ready: true}, nil
	}
	reply := c.startReplies[0]
	if len(c.startReplies) > 1 {
		c.startReplies = c.startReplies[1:]
	}
	return reply, nil
}

func (c *scriptedClient) GetChanges(ctx context.Context, deltaToken, pageToken string) (*nylas.SyncUpdatedResponse, error) {
	c.mu.Lock()
	token := deltaToken
	if pageToken != "" {
		token = pageToken
	}
	c.changeTokens = append(c.changeTokens, token)
	started := c.changeStarted
	block := c.blockChanges
	c.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if block != nil {
		<-block
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	page, ok := c.pages[token]
	if !ok {
		return nil, errors.New("unknown sync token " + token)
	}
	copied := *page
	return &copied, nil
}

func (c *scriptedClient) CreateWebhook(ctx context.Context, callbackURL string, triggers []string) (*nylas.Webhook, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createdHooks = append(c.createdHooks, callbackURL)
	return &nylas.Webhook{ID: "hook-1", CallbackURL: callbackURL, Triggers: triggers}, nil
}

func (c *scriptedClient) ListWebhooks(ctx context.Context) (*nylas.WebhookList, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &nylas.WebhookList{Records: c.webhooks}, nil
}

func (c *scriptedClient) DeleteWebhook(ctx context.Context, webhookID string) error {
	return nil
}

func (c *scriptedClient) SendEmail(ctx context.Context, req *nylas.SendEmailRequest) (map[string]interface{}, error) {
	return map[string]interface{}{"id": "sent-1"}, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (stubEmbedder) Dimensions() int { return 3 }

func testConfig() *config.Config {
	return &config.Config{
		SyncDaysWithin:      3,
		SyncMaxPages:        100,
		SyncPollInterval:    time.Millisecond,
		SyncPollMaxAttempts: 10,
	}
}

func record(id, subject, fromEmail string) nylas.EmailRecord {
	return nylas.EmailRecord{
		ID:      id,
		Subject: subject,
		Date:    1735819200,
		Body:    "<p>body of " + id + "</p>",
		Snippet: "body of " + id,
		From:    []nylas.Participant{{Name: "Alice", Email: fromEmail}},
		To:      []nylas.Participant{{Name: "Bob", Email: "bob@example.com"}},
	}
}

func newTestUsecase(accounts *fakeAccounts, store *fakeMailStore, client nylas.Client, cfg *config.Config) SyncUsecase {
	provider := stubEmbedder{}
	manager := search.NewManager(accounts, provider)
	factory := func(token string) nylas.Client { return client }
	return NewSyncUsecase(accounts, store, factory, manager, provider, cfg)
}

func TestInitialSync_PollsUntilReadyThenDrainsPages(t *testing.T) {
	accounts := newFakeAccounts(&domain.Account{ID: "acct-1", UserID: "user-1", Token: "tok"})
	store := newFakeMailStore(accounts)
	client := &scriptedClient{
		startReplies: []*nylas.SyncResponse{
			{Ready: false},
			{Ready: false},
			{Ready: true, SyncUpdatedToken: "delta-0"},
		},
		pages: map[string]*nylas.SyncUpdatedResponse{
			"delta-0": {
				Records:        []nylas.EmailRecord{record("m1", "hello", "alice@example.com"), record("m2", "hello", "alice@example.com")},
				NextDeltaToken: "delta-1",
				NextPageToken:  "page-2",
			},
			"page-2": {
				Records:        []nylas.EmailRecord{record("m3", "status", "carol@example.com")},
				NextDeltaToken: "delta-2",
				NextPageToken:  "page-3",
			},
			// final page carries no fresh delta token; the cursor must
			// keep the last non-empty one
			"page-3": {
				Records: []nylas.EmailRecord{record("m4", "status", "carol@example.com")},
			},
		},
	}

	u := newTestUsecase(accounts, store, client, testConfig())
	report, err := u.InitialSync(context.Background(), "acct-1")

	require.NoError(t, err)
	assert.True(t, report.Initial)
	assert.Equal(t, 4, report.EmailsFetched)
	assert.Equal(t, 4, report.EmailsCreated)
	assert.Equal(t, 3, report.Pages)
	assert.Equal(t, "delta-2", report.DeltaToken)
	assert.Equal(t, 4, report.Indexed)

	assert.Equal(t, 3, client.startCalls)
	assert.Equal(t, []string{"delta-0", "page-2", "page-3"}, client.changeTokens)
	assert.Equal(t, 1, store.calls, "all pages must commit as one batch")
	assert.Equal(t, "delta-2", accounts.deltaToken("acct-1"))
}

func TestInitialSync_GivesUpWhenRemoteNeverReady(t *testing.T) {
	accounts := newFakeAccounts(&domain.Account{ID: "acct-1", Token: "tok"})
	store := newFakeMailStore(accounts)
	client := &scriptedClient{startReplies: []*nylas.SyncResponse{{Ready: false}}}

	cfg := testConfig()
	cfg.SyncPollMaxAttempts = 3
	u := newTestUsecase(accounts, store, client, cfg)

	_, err := u.InitialSync(context.Background(), "acct-1")

	require.Error(t, err)
	assert.Equal(t, 3, client.startCalls)
	assert.Zero(t, store.calls)
}

func TestRunDeltaSync_RequiresCursor(t *testing.T) {
	accounts := newFakeAccounts(&domain.Account{ID: "acct-1", Token: "tok"})
	u := newTestUsecase(accounts, newFakeMailStore(accounts), &scriptedClient{}, testConfig())

	_, err := u.RunDeltaSync(context.Background(), "acct-1")

	assert.ErrorIs(t, err, domain.ErrMissingCursor)
}

func TestRunDeltaSync_ReplayIsIdempotent(t *testing.T) {
	accounts := newFakeAccounts(&domain.Account{ID: "acct-1", Token: "tok"})
	accounts.setDeltaToken("acct-1", "delta-1")
	store := newFakeMailStore(accounts)

	// Five records, one subject, one sender: one thread, one address,
	// five emails. Replaying the same window must create nothing new.
	records := []nylas.EmailRecord{
		record("m1", "project kickoff", "alice@example.com"),
		record("m2", "project kickoff", "alice@example.com"),
		record("m3", "project kickoff", "alice@example.com"),
		record("m4", "project kickoff", "alice@example.com"),
		record("m5", "project kickoff", "alice@example.com"),
	}
	client := &scriptedClient{pages: map[string]*nylas.SyncUpdatedResponse{
		"delta-1": {Records: records, NextDeltaToken: "delta-1"},
	}}

	u := newTestUsecase(accounts, store, client, testConfig())

	first, err := u.RunDeltaSync(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 5, first.EmailsCreated)
	assert.Zero(t, first.SkippedDuplicates)

	second, err := u.RunDeltaSync(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Zero(t, second.EmailsCreated)
	assert.Equal(t, 5, second.SkippedDuplicates)

	assert.Len(t, store.emails["acct-1"], 5)
	assert.Len(t, store.threads["acct-1"], 1)
	assert.Len(t, store.senders["acct-1"], 1)
}

func TestRunDeltaSync_SkipsMalformedRecords(t *testing.T) {
	accounts := newFakeAccounts(&domain.Account{ID: "acct-1", Token: "tok"})
	accounts.setDeltaToken("acct-1", "delta-1")
	store := newFakeMailStore(accounts)

	noSender := record("m2", "hello", "alice@example.com")
	noSender.From = nil
	client := &scriptedClient{pages: map[string]*nylas.SyncUpdatedResponse{
		"delta-1": {Records: []nylas.EmailRecord{record("m1", "hello", "alice@example.com"), noSender}, NextDeltaToken: "delta-2"},
	}}

	u := newTestUsecase(accounts, store, client, testConfig())
	report, err := u.RunDeltaSync(context.Background(), "acct-1")

	require.NoError(t, err)
	assert.Equal(t, 1, report.EmailsCreated)
	assert.Equal(t, 1, report.SkippedMalformed)
	assert.Equal(t, "delta-2", accounts.deltaToken("acct-1"), "malformed records must not block the cursor")
}

func TestRunDeltaSync_PageCeilingAborts(t *testing.T) {
	accounts := newFakeAccounts(&domain.Account{ID: "acct-1", Token: "tok"})
	accounts.setDeltaToken("acct-1", "delta-1")
	store := newFakeMailStore(accounts)

	client := &scriptedClient{pages: map[string]*nylas.SyncUpdatedResponse{
		"delta-1": {Records: []nylas.EmailRecord{record("m1", "a", "a@example.com")}, NextPageToken: "page-2"},
		"page-2":  {Records: []nylas.EmailRecord{record("m2", "a", "a@example.com")}, NextPageToken: "page-3"},
		"page-3":  {Records: []nylas.EmailRecord{record("m3", "a", "a@example.com")}},
	}}

	cfg := testConfig()
	cfg.SyncMaxPages = 2
	u := newTestUsecase(accounts, store, client, cfg)

	_, err := u.RunDeltaSync(context.Background(), "acct-1")

	assert.ErrorIs(t, err, domain.ErrSyncTruncated)
	assert.Zero(t, store.calls, "a truncated run must not commit a partial batch")
	assert.Equal(t, "delta-1", accounts.deltaToken("acct-1"))
}

func TestRunDeltaSync_StoreFailureKeepsCursor(t *testing.T) {
	accounts := newFakeAccounts(&domain.Account{ID: "acct-1", Token: "tok"})
	accounts.setDeltaToken("acct-1", "delta-1")
	store := newFakeMailStore(accounts)
	store.failWith = domain.ErrUpsertConflict

	client := &scriptedClient{pages: map[string]*nylas.SyncUpdatedResponse{
		"delta-1": {Records: []nylas.EmailRecord{record("m1", "a", "a@example.com")}, NextDeltaToken: "delta-2"},
	}}

	u := newTestUsecase(accounts, store, client, testConfig())
	_, err := u.RunDeltaSync(context.Background(), "acct-1")

	assert.ErrorIs(t, err, domain.ErrUpsertConflict)
	assert.Equal(t, "delta-1", accounts.deltaToken("acct-1"))
}

func TestSync_RejectsConcurrentRunsPerAccount(t *testing.T) {
	accounts := newFakeAccounts(&domain.Account{ID: "acct-1", Token: "tok"})
	accounts.setDeltaToken("acct-1", "delta-1")
	store := newFakeMailStore(accounts)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	client := &scriptedClient{
		pages: map[string]*nylas.SyncUpdatedResponse{
			"delta-1": {Records: nil, NextDeltaToken: "delta-2"},
		},
		blockChanges:  release,
		changeStarted: started,
	}

	u := newTestUsecase(accounts, store, client, testConfig())

	done := make(chan error, 1)
	go func() {
		_, err := u.RunDeltaSync(context.Background(), "acct-1")
		done <- err
	}()

	<-started
	_, err := u.RunDeltaSync(context.Background(), "acct-1")
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestSync_DispatchesOnCursorPresence(t *testing.T) {
	// No cursor: Sync runs the initial path and stores one.
	accounts := newFakeAccounts(&domain.Account{ID: "acct-1", Token: "tok"})
	store := newFakeMailStore(accounts)
	client := &scriptedClient{
		startReplies: []*nylas.SyncResponse{{Ready: true, SyncUpdatedToken: "delta-0"}},
		pages: map[string]*nylas.SyncUpdatedResponse{
			"delta-0": {Records: []nylas.EmailRecord{record("m1", "a", "a@example.com")}, NextDeltaToken: "delta-1"},
			"delta-1": {Records: nil, NextDeltaToken: "delta-1"},
		},
	}

	u := newTestUsecase(accounts, store, client, testConfig())

	report, err := u.Sync(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.True(t, report.Initial)

	// Cursor present: Sync resumes from it.
	report, err = u.Sync(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.False(t, report.Initial)
	assert.Equal(t, 1, client.startCalls)
}

func TestSync_UnknownAccount(t *testing.T) {
	accounts := newFakeAccounts()
	u := newTestUsecase(accounts, newFakeMailStore(accounts), &scriptedClient{}, testConfig())

	_, err := u.Sync(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestInitialSync_RegistersWebhookOnce(t *testing.T) {
	accounts := newFakeAccounts(&domain.Account{ID: "acct-1", Token: "tok"})
	store := newFakeMailStore(accounts)
	client := &scriptedClient{
		startReplies: []*nylas.SyncResponse{{Ready: true, SyncUpdatedToken: "delta-0"}},
		pages: map[string]*nylas.SyncUpdatedResponse{
			"delta-0": {Records: nil, NextDeltaToken: "delta-1"},
		},
	}

	cfg := testConfig()
	cfg.WebhookCallbackURL = "https://app.example.com/api/webhooks/nylas"
	u := newTestUsecase(accounts, store, client, cfg)

	_, err := u.InitialSync(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, []string{cfg.WebhookCallbackURL}, client.createdHooks)

	// A second initial sync finds the existing subscription and skips it.
	client.webhooks = []nylas.Webhook{{ID: "hook-1", CallbackURL: cfg.WebhookCallbackURL}}
	accounts.accounts["acct-1"].NextDeltaToken = nil
	_, err = u.InitialSync(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Len(t, client.createdHooks, 1)
}

func TestSyncState(t *testing.T) {
	accounts := newFakeAccounts(&domain.Account{ID: "acct-1", Token: "tok"})
	u := newTestUsecase(accounts, newFakeMailStore(accounts), &scriptedClient{}, testConfig())

	state, err := u.SyncState("acct-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStateUninitialized, state)

	accounts.setDeltaToken("acct-1", "delta-1")
	state, err = u.SyncState("acct-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStateReady, state)

	_, err = u.SyncState("missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}
