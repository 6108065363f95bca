package usecase

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"mailbridge-backend/internal/mail/domain"
	"mailbridge-backend/internal/mail/repository"
	"mailbridge-backend/internal/search"
	"mailbridge-backend/pkg/config"
	"mailbridge-backend/pkg/embeddings"
	"mailbridge-backend/pkg/nylas"
	"mailbridge-backend/pkg/retry"
)

// syncUsecase implements SyncUsecase. It is the delta-sync controller:
// it drives pagination against the remote change feed, commits batches
// into the mail store atomically with the cursor, and feeds newly created
// emails into the search index.
type syncUsecase struct {
	accountRepo  repository.AccountRepository
	mailStore    repository.MailStore
	clients      nylas.ClientFactory
	indexManager *search.Manager
	provider     embeddings.Provider
	config       *config.Config

	locks  *accountLocks
	states sync.Map // accountID -> domain.SyncState, present only while a run is in flight
}

// NewSyncUsecase creates a new instance of syncUsecase.
func NewSyncUsecase(
	accountRepo repository.AccountRepository,
	mailStore repository.MailStore,
	clients nylas.ClientFactory,
	indexManager *search.Manager,
	provider embeddings.Provider,
	cfg *config.Config,
) SyncUsecase {
	return &syncUsecase{
		accountRepo:  accountRepo,
		mailStore:    mailStore,
		clients:      clients,
		indexManager: indexManager,
		provider:     provider,
		config:       cfg,
		locks:        newAccountLocks(),
	}
}

func (u *syncUsecase) Sync(ctx context.Context, accountID string) (*SyncReport, error) {
	account, err := u.findAccount(accountID)
	if err != nil {
		return nil, err
	}
	if account.NextDeltaToken == nil {
		return u.InitialSync(ctx, accountID)
	}
	return u.RunDeltaSync(ctx, accountID)
}

// InitialSync prepares a bounded lookback window on the remote, waits for
// it to become ready, drains every page of changes and commits the whole
// batch together with the final cursor.
func (u *syncUsecase) InitialSync(ctx context.Context, accountID string) (*SyncReport, error) {
	lock := u.locks.get(accountID)
	if !lock.TryLock() {
		return nil, domain.ErrSyncInProgress
	}
	defer lock.Unlock()

	account, err := u.findAccount(accountID)
	if err != nil {
		return nil, err
	}

	u.states.Store(accountID, domain.SyncStateInitialSync)
	defer u.states.Delete(accountID)

	client := u.clients(account.Token)

	// The remote prepares the sync window asynchronously; poll until it
	// reports ready, re-issuing the same startSync call each attempt.
	var syncResp *nylas.SyncResponse
	poller := retry.Poller{Interval: u.config.SyncPollInterval, MaxAttempts: u.config.SyncPollMaxAttempts}
	err = poller.Until(ctx, func(ctx context.Context) (bool, error) {
		resp, startErr := client.StartSync(ctx, u.config.SyncDaysWithin, "html")
		if startErr != nil {
			return false, startErr
		}
		syncResp = resp
		return resp.Ready, nil
	})
	if err != nil {
		return nil, fmt.Errorf("initial sync preparation failed: %w", err)
	}

	report, err := u.drainAndCommit(ctx, client, account, syncResp.SyncUpdatedToken)
	if err != nil {
		return nil, err
	}
	report.Initial = true

	u.ensureWebhookSubscription(ctx, client, accountID)
	return report, nil
}

// RunDeltaSync resumes the change feed from the stored cursor. Requires a
// cursor; callers must run InitialSync first.
func (u *syncUsecase) RunDeltaSync(ctx context.Context, accountID string) (*SyncReport, error) {
	lock := u.locks.get(accountID)
	if !lock.TryLock() {
		return nil, domain.ErrSyncInProgress
	}
	defer lock.Unlock()

	account, err := u.findAccount(accountID)
	if err != nil {
		return nil, err
	}
	if account.NextDeltaToken == nil || *account.NextDeltaToken == "" {
		return nil, domain.ErrMissingCursor
	}

	u.states.Store(accountID, domain.SyncStateReady)
	defer u.states.Delete(accountID)

	client := u.clients(account.Token)
	return u.drainAndCommit(ctx, client, account, *account.NextDeltaToken)
}

// drainAndCommit pages through the change feed starting at cursor,
// accumulating records and tracking the most advanced non-empty delta
// token across pages. Nothing is written until every page is in hand;
// the batch and the cursor then commit in one transaction, so a failed
// run leaves the last-known-good cursor untouched.
func (u *syncUsecase) drainAndCommit(ctx context.Context, client nylas.Client, account *domain.Account, cursor string) (*SyncReport, error) {
	accountID := account.ID

	resp, err := client.GetChanges(ctx, cursor, "")
	if err != nil {
		return nil, err
	}

	records := resp.Records
	storedDeltaToken := cursor
	if resp.NextDeltaToken != "" {
		storedDeltaToken = resp.NextDeltaToken
	}

	pages := 1
	for resp.NextPageToken != "" {
		if pages >= u.config.SyncMaxPages {
			return nil, fmt.Errorf("%w (ceiling %d)", domain.ErrSyncTruncated, u.config.SyncMaxPages)
		}
		u.states.Store(accountID, domain.SyncStatePaginating)

		resp, err = client.GetChanges(ctx, "", resp.NextPageToken)
		if err != nil {
			return nil, err
		}
		records = append(records, resp.Records...)
		if resp.NextDeltaToken != "" {
			storedDeltaToken = resp.NextDeltaToken
		}
		pages++
	}

	batch, err := u.mailStore.SyncEmailsToDatabase(accountID, records, storedDeltaToken)
	if err != nil {
		return nil, err
	}

	log.Printf("[DeltaSync] Account %s: %d fetched across %d pages, %d created, %d duplicate, %d malformed",
		accountID, len(records), pages, len(batch.Created), batch.SkippedDuplicates, batch.SkippedMalformed)

	indexed := u.indexNewEmails(ctx, accountID, batch.Created)

	return &SyncReport{
		AccountID:         accountID,
		EmailsFetched:     len(records),
		EmailsCreated:     len(batch.Created),
		SkippedDuplicates: batch.SkippedDuplicates,
		SkippedMalformed:  batch.SkippedMalformed,
		Indexed:           indexed,
		Pages:             pages,
		DeltaToken:        storedDeltaToken,
	}, nil
}

// indexNewEmails inserts search documents for freshly mirrored emails.
// The index is a rebuildable cache, so indexing failures log and continue
// rather than failing the sync.
func (u *syncUsecase) indexNewEmails(ctx context.Context, accountID string, emails []*domain.Email) int {
	if len(emails) == 0 {
		return 0
	}

	if !u.indexManager.IsInitialized(accountID) {
		if err := u.indexManager.Initialize(accountID); err != nil {
			log.Printf("[DeltaSync] Failed to initialize index for account %s: %v", accountID, err)
			return 0
		}
	}

	indexed := 0
	for _, email := range emails {
		embedCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		vector, err := u.provider.Embed(embedCtx, search.EmbeddingText(email))
		cancel()
		if err != nil {
			log.Printf("[DeltaSync] Failed to embed email %s: %v", email.ID, err)
			continue
		}

		if err := u.indexManager.Insert(accountID, search.DocumentFromEmail(email, vector)); err != nil {
			log.Printf("[DeltaSync] Failed to index email %s: %v", email.ID, err)
			continue
		}
		indexed++
	}
	return indexed
}

// ensureWebhookSubscription registers the change-notification webhook
// after a successful initial sync. Best effort: a provider that refuses
// the subscription does not fail the sync.
func (u *syncUsecase) ensureWebhookSubscription(ctx context.Context, client nylas.Client, accountID string) {
	if u.config.WebhookCallbackURL == "" {
		return
	}

	existing, err := client.ListWebhooks(ctx)
	if err != nil {
		log.Printf("[DeltaSync] Failed to list webhooks for account %s: %v", accountID, err)
		return
	}
	for _, hook := range existing.Records {
		if hook.CallbackURL == u.config.WebhookCallbackURL {
			return
		}
	}

	if _, err := client.CreateWebhook(ctx, u.config.WebhookCallbackURL, nylas.MessageTriggers); err != nil {
		log.Printf("[DeltaSync] Failed to create webhook for account %s: %v", accountID, err)
	}
}

func (u *syncUsecase) SyncState(accountID string) (domain.SyncState, error) {
	if state, ok := u.states.Load(accountID); ok {
		return state.(domain.SyncState), nil
	}

	account, err := u.findAccount(accountID)
	if err != nil {
		return "", err
	}
	if account.NextDeltaToken == nil || *account.NextDeltaToken == "" {
		return domain.SyncStateUninitialized, nil
	}
	return domain.SyncStateReady, nil
}

func (u *syncUsecase) CreateWebhook(ctx context.Context, accountID, callbackURL string, triggers []string) (*nylas.Webhook, error) {
	account, err := u.findAccount(accountID)
	if err != nil {
		return nil, err
	}
	if len(triggers) == 0 {
		triggers = nylas.MessageTriggers
	}
	return u.clients(account.Token).CreateWebhook(ctx, callbackURL, triggers)
}

func (u *syncUsecase) ListWebhooks(ctx context.Context, accountID string) (*nylas.WebhookList, error) {
	account, err := u.findAccount(accountID)
	if err != nil {
		return nil, err
	}
	return u.clients(account.Token).ListWebhooks(ctx)
}

func (u *syncUsecase) DeleteWebhook(ctx context.Context, accountID, webhookID string) error {
	account, err := u.findAccount(accountID)
	if err != nil {
		return err
	}
	return u.clients(account.Token).DeleteWebhook(ctx, webhookID)
}

func (u *syncUsecase) SendEmail(ctx context.Context, accountID string, req *nylas.SendEmailRequest) (map[string]interface{}, error) {
	account, err := u.findAccount(accountID)
	if err != nil {
		return nil, err
	}
	return u.clients(account.Token).SendEmail(ctx, req)
}

func (u *syncUsecase) findAccount(accountID string) (*domain.Account, error) {
	account, err := u.accountRepo.FindByID(accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}
