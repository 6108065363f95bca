package usecase

import (
	"context"

	"mailbridge-backend/internal/mail/domain"
	"mailbridge-backend/pkg/nylas"
)

// SyncReport summarizes one completed sync run.
type SyncReport struct {
	AccountID         string `json:"account_id"`
	Initial           bool   `json:"initial"`
	EmailsFetched     int    `json:"emails_fetched"`
	EmailsCreated     int    `json:"emails_created"`
	SkippedDuplicates int    `json:"skipped_duplicates"`
	SkippedMalformed  int    `json:"skipped_malformed"`
	Indexed           int    `json:"indexed"`
	Pages             int    `json:"pages"`
	DeltaToken        string `json:"delta_token,omitempty"`
}

// SyncUsecase drives delta synchronization and the provider passthroughs
// that need a bearer-scoped client.
type SyncUsecase interface {
	// Sync runs an initial sync when the account has no cursor yet,
	// otherwise a delta sync.
	Sync(ctx context.Context, accountID string) (*SyncReport, error)
	InitialSync(ctx context.Context, accountID string) (*SyncReport, error)
	RunDeltaSync(ctx context.Context, accountID string) (*SyncReport, error)
	SyncState(accountID string) (domain.SyncState, error)

	CreateWebhook(ctx context.Context, accountID, callbackURL string, triggers []string) (*nylas.Webhook, error)
	ListWebhooks(ctx context.Context, accountID string) (*nylas.WebhookList, error)
	DeleteWebhook(ctx context.Context, accountID, webhookID string) error
	SendEmail(ctx context.Context, accountID string, req *nylas.SendEmailRequest) (map[string]interface{}, error)
}
