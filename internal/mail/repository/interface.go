package repository

import (
	"mailbridge-backend/internal/mail/domain"

	"mailbridge-backend/pkg/nylas"
)

// AccountRepository defines the interface for account row operations.
type AccountRepository interface {
	Create(account *domain.Account) error
	FindByID(id string) (*domain.Account, error)
	FindByUserID(userID string) ([]*domain.Account, error)
	FindAll() ([]*domain.Account, error)
	// LoadBinaryIndex reads only the serialized search index blob.
	LoadBinaryIndex(accountID string) ([]byte, error)
	// SaveBinaryIndex overwrites the serialized search index blob.
	SaveBinaryIndex(accountID string, blob []byte) error
}

// SyncBatchResult reports what one batch commit did to the mirror.
type SyncBatchResult struct {
	Created           []*domain.Email
	SkippedDuplicates int
	SkippedMalformed  int
}

// MailStore owns the upsert protocol for remote email batches. One call
// is one atomic unit: threads, addresses, emails and the cursor advance
// commit together or not at all.
type MailStore interface {
	SyncEmailsToDatabase(accountID string, records []nylas.EmailRecord, deltaToken string) (*SyncBatchResult, error)
	GetEmailsByAccount(accountID string, limit, offset int) ([]*domain.Email, int64, error)
	GetThreadsByAccount(accountID string, limit, offset int) ([]*domain.Thread, int64, error)
}
