package domain

import "errors"

// Error surface for sync and search callers. Handlers map these onto HTTP
// statuses; retry decisions belong to the caller.
var (
	// ErrAccountNotFound means the account id has no row in the mirror.
	ErrAccountNotFound = errors.New("account not found")

	// ErrMissingCursor means a delta sync was requested before an initial
	// sync established a cursor for the account.
	ErrMissingCursor = errors.New("no delta token for account, run initial sync first")

	// ErrSyncTruncated means pagination hit the configured page ceiling
	// before the remote reported the end of the change feed.
	ErrSyncTruncated = errors.New("sync truncated: page ceiling exceeded")

	// ErrRemoteUnavailable covers transport failures and remote 5xx. Safe
	// to retry with backoff.
	ErrRemoteUnavailable = errors.New("remote mailbox provider unavailable")

	// ErrRemoteAuth covers 401/403 from the provider. Retrying cannot
	// succeed without a new grant, so it is surfaced immediately.
	ErrRemoteAuth = errors.New("remote mailbox provider rejected credentials")

	// ErrUpsertConflict means a batch commit failed and was rolled back;
	// the cursor did not advance and the whole batch is safe to retry.
	ErrUpsertConflict = errors.New("mail store batch commit failed")

	// ErrIndexNotInitialized means search was called for an account whose
	// index was never initialized.
	ErrIndexNotInitialized = errors.New("search index not initialized for account")

	// ErrSyncInProgress means another sync run holds the account's
	// exclusion scope.
	ErrSyncInProgress = errors.New("sync already in progress for account")
)
