package domain

import "time"

// Account is the local record of a remote mailbox grant. The ID is the
// grant identifier issued by the provider, not generated locally.
//
// NextDeltaToken is the opaque read position in the provider's change
// feed; nil until the first successful initial sync. BinaryIndex is the
// serialized per-account search index, a derived cache that is never
// treated as a source of truth.
type Account struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	UserID         string    `json:"user_id" gorm:"index;not null"`
	Token          string    `json:"-" gorm:"not null"`
	Provider       string    `json:"provider"`
	EmailAddress   string    `json:"email_address"`
	NextDeltaToken *string   `json:"next_delta_token"`
	BinaryIndex    []byte    `json:"-" gorm:"type:bytea"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SyncState describes where an account's sync controller currently is.
type SyncState string

const (
	SyncStateUninitialized SyncState = "UNINITIALIZED"
	SyncStateInitialSync   SyncState = "INITIAL_SYNC"
	SyncStateReady         SyncState = "READY"
	SyncStatePaginating    SyncState = "PAGINATING"
)
