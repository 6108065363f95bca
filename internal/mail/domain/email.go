package domain

import "time"

// Thread groups emails of one account that share a subject. Created
// lazily the first time an email for a previously-unseen (account,
// subject) pair arrives.
type Thread struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	AccountID       string    `json:"account_id" gorm:"index:idx_thread_subject;not null"`
	Subject         string    `json:"subject" gorm:"index:idx_thread_subject"`
	LastMessageDate time.Time `json:"last_message_date"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EmailAddress is identified by (account_id, address). Upserts refresh
// the display name only; addresses are never deleted.
type EmailAddress struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	AccountID string    `json:"account_id" gorm:"uniqueIndex:idx_account_address;not null"`
	Address   string    `json:"address" gorm:"uniqueIndex:idx_account_address;not null"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Email is the mirrored message row. InternetMessageID is the natural
// external identity; it is unique per account and drives de-duplication:
// rows are created once and never updated by sync.
//
// AccountID is denormalized from the thread so the dedup constraint can
// be expressed as a single unique index.
type Email struct {
	ID                string        `json:"id" gorm:"primaryKey"`
	AccountID         string        `json:"account_id" gorm:"uniqueIndex:idx_account_message;not null"`
	ThreadID          string        `json:"thread_id" gorm:"index;not null"`
	FromID            string        `json:"from_id" gorm:"not null"`
	From              *EmailAddress `json:"from,omitempty" gorm:"foreignKey:FromID"`
	InternetMessageID string        `json:"internet_message_id" gorm:"uniqueIndex:idx_account_message;not null"`
	Subject           string        `json:"subject"`
	Body              string        `json:"body"`
	BodySnippet       string        `json:"body_snippet"`
	SentAt            time.Time     `json:"sent_at"`
	ReceivedAt        time.Time     `json:"received_at"`
	CreatedTime       time.Time     `json:"created_time"`
	HasAttachments    bool          `json:"has_attachments"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}
