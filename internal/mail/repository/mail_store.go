package repository

import (
	"errors"
	"fmt"
	"log"
	"time"

	"mailbridge-backend/internal/mail/domain"
	"mailbridge-backend/pkg/nylas"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// mailStore implements MailStore interface
type mailStore struct {
	db *gorm.DB
}

// NewMailStore creates a new instance of mailStore
func NewMailStore(db *gorm.DB) MailStore {
	return &mailStore{
		db: db,
	}
}

// SyncEmailsToDatabase applies one batch of remote records to the mirror,
// in remote-returned order, inside a single transaction. The cursor is
// written in the same transaction so a failed commit never advances it.
//
// Per-record rules:
//   - thread resolved by (account, subject), created lazily, first-seen-wins
//   - from address upserted by (account, address), name refresh only
//   - email created once, keyed by internet message id; duplicates skip
//   - malformed records (no id, no from participant) skip without aborting
//     the rest of the batch
func (s *mailStore) SyncEmailsToDatabase(accountID string, records []nylas.EmailRecord, deltaToken string) (*SyncBatchResult, error) {
	result := &SyncBatchResult{}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Batch-local caches so the same subject or address resolves once
		// per batch (first-seen-wins for thread creation).
		threads := make(map[string]*domain.Thread)
		addresses := make(map[string]*domain.EmailAddress)

		for _, record := range records {
			if record.ID == "" || len(record.From) == 0 || record.From[0].Email == "" {
				log.Printf("[MailStore] Skipping malformed record for account %s (id=%q)", accountID, record.ID)
				result.SkippedMalformed++
				continue
			}

			messageDate := time.Unix(record.Date, 0).UTC()

			thread, err := s.resolveThread(tx, threads, accountID, record.Subject, messageDate)
			if err != nil {
				return err
			}

			from, err := s.upsertAddress(tx, addresses, accountID, record.From[0])
			if err != nil {
				return err
			}

			created, err := s.createEmail(tx, accountID, thread.ID, from.ID, record, messageDate)
			if err != nil {
				return err
			}
			if created == nil {
				result.SkippedDuplicates++
				continue
			}
			created.From = from
			result.Created = append(result.Created, created)
		}

		// Cursor advances atomically with the batch. An empty token keeps
		// the stored value so a token-less page chain never regresses it.
		if deltaToken != "" {
			res := tx.Model(&domain.Account{}).
				Where("id = ?", accountID).
				Updates(map[string]interface{}{"next_delta_token": deltaToken, "updated_at": time.Now()})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.ErrAccountNotFound
			}
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUpsertConflict, err)
	}

	return result, nil
}

func (s *mailStore) resolveThread(tx *gorm.DB, cache map[string]*domain.Thread, accountID, subject string, messageDate time.Time) (*domain.Thread, error) {
	if thread, ok := cache[subject]; ok {
		if messageDate.After(thread.LastMessageDate) {
			thread.LastMessageDate = messageDate
			if err := tx.Model(thread).Update("last_message_date", messageDate).Error; err != nil {
				return nil, err
			}
		}
		return thread, nil
	}

	var thread domain.Thread
	err := tx.Where("account_id = ? AND subject = ?", accountID, subject).First(&thread).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		thread = domain.Thread{
			ID:              uuid.New().String(),
			AccountID:       accountID,
			Subject:         subject,
			LastMessageDate: messageDate,
			CreatedAt:       time.Now(),
			UpdatedAt:       time.Now(),
		}
		if err := tx.Create(&thread).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else if messageDate.After(thread.LastMessageDate) {
		thread.LastMessageDate = messageDate
		if err := tx.Model(&thread).Update("last_message_date", messageDate).Error; err != nil {
			return nil, err
		}
	}

	cache[subject] = &thread
	return &thread, nil
}

func (s *mailStore) upsertAddress(tx *gorm.DB, cache map[string]*domain.EmailAddress, accountID string, p nylas.Participant) (*domain.EmailAddress, error) {
	if addr, ok := cache[p.Email]; ok {
		return addr, nil
	}

	var addr domain.EmailAddress
	err := tx.Where("account_id = ? AND address = ?", accountID, p.Email).First(&addr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		addr = domain.EmailAddress{
			ID:        uuid.New().String(),
			AccountID: accountID,
			Address:   p.Email,
			Name:      p.Name,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := tx.Create(&addr).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else if p.Name != "" && p.Name != addr.Name {
		// Display-name refresh only; the identity fields never change.
		addr.Name = p.Name
		addr.UpdatedAt = time.Now()
		if err := tx.Model(&addr).Updates(map[string]interface{}{"name": p.Name, "updated_at": addr.UpdatedAt}).Error; err != nil {
			return nil, err
		}
	}

	cache[p.Email] = &addr
	return &addr, nil
}

// createEmail inserts the email row, returning nil when a row with the
// same internet message id already exists for the account (replay no-op).
func (s *mailStore) createEmail(tx *gorm.DB, accountID, threadID, fromID string, record nylas.EmailRecord, messageDate time.Time) (*domain.Email, error) {
	var count int64
	if err := tx.Model(&domain.Email{}).
		Where("account_id = ? AND internet_message_id = ?", accountID, record.ID).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, nil
	}

	email := domain.Email{
		ID:                uuid.New().String(),
		AccountID:         accountID,
		ThreadID:          threadID,
		FromID:            fromID,
		InternetMessageID: record.ID,
		Subject:           record.Subject,
		Body:              record.Body,
		BodySnippet:       record.Snippet,
		SentAt:            messageDate,
		ReceivedAt:        messageDate,
		CreatedTime:       messageDate,
		HasAttachments:    len(record.Attachments) > 0,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	if err := tx.Create(&email).Error; err != nil {
		return nil, err
	}
	return &email, nil
}

func (s *mailStore) GetEmailsByAccount(accountID string, limit, offset int) ([]*domain.Email, int64, error) {
	var total int64
	if err := s.db.Model(&domain.Email{}).Where("account_id = ?", accountID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var emails []*domain.Email
	err := s.db.Preload("From").
		Where("account_id = ?", accountID).
		Order("sent_at DESC").
		Limit(limit).Offset(offset).
		Find(&emails).Error
	return emails, total, err
}

func (s *mailStore) GetThreadsByAccount(accountID string, limit, offset int) ([]*domain.Thread, int64, error) {
	var total int64
	if err := s.db.Model(&domain.Thread{}).Where("account_id = ?", accountID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var threads []*domain.Thread
	err := s.db.Where("account_id = ?", accountID).
		Order("last_message_date DESC").
		Limit(limit).Offset(offset).
		Find(&threads).Error
	return threads, total, err
}
