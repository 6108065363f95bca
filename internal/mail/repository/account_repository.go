package repository

import (
	"errors"
	"time"

	"mailbridge-backend/internal/mail/domain"

	"gorm.io/gorm"
)

// accountRepository implements AccountRepository interface
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new instance of accountRepository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{
		db: db,
	}
}

func (r *accountRepository) Create(account *domain.Account) error {
	account.CreatedAt = time.Now()
	account.UpdatedAt = time.Now()
	return r.db.Create(account).Error
}

func (r *accountRepository) FindByID(id string) (*domain.Account, error) {
	var account domain.Account
	err := r.db.Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByUserID(userID string) ([]*domain.Account, error) {
	var accounts []*domain.Account
	err := r.db.Where("user_id = ?", userID).Find(&accounts).Error
	return accounts, err
}

func (r *accountRepository) FindAll() ([]*domain.Account, error) {
	var accounts []*domain.Account
	err := r.db.Find(&accounts).Error
	return accounts, err
}

func (r *accountRepository) LoadBinaryIndex(accountID string) ([]byte, error) {
	var account domain.Account
	err := r.db.Select("id", "binary_index").Where("id = ?", accountID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return account.BinaryIndex, nil
}

func (r *accountRepository) SaveBinaryIndex(accountID string, blob []byte) error {
	result := r.db.Model(&domain.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{"binary_index": blob, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}
