package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailbridge-backend/internal/mail/domain"
)

func TestAccountRepository_Create(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewAccountRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "accounts"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Create(&domain.Account{
		ID:           "grant-1",
		UserID:       "user-1",
		Token:        "tok",
		Provider:     "nylas",
		EmailAddress: "alice@example.com",
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_FindByID(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewAccountRepository(gdb)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT \* FROM "accounts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token", "provider", "email_address", "created_at", "updated_at"}).
			AddRow("grant-1", "user-1", "tok", "nylas", "alice@example.com", now, now))

	account, err := repo.FindByID("grant-1")

	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "grant-1", account.ID)
	assert.Equal(t, "user-1", account.UserID)
	assert.Nil(t, account.NextDeltaToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_FindByIDNotFound(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewAccountRepository(gdb)

	mock.ExpectQuery(`SELECT \* FROM "accounts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	account, err := repo.FindByID("missing")

	require.NoError(t, err)
	assert.Nil(t, account)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_LoadBinaryIndex(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewAccountRepository(gdb)

	blob := []byte(`{"version":1}`)
	mock.ExpectQuery(`SELECT "id","binary_index" FROM "accounts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "binary_index"}).AddRow("grant-1", blob))

	loaded, err := repo.LoadBinaryIndex("grant-1")

	require.NoError(t, err)
	assert.Equal(t, blob, loaded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_LoadBinaryIndexUnknownAccount(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewAccountRepository(gdb)

	mock.ExpectQuery(`SELECT "id","binary_index" FROM "accounts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "binary_index"}))

	_, err := repo.LoadBinaryIndex("missing")

	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_SaveBinaryIndex(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewAccountRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "accounts"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SaveBinaryIndex("grant-1", []byte(`{"version":1}`))

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_SaveBinaryIndexUnknownAccount(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewAccountRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "accounts"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.SaveBinaryIndex("missing", []byte(`{}`))

	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
