package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/avoronin/bankaccounts/internal/models"
	repository "github.com/avoronin/bankaccounts/internal/repository/postgres"
	pkgerrors "github.com/avoronin/bankaccounts/pkg/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestPostgresAccountRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresAccountRepository(db)
	ctx := context.Background()

	t.Run("NilAccount", func(t *testing.T) {
		err := repo.Create(ctx, nil)
		assert.ErrorIs(t, err, pkgerrors.ErrNilAccount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MissingFields", func(t *testing.T) {
		err := repo.Create(ctx, &models.Account{Username: "", PasswordHash: "hash"})
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success", func(t *testing.T) {
		account := &models.Account{
			Username:     "alice",
			PasswordHash: "hash",
			Balance:      100.0,
		}
		createdAt := time.Now()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO accounts (username, password_hash, balance)`)).
			WithArgs(account.Username, account.PasswordHash, account.Balance).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), createdAt))

		err := repo.Create(ctx, account)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), account.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AccountAlreadyExists", func(t *testing.T) {
		account := &models.Account{
			Username:     "alice",
			PasswordHash: "hash",
			Balance:      100.0,
		}
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO accounts`)).
			WithArgs(account.Username, account.PasswordHash, account.Balance).
			WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(ctx, account)
		assert.ErrorIs(t, err, pkgerrors.ErrAccountExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		account := &models.Account{
			Username:     "alice",
			PasswordHash: "hash",
			Balance:      100.0,
		}
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO accounts`)).
			WithArgs(account.Username, account.PasswordHash, account.Balance).
			WillReturnError(fmt.Errorf("database error"))

		err := repo.Create(ctx, account)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "database error")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresAccountRepository_GetByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresAccountRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		createdAt := time.Now()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, username, password_hash, balance, created_at FROM accounts WHERE username = $1`)).
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "balance", "created_at"}).
				AddRow(int64(1), "alice", "hash", 100.0, createdAt))

		account, err := repo.GetByUsername(ctx, "alice")
		assert.NoError(t, err)
		assert.Equal(t, "alice", account.Username)
		assert.Equal(t, 100.0, account.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, username, password_hash, balance, created_at FROM accounts WHERE username = $1`)).
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		account, err := repo.GetByUsername(ctx, "ghost")
		assert.ErrorIs(t, err, pkgerrors.ErrAccountNotFound)
		assert.Nil(t, account)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresAccountRepository_Withdraw(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresAccountRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE accounts`)).
			WithArgs(50.0, "alice").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(50.0))

		newBalance, err := repo.Withdraw(ctx, "alice", 50.0)
		assert.NoError(t, err)
		assert.Equal(t, 50.0, newBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE accounts`)).
			WithArgs(1000.0, "alice").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM accounts WHERE username = $1)`)).
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := repo.Withdraw(ctx, "alice", 1000.0)
		assert.ErrorIs(t, err, pkgerrors.ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE accounts`)).
			WithArgs(50.0, "ghost").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM accounts WHERE username = $1)`)).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := repo.Withdraw(ctx, "ghost", 50.0)
		assert.ErrorIs(t, err, pkgerrors.ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresAccountRepository_Deposit(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresAccountRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE accounts`)).
			WithArgs(25.0, "alice").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(75.0))

		newBalance, err := repo.Deposit(ctx, "alice", 25.0)
		assert.NoError(t, err)
		assert.Equal(t, 75.0, newBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE accounts`)).
			WithArgs(25.0, "ghost").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Deposit(ctx, "ghost", 25.0)
		assert.ErrorIs(t, err, pkgerrors.ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresAccountRepository_SetBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresAccountRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET balance = $1 WHERE username = $2`)).
			WithArgs(50.0, "alice").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.SetBalance(ctx, "alice", 50.0)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET balance = $1 WHERE username = $2`)).
			WithArgs(50.0, "ghost").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.SetBalance(ctx, "ghost", 50.0)
		assert.ErrorIs(t, err, pkgerrors.ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresAccountRepository_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresAccountRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM accounts WHERE username = $1`)).
			WithArgs("alice").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Delete(ctx, "alice")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM accounts WHERE username = $1`)).
			WithArgs("ghost").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete(ctx, "ghost")
		assert.ErrorIs(t, err, pkgerrors.ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresLedgerRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresLedgerRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		entry := &models.LedgerEntry{
			Username: "alice",
			Type:     models.EntryWithdrawal,
			Amount:   50.0,
			Balance:  50.0,
		}
		createdAt := time.Now()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO ledger_entries (username, type, amount, balance)`)).
			WithArgs(entry.Username, entry.Type, entry.Amount, entry.Balance).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), createdAt))

		id, err := repo.Create(ctx, entry)
		assert.NoError(t, err)
		assert.Equal(t, int64(7), id)
		assert.Equal(t, int64(7), entry.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InvalidType", func(t *testing.T) {
		entry := &models.LedgerEntry{Username: "alice", Type: "refund"}
		_, err := repo.Create(ctx, entry)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidEntryType)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NilEntry", func(t *testing.T) {
		_, err := repo.Create(ctx, nil)
		assert.ErrorIs(t, err, pkgerrors.ErrNilEntry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresLedgerRepository_ListByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresLedgerRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		createdAt := time.Now()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, username, type, amount, balance, created_at FROM ledger_entries WHERE username = $1 ORDER BY id`)).
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "type", "amount", "balance", "created_at"}).
				AddRow(int64(1), "alice", "account_created", 100.0, 100.0, createdAt).
				AddRow(int64(2), "alice", "withdrawal", 50.0, 50.0, createdAt))

		entries, err := repo.ListByUsername(ctx, "alice")
		assert.NoError(t, err)
		assert.Len(t, entries, 2)
		assert.Equal(t, models.EntryWithdrawal, entries[1].Type)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Empty", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, username, type, amount, balance, created_at FROM ledger_entries WHERE username = $1 ORDER BY id`)).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "type", "amount", "balance", "created_at"}))

		entries, err := repo.ListByUsername(ctx, "ghost")
		assert.NoError(t, err)
		assert.NotNil(t, entries)
		assert.Empty(t, entries)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
