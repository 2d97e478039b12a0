package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	stderrors "errors"

	"github.com/avoronin/bankaccounts/internal/infrastructure/observability"
	"github.com/avoronin/bankaccounts/internal/models"
	pkgerrors "github.com/avoronin/bankaccounts/pkg/errors"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const pgUniqueViolation = "23505"

type PostgresAccountRepository struct {
	db *sql.DB
}

func NewPostgresAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

func (r *PostgresAccountRepository) Create(ctx context.Context, account *models.Account) error {
	var err error
	tracer := otel.Tracer("account-repository")
	ctx, span := tracer.Start(ctx, "CreateAccount")
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("CreateAccount", status).Inc()
		observability.RepositoryDuration.WithLabelValues("CreateAccount").Observe(time.Since(start).Seconds())
	}()

	if account == nil {
		err = pkgerrors.ErrNilAccount
		return err
	}
	if account.Username == "" || account.PasswordHash == "" {
		err = pkgerrors.ErrInvalidInput
		return err
	}

	span.SetAttributes(attribute.String("username", account.Username))

	query := `
	INSERT INTO accounts (username, password_hash, balance)
	VALUES ($1, $2, $3)
	RETURNING id, created_at
	`
	err = r.db.QueryRowContext(
		ctx,
		query,
		account.Username,
		account.PasswordHash,
		account.Balance,
	).Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		// The unique constraint on username is the duplicate check; a
		// prior read would race against concurrent creates.
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			err = pkgerrors.ErrAccountExists
			return err
		}
		slog.Error("failed to create account", "method", "Create", "username", account.Username, "error", err)
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT id, username, password_hash, balance, created_at FROM accounts WHERE username = $1`

	var account models.Account
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&account.Balance,
		&account.CreatedAt,
	)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrAccountNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get account by username: %w", err)
	}
	return &account, nil
}

func (r *PostgresAccountRepository) GetBalance(ctx context.Context, username string) (float64, error) {
	var balance float64
	query := `SELECT balance FROM accounts WHERE username = $1`
	err := r.db.QueryRowContext(ctx, query, username).Scan(&balance)
	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, pkgerrors.ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (r *PostgresAccountRepository) SetBalance(ctx context.Context, username string, balance float64) error {
	query := `UPDATE accounts SET balance = $1 WHERE username = $2`
	res, err := r.db.ExecContext(ctx, query, balance, username)
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrAccountNotFound
	}
	return nil
}

func (r *PostgresAccountRepository) Withdraw(ctx context.Context, username string, amount float64) (float64, error) {
	var err error
	tracer := otel.Tracer("account-repository")
	ctx, span := tracer.Start(ctx, "Withdraw")
	span.SetAttributes(
		attribute.String("username", username),
		attribute.Float64("amount", amount),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("Withdraw", status).Inc()
		observability.RepositoryDuration.WithLabelValues("Withdraw").Observe(time.Since(start).Seconds())
	}()

	query := `
		UPDATE accounts
		SET balance = balance - $1
		WHERE username = $2
		AND balance >= $1
		RETURNING balance
		`

	var newBalance float64
	err = r.db.QueryRowContext(ctx, query, amount, username).Scan(&newBalance)
	if stderrors.Is(err, sql.ErrNoRows) {
		// Either the account is missing or the funds are. One more read
		// tells them apart.
		var exists bool
		checkErr := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE username = $1)`, username).Scan(&exists)
		if checkErr != nil {
			err = fmt.Errorf("failed to check account existence: %w", checkErr)
			return 0, err
		}
		if !exists {
			err = pkgerrors.ErrAccountNotFound
			return 0, err
		}
		err = pkgerrors.ErrInsufficientFunds
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("failed to withdraw: %w", err)
	}
	return newBalance, nil
}

func (r *PostgresAccountRepository) Deposit(ctx context.Context, username string, amount float64) (float64, error) {
	var err error
	tracer := otel.Tracer("account-repository")
	ctx, span := tracer.Start(ctx, "Deposit")
	span.SetAttributes(
		attribute.String("username", username),
		attribute.Float64("amount", amount),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("Deposit", status).Inc()
		observability.RepositoryDuration.WithLabelValues("Deposit").Observe(time.Since(start).Seconds())
	}()

	query := `
		UPDATE accounts
		SET balance = balance + $1
		WHERE username = $2
		RETURNING balance
		`

	var newBalance float64
	err = r.db.QueryRowContext(ctx, query, amount, username).Scan(&newBalance)
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrAccountNotFound
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("failed to deposit: %w", err)
	}
	return newBalance, nil
}

func (r *PostgresAccountRepository) Delete(ctx context.Context, username string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrAccountNotFound
	}
	return nil
}
