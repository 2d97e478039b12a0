package repository

import (
	"context"

	"github.com/avoronin/bankaccounts/internal/models"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	GetBalance(ctx context.Context, username string) (float64, error)
	// SetBalance overwrites the balance unconditionally. Only the legacy
	// read-check-write path uses it.
	SetBalance(ctx context.Context, username string, balance float64) error
	// Withdraw decrements the balance in a single conditional update and
	// returns the new balance. The update applies only if the current
	// balance covers the amount.
	Withdraw(ctx context.Context, username string, amount float64) (float64, error)
	Deposit(ctx context.Context, username string, amount float64) (float64, error)
	Delete(ctx context.Context, username string) error
}
