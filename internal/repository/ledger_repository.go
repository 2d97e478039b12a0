package repository

import (
	"context"

	"github.com/avoronin/bankaccounts/internal/models"
)

type LedgerRepository interface {
	Create(ctx context.Context, entry *models.LedgerEntry) (int64, error)
	ListByUsername(ctx context.Context, username string) ([]models.LedgerEntry, error)
}
