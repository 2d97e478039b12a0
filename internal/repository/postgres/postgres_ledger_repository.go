package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/avoronin/bankaccounts/internal/infrastructure/observability"
	"github.com/avoronin/bankaccounts/internal/models"
	pkgerrors "github.com/avoronin/bankaccounts/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type PostgresLedgerRepository struct {
	db *sql.DB
}

func NewPostgresLedgerRepository(db *sql.DB) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

func (r *PostgresLedgerRepository) Create(ctx context.Context, entry *models.LedgerEntry) (int64, error) {
	var err error
	tracer := otel.Tracer("ledger-repository")
	ctx, span := tracer.Start(ctx, "CreateLedgerEntry")
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("CreateLedgerEntry", status).Inc()
		observability.RepositoryDuration.WithLabelValues("CreateLedgerEntry").Observe(time.Since(start).Seconds())
	}()

	if entry == nil {
		err = pkgerrors.ErrNilEntry
		return 0, err
	}
	if !entry.Type.Valid() {
		err = pkgerrors.ErrInvalidEntryType
		slog.Error("invalid ledger entry type", "method", "Create", "type", entry.Type, "error", err)
		return 0, err
	}

	span.SetAttributes(
		attribute.String("username", entry.Username),
		attribute.String("type", string(entry.Type)),
		attribute.Float64("amount", entry.Amount),
	)

	query := `INSERT INTO ledger_entries (username, type, amount, balance) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	var entryID int64
	var createdAt time.Time
	err = r.db.QueryRowContext(ctx, query, entry.Username, entry.Type, entry.Amount, entry.Balance).Scan(&entryID, &createdAt)
	if err != nil {
		slog.Error("failed to create ledger entry", "method", "Create", "username", entry.Username, "type", entry.Type, "error", err)
		return 0, fmt.Errorf("failed to create ledger entry: %w", err)
	}

	entry.ID = entryID
	entry.CreatedAt = createdAt
	return entryID, nil
}

func (r *PostgresLedgerRepository) ListByUsername(ctx context.Context, username string) ([]models.LedgerEntry, error) {
	query := `SELECT id, username, type, amount, balance, created_at FROM ledger_entries WHERE username = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	// Non-nil so an account without entries serializes as an empty array.
	entries := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.Username, &e.Type, &e.Amount, &e.Balance, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}
