package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	stderrors "errors"

	"github.com/avoronin/bankaccounts/internal/config"
	"github.com/avoronin/bankaccounts/internal/infrastructure/kafka"
	"github.com/avoronin/bankaccounts/internal/infrastructure/redis"
	"github.com/avoronin/bankaccounts/internal/models"
	"github.com/avoronin/bankaccounts/internal/repository"
	pkgerrors "github.com/avoronin/bankaccounts/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

const (
	EventsTopic     = "account-events"
	balanceCacheTTL = 5 * time.Minute
	tokenTTL        = time.Hour
)

type AccountService interface {
	Register(ctx context.Context, username, password string, balance float64) error
	Authenticate(ctx context.Context, username, password string) (string, error)
	Login(ctx context.Context, username, password string) (string, error)
	GetBalance(ctx context.Context, username string) (float64, error)
	Withdraw(ctx context.Context, username string, amount float64) (float64, error)
	Deposit(ctx context.Context, username string, amount float64) (float64, error)
	Delete(ctx context.Context, username string) error
	GetHistory(ctx context.Context, username string) ([]models.LedgerEntry, error)
}

type accountService struct {
	accountRepo repository.AccountRepository
	ledgerRepo  repository.LedgerRepository
	redisClient redis.RedisClient
	producer    kafka.KafkaProducer
	jwtSecret   string
	updateMode  string
}

func NewAccountService(
	accountRepo repository.AccountRepository,
	ledgerRepo repository.LedgerRepository,
	redisClient redis.RedisClient,
	producer kafka.KafkaProducer,
	jwtSecret string,
	updateMode string,
) *accountService {
	if updateMode != config.ModeLegacy {
		updateMode = config.ModeAtomic
	}
	return &accountService{
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		redisClient: redisClient,
		producer:    producer,
		jwtSecret:   jwtSecret,
		updateMode:  updateMode,
	}
}

func (s *accountService) Register(ctx context.Context, username, password string, balance float64) error {
	tracer := otel.Tracer("account-service")
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()

	if username == "" || password == "" {
		span.SetStatus(codes.Error, "empty username or password")
		return pkgerrors.ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "password hashing failed")
		slog.Error("failed to hash password", "username", username, "error", err)
		return fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
	}

	account := &models.Account{
		Username:     username,
		PasswordHash: string(hash),
		Balance:      balance,
	}

	// The unique constraint decides duplicates; no prior read.
	if err := s.accountRepo.Create(ctx, account); err != nil {
		if stderrors.Is(err, pkgerrors.ErrAccountExists) {
			span.SetStatus(codes.Error, "account already exists")
			slog.Warn("account already exists", "username", username)
			return err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "account creation failed")
		slog.Error("failed to create account in DB", "username", username, "error", err)
		return fmt.Errorf("%w: failed to create account", pkgerrors.ErrInternal)
	}

	s.publishEvent(ctx, models.EntryAccountCreated, username, balance, balance)

	slog.Info("account registered", "username", username, "balance", balance)
	return nil
}

// Authenticate is the credential gate in front of every balance operation.
// It holds no session; each call verifies the presented pair against the
// stored hash. bcrypt comparison is constant-time.
func (s *accountService) Authenticate(ctx context.Context, username, password string) (string, error) {
	account, err := s.accountRepo.GetByUsername(ctx, username)
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrAccountNotFound) {
			slog.Warn("failed authentication attempt", "username", username)
			return "", pkgerrors.ErrUnauthorized
		}
		// A store fault is not a credential failure; don't tell the caller 401.
		slog.Error("failed to load account for authentication", "username", username, "error", err)
		return "", fmt.Errorf("%w: failed to load account", pkgerrors.ErrInternal)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		slog.Warn("failed authentication attempt", "username", username)
		return "", pkgerrors.ErrUnauthorized
	}

	return account.Username, nil
}

func (s *accountService) Login(ctx context.Context, username, password string) (string, error) {
	tracer := otel.Tracer("account-service")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	username, err := s.Authenticate(ctx, username, password)
	if err != nil {
		span.SetStatus(codes.Error, "authentication failed")
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": username,
		"exp":      time.Now().Add(tokenTTL).Unix(),
	})
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to generate JWT", "username", username, "error", err)
		return "", fmt.Errorf("%w: failed to generate token", pkgerrors.ErrInternal)
	}

	if err := s.redisClient.Set(ctx, tokenKey(username), tokenString, tokenTTL); err != nil {
		slog.Error("failed to cache JWT", "username", username, "error", err)
	}

	slog.Info("user logged in", "username", username)
	return tokenString, nil
}

func (s *accountService) GetBalance(ctx context.Context, username string) (float64, error) {
	tracer := otel.Tracer("account-service")
	ctx, span := tracer.Start(ctx, "GetBalance")
	defer span.End()

	cacheKey := balanceKey(username)
	if cached, err := s.redisClient.Get(ctx, cacheKey); err == nil {
		if balance, err := strconv.ParseFloat(cached, 64); err == nil {
			slog.Debug("balance fetched from cache", "username", username, "balance", balance)
			return balance, nil
		}
		slog.Error("failed to parse cached balance", "username", username, "value", cached)
	}

	balance, err := s.accountRepo.GetBalance(ctx, username)
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrAccountNotFound) {
			return 0, err
		}
		span.RecordError(err)
		slog.Error("failed to get balance", "username", username, "error", err)
		return 0, fmt.Errorf("%w: failed to get balance", pkgerrors.ErrInternal)
	}

	if err := s.redisClient.Set(ctx, cacheKey, strconv.FormatFloat(balance, 'f', -1, 64), balanceCacheTTL); err != nil {
		slog.Error("failed to cache balance", "username", username, "error", err)
	}

	return balance, nil
}

func (s *accountService) Withdraw(ctx context.Context, username string, amount float64) (float64, error) {
	tracer := otel.Tracer("account-service")
	ctx, span := tracer.Start(ctx, "Withdraw")
	defer span.End()

	if amount <= 0 {
		span.SetStatus(codes.Error, "invalid amount")
		return 0, pkgerrors.ErrInvalidAmount
	}

	var newBalance float64
	var err error
	if s.updateMode == config.ModeLegacy {
		newBalance, err = s.withdrawLegacy(ctx, username, amount)
	} else {
		newBalance, err = s.accountRepo.Withdraw(ctx, username, amount)
	}
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrAccountNotFound) || stderrors.Is(err, pkgerrors.ErrInsufficientFunds) {
			span.SetStatus(codes.Error, err.Error())
			return 0, err
		}
		span.RecordError(err)
		slog.Error("failed to withdraw", "username", username, "amount", amount, "error", err)
		return 0, fmt.Errorf("%w: failed to withdraw", pkgerrors.ErrInternal)
	}

	s.invalidateBalance(ctx, username)
	s.publishEvent(ctx, models.EntryWithdrawal, username, amount, newBalance)

	slog.Info("withdrawal complete", "username", username, "amount", amount, "new_balance", newBalance)
	return newBalance, nil
}

// withdrawLegacy is the original check-then-act sequence: read the balance,
// verify funds, write the new balance. The two round trips are not atomic;
// two concurrent withdrawals can both pass the check against a stale
// balance. Kept behind BALANCE_UPDATE_MODE=legacy only.
func (s *accountService) withdrawLegacy(ctx context.Context, username string, amount float64) (float64, error) {
	balance, err := s.accountRepo.GetBalance(ctx, username)
	if err != nil {
		return 0, err
	}
	if balance < amount {
		return 0, pkgerrors.ErrInsufficientFunds
	}
	newBalance := balance - amount
	if err := s.accountRepo.SetBalance(ctx, username, newBalance); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *accountService) Deposit(ctx context.Context, username string, amount float64) (float64, error) {
	tracer := otel.Tracer("account-service")
	ctx, span := tracer.Start(ctx, "Deposit")
	defer span.End()

	if amount <= 0 {
		span.SetStatus(codes.Error, "invalid amount")
		return 0, pkgerrors.ErrInvalidAmount
	}

	var newBalance float64
	var err error
	if s.updateMode == config.ModeLegacy {
		newBalance, err = s.depositLegacy(ctx, username, amount)
	} else {
		newBalance, err = s.accountRepo.Deposit(ctx, username, amount)
	}
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrAccountNotFound) {
			span.SetStatus(codes.Error, err.Error())
			return 0, err
		}
		span.RecordError(err)
		slog.Error("failed to deposit", "username", username, "amount", amount, "error", err)
		return 0, fmt.Errorf("%w: failed to deposit", pkgerrors.ErrInternal)
	}

	s.invalidateBalance(ctx, username)
	s.publishEvent(ctx, models.EntryDeposit, username, amount, newBalance)

	slog.Info("deposit complete", "username", username, "amount", amount, "new_balance", newBalance)
	return newBalance, nil
}

func (s *accountService) depositLegacy(ctx context.Context, username string, amount float64) (float64, error) {
	balance, err := s.accountRepo.GetBalance(ctx, username)
	if err != nil {
		return 0, err
	}
	newBalance := balance + amount
	if err := s.accountRepo.SetBalance(ctx, username, newBalance); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *accountService) Delete(ctx context.Context, username string) error {
	tracer := otel.Tracer("account-service")
	ctx, span := tracer.Start(ctx, "Delete")
	defer span.End()

	if err := s.accountRepo.Delete(ctx, username); err != nil {
		if stderrors.Is(err, pkgerrors.ErrAccountNotFound) {
			span.SetStatus(codes.Error, "account not found")
			slog.Warn("attempted to delete missing account", "username", username)
			return err
		}
		span.RecordError(err)
		slog.Error("failed to delete account", "username", username, "error", err)
		return fmt.Errorf("%w: failed to delete account", pkgerrors.ErrInternal)
	}

	s.invalidateBalance(ctx, username)
	if err := s.redisClient.Del(ctx, tokenKey(username)); err != nil {
		slog.Error("failed to revoke token", "username", username, "error", err)
	}
	s.publishEvent(ctx, models.EntryAccountDeleted, username, 0, 0)

	slog.Info("account deleted", "username", username)
	return nil
}

func (s *accountService) GetHistory(ctx context.Context, username string) ([]models.LedgerEntry, error) {
	entries, err := s.ledgerRepo.ListByUsername(ctx, username)
	if err != nil {
		slog.Error("failed to get account history", "username", username, "error", err)
		return nil, fmt.Errorf("%w: failed to get history", pkgerrors.ErrInternal)
	}
	return entries, nil
}

func (s *accountService) invalidateBalance(ctx context.Context, username string) {
	if err := s.redisClient.Del(ctx, balanceKey(username)); err != nil {
		slog.Error("failed to invalidate balance cache", "username", username, "error", err)
	}
}

// publishEvent feeds the audit ledger. Send failures are logged and never
// fail the request; the ledger is best-effort.
func (s *accountService) publishEvent(ctx context.Context, eventType models.EntryType, username string, amount, balance float64) {
	event := kafka.AccountEvent{
		EventType: string(eventType),
		Username:  username,
		Amount:    amount,
		Balance:   balance,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal account event", "username", username, "type", eventType, "error", err)
		return
	}
	if err := s.producer.Send(ctx, EventsTopic, username, eventBytes); err != nil {
		slog.Error("failed to send account event", "username", username, "type", eventType, "error", err)
	}
}

func balanceKey(username string) string {
	return fmt.Sprintf("account:%s:balance", username)
}

func tokenKey(username string) string {
	return fmt.Sprintf("account:%s:token", username)
}
