package errors

import "errors"

var (
	ErrAccountExists     = errors.New("account already exists")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnauthorized      = errors.New("invalid username or password")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidInput      = errors.New("username and password are required")
	ErrNilAccount        = errors.New("account is nil")
	ErrNilEntry          = errors.New("ledger entry is nil")
	ErrInvalidEntryType  = errors.New("invalid ledger entry type")
	ErrInternal          = errors.New("internal error")
)
