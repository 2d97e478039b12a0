package models

import "time"

// LedgerEntry is an audit record of a single account event. Entries are
// appended by the kafka consumer, never updated.
type LedgerEntry struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Type      EntryType `json:"type"`
	Amount    float64   `json:"amount"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

type EntryType string

const (
	EntryAccountCreated EntryType = "account_created"
	EntryWithdrawal     EntryType = "withdrawal"
	EntryDeposit        EntryType = "deposit"
	EntryAccountDeleted EntryType = "account_deleted"
)

func (t EntryType) Valid() bool {
	switch t {
	case EntryAccountCreated, EntryWithdrawal, EntryDeposit, EntryAccountDeleted:
		return true
	}
	return false
}
