package models

import "time"

type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	Balance      float64
	CreatedAt    time.Time
}
