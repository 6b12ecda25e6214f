package debt

import (
	"time"

	"github.com/shopspring/decimal"
)

// Debt is an amount owed by a user against one of their virtual cards.
// A debt of exactly zero must not persist; full repayment deletes the record.
type Debt struct {
	ID        string
	UserID    string
	CardID    string
	Amount    decimal.Decimal
	Label     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Card is the slice of a virtual card the settlement engine cares about:
// ownership and the consecutive-rejection streak that debt creation feeds.
// The streak resets to zero once the owner has no outstanding debts.
type Card struct {
	ID              string
	UserID          string
	Label           string
	RejectionStreak int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
