package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a wallet. Blocked wallets reject every
// debit and credit.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusBlocked Status = "BLOCKED"
)

// OwnerKind distinguishes user wallets from merchant wallets. Debt cascades
// only ever target user wallets.
type OwnerKind string

const (
	OwnerUser     OwnerKind = "USER"
	OwnerMerchant OwnerKind = "MERCHANT"
)

// Wallet is a balance-holding account. Exactly one exists per owner; it is
// never deleted. The balance is mutated only through the transfer
// orchestrator or at initialization.
type Wallet struct {
	ID        string
	OwnerID   string
	OwnerKind OwnerKind
	Reference string
	Balance   decimal.Decimal
	Currency  string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the wallet accepts debits and credits.
func (w Wallet) Active() bool { return w.Status == StatusActive }
