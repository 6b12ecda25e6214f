package journal

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType classifies a money movement.
type EntryType string

const (
	TypeDeposit            EntryType = "DEPOSIT"
	TypeWithdrawal         EntryType = "WITHDRAWAL"
	TypeTransfer           EntryType = "TRANSFER"
	TypePayment            EntryType = "PAYMENT"
	TypeWalletToWallet     EntryType = "WALLET_TO_WALLET"
	TypeSharedPayment      EntryType = "SHARED_PAYMENT"
	TypeFundRequestPayment EntryType = "FUND_REQUEST_PAYMENT"
	TypeTontinePayment     EntryType = "TONTINE_PAYMENT"
	TypeViewCardDetails    EntryType = "VIEW_CARD_DETAILS"
	TypeDebtSettlement     EntryType = "DEBT_SETTLEMENT"
)

// EntryStatus is the lifecycle state of a journal entry. PENDING transitions
// exactly once to a terminal value.
type EntryStatus string

const (
	StatusPending   EntryStatus = "PENDING"
	StatusCompleted EntryStatus = "COMPLETED"
	StatusFailed    EntryStatus = "FAILED"
	StatusBlocked   EntryStatus = "BLOCKED"
)

// Terminal reports whether the status admits no further transition.
func (s EntryStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ReceiverKind marks the receiver reference as an internal actor or an
// external payee.
type ReceiverKind string

const (
	ReceiverInternal ReceiverKind = "INTERNAL"
	ReceiverExternal ReceiverKind = "EXTERNAL"
)

// Entry is one logical money movement. A cascade of N debt repayments
// produces N entries. Entries are immutable once terminal, except for retry
// bookkeeping.
type Entry struct {
	ID           string
	Type         EntryType
	Status       EntryStatus
	Amount       decimal.Decimal
	PlatformFee  decimal.Decimal
	Tax          decimal.Decimal
	PartnerFee   decimal.Decimal
	Total        decimal.Decimal
	SenderID     string
	ReceiverID   string
	ReceiverKind ReceiverKind
	Method       string
	Provider     string
	ParentID     string
	RetryCount   int
	FailureCause string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  time.Time
}

// Filter narrows journal queries for the audit/reporting reader.
type Filter struct {
	ActorID string
	Type    EntryType
	Status  EntryStatus
	From    time.Time
	To      time.Time
}
