// Package ledgererr defines the error taxonomy shared by the ledger and
// settlement services. Every error raised inside an atomic scope aborts that
// scope; callers match with errors.Is and surface the stable code.
package ledgererr

import "errors"

var (
	// ErrWalletNotFound means a referenced wallet does not exist.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrWalletBlocked means the wallet refuses debits and credits.
	ErrWalletBlocked = errors.New("wallet blocked")
	// ErrInsufficientFunds means a debit exceeds the available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrTierMismatch means zero or multiple commission tiers matched an
	// amount. It signals corrupt tier configuration and is never retried.
	ErrTierMismatch = errors.New("commission tier mismatch")
	// ErrDuplicateContribution means the member already submitted a
	// contribution for the round.
	ErrDuplicateContribution = errors.New("duplicate contribution")
	// ErrInvalidStateTransition means a lifecycle transition the state
	// machine does not admit, including a second terminal transition on a
	// journal entry.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrEscrowInsufficient means the escrow balance cannot cover a payout;
	// the round is blocked, not failed.
	ErrEscrowInsufficient = errors.New("escrow balance insufficient")
	// ErrLockTimeout means a row lock could not be acquired in time. The
	// operation rolled back and may be retried by the caller.
	ErrLockTimeout = errors.New("lock wait timeout")
	// ErrInvalidAmount means a non-positive monetary amount was supplied.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrMissingConfig means a mandatory configuration key is absent.
	ErrMissingConfig = errors.New("mandatory configuration key missing")
)

// Code returns the stable machine-readable code for err, or "INTERNAL" when
// the error is outside the taxonomy.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrWalletNotFound):
		return "WALLET_NOT_FOUND"
	case errors.Is(err, ErrWalletBlocked):
		return "WALLET_BLOCKED"
	case errors.Is(err, ErrInsufficientFunds):
		return "INSUFFICIENT_FUNDS"
	case errors.Is(err, ErrTierMismatch):
		return "TIER_MISMATCH"
	case errors.Is(err, ErrDuplicateContribution):
		return "DUPLICATE_CONTRIBUTION"
	case errors.Is(err, ErrInvalidStateTransition):
		return "INVALID_STATE_TRANSITION"
	case errors.Is(err, ErrEscrowInsufficient):
		return "ESCROW_INSUFFICIENT"
	case errors.Is(err, ErrLockTimeout):
		return "LOCK_TIMEOUT"
	case errors.Is(err, ErrInvalidAmount):
		return "INVALID_AMOUNT"
	case errors.Is(err, ErrMissingConfig):
		return "MISSING_CONFIG"
	default:
		return "INTERNAL"
	}
}

// Retryable reports whether the caller may retry the operation as-is.
func Retryable(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}
