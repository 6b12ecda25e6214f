// Package transfer orchestrates atomic money movements: wallet-to-wallet
// transfers, merchant payouts with tiered commissions, single-sided
// adjustments, and escrow funding/distribution for tontines. Every operation
// is one atomic scope; no partial movement is ever observable.
package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/terangapay/ledger-engine/internal/app/domain/fee"
	journaldomain "github.com/terangapay/ledger-engine/internal/app/domain/journal"
	"github.com/terangapay/ledger-engine/internal/app/domain/tontine"
	"github.com/terangapay/ledger-engine/internal/app/domain/wallet"
	"github.com/terangapay/ledger-engine/internal/app/ledgererr"
	"github.com/terangapay/ledger-engine/internal/app/metrics"
	"github.com/terangapay/ledger-engine/internal/app/notify"
	"github.com/terangapay/ledger-engine/internal/app/services/debts"
	"github.com/terangapay/ledger-engine/internal/app/services/fees"
	"github.com/terangapay/ledger-engine/internal/app/services/journal"
	"github.com/terangapay/ledger-engine/internal/app/services/ledger"
	"github.com/terangapay/ledger-engine/internal/app/storage"
	"github.com/terangapay/ledger-engine/pkg/logger"
)

// Options tunes a single transfer.
type Options struct {
	// Type defaults to TRANSFER for paired movements, DEPOSIT/WITHDRAWAL for
	// single-sided ones.
	Type     journaldomain.EntryType
	Method   string
	Provider string
	// ChargeFee debits the resolved fee from the sender on top of the
	// amount. When false the fee is recorded on the entry as bookkeeping
	// only.
	ChargeFee bool
}

// Result is the outcome of a successful operation.
type Result struct {
	Sender      wallet.Wallet
	Receiver    wallet.Wallet
	Entry       journaldomain.Entry
	Settlements []debts.Settlement
}

// Service is the transfer orchestrator.
type Service struct {
	store    storage.Store
	ledger   *ledger.Service
	journal  *journal.Service
	fees     *fees.Resolver
	debts    *debts.Service
	notifier notify.Dispatcher
	log      *logger.Logger
}

// New constructs the orchestrator with its collaborators.
func New(store storage.Store, ledgerSvc *ledger.Service, journalSvc *journal.Service, feeResolver *fees.Resolver, debtSvc *debts.Service, notifier notify.Dispatcher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("transfer")
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Service{
		store:    store,
		ledger:   ledgerSvc,
		journal:  journalSvc,
		fees:     feeResolver,
		debts:    debtSvc,
		notifier: notifier,
		log:      log,
	}
}

// Transfer moves amount from one wallet to another atomically: lock both
// rows in ascending wallet-ID order, debit sender, credit receiver, journal
// the movement, and cascade debts on a user destination — all before commit.
func (s *Service) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, opts Options) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, fmt.Errorf("transfer %s: %w", amount.String(), ledgererr.ErrInvalidAmount)
	}
	if fromID == toID {
		return Result{}, fmt.Errorf("transfer to self: %w", ledgererr.ErrInvalidAmount)
	}
	if opts.Type == "" {
		opts.Type = journaldomain.TypeTransfer
	}

	var result Result
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		sender, receiver, err := s.lockPair(ctx, tx, fromID, toID)
		if err != nil {
			return err
		}
		if !sender.Active() {
			return fmt.Errorf("sender %s: %w", sender.ID, ledgererr.ErrWalletBlocked)
		}
		if !receiver.Active() {
			return fmt.Errorf("receiver %s: %w", receiver.ID, ledgererr.ErrWalletBlocked)
		}

		breakdown := s.fees.ResolveFee(opts.Type, amount)
		charge := amount
		if opts.ChargeFee {
			charge = charge.Add(breakdown.Total())
		}
		if charge.GreaterThan(sender.Balance) {
			return fmt.Errorf("balance %s, need %s: %w",
				sender.Balance.String(), charge.String(), ledgererr.ErrInsufficientFunds)
		}

		if result.Sender, err = s.ledger.Debit(ctx, tx, sender.ID, charge); err != nil {
			return err
		}
		if result.Receiver, err = s.ledger.Credit(ctx, tx, receiver.ID, amount); err != nil {
			return err
		}

		entry, err := s.journal.Open(ctx, tx, journal.Spec{
			Type:        opts.Type,
			Amount:      amount,
			PlatformFee: breakdown.Platform,
			Tax:         breakdown.Tax,
			SenderID:    sender.OwnerID,
			ReceiverID:  receiver.OwnerID,
			Method:      opts.Method,
			Provider:    opts.Provider,
		})
		if err != nil {
			return err
		}
		if result.Entry, err = s.journal.Complete(ctx, tx, entry.ID); err != nil {
			return err
		}

		if receiver.OwnerKind == wallet.OwnerUser {
			if result.Settlements, err = s.debts.Cascade(ctx, tx, receiver.OwnerID); err != nil {
				return err
			}
			if result.Receiver, err = tx.GetWallet(ctx, receiver.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		metrics.RecordTransfer(string(opts.Type), "failed")
		return Result{}, err
	}

	metrics.RecordTransfer(string(opts.Type), "completed")
	s.notifier.Dispatch(ctx, notify.EventTransferCompleted, result.Receiver.OwnerID, result.Entry)
	s.notifySettlements(ctx, result)
	return result, nil
}

// notifySettlements reports each debt repayment swept during the committed
// scope. Best effort, after commit.
func (s *Service) notifySettlements(ctx context.Context, result Result) {
	for _, st := range result.Settlements {
		metrics.RecordDebtSettlement()
		s.notifier.Dispatch(ctx, notify.EventDebtSettled, result.Receiver.OwnerID, st.Entry)
	}
}

// TransferFromMerchant moves amount from a merchant wallet, resolving the
// applicable commission tier and recording the commission as a linked
// partner-fee entry. The merchant is debited the transferred amount only;
// the commission is bookkeeping, not an extra debit.
func (s *Service) TransferFromMerchant(ctx context.Context, merchantWalletID, toID string, amount decimal.Decimal, opts Options) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, fmt.Errorf("transfer %s: %w", amount.String(), ledgererr.ErrInvalidAmount)
	}
	if merchantWalletID == toID {
		return Result{}, fmt.Errorf("transfer to self: %w", ledgererr.ErrInvalidAmount)
	}
	if opts.Type == "" {
		opts.Type = journaldomain.TypePayment
	}

	var result Result
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		sender, receiver, err := s.lockPair(ctx, tx, merchantWalletID, toID)
		if err != nil {
			return err
		}
		if sender.OwnerKind != wallet.OwnerMerchant {
			return fmt.Errorf("wallet %s is not merchant-owned: %w", sender.ID, ledgererr.ErrWalletNotFound)
		}
		if !sender.Active() {
			return fmt.Errorf("sender %s: %w", sender.ID, ledgererr.ErrWalletBlocked)
		}
		if !receiver.Active() {
			return fmt.Errorf("receiver %s: %w", receiver.ID, ledgererr.ErrWalletBlocked)
		}
		if amount.GreaterThan(sender.Balance) {
			return fmt.Errorf("balance %s, need %s: %w",
				sender.Balance.String(), amount.String(), ledgererr.ErrInsufficientFunds)
		}

		commission, err := s.fees.ResolveCommission(ctx, tx, amount)
		if err != nil {
			return err
		}

		if result.Sender, err = s.ledger.Debit(ctx, tx, sender.ID, amount); err != nil {
			return err
		}
		if result.Receiver, err = s.ledger.Credit(ctx, tx, receiver.ID, amount); err != nil {
			return err
		}

		entry, err := s.journal.Open(ctx, tx, journal.Spec{
			Type:       opts.Type,
			Amount:     amount,
			SenderID:   sender.OwnerID,
			ReceiverID: receiver.OwnerID,
			Method:     opts.Method,
			Provider:   opts.Provider,
		})
		if err != nil {
			return err
		}
		if result.Entry, err = s.journal.Complete(ctx, tx, entry.ID); err != nil {
			return err
		}

		commissionEntry, err := s.journal.Open(ctx, tx, journal.Spec{
			Type:       opts.Type,
			PartnerFee: commission,
			SenderID:   sender.OwnerID,
			Method:     "COMMISSION",
			ParentID:   result.Entry.ID,
		})
		if err != nil {
			return err
		}
		if _, err = s.journal.Complete(ctx, tx, commissionEntry.ID); err != nil {
			return err
		}

		if receiver.OwnerKind == wallet.OwnerUser {
			if result.Settlements, err = s.debts.Cascade(ctx, tx, receiver.OwnerID); err != nil {
				return err
			}
			if result.Receiver, err = tx.GetWallet(ctx, receiver.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		metrics.RecordTransfer(string(opts.Type), "failed")
		return Result{}, err
	}

	metrics.RecordTransfer(string(opts.Type), "completed")
	s.notifier.Dispatch(ctx, notify.EventTransferCompleted, result.Receiver.OwnerID, result.Entry)
	s.notifySettlements(ctx, result)
	return result, nil
}

// CreditWallet applies a single-sided credit (deposits, rewards, manual
// adjustments). A user destination is swept for debts in the same scope.
func (s *Service) CreditWallet(ctx context.Context, walletID string, amount decimal.Decimal, opts Options) (Result, error) {
	if opts.Type == "" {
		opts.Type = journaldomain.TypeDeposit
	}

	var result Result
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		locked, err := s.lock(ctx, tx, walletID)
		if err != nil {
			return err
		}

		if result.Receiver, err = s.ledger.Credit(ctx, tx, locked.ID, amount); err != nil {
			return err
		}

		entry, err := s.journal.Open(ctx, tx, journal.Spec{
			Type:       opts.Type,
			Amount:     amount,
			ReceiverID: locked.OwnerID,
			Method:     opts.Method,
			Provider:   opts.Provider,
		})
		if err != nil {
			return err
		}
		if result.Entry, err = s.journal.Complete(ctx, tx, entry.ID); err != nil {
			return err
		}

		if locked.OwnerKind == wallet.OwnerUser {
			if result.Settlements, err = s.debts.Cascade(ctx, tx, locked.OwnerID); err != nil {
				return err
			}
			if result.Receiver, err = tx.GetWallet(ctx, locked.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		metrics.RecordTransfer(string(opts.Type), "failed")
		return Result{}, err
	}

	metrics.RecordTransfer(string(opts.Type), "completed")
	s.notifier.Dispatch(ctx, notify.EventTransferCompleted, result.Receiver.OwnerID, result.Entry)
	s.notifySettlements(ctx, result)
	return result, nil
}

// DebitWallet applies a single-sided debit (fees, penalties, withdrawals).
func (s *Service) DebitWallet(ctx context.Context, walletID string, amount decimal.Decimal, opts Options) (Result, error) {
	if opts.Type == "" {
		opts.Type = journaldomain.TypeWithdrawal
	}

	var result Result
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		locked, err := s.lock(ctx, tx, walletID)
		if err != nil {
			return err
		}

		if result.Sender, err = s.ledger.Debit(ctx, tx, locked.ID, amount); err != nil {
			return err
		}

		entry, err := s.journal.Open(ctx, tx, journal.Spec{
			Type:     opts.Type,
			Amount:   amount,
			SenderID: locked.OwnerID,
			Method:   opts.Method,
			Provider: opts.Provider,
		})
		if err != nil {
			return err
		}
		result.Entry, err = s.journal.Complete(ctx, tx, entry.ID)
		return err
	})
	if err != nil {
		metrics.RecordTransfer(string(opts.Type), "failed")
		return Result{}, err
	}

	metrics.RecordTransfer(string(opts.Type), "completed")
	return result, nil
}

// ContributeToEscrow debits a member wallet by the contribution amount plus
// the tontine fee and credits the tontine's escrow account with the full
// contribution. It runs inside the caller's scope so the contribution state
// flip commits or rolls back with the money movement.
func (s *Service) ContributeToEscrow(ctx context.Context, tx storage.Tx, memberWalletID, tontineID string, amount decimal.Decimal, breakdown fee.Breakdown) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, fmt.Errorf("contribution %s: %w", amount.String(), ledgererr.ErrInvalidAmount)
	}

	var result Result
	locked, err := s.lock(ctx, tx, memberWalletID)
	if err != nil {
		return Result{}, err
	}

	escrow, err := tx.GetEscrowByTontine(ctx, tontineID)
	if err != nil {
		return Result{}, fmt.Errorf("escrow for tontine %s: %w", tontineID, err)
	}
	if escrow.State != tontine.EscrowActive {
		return Result{}, fmt.Errorf("escrow %s: %w", escrow.ID, ledgererr.ErrWalletBlocked)
	}

	charge := amount.Add(breakdown.Total())
	if result.Sender, err = s.ledger.Debit(ctx, tx, locked.ID, charge); err != nil {
		return Result{}, err
	}

	escrow.Balance = escrow.Balance.Add(amount)
	if _, err := tx.UpdateEscrow(ctx, escrow); err != nil {
		return Result{}, fmt.Errorf("credit escrow: %w", err)
	}

	entry, err := s.journal.Open(ctx, tx, journal.Spec{
		Type:        journaldomain.TypeTontinePayment,
		Amount:      amount,
		PlatformFee: breakdown.Platform,
		Tax:         breakdown.Tax,
		SenderID:    locked.OwnerID,
		ReceiverID:  escrow.ID,
		Method:      "CONTRIBUTION",
	})
	if err != nil {
		return Result{}, err
	}
	if result.Entry, err = s.journal.Complete(ctx, tx, entry.ID); err != nil {
		return Result{}, err
	}
	return result, nil
}

// DistributeFromEscrow debits the escrow by the pooled amount and credits
// the beneficiary wallet with the pooled amount minus the distribution fee,
// inside the caller's scope. An escrow balance below the pooled amount
// aborts with EscrowInsufficient before any mutation.
func (s *Service) DistributeFromEscrow(ctx context.Context, tx storage.Tx, tontineID, beneficiaryWalletID string, pooled, feeAmount decimal.Decimal) (Result, error) {
	if !pooled.IsPositive() {
		return Result{}, fmt.Errorf("pooled %s: %w", pooled.String(), ledgererr.ErrInvalidAmount)
	}

	var result Result
	escrow, err := tx.GetEscrowByTontine(ctx, tontineID)
	if err != nil {
		return Result{}, fmt.Errorf("escrow for tontine %s: %w", tontineID, err)
	}
	if escrow.Balance.LessThan(pooled) {
		return Result{}, fmt.Errorf("escrow %s holds %s, round needs %s: %w",
			escrow.ID, escrow.Balance.String(), pooled.String(), ledgererr.ErrEscrowInsufficient)
	}

	locked, err := s.lock(ctx, tx, beneficiaryWalletID)
	if err != nil {
		return Result{}, err
	}

	escrow.Balance = escrow.Balance.Sub(pooled)
	if _, err := tx.UpdateEscrow(ctx, escrow); err != nil {
		return Result{}, fmt.Errorf("debit escrow: %w", err)
	}

	payout := pooled.Sub(feeAmount)
	if result.Receiver, err = s.ledger.Credit(ctx, tx, locked.ID, payout); err != nil {
		return Result{}, err
	}

	entry, err := s.journal.Open(ctx, tx, journal.Spec{
		Type:        journaldomain.TypeTontinePayment,
		Amount:      payout,
		PlatformFee: feeAmount,
		SenderID:    escrow.ID,
		ReceiverID:  locked.OwnerID,
		Method:      "DISTRIBUTION",
	})
	if err != nil {
		return Result{}, err
	}
	if result.Entry, err = s.journal.Complete(ctx, tx, entry.ID); err != nil {
		return Result{}, err
	}

	if locked.OwnerKind == wallet.OwnerUser {
		if result.Settlements, err = s.debts.Cascade(ctx, tx, locked.OwnerID); err != nil {
			return Result{}, err
		}
		if result.Receiver, err = tx.GetWallet(ctx, locked.ID); err != nil {
			return Result{}, err
		}
	}
	return result, nil
}

// DebitInScope applies a journalled debit inside the caller's scope. Used by
// the tontine engine for penalty collection.
func (s *Service) DebitInScope(ctx context.Context, tx storage.Tx, walletID string, amount decimal.Decimal, opts Options) (Result, error) {
	if opts.Type == "" {
		opts.Type = journaldomain.TypePayment
	}

	var result Result
	locked, err := s.lock(ctx, tx, walletID)
	if err != nil {
		return Result{}, err
	}
	if result.Sender, err = s.ledger.Debit(ctx, tx, locked.ID, amount); err != nil {
		return Result{}, err
	}

	entry, err := s.journal.Open(ctx, tx, journal.Spec{
		Type:     opts.Type,
		Amount:   amount,
		SenderID: locked.OwnerID,
		Method:   opts.Method,
		Provider: opts.Provider,
	})
	if err != nil {
		return Result{}, err
	}
	if result.Entry, err = s.journal.Complete(ctx, tx, entry.ID); err != nil {
		return Result{}, err
	}
	return result, nil
}

// Atomic opens a scope on the orchestrator's store for callers composing
// orchestrated movements with their own state changes.
func (s *Service) Atomic(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	return s.store.Atomic(ctx, fn)
}

// Journal exposes journal queries through the orchestrator for thin
// controllers.
func (s *Service) Journal(ctx context.Context, f journaldomain.Filter) ([]journaldomain.Entry, error) {
	return s.journal.List(ctx, s.store, f)
}

// Wallet returns a wallet by ID outside any scope.
func (s *Service) Wallet(ctx context.Context, walletID string) (wallet.Wallet, error) {
	w, err := s.store.GetWallet(ctx, walletID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return wallet.Wallet{}, fmt.Errorf("wallet %s: %w", walletID, ledgererr.ErrWalletNotFound)
		}
		return wallet.Wallet{}, err
	}
	return w, nil
}

func (s *Service) lockPair(ctx context.Context, tx storage.Tx, fromID, toID string) (sender, receiver wallet.Wallet, err error) {
	locked, err := tx.LockWallets(ctx, fromID, toID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return wallet.Wallet{}, wallet.Wallet{}, fmt.Errorf("%s/%s: %w", fromID, toID, ledgererr.ErrWalletNotFound)
		}
		return wallet.Wallet{}, wallet.Wallet{}, err
	}
	for _, w := range locked {
		switch w.ID {
		case fromID:
			sender = w
		case toID:
			receiver = w
		}
	}
	return sender, receiver, nil
}

func (s *Service) lock(ctx context.Context, tx storage.Tx, walletID string) (wallet.Wallet, error) {
	locked, err := tx.LockWallets(ctx, walletID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return wallet.Wallet{}, fmt.Errorf("wallet %s: %w", walletID, ledgererr.ErrWalletNotFound)
		}
		return wallet.Wallet{}, err
	}
	return locked[0], nil
}
