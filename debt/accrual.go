/*
accrual.go - Monthly accrual state machine

PURPOSE:
  Drives the recurring "apply one month of interest" transition for debt
  accounts. Each account cycles NotDue -> Due -> Applied every billing
  period; the state is never persisted, it is derived from (anchor date,
  last accrual date, today) on every call.

ACCRUAL SEMANTICS:
  The automatic path is interest-only: one month of interest is added to
  the balance, no principal payment is applied. Auto-updated debts grow
  until a manual payment record is appended through the manual path.
  This mirrors how real statements land before the payment clears;
  changing it would silently alter financial outcomes.

IDEMPOTENCY:
  Applying an update sets LastAccrualDate to the due date, which pushes
  the next due date one month out. Calling ApplyMonthlyUpdate twice in a
  billing period yields success then ErrNotYetDue - never double interest.

ATOMICITY:
  The balance-record append and the accrual-state update go through
  TxStore.WithTx as one unit. An interrupted run leaves LastAccrualDate
  unchanged and is safe to retry.

CONCURRENCY:
  A per-account mutex serializes concurrent ApplyMonthlyUpdate calls on
  the same account (scheduler tick racing a manual trigger). Batch runs
  fan out across different accounts with bounded parallelism.

SEE ALSO:
  - schedule.go: Shares MonthlyRate so projections match applied accruals
  - calendar.go: NextDueDate rules, including the first-accrual case
*/
package debt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// batchParallelism bounds concurrent accounts in a family batch run.
const batchParallelism = 4

// Engine applies monthly accruals against a transactional store. Stateless
// aside from its collaborators; construct one per process and share it.
type Engine struct {
	store TxStore

	// Now returns "today" for due-date decisions. Overridable in tests.
	Now func() Date

	// NewRecordID mints ids for appended balance records.
	NewRecordID func() string

	accountLocks sync.Map // uuid.UUID -> *sync.Mutex
}

// NewEngine creates an accrual engine bound to a transactional store.
func NewEngine(store TxStore, newRecordID func() string) *Engine {
	return &Engine{
		store:       store,
		Now:         Today,
		NewRecordID: newRecordID,
	}
}

func (e *Engine) lockAccount(accountID uuid.UUID) func() {
	v, _ := e.accountLocks.LoadOrStore(accountID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// =============================================================================
// UPDATE RESULTS
// =============================================================================

// UpdateResult reports one successfully applied accrual.
type UpdateResult struct {
	AccountID       uuid.UUID
	DueDate         Date
	NewBalance      decimal.Decimal
	InterestAdded   decimal.Decimal
	RemainingMonths int
}

// BatchError pairs a failed account with its error.
type BatchError struct {
	AccountID uuid.UUID
	Err       error
}

func (b BatchError) Error() string {
	return fmt.Sprintf("account %s: %v", b.AccountID, b.Err)
}

// BatchResult aggregates a family-wide run. Errors are collected, never
// raised; one account's failure does not block the others.
type BatchResult struct {
	UpdatedCount int
	Results      []*UpdateResult
	Errors       []BatchError
}

// =============================================================================
// SINGLE-ACCOUNT ACCRUAL
// =============================================================================

// ApplyMonthlyUpdate applies exactly one elapsed billing period of
// interest to a debt account.
//
// Failure kinds (see errors.go): ErrAccountNotFound for missing or
// non-debt accounts, ErrNotEligible when auto-update is off or no rate is
// set, ErrMissingAnchor without a start date, ErrNotYetDue (informational,
// wraps days remaining) inside an already-applied period, ErrStorage on
// persistence failures.
func (e *Engine) ApplyMonthlyUpdate(ctx context.Context, accountID uuid.UUID) (*UpdateResult, error) {
	unlock := e.lockAccount(accountID)
	defer unlock()

	snap, err := e.store.GetAccountWithCurrentBalance(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, err
		}
		return nil, &StorageError{Op: "load account", Err: err}
	}

	account := snap.Account
	if !account.IsDebt() {
		return nil, fmt.Errorf("%w: %s is not a debt account", ErrAccountNotFound, accountID)
	}
	if !account.Terms.AutoUpdate {
		return nil, fmt.Errorf("%w: automatic updates disabled", ErrNotEligible)
	}
	if !account.Terms.HasRate() {
		return nil, fmt.Errorf("%w: no interest rate configured", ErrNotEligible)
	}
	if account.Terms.AnchorDate == nil {
		return nil, ErrMissingAnchor
	}

	today := e.Now()
	dueDate := NextDueDate(*account.Terms.AnchorDate, account.State.LastAccrualDate, today)
	if today.Before(dueDate) {
		return nil, &NotYetDueError{
			AccountID:     accountID,
			DueDate:       dueDate,
			DaysRemaining: today.DaysUntil(dueDate),
		}
	}

	balance := account.Terms.Principal
	if snap.CurrentBalance != nil {
		balance = snap.CurrentBalance.Amount
	}

	// Accrual-only: interest is added, no principal payment is applied.
	interest := balance.Mul(MonthlyRate(account.Terms.AnnualRate.Decimal))
	newBalance := balance.Add(interest)

	record := BalanceRecord{
		ID:                e.NewRecordID(),
		AccountID:         accountID,
		Amount:            newBalance,
		EffectiveDate:     dueDate,
		Kind:              RecordAutomatic,
		InterestComponent: decimal.NewNullDecimal(interest),
		CreatedAt:         time.Now().UTC(),
	}

	remaining := account.State.RemainingMonths - 1
	if remaining < 0 {
		remaining = 0
	}
	state := AccrualState{
		RemainingMonths: remaining,
		LastAccrualDate: &dueDate,
	}

	// Record append + counter update: together or not at all.
	err = e.store.WithTx(ctx, func(s Store) error {
		if _, err := s.InsertBalanceRecord(ctx, record); err != nil {
			return err
		}
		return s.UpdateAccrualState(ctx, accountID, state)
	})
	if err != nil {
		return nil, &StorageError{Op: "apply monthly update", Err: err}
	}

	return &UpdateResult{
		AccountID:       accountID,
		DueDate:         dueDate,
		NewBalance:      newBalance,
		InterestAdded:   interest,
		RemainingMonths: remaining,
	}, nil
}

// =============================================================================
// FAMILY BATCH RUN
// =============================================================================

// RunMonthlyUpdatesForFamily applies pending accruals to every eligible
// debt account in the family. Accounts are processed with bounded
// parallelism; the per-account lock in ApplyMonthlyUpdate guarantees no
// two attempts ever run concurrently on the same account.
func (e *Engine) RunMonthlyUpdatesForFamily(ctx context.Context, familyID uuid.UUID) (*BatchResult, error) {
	accountIDs, err := e.store.ListEligibleDebtAccounts(ctx, familyID)
	if err != nil {
		return nil, &StorageError{Op: "list eligible accounts", Err: err}
	}

	var (
		mu     sync.Mutex
		result BatchResult
	)

	g := new(errgroup.Group)
	g.SetLimit(batchParallelism)
	for _, accountID := range accountIDs {
		accountID := accountID
		g.Go(func() error {
			res, err := e.ApplyMonthlyUpdate(ctx, accountID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, BatchError{AccountID: accountID, Err: err})
				return nil
			}
			result.UpdatedCount++
			result.Results = append(result.Results, res)
			return nil
		})
	}
	// Workers only record outcomes; Wait never returns an error here.
	_ = g.Wait()

	return &result, nil
}

// =============================================================================
// READ-ONLY SUMMARIES
// =============================================================================

// DebtSummaries aggregates the dashboard view for every debt account in
// the family: current balance, next-payment projection, payoff estimate,
// and total remaining interest. No state is mutated.
func (e *Engine) DebtSummaries(ctx context.Context, familyID uuid.UUID) ([]DebtSummary, error) {
	accountIDs, err := e.store.ListDebtAccounts(ctx, familyID)
	if err != nil {
		return nil, &StorageError{Op: "list debt accounts", Err: err}
	}

	today := e.Now()
	summaries := make([]DebtSummary, 0, len(accountIDs))

	for _, accountID := range accountIDs {
		snap, err := e.store.GetAccountWithCurrentBalance(ctx, accountID)
		if err != nil {
			return nil, &StorageError{Op: "load account", Err: err}
		}
		account := snap.Account

		balance := account.Terms.Principal
		if snap.CurrentBalance != nil {
			balance = snap.CurrentBalance.Amount
		}

		summary := DebtSummary{
			AccountID:              accountID,
			Name:                   account.Name,
			CurrentBalance:         balance,
			RemainingMonths:        account.State.RemainingMonths,
			NextPayment:            NextPaymentAsOf(account.Terms, balance, today),
			TotalInterestRemaining: decimal.Zero,
		}

		if account.State.RemainingMonths > 0 {
			payoff := today.AddMonths(account.State.RemainingMonths)
			summary.PayoffDate = &payoff
		}
		if sched := GenerateScheduleAsOf(account.Terms, balance, account.State.RemainingMonths, today); sched != nil {
			summary.TotalInterestRemaining = sched.TotalInterest
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}
