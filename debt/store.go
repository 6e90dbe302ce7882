/*
store.go - Persistence interfaces for accounts and the balance ledger

PURPOSE:
  Defines the contract between the accrual engine and the database.
  Balance records are APPEND-ONLY: there is no update or delete for
  them, ever. Corrections are made by appending a newer record - the
  "latest effective date wins" rule makes the newest record current.

KEY INTERFACES:
  Store:        What the accrual engine consumes (reads + the two writes)
  TxStore:      Adds WithTx for the atomic record-insert + state-update pair
  AccountStore: Account lifecycle used by the HTTP layer and scheduler

ATOMICITY:
  ApplyMonthlyUpdate appends a balance record AND updates the accrual
  counters. A partial write would double-accrue or permanently skip the
  account on the next run, so the pair always goes through WithTx.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite store
  - store/memory: In-memory store for tests and dev

SEE ALSO:
  - accrual.go: The only writer of automatic balance records
*/
package debt

import (
	"context"

	"github.com/google/uuid"
)

// AccountSnapshot bundles an account with its current balance record, read
// consistently in one call.
type AccountSnapshot struct {
	Account *Account

	// CurrentBalance is the record with the latest EffectiveDate, ties
	// broken by latest CreatedAt. Nil when no record exists yet.
	CurrentBalance *BalanceRecord
}

// Store is the ledger collaborator the accrual engine consumes.
//
// Writes are limited to appending balance records and updating accrual
// state. Balance records are never updated or deleted.
type Store interface {
	// GetAccountWithCurrentBalance loads an account and its most recent
	// balance record. Returns ErrAccountNotFound when the account is
	// missing.
	GetAccountWithCurrentBalance(ctx context.Context, accountID uuid.UUID) (*AccountSnapshot, error)

	// InsertBalanceRecord appends a record to the ledger and returns its id.
	InsertBalanceRecord(ctx context.Context, rec BalanceRecord) (string, error)

	// UpdateAccrualState replaces the account's accrual counters.
	UpdateAccrualState(ctx context.Context, accountID uuid.UUID, state AccrualState) error

	// ListEligibleDebtAccounts returns debt accounts in the family with
	// auto-update enabled, a configured rate, and remaining months > 0.
	ListEligibleDebtAccounts(ctx context.Context, familyID uuid.UUID) ([]uuid.UUID, error)

	// ListDebtAccounts returns ALL debt accounts in the family, eligible
	// or not. Used by read-only summaries, which must include paid-off
	// and manually managed loans.
	ListDebtAccounts(ctx context.Context, familyID uuid.UUID) ([]uuid.UUID, error)

	// RecordsForAccount returns the full balance history, ordered by
	// EffectiveDate then CreatedAt ascending.
	RecordsForAccount(ctx context.Context, accountID uuid.UUID) ([]BalanceRecord, error)
}

// TxStore wraps Store with transaction support. The accrual engine
// requires it: the balance-record insert and the accrual-state update are
// applied together or not at all.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// AccountStore covers account lifecycle operations used by the HTTP layer
// and the background scheduler. Kept separate from Store so the engine's
// collaborator stays minimal.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *Account) error

	// UpdateLoanTerms is the explicit-edit path for otherwise immutable
	// terms. Balance history is untouched.
	UpdateLoanTerms(ctx context.Context, accountID uuid.UUID, terms LoanTerms) error

	ListAccounts(ctx context.Context, familyID uuid.UUID) ([]*Account, error)

	// ListFamilies returns every family id with at least one account.
	ListFamilies(ctx context.Context) ([]uuid.UUID, error)
}
