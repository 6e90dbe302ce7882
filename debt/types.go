/*
Package debt provides the core loan amortization and accrual engine.

PURPOSE:
  This package contains the domain types and algorithms for tracking debt
  accounts: amortization schedule calculation, monthly interest accrual,
  and the append-only balance ledger that records every balance change.

KEY CONCEPTS IN THIS FILE (types.go):
  - LoanTerms: Static contractual terms of a loan (principal, rate, term)
  - AccrualState: Mutable per-account accrual bookkeeping
  - BalanceRecord: An immutable ledger entry recording a balance level
  - Account: A debt account owned by a family

DESIGN PRINCIPLES:
  1. Immutability: Balance records are never modified, only appended
  2. Precision: Uses decimal.Decimal to avoid floating-point money errors
  3. Derived state: "Current balance" is always the latest record, never
     a separately maintained field that can drift
  4. Optionality: Unset rates and payments use decimal.NullDecimal rather
     than zero sentinels, since a zero rate is a valid loan

SEE ALSO:
  - schedule.go: Pure amortization schedule calculator
  - accrual.go: Monthly accrual state machine
  - calendar.go: Clamped month arithmetic and due-date rules
  - store.go: Persistence interfaces
*/
package debt

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCOUNT - A family-owned account, possibly a debt with loan terms
// =============================================================================

type Category string

const (
	CategoryBank       Category = "bank"
	CategoryInvestment Category = "investment"
	CategoryDebt       Category = "debt"
)

type Account struct {
	ID       uuid.UUID
	FamilyID uuid.UUID
	Name     string
	Category Category

	// Loan terms and accrual state are meaningful only for CategoryDebt.
	Terms LoanTerms
	State AccrualState

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsDebt reports whether the account participates in accrual and
// amortization calculations.
func (a *Account) IsDebt() bool { return a.Category == CategoryDebt }

// =============================================================================
// LOAN TERMS - Immutable per account, changed only via explicit edit
// =============================================================================

type PaymentType string

const (
	// PaymentFixed is an annuity-style loan: constant total payment per
	// period, split between interest and principal.
	PaymentFixed PaymentType = "fixed"

	// PaymentInterestOnly pays exactly the accrued interest each period.
	// Principal never reduces automatically.
	PaymentInterestOnly PaymentType = "interest_only"
)

type LoanTerms struct {
	// Principal is the original loan balance.
	Principal decimal.Decimal

	// AnnualRate is a fraction (0.05 = 5%). Invalid = rate not configured,
	// which disables schedule generation and accrual. A valid zero rate is
	// a legitimate interest-free loan.
	AnnualRate decimal.NullDecimal

	// TermMonths is the original loan term.
	TermMonths int

	PaymentType PaymentType

	// MonthlyPayment is the contractual payment. When unset on a fixed
	// loan, the schedule derives it by re-amortizing the current balance
	// over the remaining months.
	MonthlyPayment decimal.NullDecimal

	// AnchorDate is the loan's contractual start date. Its day-of-month is
	// the recurring billing day for every future period. Nil = not
	// configured, which blocks automatic accrual.
	AnchorDate *Date

	// AutoUpdate enables the monthly accrual engine for this account.
	AutoUpdate bool
}

// HasRate reports whether an interest rate is configured.
func (t LoanTerms) HasRate() bool { return t.AnnualRate.Valid }

// =============================================================================
// ACCRUAL STATE - Mutated exactly once per elapsed billing period
// =============================================================================

type AccrualState struct {
	// RemainingMonths counts down with each applied accrual, floored at 0.
	RemainingMonths int

	// LastAccrualDate is the due date of the most recently applied accrual.
	// Nil before the first accrual ever runs.
	LastAccrualDate *Date
}

// =============================================================================
// BALANCE RECORD - Append-only ledger entry
// =============================================================================

type RecordKind string

const (
	RecordManual    RecordKind = "manual"
	RecordAutomatic RecordKind = "automatic"
)

// BalanceRecord is one entry in the append-only balance ledger.
//
// INVARIANT: for a given account, "current balance" is the record with the
// latest EffectiveDate, ties broken by latest CreatedAt. Every reader of
// balances must apply this definition; the stores implement it in
// GetAccountWithCurrentBalance.
type BalanceRecord struct {
	// ID is a ULID: lexicographically time-sortable, which keeps the
	// ledger naturally ordered in storage.
	ID        string
	AccountID uuid.UUID

	// Amount is the absolute balance level at EffectiveDate, not a delta.
	Amount        decimal.Decimal
	EffectiveDate Date
	Kind          RecordKind

	// InterestComponent is set only on automatic records: the interest
	// added by the accrual that produced this record.
	InterestComponent decimal.NullDecimal

	CreatedAt time.Time
}

// =============================================================================
// AMORTIZATION OUTPUT - Derived, never persisted
// =============================================================================

// Payment is one projected period in an amortization schedule.
type Payment struct {
	Period              int
	Date                Date
	Principal           decimal.Decimal
	Interest            decimal.Decimal
	Total               decimal.Decimal
	RemainingBalance    decimal.Decimal
	CumulativeInterest  decimal.Decimal
	CumulativePrincipal decimal.Decimal
}

// Schedule is a full forward amortization projection starting from "now".
type Schedule struct {
	Payments       []Payment
	MonthlyPayment decimal.Decimal
	TotalInterest  decimal.Decimal
	TotalPrincipal decimal.Decimal
	TotalPaid      decimal.Decimal
}

// DebtSummary is a read-only aggregation for dashboards. Purely derived.
type DebtSummary struct {
	AccountID       uuid.UUID
	Name            string
	CurrentBalance  decimal.Decimal
	RemainingMonths int

	// NextPayment is a one-month look-ahead projection. Nil when the
	// account has no rate configured.
	NextPayment *Payment

	// PayoffDate estimates today + RemainingMonths. Nil when the loan has
	// no months remaining.
	PayoffDate *Date

	// TotalInterestRemaining sums projected interest across the remaining
	// schedule. Zero when no schedule can be generated.
	TotalInterestRemaining decimal.Decimal
}
