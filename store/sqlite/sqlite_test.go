package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/debt-engine/debt"
	"github.com/warp/debt-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testAccount(familyID uuid.UUID) *debt.Account {
	anchor := debt.NewDate(2025, time.January, 15)
	return &debt.Account{
		ID:       uuid.New(),
		FamilyID: familyID,
		Name:     "Mortgage",
		Category: debt.CategoryDebt,
		Terms: debt.LoanTerms{
			Principal:   dec("300000"),
			AnnualRate:  decimal.NewNullDecimal(dec("0.035")),
			TermMonths:  360,
			PaymentType: debt.PaymentFixed,
			AnchorDate:  &anchor,
			AutoUpdate:  true,
		},
		State:     debt.AccrualState{RemainingMonths: 360},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func record(accountID uuid.UUID, id, amount string, effective debt.Date, createdAt time.Time) debt.BalanceRecord {
	return debt.BalanceRecord{
		ID:            id,
		AccountID:     accountID,
		Amount:        dec(amount),
		EffectiveDate: effective,
		Kind:          debt.RecordManual,
		CreatedAt:     createdAt,
	}
}

// =============================================================================
// ACCOUNT ROUNDTRIP
// =============================================================================

func TestStore_AccountRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	account := testAccount(uuid.New())
	require.NoError(t, store.CreateAccount(ctx, account))

	snap, err := store.GetAccountWithCurrentBalance(ctx, account.ID)
	require.NoError(t, err)

	got := snap.Account
	assert.Equal(t, account.ID, got.ID)
	assert.Equal(t, account.FamilyID, got.FamilyID)
	assert.Equal(t, "Mortgage", got.Name)
	assert.Equal(t, debt.CategoryDebt, got.Category)
	assert.True(t, got.Terms.Principal.Equal(dec("300000")))
	require.True(t, got.Terms.AnnualRate.Valid)
	assert.True(t, got.Terms.AnnualRate.Decimal.Equal(dec("0.035")))
	assert.Equal(t, 360, got.Terms.TermMonths)
	assert.Equal(t, debt.PaymentFixed, got.Terms.PaymentType)
	require.NotNil(t, got.Terms.AnchorDate)
	assert.Equal(t, "2025-01-15", got.Terms.AnchorDate.String())
	assert.True(t, got.Terms.AutoUpdate)
	assert.Equal(t, 360, got.State.RemainingMonths)
	assert.Nil(t, got.State.LastAccrualDate)
	assert.Nil(t, snap.CurrentBalance)
}

func TestStore_AccountNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetAccountWithCurrentBalance(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, debt.ErrAccountNotFound))
}

func TestStore_NullableFieldsRoundtrip(t *testing.T) {
	// Rate, monthly payment, anchor date, and last accrual date are all
	// optional; NULLs must come back as unset, not as zeros.
	store := newTestStore(t)
	ctx := context.Background()

	account := testAccount(uuid.New())
	account.Terms.AnnualRate = decimal.NullDecimal{}
	account.Terms.AnchorDate = nil
	require.NoError(t, store.CreateAccount(ctx, account))

	snap, err := store.GetAccountWithCurrentBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, snap.Account.Terms.HasRate())
	assert.False(t, snap.Account.Terms.MonthlyPayment.Valid)
	assert.Nil(t, snap.Account.Terms.AnchorDate)
}

func TestStore_UpdateLoanTerms(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	account := testAccount(uuid.New())
	require.NoError(t, store.CreateAccount(ctx, account))

	terms := account.Terms
	terms.AnnualRate = decimal.NewNullDecimal(dec("0.042"))
	terms.MonthlyPayment = decimal.NewNullDecimal(dec("1500"))
	require.NoError(t, store.UpdateLoanTerms(ctx, account.ID, terms))

	snap, err := store.GetAccountWithCurrentBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, snap.Account.Terms.AnnualRate.Decimal.Equal(dec("0.042")))
	require.True(t, snap.Account.Terms.MonthlyPayment.Valid)
	assert.True(t, snap.Account.Terms.MonthlyPayment.Decimal.Equal(dec("1500")))

	err = store.UpdateLoanTerms(ctx, uuid.New(), terms)
	assert.True(t, errors.Is(err, debt.ErrAccountNotFound))
}

// =============================================================================
// BALANCE LEDGER
// =============================================================================

func TestStore_CurrentBalance_LatestEffectiveDateWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	account := testAccount(uuid.New())
	require.NoError(t, store.CreateAccount(ctx, account))

	now := time.Now().UTC()
	_, err := store.InsertBalanceRecord(ctx,
		record(account.ID, "rec-1", "290000", debt.NewDate(2025, time.June, 15), now))
	require.NoError(t, err)
	_, err = store.InsertBalanceRecord(ctx,
		record(account.ID, "rec-2", "285000", debt.NewDate(2025, time.May, 15), now.Add(time.Hour)))
	require.NoError(t, err)

	snap, err := store.GetAccountWithCurrentBalance(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, snap.CurrentBalance)
	// rec-2 was inserted later but is effective earlier; rec-1 wins
	assert.Equal(t, "rec-1", snap.CurrentBalance.ID)
	assert.True(t, snap.CurrentBalance.Amount.Equal(dec("290000")))
}

func TestStore_CurrentBalance_CreatedAtBreaksTies(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	account := testAccount(uuid.New())
	require.NoError(t, store.CreateAccount(ctx, account))

	effective := debt.NewDate(2025, time.June, 15)
	base := time.Now().UTC()
	_, err := store.InsertBalanceRecord(ctx, record(account.ID, "rec-early", "290000", effective, base))
	require.NoError(t, err)
	_, err = store.InsertBalanceRecord(ctx, record(account.ID, "rec-late", "289000", effective, base.Add(time.Second)))
	require.NoError(t, err)

	snap, err := store.GetAccountWithCurrentBalance(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, snap.CurrentBalance)
	assert.Equal(t, "rec-late", snap.CurrentBalance.ID)
}

func TestStore_InterestComponentRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	account := testAccount(uuid.New())
	require.NoError(t, store.CreateAccount(ctx, account))

	rec := record(account.ID, "rec-auto", "300875", debt.NewDate(2025, time.June, 15), time.Now().UTC())
	rec.Kind = debt.RecordAutomatic
	rec.InterestComponent = decimal.NewNullDecimal(dec("875"))
	_, err := store.InsertBalanceRecord(ctx, rec)
	require.NoError(t, err)

	records, err := store.RecordsForAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, debt.RecordAutomatic, records[0].Kind)
	require.True(t, records[0].InterestComponent.Valid)
	assert.True(t, records[0].InterestComponent.Decimal.Equal(dec("875")))
}

// =============================================================================
// ACCRUAL STATE
// =============================================================================

func TestStore_UpdateAccrualState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	account := testAccount(uuid.New())
	require.NoError(t, store.CreateAccount(ctx, account))

	last := debt.NewDate(2025, time.June, 15)
	err := store.UpdateAccrualState(ctx, account.ID, debt.AccrualState{
		RemainingMonths: 359,
		LastAccrualDate: &last,
	})
	require.NoError(t, err)

	snap, err := store.GetAccountWithCurrentBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 359, snap.Account.State.RemainingMonths)
	require.NotNil(t, snap.Account.State.LastAccrualDate)
	assert.Equal(t, "2025-06-15", snap.Account.State.LastAccrualDate.String())

	err = store.UpdateAccrualState(ctx, uuid.New(), debt.AccrualState{})
	assert.True(t, errors.Is(err, debt.ErrAccountNotFound))
}

// =============================================================================
// ELIGIBILITY FILTERING
// =============================================================================

func TestStore_ListEligibleDebtAccounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	familyID := uuid.New()

	eligible := testAccount(familyID)
	require.NoError(t, store.CreateAccount(ctx, eligible))

	noAuto := testAccount(familyID)
	noAuto.Terms.AutoUpdate = false
	require.NoError(t, store.CreateAccount(ctx, noAuto))

	noRate := testAccount(familyID)
	noRate.Terms.AnnualRate = decimal.NullDecimal{}
	require.NoError(t, store.CreateAccount(ctx, noRate))

	paidOff := testAccount(familyID)
	paidOff.State.RemainingMonths = 0
	require.NoError(t, store.CreateAccount(ctx, paidOff))

	bank := testAccount(familyID)
	bank.Category = debt.CategoryBank
	require.NoError(t, store.CreateAccount(ctx, bank))

	otherFamily := testAccount(uuid.New())
	require.NoError(t, store.CreateAccount(ctx, otherFamily))

	ids, err := store.ListEligibleDebtAccounts(ctx, familyID)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, eligible.ID, ids[0])

	// Summaries listing keeps the ineligible debts, drops the bank account
	all, err := store.ListDebtAccounts(ctx, familyID)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestStore_ListFamilies(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	familyA := uuid.New()
	familyB := uuid.New()
	require.NoError(t, store.CreateAccount(ctx, testAccount(familyA)))
	require.NoError(t, store.CreateAccount(ctx, testAccount(familyA)))
	require.NoError(t, store.CreateAccount(ctx, testAccount(familyB)))

	families, err := store.ListFamilies(ctx)
	require.NoError(t, err)
	assert.Len(t, families, 2)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestStore_WithTx_CommitsBothWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	account := testAccount(uuid.New())
	require.NoError(t, store.CreateAccount(ctx, account))

	last := debt.NewDate(2025, time.June, 15)
	err := store.WithTx(ctx, func(s debt.Store) error {
		if _, err := s.InsertBalanceRecord(ctx,
			record(account.ID, "rec-1", "300875", last, time.Now().UTC())); err != nil {
			return err
		}
		return s.UpdateAccrualState(ctx, account.ID, debt.AccrualState{
			RemainingMonths: 359,
			LastAccrualDate: &last,
		})
	})
	require.NoError(t, err)

	snap, err := store.GetAccountWithCurrentBalance(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, snap.CurrentBalance)
	assert.Equal(t, 359, snap.Account.State.RemainingMonths)
}

func TestStore_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that appends a record, then fails
	// WHEN: WithTx returns the error
	// THEN: Neither write is visible - no half-applied accrual

	store := newTestStore(t)
	ctx := context.Background()

	account := testAccount(uuid.New())
	require.NoError(t, store.CreateAccount(ctx, account))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(s debt.Store) error {
		if _, err := s.InsertBalanceRecord(ctx,
			record(account.ID, "rec-1", "300875", debt.NewDate(2025, time.June, 15), time.Now().UTC())); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	records, err := store.RecordsForAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	snap, err := store.GetAccountWithCurrentBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.Nil(t, snap.CurrentBalance)
}
