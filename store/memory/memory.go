// Package memory provides an in-memory store implementation (for
// testing/dev). It implements debt.TxStore and debt.AccountStore.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/warp/debt-engine/debt"
)

type Memory struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*debt.Account
	records  map[uuid.UUID][]debt.BalanceRecord
}

func New() *Memory {
	return &Memory{
		accounts: make(map[uuid.UUID]*debt.Account),
		records:  make(map[uuid.UUID][]debt.BalanceRecord),
	}
}

// =============================================================================
// debt.Store
// =============================================================================

func (m *Memory) GetAccountWithCurrentBalance(_ context.Context, accountID uuid.UUID) (*debt.AccountSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked(accountID)
}

func (m *Memory) snapshotLocked(accountID uuid.UUID) (*debt.AccountSnapshot, error) {
	account, ok := m.accounts[accountID]
	if !ok {
		return nil, debt.ErrAccountNotFound
	}
	copied := *account
	return &debt.AccountSnapshot{
		Account:        &copied,
		CurrentBalance: m.currentBalanceLocked(accountID),
	}, nil
}

// currentBalanceLocked applies the "latest EffectiveDate, ties broken by
// latest CreatedAt" rule.
func (m *Memory) currentBalanceLocked(accountID uuid.UUID) *debt.BalanceRecord {
	var current *debt.BalanceRecord
	for i := range m.records[accountID] {
		rec := &m.records[accountID][i]
		if current == nil ||
			rec.EffectiveDate.After(current.EffectiveDate) ||
			(rec.EffectiveDate.Equal(current.EffectiveDate) && rec.CreatedAt.After(current.CreatedAt)) {
			current = rec
		}
	}
	if current == nil {
		return nil
	}
	copied := *current
	return &copied
}

func (m *Memory) InsertBalanceRecord(_ context.Context, rec debt.BalanceRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertRecordLocked(rec)
}

func (m *Memory) insertRecordLocked(rec debt.BalanceRecord) (string, error) {
	if _, ok := m.accounts[rec.AccountID]; !ok {
		return "", debt.ErrAccountNotFound
	}
	m.records[rec.AccountID] = append(m.records[rec.AccountID], rec)
	return rec.ID, nil
}

func (m *Memory) UpdateAccrualState(_ context.Context, accountID uuid.UUID, state debt.AccrualState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateStateLocked(accountID, state)
}

func (m *Memory) updateStateLocked(accountID uuid.UUID, state debt.AccrualState) error {
	account, ok := m.accounts[accountID]
	if !ok {
		return debt.ErrAccountNotFound
	}
	account.State = state
	return nil
}

func (m *Memory) ListEligibleDebtAccounts(_ context.Context, familyID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []uuid.UUID
	for _, a := range m.accounts {
		if a.FamilyID != familyID || !a.IsDebt() {
			continue
		}
		if a.Terms.AutoUpdate && a.Terms.HasRate() && a.State.RemainingMonths > 0 {
			ids = append(ids, a.ID)
		}
	}
	sortIDs(ids)
	return ids, nil
}

func (m *Memory) ListDebtAccounts(_ context.Context, familyID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []uuid.UUID
	for _, a := range m.accounts {
		if a.FamilyID == familyID && a.IsDebt() {
			ids = append(ids, a.ID)
		}
	}
	sortIDs(ids)
	return ids, nil
}

func (m *Memory) RecordsForAccount(_ context.Context, accountID uuid.UUID) ([]debt.BalanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]debt.BalanceRecord, len(m.records[accountID]))
	copy(records, m.records[accountID])
	sort.Slice(records, func(i, j int) bool {
		if !records[i].EffectiveDate.Equal(records[j].EffectiveDate) {
			return records[i].EffectiveDate.Before(records[j].EffectiveDate)
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// =============================================================================
// debt.AccountStore
// =============================================================================

func (m *Memory) CreateAccount(_ context.Context, account *debt.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[account.ID]; ok {
		return fmt.Errorf("account %s already exists", account.ID)
	}
	copied := *account
	m.accounts[account.ID] = &copied
	return nil
}

func (m *Memory) UpdateLoanTerms(_ context.Context, accountID uuid.UUID, terms debt.LoanTerms) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[accountID]
	if !ok {
		return debt.ErrAccountNotFound
	}
	account.Terms = terms
	return nil
}

func (m *Memory) ListAccounts(_ context.Context, familyID uuid.UUID) ([]*debt.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var accounts []*debt.Account
	for _, a := range m.accounts {
		if a.FamilyID == familyID {
			copied := *a
			accounts = append(accounts, &copied)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Name < accounts[j].Name })
	return accounts, nil
}

func (m *Memory) ListFamilies(_ context.Context) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, a := range m.accounts {
		if !seen[a.FamilyID] {
			seen[a.FamilyID] = true
			ids = append(ids, a.FamilyID)
		}
	}
	sortIDs(ids)
	return ids, nil
}

// =============================================================================
// debt.TxStore
// =============================================================================

// WithTx executes fn against a transactional view. Simulated with a
// snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(debt.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	view := &txView{parent: m}
	if err := fn(view); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	accounts map[uuid.UUID]*debt.Account
	records  map[uuid.UUID][]debt.BalanceRecord
}

func (m *Memory) snapshot() memorySnapshot {
	accounts := make(map[uuid.UUID]*debt.Account, len(m.accounts))
	for k, v := range m.accounts {
		copied := *v
		accounts[k] = &copied
	}
	records := make(map[uuid.UUID][]debt.BalanceRecord, len(m.records))
	for k, v := range m.records {
		records[k] = append([]debt.BalanceRecord{}, v...)
	}
	return memorySnapshot{accounts: accounts, records: records}
}

func (m *Memory) restore(s memorySnapshot) {
	m.accounts = s.accounts
	m.records = s.records
}

// txView routes Store calls to the locked helpers; the outer WithTx holds
// the mutex for the whole transaction.
type txView struct {
	parent *Memory
}

func (tv *txView) GetAccountWithCurrentBalance(_ context.Context, accountID uuid.UUID) (*debt.AccountSnapshot, error) {
	return tv.parent.snapshotLocked(accountID)
}

func (tv *txView) InsertBalanceRecord(_ context.Context, rec debt.BalanceRecord) (string, error) {
	return tv.parent.insertRecordLocked(rec)
}

func (tv *txView) UpdateAccrualState(_ context.Context, accountID uuid.UUID, state debt.AccrualState) error {
	return tv.parent.updateStateLocked(accountID, state)
}

func (tv *txView) ListEligibleDebtAccounts(_ context.Context, _ uuid.UUID) ([]uuid.UUID, error) {
	return nil, fmt.Errorf("listing not supported inside a transaction")
}

func (tv *txView) ListDebtAccounts(_ context.Context, _ uuid.UUID) ([]uuid.UUID, error) {
	return nil, fmt.Errorf("listing not supported inside a transaction")
}

func (tv *txView) RecordsForAccount(_ context.Context, accountID uuid.UUID) ([]debt.BalanceRecord, error) {
	records := make([]debt.BalanceRecord, len(tv.parent.records[accountID]))
	copy(records, tv.parent.records[accountID])
	return records, nil
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}
