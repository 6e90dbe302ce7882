/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

INTERFACES IMPLEMENTED:
  debt.Store:        Account + balance ledger reads, the two accrual writes
  debt.TxStore:      WithTx for the atomic record-insert + state-update pair
  debt.AccountStore: Account lifecycle for the HTTP layer

APPEND-ONLY ENFORCEMENT:
  balance_records has no UPDATE and no DELETE statements anywhere in this
  package. Corrections are newer records; "current" is resolved by
  ORDER BY effective_date DESC, created_at DESC LIMIT 1.

KEY TABLES:
  accounts:        Account identity, loan terms, accrual state
  balance_records: Immutable balance ledger

WAL MODE:
  SQLite is opened with WAL so readers don't block during accrual writes.

MIGRATION:
  Schema is auto-migrated on New(). Use ":memory:" for tests.

SEE ALSO:
  - debt/store.go: Interface definitions
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/debt-engine/debt"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at dbPath. Use ":memory:" for an in-memory
// database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		principal TEXT NOT NULL,
		annual_rate TEXT,
		term_months INTEGER NOT NULL DEFAULT 0,
		payment_type TEXT NOT NULL DEFAULT 'fixed',
		monthly_payment TEXT,
		anchor_date TEXT,
		auto_update BOOLEAN NOT NULL DEFAULT FALSE,
		remaining_months INTEGER NOT NULL DEFAULT 0,
		last_accrual_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_family
		ON accounts(family_id);
	CREATE INDEX IF NOT EXISTS idx_accounts_family_category
		ON accounts(family_id, category);

	-- Balance ledger (append-only)
	CREATE TABLE IF NOT EXISTS balance_records (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		amount TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		kind TEXT NOT NULL,
		interest_component TEXT,
		created_at TEXT NOT NULL
	);

	-- Current-balance lookup (hot path): latest effective date, ties
	-- broken by latest created_at.
	CREATE INDEX IF NOT EXISTS idx_records_account_date
		ON balance_records(account_id, effective_date DESC, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_records_kind
		ON balance_records(kind);
	`
	_, err := s.db.Exec(schema)
	return err
}

// queryer is satisfied by both *sql.DB and *sql.Tx so the row-level
// helpers can serve plain calls and WithTx views alike.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// debt.Store
// =============================================================================

func (s *Store) GetAccountWithCurrentBalance(ctx context.Context, accountID uuid.UUID) (*debt.AccountSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSnapshot(ctx, s.db, accountID)
}

func getSnapshot(ctx context.Context, q queryer, accountID uuid.UUID) (*debt.AccountSnapshot, error) {
	account, err := getAccount(ctx, q, accountID)
	if err != nil {
		return nil, err
	}

	row := q.QueryRowContext(ctx, `
		SELECT id, account_id, amount, effective_date, kind, interest_component, created_at
		FROM balance_records
		WHERE account_id = ?
		ORDER BY effective_date DESC, created_at DESC
		LIMIT 1`, accountID.String())

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return &debt.AccountSnapshot{Account: account}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load current balance: %w", err)
	}
	return &debt.AccountSnapshot{Account: account, CurrentBalance: record}, nil
}

func getAccount(ctx context.Context, q queryer, accountID uuid.UUID) (*debt.Account, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, family_id, name, category, principal, annual_rate, term_months,
		       payment_type, monthly_payment, anchor_date, auto_update,
		       remaining_months, last_accrual_date, created_at, updated_at
		FROM accounts WHERE id = ?`, accountID.String())

	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, debt.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return account, nil
}

func (s *Store) InsertBalanceRecord(ctx context.Context, rec debt.BalanceRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertRecord(ctx, s.db, rec)
}

func insertRecord(ctx context.Context, q queryer, rec debt.BalanceRecord) (string, error) {
	_, err := q.ExecContext(ctx, `
		INSERT INTO balance_records
		(id, account_id, amount, effective_date, kind, interest_component, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.AccountID.String(),
		rec.Amount.String(),
		rec.EffectiveDate.String(),
		string(rec.Kind),
		nullDecimalString(rec.InterestComponent),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert balance record: %w", err)
	}
	return rec.ID, nil
}

func (s *Store) UpdateAccrualState(ctx context.Context, accountID uuid.UUID, state debt.AccrualState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateState(ctx, s.db, accountID, state)
}

func updateState(ctx context.Context, q queryer, accountID uuid.UUID, state debt.AccrualState) error {
	res, err := q.ExecContext(ctx, `
		UPDATE accounts
		SET remaining_months = ?, last_accrual_date = ?, updated_at = ?
		WHERE id = ?`,
		state.RemainingMonths,
		nullDateString(state.LastAccrualDate),
		time.Now().UTC().Format(time.RFC3339Nano),
		accountID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update accrual state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return debt.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ListEligibleDebtAccounts(ctx context.Context, familyID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM accounts
		WHERE family_id = ? AND category = ?
		  AND auto_update AND annual_rate IS NOT NULL AND remaining_months > 0
		ORDER BY id`, familyID.String(), string(debt.CategoryDebt))
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible accounts: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

func (s *Store) ListDebtAccounts(ctx context.Context, familyID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM accounts
		WHERE family_id = ? AND category = ?
		ORDER BY id`, familyID.String(), string(debt.CategoryDebt))
	if err != nil {
		return nil, fmt.Errorf("failed to list debt accounts: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

func (s *Store) RecordsForAccount(ctx context.Context, accountID uuid.UUID) ([]debt.BalanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, amount, effective_date, kind, interest_component, created_at
		FROM balance_records
		WHERE account_id = ?
		ORDER BY effective_date ASC, created_at ASC`, accountID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list balance records: %w", err)
	}
	defer rows.Close()

	var records []debt.BalanceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// =============================================================================
// debt.TxStore
// =============================================================================

// WithTx runs fn inside a single SQL transaction. Rolls back when fn
// returns an error.
func (s *Store) WithTx(ctx context.Context, fn func(debt.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txView{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// txView serves Store calls against an open *sql.Tx. The outer WithTx
// holds the store mutex, so no re-locking here.
type txView struct {
	q *sql.Tx
}

func (tv *txView) GetAccountWithCurrentBalance(ctx context.Context, accountID uuid.UUID) (*debt.AccountSnapshot, error) {
	return getSnapshot(ctx, tv.q, accountID)
}

func (tv *txView) InsertBalanceRecord(ctx context.Context, rec debt.BalanceRecord) (string, error) {
	return insertRecord(ctx, tv.q, rec)
}

func (tv *txView) UpdateAccrualState(ctx context.Context, accountID uuid.UUID, state debt.AccrualState) error {
	return updateState(ctx, tv.q, accountID, state)
}

func (tv *txView) ListEligibleDebtAccounts(ctx context.Context, familyID uuid.UUID) ([]uuid.UUID, error) {
	return nil, fmt.Errorf("listing not supported inside a transaction")
}

func (tv *txView) ListDebtAccounts(ctx context.Context, familyID uuid.UUID) ([]uuid.UUID, error) {
	return nil, fmt.Errorf("listing not supported inside a transaction")
}

func (tv *txView) RecordsForAccount(ctx context.Context, accountID uuid.UUID) ([]debt.BalanceRecord, error) {
	return nil, fmt.Errorf("listing not supported inside a transaction")
}

// =============================================================================
// debt.AccountStore
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, account *debt.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts
		(id, family_id, name, category, principal, annual_rate, term_months,
		 payment_type, monthly_payment, anchor_date, auto_update,
		 remaining_months, last_accrual_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID.String(),
		account.FamilyID.String(),
		account.Name,
		string(account.Category),
		account.Terms.Principal.String(),
		nullDecimalString(account.Terms.AnnualRate),
		account.Terms.TermMonths,
		string(account.Terms.PaymentType),
		nullDecimalString(account.Terms.MonthlyPayment),
		nullDateString(account.Terms.AnchorDate),
		account.Terms.AutoUpdate,
		account.State.RemainingMonths,
		nullDateString(account.State.LastAccrualDate),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *Store) UpdateLoanTerms(ctx context.Context, accountID uuid.UUID, terms debt.LoanTerms) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET principal = ?, annual_rate = ?, term_months = ?, payment_type = ?,
		    monthly_payment = ?, anchor_date = ?, auto_update = ?, updated_at = ?
		WHERE id = ?`,
		terms.Principal.String(),
		nullDecimalString(terms.AnnualRate),
		terms.TermMonths,
		string(terms.PaymentType),
		nullDecimalString(terms.MonthlyPayment),
		nullDateString(terms.AnchorDate),
		terms.AutoUpdate,
		time.Now().UTC().Format(time.RFC3339Nano),
		accountID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update loan terms: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return debt.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, familyID uuid.UUID) ([]*debt.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, family_id, name, category, principal, annual_rate, term_months,
		       payment_type, monthly_payment, anchor_date, auto_update,
		       remaining_months, last_accrual_date, created_at, updated_at
		FROM accounts WHERE family_id = ? ORDER BY name`, familyID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*debt.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (s *Store) ListFamilies(ctx context.Context) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT family_id FROM accounts ORDER BY family_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list families: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

// =============================================================================
// SCAN / FORMAT HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*debt.Account, error) {
	var (
		account                     debt.Account
		idStr, familyStr            string
		category, paymentType       string
		principal                   string
		annualRate, monthlyPayment  sql.NullString
		anchorDate, lastAccrualDate sql.NullString
		createdAt, updatedAt        string
	)

	err := row.Scan(&idStr, &familyStr, &account.Name, &category,
		&principal, &annualRate, &account.Terms.TermMonths, &paymentType,
		&monthlyPayment, &anchorDate, &account.Terms.AutoUpdate,
		&account.State.RemainingMonths, &lastAccrualDate, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if account.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("invalid account id %q: %w", idStr, err)
	}
	if account.FamilyID, err = uuid.Parse(familyStr); err != nil {
		return nil, fmt.Errorf("invalid family id %q: %w", familyStr, err)
	}
	account.Category = debt.Category(category)
	account.Terms.PaymentType = debt.PaymentType(paymentType)

	if account.Terms.Principal, err = decimal.NewFromString(principal); err != nil {
		return nil, fmt.Errorf("invalid principal %q: %w", principal, err)
	}
	if account.Terms.AnnualRate, err = parseNullDecimal(annualRate); err != nil {
		return nil, err
	}
	if account.Terms.MonthlyPayment, err = parseNullDecimal(monthlyPayment); err != nil {
		return nil, err
	}
	if account.Terms.AnchorDate, err = parseNullDate(anchorDate); err != nil {
		return nil, err
	}
	if account.State.LastAccrualDate, err = parseNullDate(lastAccrualDate); err != nil {
		return nil, err
	}
	account.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	account.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &account, nil
}

func scanRecord(row rowScanner) (*debt.BalanceRecord, error) {
	var (
		rec               debt.BalanceRecord
		accountStr        string
		amount, effective string
		kind              string
		interest          sql.NullString
		createdAt         string
	)

	err := row.Scan(&rec.ID, &accountStr, &amount, &effective, &kind, &interest, &createdAt)
	if err != nil {
		return nil, err
	}

	if rec.AccountID, err = uuid.Parse(accountStr); err != nil {
		return nil, fmt.Errorf("invalid account id %q: %w", accountStr, err)
	}
	if rec.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if rec.EffectiveDate, err = debt.ParseDate(effective); err != nil {
		return nil, fmt.Errorf("invalid effective date %q: %w", effective, err)
	}
	rec.Kind = debt.RecordKind(kind)
	if rec.InterestComponent, err = parseNullDecimal(interest); err != nil {
		return nil, err
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &rec, nil
}

func collectIDs(rows *sql.Rows) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, err
		}
		parsed, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", idStr, err)
		}
		ids = append(ids, parsed)
	}
	return ids, rows.Err()
}

func nullDecimalString(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func nullDateString(d *debt.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseNullDecimal(s sql.NullString) (decimal.NullDecimal, error) {
	if !s.Valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid decimal %q: %w", s.String, err)
	}
	return decimal.NewNullDecimal(d), nil
}

func parseNullDate(s sql.NullString) (*debt.Date, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := debt.ParseDate(s.String)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", s.String, err)
	}
	return &d, nil
}
