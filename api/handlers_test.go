/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Account creation and validation
- Manual balance records
- Accrual endpoint result shapes (applied / not-yet-due / ineligible)
- Schedule and summary endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/debt-engine/debt"
	"github.com/warp/debt-engine/store/memory"
)

func newTestRouter(t *testing.T, today debt.Date) (*memory.Memory, http.Handler) {
	t.Helper()
	store := memory.New()
	var n int
	engine := debt.NewEngine(store, func() string {
		n++
		return fmt.Sprintf("rec-%03d", n)
	})
	engine.Now = func() debt.Date { return today }
	handler := NewHandler(store, engine)
	return store, NewRouter(handler, []string{"http://localhost:5173"})
}

func createDebtAccount(t *testing.T, store *memory.Memory, familyID uuid.UUID) uuid.UUID {
	t.Helper()
	anchor := debt.NewDate(2025, time.January, 15)
	rate, _ := decimal.NewFromString("0.035")
	principal, _ := decimal.NewFromString("300000")
	account := &debt.Account{
		ID:       uuid.New(),
		FamilyID: familyID,
		Name:     "Mortgage",
		Category: debt.CategoryDebt,
		Terms: debt.LoanTerms{
			Principal:   principal,
			AnnualRate:  decimal.NewNullDecimal(rate),
			TermMonths:  360,
			PaymentType: debt.PaymentFixed,
			AnchorDate:  &anchor,
			AutoUpdate:  true,
		},
		State:     debt.AccrualState{RemainingMonths: 360},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := store.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account.ID
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestCreateAccount_Success(t *testing.T) {
	_, router := newTestRouter(t, debt.NewDate(2025, time.June, 20))

	rec := doJSON(t, router, http.MethodPost, "/api/accounts", CreateAccountRequest{
		FamilyID:    uuid.New().String(),
		Name:        "Car loan",
		Category:    "debt",
		Principal:   "24000",
		AnnualRate:  "0.062",
		TermMonths:  60,
		PaymentType: "fixed",
		AnchorDate:  "2025-01-15",
		AutoUpdate:  true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}

	dto := decode[AccountDTO](t, rec)
	if dto.Name != "Car loan" || dto.Category != "debt" {
		t.Errorf("unexpected account: %+v", dto)
	}
	if dto.RemainingMonths != 60 {
		t.Errorf("expected remaining months seeded from term, got %d", dto.RemainingMonths)
	}
}

func TestCreateAccount_UnknownCategory(t *testing.T) {
	_, router := newTestRouter(t, debt.NewDate(2025, time.June, 20))

	rec := doJSON(t, router, http.MethodPost, "/api/accounts", CreateAccountRequest{
		FamilyID:  uuid.New().String(),
		Name:      "Mystery",
		Category:  "crypto",
		Principal: "100",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCreateAccount_BadPrincipal(t *testing.T) {
	_, router := newTestRouter(t, debt.NewDate(2025, time.June, 20))

	rec := doJSON(t, router, http.MethodPost, "/api/accounts", CreateAccountRequest{
		FamilyID:  uuid.New().String(),
		Name:      "Typo",
		Category:  "debt",
		Principal: "three hundred",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetAccount_NotFound(t *testing.T) {
	_, router := newTestRouter(t, debt.NewDate(2025, time.June, 20))

	rec := doJSON(t, router, http.MethodGet, "/api/accounts/"+uuid.New().String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

// =============================================================================
// BALANCE RECORDS
// =============================================================================

func TestRecordBalance_BecomesCurrentBalance(t *testing.T) {
	store, router := newTestRouter(t, debt.NewDate(2025, time.June, 20))
	accountID := createDebtAccount(t, store, uuid.New())

	rec := doJSON(t, router, http.MethodPost,
		"/api/accounts/"+accountID.String()+"/records",
		RecordBalanceRequest{Amount: "295000", EffectiveDate: "2025-06-01"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}

	dto := decode[BalanceRecordDTO](t, rec)
	if dto.Kind != "manual" {
		t.Errorf("expected manual record, got %s", dto.Kind)
	}

	get := doJSON(t, router, http.MethodGet, "/api/accounts/"+accountID.String(), nil)
	if get.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", get.Code)
	}
	resp := decode[struct {
		CurrentBalance *BalanceRecordDTO `json:"current_balance"`
	}](t, get)
	if resp.CurrentBalance == nil || resp.CurrentBalance.Amount != "295000.00" {
		t.Errorf("expected current balance 295000.00, got %+v", resp.CurrentBalance)
	}
}

// =============================================================================
// ACCRUAL
// =============================================================================

func TestApplyUpdate_Applied(t *testing.T) {
	store, router := newTestRouter(t, debt.NewDate(2025, time.June, 20))
	accountID := createDebtAccount(t, store, uuid.New())

	rec := doJSON(t, router, http.MethodPost, "/api/accounts/"+accountID.String()+"/accrue", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	dto := decode[UpdateResultDTO](t, rec)
	if !dto.Applied {
		t.Fatal("expected applied=true")
	}
	if dto.InterestAdded != "875.00" {
		t.Errorf("expected interest 875.00, got %s", dto.InterestAdded)
	}
	if dto.RemainingMonths != 359 {
		t.Errorf("expected 359 remaining, got %d", dto.RemainingMonths)
	}
}

func TestApplyUpdate_NotYetDue_IsInformational(t *testing.T) {
	// GIVEN: Anchor day 15, today June 10
	// WHEN: Hitting the accrue endpoint
	// THEN: 200 with applied=false and a day countdown, not an error status

	store, router := newTestRouter(t, debt.NewDate(2025, time.June, 10))
	accountID := createDebtAccount(t, store, uuid.New())

	rec := doJSON(t, router, http.MethodPost, "/api/accounts/"+accountID.String()+"/accrue", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	dto := decode[UpdateResultDTO](t, rec)
	if dto.Applied {
		t.Fatal("expected applied=false")
	}
	if dto.DaysRemaining == nil || *dto.DaysRemaining != 5 {
		t.Errorf("expected 5 days remaining, got %v", dto.DaysRemaining)
	}
	if dto.DueDate != "2025-06-15" {
		t.Errorf("expected due 2025-06-15, got %s", dto.DueDate)
	}
}

func TestApplyUpdate_Ineligible(t *testing.T) {
	store, router := newTestRouter(t, debt.NewDate(2025, time.June, 20))
	familyID := uuid.New()
	accountID := createDebtAccount(t, store, familyID)

	// Disable auto-update through the terms endpoint
	upd := doJSON(t, router, http.MethodPut, "/api/accounts/"+accountID.String()+"/terms",
		UpdateTermsRequest{
			Principal:   "300000",
			AnnualRate:  "0.035",
			TermMonths:  360,
			PaymentType: "fixed",
			AnchorDate:  "2025-01-15",
			AutoUpdate:  false,
		})
	if upd.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", upd.Code, upd.Body)
	}

	rec := doJSON(t, router, http.MethodPost, "/api/accounts/"+accountID.String()+"/accrue", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d: %s", rec.Code, rec.Body)
	}
}

func TestRunFamilyUpdates(t *testing.T) {
	store, router := newTestRouter(t, debt.NewDate(2025, time.June, 20))
	familyID := uuid.New()
	createDebtAccount(t, store, familyID)

	rec := doJSON(t, router, http.MethodPost, "/api/families/"+familyID.String()+"/run-updates", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	dto := decode[BatchResultDTO](t, rec)
	if dto.UpdatedCount != 1 {
		t.Errorf("expected 1 update, got %d", dto.UpdatedCount)
	}
}

// =============================================================================
// SCHEDULES AND SUMMARIES
// =============================================================================

func TestGetSchedule(t *testing.T) {
	store, router := newTestRouter(t, debt.NewDate(2025, time.June, 20))
	accountID := createDebtAccount(t, store, uuid.New())

	rec := doJSON(t, router, http.MethodGet, "/api/accounts/"+accountID.String()+"/schedule", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	dto := decode[ScheduleDTO](t, rec)
	if len(dto.Payments) == 0 {
		t.Fatal("expected schedule rows")
	}
	if dto.Payments[0].Interest != "875.00" {
		t.Errorf("expected first-month interest 875.00, got %s", dto.Payments[0].Interest)
	}
}

func TestGetNextPayment(t *testing.T) {
	store, router := newTestRouter(t, debt.NewDate(2025, time.June, 20))
	accountID := createDebtAccount(t, store, uuid.New())

	rec := doJSON(t, router, http.MethodGet, "/api/accounts/"+accountID.String()+"/next-payment", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	dto := decode[PaymentDTO](t, rec)
	if dto.Interest != "875.00" {
		t.Errorf("expected interest 875.00, got %s", dto.Interest)
	}
	if dto.Date != "2025-07-15" {
		t.Errorf("expected date 2025-07-15, got %s", dto.Date)
	}
}

func TestDebtSummaries(t *testing.T) {
	store, router := newTestRouter(t, debt.NewDate(2025, time.June, 20))
	familyID := uuid.New()
	createDebtAccount(t, store, familyID)

	rec := doJSON(t, router, http.MethodGet, "/api/families/"+familyID.String()+"/debt-summaries", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	dtos := decode[[]DebtSummaryDTO](t, rec)
	if len(dtos) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(dtos))
	}
	if dtos[0].CurrentBalance != "300000.00" {
		t.Errorf("expected balance 300000.00, got %s", dtos[0].CurrentBalance)
	}
}

func TestHealth(t *testing.T) {
	_, router := newTestRouter(t, debt.NewDate(2025, time.June, 20))

	rec := doJSON(t, router, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
