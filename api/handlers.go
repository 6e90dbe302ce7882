/*
handlers.go - HTTP request handlers

PURPOSE:
  Implements all API endpoints. Handlers follow a consistent pattern:
  1. Parse and validate request
  2. Call domain logic (engine, store)
  3. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Account not found (or wrong category)
  - 422: Account not eligible / missing anchor
  - 500: Storage errors

  NotYetDue is NOT an error to clients: ApplyUpdate answers 200 with
  applied=false and a days-remaining countdown.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/debt-engine/debt"
	"github.com/warp/debt-engine/id"
)

// Storage is everything the HTTP layer needs from persistence.
type Storage interface {
	debt.TxStore
	debt.AccountStore
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  Storage
	Engine *debt.Engine
}

// NewHandler creates a handler over the given store and accrual engine.
func NewHandler(store Storage, engine *debt.Engine) *Handler {
	return &Handler{Store: store, Engine: engine}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// CreateAccount creates an account.
// POST /api/accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	familyID, err := uuid.Parse(req.FamilyID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid family_id", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}

	category := debt.Category(req.Category)
	switch category {
	case debt.CategoryBank, debt.CategoryInvestment, debt.CategoryDebt:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown category %q", req.Category), nil)
		return
	}

	terms, err := termsFromRequest(req.Principal, req.AnnualRate, req.TermMonths,
		req.PaymentType, req.MonthlyPayment, req.AnchorDate, req.AutoUpdate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loan terms", err)
		return
	}

	account := &debt.Account{
		ID:        uuid.New(),
		FamilyID:  familyID,
		Name:      req.Name,
		Category:  category,
		Terms:     terms,
		State:     debt.AccrualState{RemainingMonths: terms.TermMonths},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := h.Store.CreateAccount(r.Context(), account); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(account))
}

// GetAccount returns a single account with its current balance.
// GET /api/accounts/{id}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	snap, err := h.Store.GetAccountWithCurrentBalance(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, debt.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "Account not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load account", err)
		return
	}

	resp := struct {
		Account        AccountDTO        `json:"account"`
		CurrentBalance *BalanceRecordDTO `json:"current_balance,omitempty"`
	}{Account: toAccountDTO(snap.Account)}
	if snap.CurrentBalance != nil {
		dto := toRecordDTO(*snap.CurrentBalance)
		resp.CurrentBalance = &dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListAccounts returns all accounts for a family.
// GET /api/families/{familyID}/accounts
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	familyID, ok := pathUUID(w, r, "familyID")
	if !ok {
		return
	}

	accounts, err := h.Store.ListAccounts(r.Context(), familyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdateTerms replaces an account's loan terms.
// PUT /api/accounts/{id}/terms
func (h *Handler) UpdateTerms(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateTermsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	terms, err := termsFromRequest(req.Principal, req.AnnualRate, req.TermMonths,
		req.PaymentType, req.MonthlyPayment, req.AnchorDate, req.AutoUpdate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loan terms", err)
		return
	}

	if err := h.Store.UpdateLoanTerms(r.Context(), accountID, terms); err != nil {
		if errors.Is(err, debt.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "Account not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update terms", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// BALANCE LEDGER HANDLERS
// =============================================================================

// ListBalanceRecords returns an account's full balance history.
// GET /api/accounts/{id}/records
func (h *Handler) ListBalanceRecords(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	records, err := h.Store.RecordsForAccount(r.Context(), accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list records", err)
		return
	}

	dtos := make([]BalanceRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RecordBalance appends a manual balance record. This is the path that
// registers real-world payments against auto-accrued debts.
// POST /api/accounts/{id}/records
func (h *Handler) RecordBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req RecordBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	effective := debt.Today()
	if req.EffectiveDate != "" {
		if effective, err = debt.ParseDate(req.EffectiveDate); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid effective_date", err)
			return
		}
	}

	record := debt.BalanceRecord{
		ID:            id.New(),
		AccountID:     accountID,
		Amount:        amount,
		EffectiveDate: effective,
		Kind:          debt.RecordManual,
		CreatedAt:     time.Now().UTC(),
	}

	if _, err := h.Store.InsertBalanceRecord(r.Context(), record); err != nil {
		if errors.Is(err, debt.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "Account not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to insert record", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordDTO(record))
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// GetSchedule returns the forward amortization schedule.
// GET /api/accounts/{id}/schedule
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	snap, err := h.Store.GetAccountWithCurrentBalance(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, debt.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "Account not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load account", err)
		return
	}

	balance := snap.Account.Terms.Principal
	if snap.CurrentBalance != nil {
		balance = snap.CurrentBalance.Amount
	}

	sched := debt.GenerateSchedule(snap.Account.Terms, balance, snap.Account.State.RemainingMonths)
	if sched == nil {
		writeError(w, http.StatusUnprocessableEntity,
			"Schedule unavailable: no interest rate configured or no months remaining", nil)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(sched))
}

// GetNextPayment returns the one-month look-ahead projection.
// GET /api/accounts/{id}/next-payment
func (h *Handler) GetNextPayment(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	snap, err := h.Store.GetAccountWithCurrentBalance(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, debt.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "Account not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load account", err)
		return
	}

	balance := snap.Account.Terms.Principal
	if snap.CurrentBalance != nil {
		balance = snap.CurrentBalance.Amount
	}

	payment := debt.NextPayment(snap.Account.Terms, balance)
	if payment == nil {
		writeError(w, http.StatusUnprocessableEntity,
			"Projection unavailable: no interest rate configured", nil)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(*payment))
}

// =============================================================================
// ACCRUAL HANDLERS
// =============================================================================

// ApplyUpdate applies one monthly accrual to an account.
// POST /api/accounts/{id}/accrue
func (h *Handler) ApplyUpdate(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.Engine.ApplyMonthlyUpdate(r.Context(), accountID)
	if err != nil {
		var notYet *debt.NotYetDueError
		switch {
		case errors.As(err, &notYet):
			// Informational: a countdown, not an error banner.
			days := notYet.DaysRemaining
			writeJSON(w, http.StatusOK, UpdateResultDTO{
				AccountID:     accountID.String(),
				Applied:       false,
				DueDate:       notYet.DueDate.String(),
				DaysRemaining: &days,
			})
		case errors.Is(err, debt.ErrAccountNotFound):
			writeError(w, http.StatusNotFound, "Account not found", err)
		case debt.IsClientError(err):
			writeError(w, http.StatusUnprocessableEntity, "Account not eligible", err)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to apply update", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, UpdateResultDTO{
		AccountID:       result.AccountID.String(),
		Applied:         true,
		DueDate:         result.DueDate.String(),
		NewBalance:      money(result.NewBalance),
		InterestAdded:   money(result.InterestAdded),
		RemainingMonths: result.RemainingMonths,
	})
}

// RunFamilyUpdates applies pending accruals to all eligible debt accounts.
// POST /api/families/{familyID}/run-updates
func (h *Handler) RunFamilyUpdates(w http.ResponseWriter, r *http.Request) {
	familyID, ok := pathUUID(w, r, "familyID")
	if !ok {
		return
	}

	result, err := h.Engine.RunMonthlyUpdatesForFamily(r.Context(), familyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to run updates", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(result))
}

// DebtSummaries returns the dashboard aggregation for a family's debts.
// GET /api/families/{familyID}/debt-summaries
func (h *Handler) DebtSummaries(w http.ResponseWriter, r *http.Request) {
	familyID, ok := pathUUID(w, r, "familyID")
	if !ok {
		return
	}

	summaries, err := h.Engine.DebtSummaries(r.Context(), familyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build summaries", err)
		return
	}

	dtos := make([]DebtSummaryDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = toSummaryDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Health is a liveness probe.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, param)
	parsed, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", param), err)
		return uuid.Nil, false
	}
	return parsed, true
}

func termsFromRequest(principal, annualRate string, termMonths int,
	paymentType, monthlyPayment, anchorDate string, autoUpdate bool) (debt.LoanTerms, error) {

	terms := debt.LoanTerms{
		TermMonths:  termMonths,
		PaymentType: debt.PaymentFixed,
		AutoUpdate:  autoUpdate,
	}

	var err error
	if terms.Principal, err = decimal.NewFromString(principal); err != nil {
		return terms, fmt.Errorf("invalid principal %q: %w", principal, err)
	}
	if annualRate != "" {
		rate, err := decimal.NewFromString(annualRate)
		if err != nil {
			return terms, fmt.Errorf("invalid annual_rate %q: %w", annualRate, err)
		}
		terms.AnnualRate = decimal.NewNullDecimal(rate)
	}
	if paymentType != "" {
		switch pt := debt.PaymentType(paymentType); pt {
		case debt.PaymentFixed, debt.PaymentInterestOnly:
			terms.PaymentType = pt
		default:
			return terms, fmt.Errorf("unknown payment_type %q", paymentType)
		}
	}
	if monthlyPayment != "" {
		payment, err := decimal.NewFromString(monthlyPayment)
		if err != nil {
			return terms, fmt.Errorf("invalid monthly_payment %q: %w", monthlyPayment, err)
		}
		terms.MonthlyPayment = decimal.NewNullDecimal(payment)
	}
	if anchorDate != "" {
		anchor, err := debt.ParseDate(anchorDate)
		if err != nil {
			return terms, fmt.Errorf("invalid anchor_date %q: %w", anchorDate, err)
		}
		terms.AnchorDate = &anchor
	}
	return terms, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
