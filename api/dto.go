/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  domain model from the external contract. Money crosses this boundary
  as strings with two-decimal display rounding; the domain layer keeps
  full decimal precision internally.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/debt-engine/debt"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateAccountRequest creates an account. Money and rate fields are
// decimal strings ("250000", "0.035"); empty string = unset.
type CreateAccountRequest struct {
	FamilyID       string `json:"family_id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	Principal      string `json:"principal"`
	AnnualRate     string `json:"annual_rate,omitempty"`
	TermMonths     int    `json:"term_months,omitempty"`
	PaymentType    string `json:"payment_type,omitempty"`
	MonthlyPayment string `json:"monthly_payment,omitempty"`
	AnchorDate     string `json:"anchor_date,omitempty"`
	AutoUpdate     bool   `json:"auto_update"`
}

// UpdateTermsRequest replaces a debt account's loan terms.
type UpdateTermsRequest struct {
	Principal      string `json:"principal"`
	AnnualRate     string `json:"annual_rate,omitempty"`
	TermMonths     int    `json:"term_months,omitempty"`
	PaymentType    string `json:"payment_type,omitempty"`
	MonthlyPayment string `json:"monthly_payment,omitempty"`
	AnchorDate     string `json:"anchor_date,omitempty"`
	AutoUpdate     bool   `json:"auto_update"`
}

// RecordBalanceRequest appends a manual balance record.
type RecordBalanceRequest struct {
	Amount        string `json:"amount"`
	EffectiveDate string `json:"effective_date,omitempty"` // defaults to today
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type AccountDTO struct {
	ID              string `json:"id"`
	FamilyID        string `json:"family_id"`
	Name            string `json:"name"`
	Category        string `json:"category"`
	Principal       string `json:"principal"`
	AnnualRate      string `json:"annual_rate,omitempty"`
	TermMonths      int    `json:"term_months,omitempty"`
	PaymentType     string `json:"payment_type,omitempty"`
	MonthlyPayment  string `json:"monthly_payment,omitempty"`
	AnchorDate      string `json:"anchor_date,omitempty"`
	AutoUpdate      bool   `json:"auto_update"`
	RemainingMonths int    `json:"remaining_months"`
	LastAccrualDate string `json:"last_accrual_date,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
}

type BalanceRecordDTO struct {
	ID                string `json:"id"`
	AccountID         string `json:"account_id"`
	Amount            string `json:"amount"`
	EffectiveDate     string `json:"effective_date"`
	Kind              string `json:"kind"`
	InterestComponent string `json:"interest_component,omitempty"`
	CreatedAt         string `json:"created_at"`
}

type PaymentDTO struct {
	Period              int    `json:"period"`
	Date                string `json:"date"`
	Principal           string `json:"principal"`
	Interest            string `json:"interest"`
	Total               string `json:"total"`
	RemainingBalance    string `json:"remaining_balance"`
	CumulativeInterest  string `json:"cumulative_interest"`
	CumulativePrincipal string `json:"cumulative_principal"`
}

type ScheduleDTO struct {
	MonthlyPayment string       `json:"monthly_payment"`
	TotalInterest  string       `json:"total_interest"`
	TotalPrincipal string       `json:"total_principal"`
	TotalPaid      string       `json:"total_paid"`
	Payments       []PaymentDTO `json:"payments"`
}

type UpdateResultDTO struct {
	AccountID       string `json:"account_id"`
	Applied         bool   `json:"applied"`
	DueDate         string `json:"due_date,omitempty"`
	NewBalance      string `json:"new_balance,omitempty"`
	InterestAdded   string `json:"interest_added,omitempty"`
	RemainingMonths int    `json:"remaining_months,omitempty"`

	// Set instead of the amounts when the update is not yet due.
	DaysRemaining *int `json:"days_remaining,omitempty"`
}

type BatchErrorDTO struct {
	AccountID string `json:"account_id"`
	Error     string `json:"error"`
}

type BatchResultDTO struct {
	UpdatedCount int               `json:"updated_count"`
	Results      []UpdateResultDTO `json:"results"`
	Errors       []BatchErrorDTO   `json:"errors"`
}

type DebtSummaryDTO struct {
	AccountID              string      `json:"account_id"`
	Name                   string      `json:"name"`
	CurrentBalance         string      `json:"current_balance"`
	RemainingMonths        int         `json:"remaining_months"`
	NextPayment            *PaymentDTO `json:"next_payment,omitempty"`
	PayoffDate             string      `json:"payoff_date,omitempty"`
	TotalInterestRemaining string      `json:"total_interest_remaining"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS - two-decimal rounding happens here, nowhere deeper
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func toAccountDTO(a *debt.Account) AccountDTO {
	dto := AccountDTO{
		ID:              a.ID.String(),
		FamilyID:        a.FamilyID.String(),
		Name:            a.Name,
		Category:        string(a.Category),
		Principal:       money(a.Terms.Principal),
		TermMonths:      a.Terms.TermMonths,
		PaymentType:     string(a.Terms.PaymentType),
		AutoUpdate:      a.Terms.AutoUpdate,
		RemainingMonths: a.State.RemainingMonths,
		CreatedAt:       a.CreatedAt.Format(time.RFC3339),
	}
	if a.Terms.AnnualRate.Valid {
		dto.AnnualRate = a.Terms.AnnualRate.Decimal.String()
	}
	if a.Terms.MonthlyPayment.Valid {
		dto.MonthlyPayment = money(a.Terms.MonthlyPayment.Decimal)
	}
	if a.Terms.AnchorDate != nil {
		dto.AnchorDate = a.Terms.AnchorDate.String()
	}
	if a.State.LastAccrualDate != nil {
		dto.LastAccrualDate = a.State.LastAccrualDate.String()
	}
	return dto
}

func toRecordDTO(rec debt.BalanceRecord) BalanceRecordDTO {
	dto := BalanceRecordDTO{
		ID:            rec.ID,
		AccountID:     rec.AccountID.String(),
		Amount:        money(rec.Amount),
		EffectiveDate: rec.EffectiveDate.String(),
		Kind:          string(rec.Kind),
		CreatedAt:     rec.CreatedAt.Format(time.RFC3339),
	}
	if rec.InterestComponent.Valid {
		dto.InterestComponent = money(rec.InterestComponent.Decimal)
	}
	return dto
}

func toPaymentDTO(p debt.Payment) PaymentDTO {
	return PaymentDTO{
		Period:              p.Period,
		Date:                p.Date.String(),
		Principal:           money(p.Principal),
		Interest:            money(p.Interest),
		Total:               money(p.Total),
		RemainingBalance:    money(p.RemainingBalance),
		CumulativeInterest:  money(p.CumulativeInterest),
		CumulativePrincipal: money(p.CumulativePrincipal),
	}
}

func toScheduleDTO(s *debt.Schedule) ScheduleDTO {
	dto := ScheduleDTO{
		MonthlyPayment: money(s.MonthlyPayment),
		TotalInterest:  money(s.TotalInterest),
		TotalPrincipal: money(s.TotalPrincipal),
		TotalPaid:      money(s.TotalPaid),
		Payments:       make([]PaymentDTO, len(s.Payments)),
	}
	for i, p := range s.Payments {
		dto.Payments[i] = toPaymentDTO(p)
	}
	return dto
}

func toSummaryDTO(s debt.DebtSummary) DebtSummaryDTO {
	dto := DebtSummaryDTO{
		AccountID:              s.AccountID.String(),
		Name:                   s.Name,
		CurrentBalance:         money(s.CurrentBalance),
		RemainingMonths:        s.RemainingMonths,
		TotalInterestRemaining: money(s.TotalInterestRemaining),
	}
	if s.NextPayment != nil {
		p := toPaymentDTO(*s.NextPayment)
		dto.NextPayment = &p
	}
	if s.PayoffDate != nil {
		dto.PayoffDate = s.PayoffDate.String()
	}
	return dto
}

func toBatchDTO(b *debt.BatchResult) BatchResultDTO {
	dto := BatchResultDTO{
		UpdatedCount: b.UpdatedCount,
		Results:      []UpdateResultDTO{},
		Errors:       []BatchErrorDTO{},
	}
	for _, res := range b.Results {
		dto.Results = append(dto.Results, UpdateResultDTO{
			AccountID:       res.AccountID.String(),
			Applied:         true,
			DueDate:         res.DueDate.String(),
			NewBalance:      money(res.NewBalance),
			InterestAdded:   money(res.InterestAdded),
			RemainingMonths: res.RemainingMonths,
		})
	}
	for _, be := range b.Errors {
		dto.Errors = append(dto.Errors, BatchErrorDTO{
			AccountID: be.AccountID.String(),
			Error:     be.Err.Error(),
		})
	}
	return dto
}
