/*
Package factory provides JSON to Go loan conversion.

PURPOSE:
  Converts JSON loan definitions into debt.Account objects. This enables
  loan setup without code changes - a frontend or import script can define
  loans in JSON, and the factory creates the proper Go structs.

WHY JSON?
  - Easy integration with the web UI
  - Bulk import of existing debts
  - Version control for demo data sets

JSON SCHEMA:
  {
    "name": "Mortgage",
    "category": "debt",
    "principal": "300000",
    "annual_rate": "0.035",
    "term_months": 360,
    "payment_type": "fixed",
    "anchor_date": "2024-01-15",
    "auto_update": true
  }

KEY FEATURES:
  - Validates JSON structure and money fields
  - Sets sensible defaults (payment_type fixed, remaining = term)
  - Ships demo presets for seeding a fresh database

USAGE:
  account, err := factory.ParseLoan(familyID, jsonString)

  // Or use the demo presets
  accounts := factory.DemoLoans(familyID)

SEE ALSO:
  - debt/types.go: Account and LoanTerms definitions
  - cmd/debtctl/cmd/seed.go: Seeding a database with the presets
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/debt-engine/debt"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// LoanJSON is the JSON representation of a loan account.
type LoanJSON struct {
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

// ParseLoan converts a JSON loan definition into an Account for the
// given family. Remaining months start at the full term.
func ParseLoan(familyID uuid.UUID, jsonStr string) (*debt.Account, error) {
	var def LoanJSON
	if err := json.Unmarshal([]byte(jsonStr), &def); err != nil {
		return nil, fmt.Errorf("invalid loan JSON: %w", err)
	}
	return FromDefinition(familyID, def)
}

// FromDefinition converts an already-decoded definition into an Account.
func FromDefinition(familyID uuid.UUID, def LoanJSON) (*debt.Account, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("loan name is required")
	}

	category := debt.CategoryDebt
	if def.Category != "" {
		category = debt.Category(def.Category)
		switch category {
		case debt.CategoryBank, debt.CategoryInvestment, debt.CategoryDebt:
		default:
			return nil, fmt.Errorf("unknown category %q", def.Category)
		}
	}

	principal, err := decimal.NewFromString(def.Principal)
	if err != nil {
		return nil, fmt.Errorf("invalid principal %q: %w", def.Principal, err)
	}

	terms := debt.LoanTerms{
		Principal:   principal,
		TermMonths:  def.TermMonths,
		PaymentType: debt.PaymentFixed,
		AutoUpdate:  def.AutoUpdate,
	}

	if def.AnnualRate != "" {
		rate, err := decimal.NewFromString(def.AnnualRate)
		if err != nil {
			return nil, fmt.Errorf("invalid annual_rate %q: %w", def.AnnualRate, err)
		}
		terms.AnnualRate = decimal.NewNullDecimal(rate)
	}
	if def.PaymentType != "" {
		switch pt := debt.PaymentType(def.PaymentType); pt {
		case debt.PaymentFixed, debt.PaymentInterestOnly:
			terms.PaymentType = pt
		default:
			return nil, fmt.Errorf("unknown payment_type %q", def.PaymentType)
		}
	}
	if def.MonthlyPayment != "" {
		payment, err := decimal.NewFromString(def.MonthlyPayment)
		if err != nil {
			return nil, fmt.Errorf("invalid monthly_payment %q: %w", def.MonthlyPayment, err)
		}
		terms.MonthlyPayment = decimal.NewNullDecimal(payment)
	}
	if def.AnchorDate != "" {
		anchor, err := debt.ParseDate(def.AnchorDate)
		if err != nil {
			return nil, fmt.Errorf("invalid anchor_date %q: %w", def.AnchorDate, err)
		}
		terms.AnchorDate = &anchor
	}

	now := time.Now().UTC()
	return &debt.Account{
		ID:        uuid.New(),
		FamilyID:  familyID,
		Name:      def.Name,
		Category:  category,
		Terms:     terms,
		State:     debt.AccrualState{RemainingMonths: terms.TermMonths},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// =============================================================================
// DEMO PRESETS
// =============================================================================

// DemoLoans returns a representative set of household debts for seeding
// a fresh database. Anchor dates are set so the first accrual is due on
// the 15th of the current or next month.
func DemoLoans(familyID uuid.UUID) []*debt.Account {
	today := debt.Today()
	anchor := debt.NewDate(today.Year(), today.Month(), 15)

	defs := []LoanJSON{
		{
			Name:       "Mortgage",
			Category:   "debt",
			Principal:  "300000",
			AnnualRate: "0.035",
			TermMonths: 360,
			AnchorDate: anchor.String(),
			AutoUpdate: true,
		},
		{
			Name:       "Car loan",
			Category:   "debt",
			Principal:  "24000",
			AnnualRate: "0.062",
			TermMonths: 60,
			AnchorDate: anchor.String(),
			AutoUpdate: true,
		},
		{
			Name:        "HELOC",
			Category:    "debt",
			Principal:   "50000",
			AnnualRate:  "0.075",
			TermMonths:  120,
			PaymentType: "interest_only",
			AnchorDate:  anchor.String(),
			AutoUpdate:  true,
		},
		{
			Name:       "Family loan",
			Category:   "debt",
			Principal:  "10000",
			AnnualRate: "0",
			TermMonths: 48,
			AnchorDate: anchor.String(),
			AutoUpdate: true,
		},
	}

	accounts := make([]*debt.Account, 0, len(defs))
	for _, def := range defs {
		account, err := FromDefinition(familyID, def)
		if err != nil {
			// presets are static; a bad one is a programming error
			panic(err)
		}
		accounts = append(accounts, account)
	}
	return accounts
}
