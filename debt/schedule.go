/*
schedule.go - Pure amortization schedule calculator

PURPOSE:
  Computes loan payment schedules and single-step payment projections.
  No I/O, fully deterministic: given the same terms, balance, and asOf
  date, the output is identical. The accrual engine reuses MonthlyRate
  so projected and applied interest always agree.

PAYMENT TYPES:
  PaymentFixed:
    Annuity-style. Constant total payment, interest computed on the
    running balance, remainder reduces principal. The final period snaps
    principal to the exact remaining balance so the schedule terminates
    at zero, never negative.

  PaymentInterestOnly:
    Payment equals interest every period. Principal never decreases, so
    the schedule runs the full remaining term.

RE-AMORTIZATION POLICY:
  When MonthlyPayment is unset on a fixed loan, the payment is derived
  from the CURRENT balance over the REMAINING months - not from the
  original principal and term. A loan that received extra manual payments
  re-amortizes cheaper; one that accrued unpaid interest re-amortizes
  dearer. Do not conflate the two bases.

PRECISION:
  Full decimal precision through every intermediate step. Two-decimal
  rounding happens only at presentation boundaries (api/dto.go, debtctl).

SEE ALSO:
  - calendar.go: AddOneMonthClamped for projected payment dates
  - accrual.go: Applies one period of this math to real state
*/
package debt

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	// Epsilon treats near-zero balances as fully paid off.
	Epsilon = decimal.NewFromFloat(0.01)

	monthsPerYear = decimal.NewFromInt(12)
)

// MonthlyRate converts an annual rate fraction to a monthly rate. One rate
// per calendar month; no day-count convention. No rounding - the caller
// controls money rounding.
func MonthlyRate(annualRate decimal.Decimal) decimal.Decimal {
	return annualRate.Div(monthsPerYear)
}

// FixedMonthlyPayment computes the standard annuity payment:
//
//	payment = P * r * (1+r)^n / ((1+r)^n - 1)
//
// where r is the monthly rate and n the term in months. A zero rate
// degrades to straight-line principal/termMonths, where the annuity
// formula is undefined.
//
// The power term is computed in float64 (decimal exponentiation of
// non-integer bases is not worth the cost here), then converted back for
// monetary arithmetic.
func FixedMonthlyPayment(principal, annualRate decimal.Decimal, termMonths int) decimal.Decimal {
	if termMonths <= 0 {
		return decimal.Zero
	}
	if annualRate.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(termMonths)))
	}

	r := MonthlyRate(annualRate).InexactFloat64()
	factor := math.Pow(1+r, float64(termMonths))
	payment := principal.InexactFloat64() * r * factor / (factor - 1)
	return decimal.NewFromFloat(payment)
}

// GenerateSchedule projects the full forward amortization table starting
// today. See GenerateScheduleAsOf.
func GenerateSchedule(terms LoanTerms, currentBalance decimal.Decimal, remainingMonths int) *Schedule {
	return GenerateScheduleAsOf(terms, currentBalance, remainingMonths, Today())
}

// GenerateScheduleAsOf projects the amortization table forward from asOf.
//
// Returns nil when the account is not eligible: no rate configured, or no
// months remaining. The starting balance is currentBalance when positive,
// else the original principal. Payment dates follow the anchor's
// day-of-month clamped to each month's length; when no anchor is set the
// asOf day is used.
//
// The schedule may terminate before remainingMonths periods once the
// balance falls within Epsilon of zero. That is expected, not an error.
func GenerateScheduleAsOf(terms LoanTerms, currentBalance decimal.Decimal, remainingMonths int, asOf Date) *Schedule {
	if !terms.HasRate() || remainingMonths <= 0 {
		return nil
	}

	balance := currentBalance
	if !balance.IsPositive() {
		balance = terms.Principal
	}

	rate := MonthlyRate(terms.AnnualRate.Decimal)

	monthly := decimal.Zero
	if terms.MonthlyPayment.Valid {
		monthly = terms.MonthlyPayment.Decimal
	} else if terms.PaymentType == PaymentFixed {
		// Re-amortize on the current balance and remaining months.
		monthly = FixedMonthlyPayment(balance, terms.AnnualRate.Decimal, remainingMonths)
	}

	anchorDay := asOf.Day()
	if terms.AnchorDate != nil {
		anchorDay = terms.AnchorDate.Day()
	}

	sched := &Schedule{MonthlyPayment: monthly}
	cumInterest := decimal.Zero
	cumPrincipal := decimal.Zero
	// Seed the chain at this month's billing date so projected payments
	// land on the anchor's day, not on asOf's.
	due := BillingDate(asOf.Year(), asOf.Month(), anchorDay)

	for period := 1; period <= remainingMonths && balance.GreaterThan(Epsilon); period++ {
		interest := balance.Mul(rate)

		var principalPart, total decimal.Decimal
		if terms.PaymentType == PaymentInterestOnly {
			principalPart = decimal.Zero
			total = interest
		} else {
			total = monthly
			principalPart = total.Sub(interest)
			if principalPart.GreaterThan(balance) {
				principalPart = balance
			}
			// Final-payment correction: when the post-payment balance
			// would land inside Epsilon, pay the balance off exactly.
			if balance.Sub(principalPart).LessThanOrEqual(Epsilon) {
				principalPart = balance
				total = principalPart.Add(interest)
			}
		}

		balance = balance.Sub(principalPart)
		cumInterest = cumInterest.Add(interest)
		cumPrincipal = cumPrincipal.Add(principalPart)
		due = due.AddOneMonthClamped(anchorDay)

		sched.Payments = append(sched.Payments, Payment{
			Period:              period,
			Date:                due,
			Principal:           principalPart,
			Interest:            interest,
			Total:               total,
			RemainingBalance:    balance,
			CumulativeInterest:  cumInterest,
			CumulativePrincipal: cumPrincipal,
		})
	}

	sched.TotalInterest = cumInterest
	sched.TotalPrincipal = cumPrincipal
	sched.TotalPaid = cumInterest.Add(cumPrincipal)
	return sched
}

// NextPayment projects the single payment one month ahead of today. See
// NextPaymentAsOf.
func NextPayment(terms LoanTerms, currentBalance decimal.Decimal) *Payment {
	return NextPaymentAsOf(terms, currentBalance, Today())
}

// NextPaymentAsOf is a one-period look-ahead using the same split rules as
// the full schedule, without the final-payment snap-to-zero correction.
// Returns nil when no rate is configured.
func NextPaymentAsOf(terms LoanTerms, currentBalance decimal.Decimal, asOf Date) *Payment {
	if !terms.HasRate() {
		return nil
	}

	balance := currentBalance
	if !balance.IsPositive() {
		balance = terms.Principal
	}

	interest := balance.Mul(MonthlyRate(terms.AnnualRate.Decimal))

	var principalPart, total decimal.Decimal
	if terms.PaymentType == PaymentInterestOnly {
		principalPart = decimal.Zero
		total = interest
	} else {
		if terms.MonthlyPayment.Valid {
			total = terms.MonthlyPayment.Decimal
		} else {
			total = FixedMonthlyPayment(balance, terms.AnnualRate.Decimal, terms.TermMonths)
		}
		principalPart = total.Sub(interest)
		if principalPart.GreaterThan(balance) {
			principalPart = balance
		}
	}

	anchorDay := asOf.Day()
	if terms.AnchorDate != nil {
		anchorDay = terms.AnchorDate.Day()
	}

	return &Payment{
		Period:              1,
		Date:                BillingDate(asOf.Year(), asOf.Month(), anchorDay).AddOneMonthClamped(anchorDay),
		Principal:           principalPart,
		Interest:            interest,
		Total:               total,
		RemainingBalance:    balance.Sub(principalPart),
		CumulativeInterest:  interest,
		CumulativePrincipal: principalPart,
	}
}
