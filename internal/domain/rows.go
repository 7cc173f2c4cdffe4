package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanRow is one loan as read from the source workbook.
type LoanRow struct {
	Row                    int             `json:"row"`
	ExternalID             string          `json:"external_id" validate:"required"`
	BorrowerName           string          `json:"borrower_name"`
	BorrowerPhone          string          `json:"borrower_phone"`
	GuarantorName          string          `json:"guarantor_name"`
	GuarantorPhone         string          `json:"guarantor_phone"`
	SignDate               time.Time       `json:"sign_date" validate:"required"`
	AmountGiven            decimal.Decimal `json:"amount_given" validate:"gte=0"`
	RequestedAmount        decimal.Decimal `json:"requested_amount" validate:"gte=0"`
	WeekDuration           int             `json:"week_duration" validate:"gte=0"`
	Rate                   decimal.Decimal `json:"rate" validate:"gte=0"`
	LeadExternalID         string          `json:"lead_external_id"`
	PreviousLoanExternalID string          `json:"previous_loan_external_id"`
	BadDebtDate            *time.Time      `json:"bad_debt_date,omitempty"`
}

// IsRenewal reports whether the row names a predecessor loan.
func (r LoanRow) IsRenewal() bool {
	return r.PreviousLoanExternalID != ""
}

type PaymentRow struct {
	Row            int             `json:"row"`
	LoanExternalID string          `json:"loan_external_id" validate:"required"`
	ReceivedAt     time.Time       `json:"received_at" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"gt=0"`
	Type           string          `json:"type"`
	Description    string          `json:"description"`
}

type ExpenseRow struct {
	Row         int             `json:"row"`
	Date        time.Time       `json:"date" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Concept     string          `json:"concept"`
	Description string          `json:"description"`
}

type PayrollRow struct {
	Row            int             `json:"row"`
	Date           time.Time       `json:"date" validate:"required"`
	LeadExternalID string          `json:"lead_external_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"gt=0"`
	Description    string          `json:"description"`
}

type LeadRow struct {
	Row        int    `json:"row"`
	ExternalID string `json:"external_id" validate:"required"`
	FullName   string `json:"full_name" validate:"required"`
	Phone      string `json:"phone"`
	Type       string `json:"type"`
}
