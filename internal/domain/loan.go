package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	LoanStatusActive   = "ACTIVE"
	LoanStatusFinished = "FINISHED"
)

// Loan represents a persisted loan. Rate and WeekDuration are read from the
// joined loan type and are never written back.
type Loan struct {
	ID                    uuid.UUID       `json:"id" db:"id"`
	ExternalID            string          `json:"external_id" db:"external_id"`
	BorrowerID            uuid.UUID       `json:"borrower_id" db:"borrower_id"`
	LeadID                uuid.UUID       `json:"lead_id" db:"lead_id"`
	LoanTypeID            uuid.UUID       `json:"loan_type_id" db:"loan_type_id"`
	RouteID               uuid.UUID       `json:"route_id" db:"route_id"`
	SignDate              time.Time       `json:"sign_date" db:"sign_date"`
	AmountGiven           decimal.Decimal `json:"amount_given" db:"amount_given"`
	RequestedAmount       decimal.Decimal `json:"requested_amount" db:"requested_amount"`
	ProfitAmount          decimal.Decimal `json:"profit_amount" db:"profit_amount"`
	PreviousLoanID        *uuid.UUID      `json:"previous_loan_id,omitempty" db:"previous_loan_id"`
	BadDebtDate           *time.Time      `json:"bad_debt_date,omitempty" db:"bad_debt_date"`
	FinishedDate          *time.Time      `json:"finished_date,omitempty" db:"finished_date"`
	Status                string          `json:"status" db:"status"`
	TotalDebtAcquired     decimal.Decimal `json:"total_debt_acquired" db:"total_debt_acquired"`
	ExpectedWeeklyPayment decimal.Decimal `json:"expected_weekly_payment" db:"expected_weekly_payment"`
	TotalPaid             decimal.Decimal `json:"total_paid" db:"total_paid"`
	PendingAmountStored   decimal.Decimal `json:"pending_amount_stored" db:"pending_amount_stored"`
	Rate                  decimal.Decimal `json:"rate" db:"rate"`
	WeekDuration          int             `json:"week_duration" db:"week_duration"`
	CreatedAt             time.Time       `json:"created_at" db:"created_at"`

	RouteSnapshot
}

// LoanType is an immutable (weeks, rate) pair.
type LoanType struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	Name                 string          `json:"name" db:"name"`
	WeekDuration         int             `json:"week_duration" db:"week_duration"`
	Rate                 decimal.Decimal `json:"rate" db:"rate"`
	LoanGrantedComission decimal.Decimal `json:"loan_granted_comission" db:"loan_granted_comission"`
	LoanPaymentComission decimal.Decimal `json:"loan_payment_comission" db:"loan_payment_comission"`
}

// LoanLifecycleUpdate carries the denormalized fields and terminal state
// written by the lifecycle pass.
type LoanLifecycleUpdate struct {
	LoanID                uuid.UUID
	Status                string
	FinishedDate          *time.Time
	TotalDebtAcquired     decimal.Decimal
	ExpectedWeeklyPayment decimal.Decimal
	TotalPaid             decimal.Decimal
	PendingAmountStored   decimal.Decimal
}

// PaymentStats aggregates the payments of one loan.
type PaymentStats struct {
	LoanID        uuid.UUID       `db:"loan_id"`
	TotalPaid     decimal.Decimal `db:"total_paid"`
	LastPaymentAt *time.Time      `db:"last_payment_at"`
	Count         int             `db:"payment_count"`
}

// WriteOff is a loss booked in place of a loan whose borrower carries the
// write-off marker.
type WriteOff struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	ExternalID    string          `json:"external_id" db:"external_id"`
	RouteID       uuid.UUID       `json:"route_id" db:"route_id"`
	BorrowerName  string          `json:"borrower_name" db:"borrower_name"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Outstanding   decimal.Decimal `json:"outstanding" db:"outstanding"`
	Date          time.Time       `json:"date" db:"date"`
	TransactionID uuid.UUID       `json:"transaction_id" db:"transaction_id"`
}

type WriteOffRecovery struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	WriteOffID    uuid.UUID       `json:"write_off_id" db:"write_off_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	ReceivedAt    time.Time       `json:"received_at" db:"received_at"`
	TransactionID uuid.UUID       `json:"transaction_id" db:"transaction_id"`
}
