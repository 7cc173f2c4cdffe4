package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TransactionTypeIncome  = "INCOME"
	TransactionTypeExpense = "EXPENSE"
)

// Income sources.
const (
	IncomeSourceCashLoanPayment = "CASH_LOAN_PAYMENT"
	IncomeSourceBankLoanPayment = "BANK_LOAN_PAYMENT"
	IncomeSourceWriteOffRecover = "WRITE_OFF_RECOVERY"
)

// Expense sources.
const (
	ExpenseSourceLoanGranted  = "LOAN_GRANTED"
	ExpenseSourceWriteOffLoss = "FALCO_LOSS"
	ExpenseSourceGasoline     = "GASOLINE"
	ExpenseSourceSalary       = "NOMINA_SALARY"
	ExpenseSourceViatic       = "VIATIC"
	ExpenseSourceRent         = "HOUSE_RENT"
	ExpenseSourceOther        = "OTHER_EXPENSE"
)

const (
	AccountTypeCashFund = "EMPLOYEE_CASH_FUND"
	AccountTypeBank     = "BANK"
)

// Transaction is a ledger entry tied to a payment, a disbursement or an
// expense.
type Transaction struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	Amount               decimal.Decimal `json:"amount" db:"amount"`
	Date                 time.Time       `json:"date" db:"date"`
	Type                 string          `json:"type" db:"type"`
	IncomeSource         string          `json:"income_source" db:"income_source"`
	ExpenseSource        string          `json:"expense_source" db:"expense_source"`
	SourceAccountID      *uuid.UUID      `json:"source_account_id,omitempty" db:"source_account_id"`
	DestinationAccountID *uuid.UUID      `json:"destination_account_id,omitempty" db:"destination_account_id"`
	LoanID               *uuid.UUID      `json:"loan_id,omitempty" db:"loan_id"`
	LoanPaymentID        *uuid.UUID      `json:"loan_payment_id,omitempty" db:"loan_payment_id"`
	LeadID               *uuid.UUID      `json:"lead_id,omitempty" db:"lead_id"`
	RouteID              uuid.UUID       `json:"route_id" db:"route_id"`
	ProfitAmount         decimal.Decimal `json:"profit_amount" db:"profit_amount"`
	ReturnToCapital      decimal.Decimal `json:"return_to_capital" db:"return_to_capital"`
	Description          string          `json:"description" db:"description"`

	RouteSnapshot
}

type Account struct {
	ID      uuid.UUID       `json:"id" db:"id"`
	Name    string          `json:"name" db:"name"`
	Type    string          `json:"type" db:"type"`
	RouteID uuid.UUID       `json:"route_id" db:"route_id"`
	Amount  decimal.Decimal `json:"amount" db:"amount"`
}
