package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PaymentTypeCash          = "CASH"
	PaymentTypeMoneyTransfer = "MONEY_TRANSFER"
)

// Payment belongs to exactly one loan. ProfitAmount and ReturnToCapital are
// computed during import and persisted on the linked ledger transaction.
type Payment struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	LoanID          uuid.UUID       `json:"loan_id" db:"loan_id"`
	ReceivedAt      time.Time       `json:"received_at" db:"received_at"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Type            string          `json:"type" db:"type"`
	Description     string          `json:"description" db:"description"`
	ProfitAmount    decimal.Decimal `json:"profit_amount" db:"-"`
	ReturnToCapital decimal.Decimal `json:"return_to_capital" db:"-"`
}
