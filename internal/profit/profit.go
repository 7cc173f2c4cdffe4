// Package profit splits loan payments into profit and capital and carries
// unpaid profit along renewal chains.
package profit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-importer/internal/domain"
	"github.com/segyhp/loan-importer/pkg/utils"
)

// BaseProfit is the interest a loan earns on its own: requested * rate.
func BaseProfit(requested, rate decimal.Decimal) decimal.Decimal {
	return requested.Mul(rate)
}

// TotalAmountToPay is requested + base profit.
func TotalAmountToPay(requested, rate decimal.Decimal) decimal.Decimal {
	return requested.Add(BaseProfit(requested, rate))
}

// PendingProfit is what is left of a loan's profit, never below zero.
func PendingProfit(profitAmount, profitPaid decimal.Decimal) decimal.Decimal {
	return utils.CalculatePending(profitAmount, profitPaid)
}

// Split is the profit and capital portion of one payment.
type Split struct {
	Profit  decimal.Decimal
	Capital decimal.Decimal
	BadDebt bool
}

// IsPastBadDebt reports whether a payment received at receivedAt falls after
// the loan's bad-debt cutoff. Both are compared as calendar days.
func IsPastBadDebt(badDebtDate *time.Time, receivedAt time.Time) bool {
	if badDebtDate == nil {
		return false
	}
	return utils.DateOnly(receivedAt).After(utils.DateOnly(*badDebtDate))
}

// SplitPayment allocates amount proportionally to loanTotalProfit /
// totalToPay. Past the bad-debt cutoff the whole amount is profit. The profit
// portion is rounded to cents and capped to [0, amount]; capital is the rest,
// so the two always add up to amount.
func SplitPayment(amount, loanTotalProfit, totalToPay decimal.Decimal, badDebtDate *time.Time, receivedAt time.Time) Split {
	if IsPastBadDebt(badDebtDate, receivedAt) {
		return Split{Profit: amount, Capital: decimal.Zero, BadDebt: true}
	}

	profit := decimal.Zero
	if totalToPay.IsPositive() {
		profit = amount.Mul(loanTotalProfit).Div(totalToPay).Round(2)
	}
	if profit.IsNegative() {
		profit = decimal.Zero
	}
	if profit.GreaterThan(amount) {
		profit = amount
	}

	return Split{Profit: profit, Capital: amount.Sub(profit)}
}

// Ledger reads the profit already booked against a loan.
type Ledger interface {
	TotalProfitPaid(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error)
}

// Calculator reads predecessor figures from the ledger every time, so it
// never depends on what an earlier batch kept in memory.
type Calculator struct {
	ledger Ledger
}

func NewCalculator(ledger Ledger) *Calculator {
	return &Calculator{ledger: ledger}
}

// Plan holds the profit figures of a loan about to be persisted.
type Plan struct {
	BaseProfit             decimal.Decimal
	PendingFromPredecessor decimal.Decimal
	LoanTotalProfit        decimal.Decimal
	TotalAmountToPay       decimal.Decimal
}

// Split applies the plan to one payment.
func (p Plan) Split(amount decimal.Decimal, badDebtDate *time.Time, receivedAt time.Time) Split {
	return SplitPayment(amount, p.LoanTotalProfit, p.TotalAmountToPay, badDebtDate, receivedAt)
}

// Status is the profit position of a persisted loan.
type Status struct {
	TotalProfitPaid decimal.Decimal
	PendingProfit   decimal.Decimal
}

// ProfitStatus sums the profit of the loan's payment transactions and
// compares it with the loan's profit amount.
func (c *Calculator) ProfitStatus(ctx context.Context, loan *domain.Loan) (Status, error) {
	paid, err := c.ledger.TotalProfitPaid(ctx, loan.ID)
	if err != nil {
		return Status{}, fmt.Errorf("total profit paid of loan %s: %w", loan.ExternalID, err)
	}
	return Status{
		TotalProfitPaid: paid,
		PendingProfit:   PendingProfit(loan.ProfitAmount, paid),
	}, nil
}

// Plan computes the profit figures for a loan of requested at rate. When
// predecessor is set, its pending profit is added to the base profit.
func (c *Calculator) Plan(ctx context.Context, requested, rate decimal.Decimal, predecessor *domain.Loan) (Plan, error) {
	plan := Plan{
		BaseProfit:             BaseProfit(requested, rate),
		PendingFromPredecessor: decimal.Zero,
		TotalAmountToPay:       TotalAmountToPay(requested, rate),
	}

	if predecessor != nil {
		status, err := c.ProfitStatus(ctx, predecessor)
		if err != nil {
			return Plan{}, err
		}
		plan.PendingFromPredecessor = status.PendingProfit
	}

	plan.LoanTotalProfit = plan.BaseProfit.Add(plan.PendingFromPredecessor).Round(2)
	return plan, nil
}
