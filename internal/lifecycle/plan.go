// Package lifecycle assigns terminal status and denormalized balances to the
// loans of a route once their import has been committed.
package lifecycle

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-importer/internal/domain"
	"github.com/segyhp/loan-importer/pkg/errors"
	"github.com/segyhp/loan-importer/pkg/utils"
)

// Balances are the denormalized amounts of one loan.
type Balances struct {
	TotalDebtAcquired     decimal.Decimal
	ExpectedWeeklyPayment decimal.Decimal
	TotalPaid             decimal.Decimal
	PendingAmountStored   decimal.Decimal
}

// Denormalize computes the balances of a loan from its terms and payments.
func Denormalize(loan *domain.Loan, totalPaid decimal.Decimal) Balances {
	totalDebt := utils.CalculateTotalDebt(loan.RequestedAmount, loan.Rate).Round(2)
	return Balances{
		TotalDebtAcquired:     totalDebt,
		ExpectedWeeklyPayment: utils.CalculateWeeklyPayment(totalDebt, loan.WeekDuration),
		TotalPaid:             totalPaid,
		PendingAmountStored:   utils.CalculatePending(totalDebt, totalPaid),
	}
}

// Classification holds the three closing rules, each computed on its own.
//
//   - RenewedClosed: renewed loans that already carry a finished date.
//   - PaidOff: loans without a finished date whose pending amount is under
//     epsilon and that have at least one payment.
//   - RenewedOpen: renewed loans without a finished date that are not paid off.
//
// The maps hold the finished date each rule assigns.
type Classification struct {
	RenewedClosed map[uuid.UUID]time.Time
	PaidOff       map[uuid.UUID]time.Time
	RenewedOpen   map[uuid.UUID]time.Time
}

// Conflicts returns the loans that fall under more than one rule, sorted.
func (c Classification) Conflicts() []uuid.UUID {
	seen := make(map[uuid.UUID]int)
	for _, set := range []map[uuid.UUID]time.Time{c.RenewedClosed, c.PaidOff, c.RenewedOpen} {
		for id := range set {
			seen[id]++
		}
	}

	var out []uuid.UUID
	for id, n := range seen {
		if n > 1 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Successors maps a loan id to the loan that renews it.
func Successors(loans []*domain.Loan) map[uuid.UUID]*domain.Loan {
	out := make(map[uuid.UUID]*domain.Loan)
	for _, l := range loans {
		if l.PreviousLoanID != nil {
			out[*l.PreviousLoanID] = l
		}
	}
	return out
}

// IsPaidOff reports whether pending is below epsilon.
func IsPaidOff(pending, epsilon decimal.Decimal) bool {
	return pending.LessThan(epsilon)
}

// PaidOffDate is the finished date of a paid-off loan: its last payment, or
// the renewal date when the loan was renewed before that payment.
func PaidOffDate(lastPayment time.Time, successor *domain.Loan) time.Time {
	last := utils.DateOnly(lastPayment)
	if successor == nil {
		return last
	}
	renewal := utils.DateOnly(successor.SignDate)
	if last.Before(renewal) {
		return last
	}
	return renewal
}

// Classify applies the closing rules independently.
func Classify(loans []*domain.Loan, balances map[uuid.UUID]Balances, stats map[uuid.UUID]domain.PaymentStats, epsilon decimal.Decimal) Classification {
	successors := Successors(loans)
	c := Classification{
		RenewedClosed: make(map[uuid.UUID]time.Time),
		PaidOff:       make(map[uuid.UUID]time.Time),
		RenewedOpen:   make(map[uuid.UUID]time.Time),
	}

	for _, l := range loans {
		successor := successors[l.ID]
		if successor != nil && l.FinishedDate != nil {
			c.RenewedClosed[l.ID] = utils.DateOnly(*l.FinishedDate)
		}
	}

	for _, l := range loans {
		st, hasPayments := stats[l.ID]
		if l.FinishedDate != nil || !hasPayments || st.Count == 0 || st.LastPaymentAt == nil {
			continue
		}
		if IsPaidOff(balances[l.ID].PendingAmountStored, epsilon) {
			c.PaidOff[l.ID] = PaidOffDate(*st.LastPaymentAt, successors[l.ID])
		}
	}

	for _, l := range loans {
		successor := successors[l.ID]
		if successor == nil || l.FinishedDate != nil {
			continue
		}
		if _, paid := c.PaidOff[l.ID]; paid {
			continue
		}
		c.RenewedOpen[l.ID] = utils.DateOnly(successor.SignDate)
	}

	return c
}

// Plan builds the lifecycle update of every loan. It fails when the closing
// rules overlap on any loan.
func Plan(loans []*domain.Loan, stats map[uuid.UUID]domain.PaymentStats, epsilon decimal.Decimal) ([]domain.LoanLifecycleUpdate, Classification, error) {
	balances := make(map[uuid.UUID]Balances, len(loans))
	for _, l := range loans {
		paid := decimal.Zero
		if st, ok := stats[l.ID]; ok {
			paid = st.TotalPaid
		}
		balances[l.ID] = Denormalize(l, paid)
	}

	c := Classify(loans, balances, stats, epsilon)
	if conflicts := c.Conflicts(); len(conflicts) > 0 {
		return nil, c, errors.WrapLifecycleConflict(conflicts[0].String())
	}

	updates := make([]domain.LoanLifecycleUpdate, 0, len(loans))
	for _, l := range loans {
		b := balances[l.ID]
		u := domain.LoanLifecycleUpdate{
			LoanID:                l.ID,
			Status:                domain.LoanStatusActive,
			TotalDebtAcquired:     b.TotalDebtAcquired,
			ExpectedWeeklyPayment: b.ExpectedWeeklyPayment,
			TotalPaid:             b.TotalPaid,
			PendingAmountStored:   b.PendingAmountStored,
		}

		finished, ok := c.RenewedClosed[l.ID]
		if !ok {
			finished, ok = c.PaidOff[l.ID]
		}
		if !ok {
			finished, ok = c.RenewedOpen[l.ID]
		}
		if !ok && l.FinishedDate != nil {
			finished, ok = utils.DateOnly(*l.FinishedDate), true
		}
		if ok {
			f := finished
			u.Status = domain.LoanStatusFinished
			u.FinishedDate = &f
		}

		updates = append(updates, u)
	}

	return updates, c, nil
}
