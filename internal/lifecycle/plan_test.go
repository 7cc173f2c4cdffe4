package lifecycle

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-importer/internal/domain"
)

var day0 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return day0.AddDate(0, 0, n)
}

func loan(requested, rate string, weeks int, signDay int) *domain.Loan {
	return &domain.Loan{
		ID:              uuid.New(),
		RequestedAmount: decimal.RequireFromString(requested),
		Rate:            decimal.RequireFromString(rate),
		WeekDuration:    weeks,
		SignDate:        day(signDay),
		Status:          domain.LoanStatusActive,
	}
}

func paid(loanID uuid.UUID, amount string, lastDay int, count int) domain.PaymentStats {
	last := day(lastDay)
	return domain.PaymentStats{LoanID: loanID, TotalPaid: decimal.RequireFromString(amount), LastPaymentAt: &last, Count: count}
}

func byID(updates []domain.LoanLifecycleUpdate) map[uuid.UUID]domain.LoanLifecycleUpdate {
	out := make(map[uuid.UUID]domain.LoanLifecycleUpdate, len(updates))
	for _, u := range updates {
		out[u.LoanID] = u
	}
	return out
}

func TestDenormalize(t *testing.T) {
	tests := []struct {
		name                          string
		requested, rate, paid         string
		weeks                         int
		wantDebt, wantWeekly, wantPnd string
	}{
		{"zero rate", "1000", "0", "1000", 10, "1000", "100", "0"},
		{"with interest", "1000", "0.4", "140", 14, "1400", "100", "1260"},
		{"overpaid floors pending", "1000", "0", "1200", 10, "1000", "100", "0"},
		{"zero weeks treated as one", "500", "0.2", "0", 0, "600", "600", "600"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := loan(tt.requested, tt.rate, tt.weeks, 0)
			b := Denormalize(l, decimal.RequireFromString(tt.paid))

			assert.True(t, b.TotalDebtAcquired.Equal(decimal.RequireFromString(tt.wantDebt)), b.TotalDebtAcquired.String())
			assert.True(t, b.ExpectedWeeklyPayment.Equal(decimal.RequireFromString(tt.wantWeekly)), b.ExpectedWeeklyPayment.String())
			assert.True(t, b.PendingAmountStored.Equal(decimal.RequireFromString(tt.wantPnd)), b.PendingAmountStored.String())

			expected := b.TotalDebtAcquired.Sub(b.TotalPaid)
			if expected.IsNegative() {
				expected = decimal.Zero
			}
			assert.True(t, b.PendingAmountStored.Equal(expected))
		})
	}
}

func TestPlan_PaidOffLoanFinishesOnLastPayment(t *testing.T) {
	l := loan("1000", "0", 10, 0)
	stats := map[uuid.UUID]domain.PaymentStats{l.ID: paid(l.ID, "1000", 70, 1)}

	updates, c, err := Plan([]*domain.Loan{l}, stats, decimal.NewFromInt(1))
	require.NoError(t, err)

	u := byID(updates)[l.ID]
	assert.Equal(t, domain.LoanStatusFinished, u.Status)
	require.NotNil(t, u.FinishedDate)
	assert.True(t, u.FinishedDate.Equal(day(70)))
	assert.Equal(t, "0.00", u.PendingAmountStored.StringFixed(2))
	assert.Contains(t, c.PaidOff, l.ID)
}

func TestPlan_RenewalDates(t *testing.T) {
	tests := []struct {
		name         string
		paid         string
		lastPayment  int
		payments     int
		successorDay int
		wantDay      int
		wantPaidOff  bool
	}{
		{
			name:         "paid off before renewal keeps last payment date",
			paid:         "1000",
			lastPayment:  60,
			payments:     4,
			successorDay: 70,
			wantDay:      60,
			wantPaidOff:  true,
		},
		{
			name:         "payments after renewal use the renewal date",
			paid:         "1000",
			lastPayment:  80,
			payments:     4,
			successorDay: 70,
			wantDay:      70,
			wantPaidOff:  true,
		},
		{
			name:         "renewed without payments finishes on renewal",
			successorDay: 50,
			wantDay:      50,
		},
		{
			name:         "renewed with balance left finishes on renewal",
			paid:         "600",
			lastPayment:  40,
			payments:     3,
			successorDay: 45,
			wantDay:      45,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := loan("1000", "0", 10, 0)
			next := loan("1000", "0.4", 14, tt.successorDay)
			next.PreviousLoanID = &prev.ID

			stats := map[uuid.UUID]domain.PaymentStats{}
			if tt.payments > 0 {
				stats[prev.ID] = paid(prev.ID, tt.paid, tt.lastPayment, tt.payments)
			}

			updates, c, err := Plan([]*domain.Loan{prev, next}, stats, decimal.NewFromInt(1))
			require.NoError(t, err)
			assert.Empty(t, c.Conflicts())

			u := byID(updates)
			require.NotNil(t, u[prev.ID].FinishedDate)
			assert.True(t, u[prev.ID].FinishedDate.Equal(day(tt.wantDay)), u[prev.ID].FinishedDate.String())
			assert.Equal(t, domain.LoanStatusFinished, u[prev.ID].Status)
			assert.Equal(t, tt.wantPaidOff, c.PaidOff[prev.ID] != time.Time{})

			assert.Equal(t, domain.LoanStatusActive, u[next.ID].Status)
			assert.Nil(t, u[next.ID].FinishedDate)
		})
	}
}

func TestPlan_RenewedLoanWithFinishedDateIsClosed(t *testing.T) {
	finished := day(30)
	prev := loan("1000", "0", 10, 0)
	prev.FinishedDate = &finished
	next := loan("1000", "0", 10, 40)
	next.PreviousLoanID = &prev.ID

	updates, c, err := Plan([]*domain.Loan{prev, next}, nil, decimal.NewFromInt(1))
	require.NoError(t, err)

	u := byID(updates)[prev.ID]
	assert.Equal(t, domain.LoanStatusFinished, u.Status)
	assert.True(t, u.FinishedDate.Equal(finished))
	assert.Contains(t, c.RenewedClosed, prev.ID)
	assert.NotContains(t, c.RenewedOpen, prev.ID)
}

func TestPlan_EpsilonDecidesPaidOff(t *testing.T) {
	l := loan("1000", "0.4", 14, 0)
	stats := map[uuid.UUID]domain.PaymentStats{l.ID: paid(l.ID, "1399.50", 90, 10)}

	updates, _, err := Plan([]*domain.Loan{l}, stats, decimal.NewFromInt(1))
	require.NoError(t, err)

	u := byID(updates)[l.ID]
	assert.Equal(t, domain.LoanStatusFinished, u.Status, "pending 0.50 is under the epsilon")

	stats[l.ID] = paid(l.ID, "1000", 90, 10)
	updates, _, err = Plan([]*domain.Loan{l}, stats, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusActive, byID(updates)[l.ID].Status)
}

func TestClassification_RulesAreDisjoint(t *testing.T) {
	var loans []*domain.Loan
	stats := make(map[uuid.UUID]domain.PaymentStats)
	balances := make(map[uuid.UUID]Balances)

	for i := 0; i < 30; i++ {
		l := loan("1000", "0", 10, i*10)
		if i > 0 && i%2 == 0 {
			l.PreviousLoanID = &loans[i-1].ID
		}
		if i%5 == 0 {
			f := day(i*10 + 5)
			l.FinishedDate = &f
		}
		if i%3 == 0 {
			stats[l.ID] = paid(l.ID, "1000", i*10+20, 2)
		}
		loans = append(loans, l)
	}
	for _, l := range loans {
		balances[l.ID] = Denormalize(l, stats[l.ID].TotalPaid)
	}

	c := Classify(loans, balances, stats, decimal.NewFromInt(1))
	assert.Empty(t, c.Conflicts())
	assert.NotEmpty(t, c.PaidOff)
	assert.NotEmpty(t, c.RenewedOpen)
}

func TestClassification_ConflictsReported(t *testing.T) {
	id := uuid.New()
	c := Classification{
		RenewedClosed: map[uuid.UUID]time.Time{},
		PaidOff:       map[uuid.UUID]time.Time{id: day(1)},
		RenewedOpen:   map[uuid.UUID]time.Time{id: day(2)},
	}
	assert.Equal(t, []uuid.UUID{id}, c.Conflicts())
}
