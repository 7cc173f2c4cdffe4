package profit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-importer/internal/domain"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) TotalProfitPaid(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, loanID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(day int) time.Time {
	return time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day)
}

func TestSplitPayment(t *testing.T) {
	cutoff := date(30)

	tests := []struct {
		name        string
		amount      string
		totalProfit string
		totalToPay  string
		badDebt     *time.Time
		receivedAt  time.Time
		wantProfit  string
		wantCapital string
		wantBadDebt bool
	}{
		{"zero rate loan", "1000", "0", "1000", nil, date(70), "0", "1000", false},
		{"renewal example", "140", "400", "1400", nil, date(7), "40", "100", false},
		{"rounded to cents", "100", "400", "1400", nil, date(7), "28.57", "71.43", false},
		{"on the cutoff day still splits", "140", "400", "1400", &cutoff, date(30), "40", "100", false},
		{"after cutoff is all profit", "140", "400", "1400", &cutoff, date(31), "140", "0", true},
		{"profit capped to amount", "100", "900", "500", nil, date(7), "100", "0", false},
		{"nothing to pay", "100", "0", "0", nil, date(7), "0", "100", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split := SplitPayment(d(tt.amount), d(tt.totalProfit), d(tt.totalToPay), tt.badDebt, tt.receivedAt)

			assert.True(t, split.Profit.Equal(d(tt.wantProfit)), "profit %s", split.Profit)
			assert.True(t, split.Capital.Equal(d(tt.wantCapital)), "capital %s", split.Capital)
			assert.Equal(t, tt.wantBadDebt, split.BadDebt)
		})
	}
}

func TestSplitPayment_Conserves(t *testing.T) {
	amounts := []string{"1", "33.33", "99.99", "140", "250.5", "1000"}
	profits := []string{"0", "123.45", "400", "777"}

	for _, a := range amounts {
		for _, p := range profits {
			split := SplitPayment(d(a), d(p), d("1400"), nil, date(1))
			assert.True(t, split.Profit.Add(split.Capital).Equal(d(a)), "%s with profit %s", a, p)
		}
	}
}

func TestBaseProfitAndTotal(t *testing.T) {
	assert.True(t, BaseProfit(d("1000"), d("0.4")).Equal(d("400")))
	assert.True(t, TotalAmountToPay(d("1000"), d("0.4")).Equal(d("1400")))
	assert.True(t, PendingProfit(d("100"), d("130")).IsZero())
}

func TestCalculator_Plan(t *testing.T) {
	ctx := context.Background()

	t.Run("standalone loan", func(t *testing.T) {
		ledger := &mockLedger{}
		plan, err := NewCalculator(ledger).Plan(ctx, d("1000"), d("0.4"), nil)
		require.NoError(t, err)

		assert.True(t, plan.LoanTotalProfit.Equal(d("400")))
		assert.True(t, plan.TotalAmountToPay.Equal(d("1400")))
		ledger.AssertNotCalled(t, "TotalProfitPaid", mock.Anything, mock.Anything)
	})

	t.Run("unpaid predecessor profit carries forward", func(t *testing.T) {
		predecessor := &domain.Loan{ID: uuid.New(), ExternalID: "R-1", ProfitAmount: d("100")}
		ledger := &mockLedger{}
		ledger.On("TotalProfitPaid", ctx, predecessor.ID).Return(decimal.Zero, nil)

		plan, err := NewCalculator(ledger).Plan(ctx, d("500"), d("0.1"), predecessor)
		require.NoError(t, err)

		assert.True(t, plan.BaseProfit.Equal(d("50")))
		assert.True(t, plan.PendingFromPredecessor.Equal(d("100")))
		assert.True(t, plan.LoanTotalProfit.Equal(d("150")))
		ledger.AssertExpectations(t)
	})

	t.Run("fully paid predecessor adds nothing", func(t *testing.T) {
		predecessor := &domain.Loan{ID: uuid.New(), ExternalID: "R-77", ProfitAmount: decimal.Zero}
		ledger := &mockLedger{}
		ledger.On("TotalProfitPaid", ctx, predecessor.ID).Return(decimal.Zero, nil)

		plan, err := NewCalculator(ledger).Plan(ctx, d("1000"), d("0.4"), predecessor)
		require.NoError(t, err)

		assert.True(t, plan.LoanTotalProfit.Equal(d("400")))
		split := plan.Split(d("140"), nil, date(7))
		assert.True(t, split.Profit.Equal(d("40")))
		assert.True(t, split.Capital.Equal(d("100")))
	})

	t.Run("ledger failure", func(t *testing.T) {
		predecessor := &domain.Loan{ID: uuid.New(), ExternalID: "R-2"}
		ledger := &mockLedger{}
		ledger.On("TotalProfitPaid", ctx, predecessor.ID).Return(decimal.Zero, errors.New("db down"))

		_, err := NewCalculator(ledger).Plan(ctx, d("1000"), d("0.4"), predecessor)
		assert.Error(t, err)
	})
}
