package importer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-importer/internal/domain"
)

func TestIsWriteOffMarker(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"JUAN FALCO PEREZ", true},
		{"juan falco perez", true},
		{"FALCO-MARIA LOPEZ", true},
		{"Falco. Pedro", true},
		{"JUAN PEREZ FALCO", false},
		{"MARIA FALCON", false},
		{"ANA LOPEZ", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsWriteOffMarker(tt.name), tt.name)
	}
}

func TestExternalLoanID(t *testing.T) {
	assert.Equal(t, "RUTA1-77", ExternalLoanID("RUTA1", "77.0"))
	assert.Equal(t, "RUTA1-77", ExternalLoanID("RUTA1", " 77 "))
	assert.NotEqual(t, ExternalLoanID("RUTA1", "17"), ExternalLoanID("RUTA11", "7"))
}

func TestDuplicateKeyOf(t *testing.T) {
	a := domain.LoanRow{BorrowerName: " ana  lopez", SignDate: time.Date(2023, 1, 1, 15, 0, 0, 0, time.UTC), AmountGiven: decimal.RequireFromString("1000")}
	b := domain.LoanRow{BorrowerName: "ANA LOPEZ", SignDate: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), AmountGiven: decimal.RequireFromString("1000.00")}
	c := b
	c.AmountGiven = decimal.RequireFromString("999")

	assert.Equal(t, DuplicateKeyOf(a).String(), DuplicateKeyOf(b).String())
	assert.NotEqual(t, DuplicateKeyOf(b).String(), DuplicateKeyOf(c).String())
}

func TestClassifyExpenseSource(t *testing.T) {
	tests := []struct {
		concept string
		want    string
	}{
		{"Gasolina moto", domain.ExpenseSourceGasoline},
		{"NOMINA semana 3", domain.ExpenseSourceSalary},
		{"viatico", domain.ExpenseSourceViatic},
		{"Renta casa", domain.ExpenseSourceRent},
		{"Gastos varios", domain.ExpenseSourceOther},
		{"", domain.ExpenseSourceOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyExpenseSource(tt.concept), tt.concept)
	}
}

func TestPaymentRouting(t *testing.T) {
	assert.Equal(t, domain.AccountTypeBank, AccountTypeForPayment(domain.PaymentTypeMoneyTransfer))
	assert.Equal(t, domain.AccountTypeCashFund, AccountTypeForPayment(domain.PaymentTypeCash))
	assert.Equal(t, domain.IncomeSourceBankLoanPayment, IncomeSourceForPayment(domain.PaymentTypeMoneyTransfer))
	assert.Equal(t, domain.IncomeSourceCashLoanPayment, IncomeSourceForPayment(domain.PaymentTypeCash))
}

func TestRenewalWaves(t *testing.T) {
	rows := []domain.LoanRow{
		{ExternalID: "79", PreviousLoanExternalID: "78"},
		{ExternalID: "78", PreviousLoanExternalID: "77"},
		{ExternalID: "90", PreviousLoanExternalID: "12"},
		{ExternalID: "80", PreviousLoanExternalID: "79.0"},
	}

	waves := RenewalWaves(rows)
	require.Len(t, waves, 3)

	ids := func(rows []domain.LoanRow) []string {
		var out []string
		for _, r := range rows {
			out = append(out, r.ExternalID)
		}
		return out
	}
	assert.ElementsMatch(t, []string{"78", "90"}, ids(waves[0]))
	assert.ElementsMatch(t, []string{"79"}, ids(waves[1]))
	assert.ElementsMatch(t, []string{"80"}, ids(waves[2]))
}

func TestRenewalWaves_CycleDoesNotHang(t *testing.T) {
	rows := []domain.LoanRow{
		{ExternalID: "1", PreviousLoanExternalID: "2"},
		{ExternalID: "2", PreviousLoanExternalID: "1"},
	}

	total := 0
	for _, w := range RenewalWaves(rows) {
		total += len(w)
	}
	assert.Equal(t, 2, total)
}

func TestChunk(t *testing.T) {
	assert.Len(t, chunk([]int{1, 2, 3, 4, 5}, 2), 3)
	assert.Empty(t, chunk([]int{}, 2))
	assert.Len(t, chunk([]int{1, 2}, 0), 2)
}
