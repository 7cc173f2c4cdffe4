package importer

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-importer/internal/domain"
	"github.com/segyhp/loan-importer/internal/identity"
	"github.com/segyhp/loan-importer/pkg/utils"
)

var writeOffMarker = regexp.MustCompile(`(?i)falco[\s\-_.,;:/]`)

// IsWriteOffMarker reports whether a borrower name carries the write-off
// marker: "falco" followed by a separator, in any case.
func IsWriteOffMarker(borrowerName string) bool {
	return writeOffMarker.MatchString(borrowerName)
}

// ExternalLoanID is the stored external id of a loan: route name and
// workbook id joined by a dash.
func ExternalLoanID(route, id string) string {
	return route + "-" + utils.NormalizeExternalID(id)
}

// DuplicateKey identifies a loan across routes and runs.
type DuplicateKey struct {
	BorrowerName string
	SignDate     time.Time
	AmountGiven  decimal.Decimal
}

func DuplicateKeyOf(row domain.LoanRow) DuplicateKey {
	return DuplicateKey{
		BorrowerName: identity.NormalizeName(row.BorrowerName),
		SignDate:     utils.DateOnly(row.SignDate),
		AmountGiven:  row.AmountGiven,
	}
}

func (k DuplicateKey) String() string {
	return "dup|" + k.BorrowerName + "|" + k.SignDate.Format("2006-01-02") + "|" + k.AmountGiven.StringFixed(2)
}

type expenseRule struct {
	source   string
	keywords []string
}

var expenseRules = []expenseRule{
	{domain.ExpenseSourceGasoline, []string{"GASOLINA", "COMBUSTIBLE"}},
	{domain.ExpenseSourceSalary, []string{"NOMINA", "SALARIO", "SUELDO"}},
	{domain.ExpenseSourceViatic, []string{"VIATICO", "VIÁTICO", "COMIDA", "HOSPEDAJE"}},
	{domain.ExpenseSourceRent, []string{"RENTA", "ALQUILER"}},
}

// ClassifyExpenseSource maps a free-text expense concept to an expense source.
func ClassifyExpenseSource(concept string) string {
	c := strings.ToUpper(concept)
	for _, rule := range expenseRules {
		for _, kw := range rule.keywords {
			if strings.Contains(c, kw) {
				return rule.source
			}
		}
	}
	return domain.ExpenseSourceOther
}

// AccountTypeForPayment is the route account a payment lands in.
func AccountTypeForPayment(paymentType string) string {
	if paymentType == domain.PaymentTypeMoneyTransfer {
		return domain.AccountTypeBank
	}
	return domain.AccountTypeCashFund
}

// IncomeSourceForPayment is the income source of a loan payment transaction.
func IncomeSourceForPayment(paymentType string) string {
	if paymentType == domain.PaymentTypeMoneyTransfer {
		return domain.IncomeSourceBankLoanPayment
	}
	return domain.IncomeSourceCashLoanPayment
}

// RenewalWaves orders renewal rows so that a row whose predecessor is another
// renewal row of the same source lands in a later wave. Rows caught in a
// reference cycle go to the last wave, where their lookup fails.
func RenewalWaves(rows []domain.LoanRow) [][]domain.LoanRow {
	byID := make(map[string]int, len(rows))
	for i, r := range rows {
		byID[utils.NormalizeExternalID(r.ExternalID)] = i
	}

	depth := make([]int, len(rows))
	const (
		unvisited = -1
		visiting  = -2
	)
	for i := range depth {
		depth[i] = unvisited
	}

	cyclic := make(map[int]bool)
	var visit func(i int) int
	visit = func(i int) int {
		switch depth[i] {
		case visiting:
			cyclic[i] = true
			return 0
		case unvisited:
		default:
			return depth[i]
		}
		depth[i] = visiting
		d := 0
		if p, ok := byID[utils.NormalizeExternalID(rows[i].PreviousLoanExternalID)]; ok && p != i {
			d = visit(p) + 1
		}
		depth[i] = d
		return d
	}

	maxDepth := 0
	for i := range rows {
		if d := visit(i); d > maxDepth {
			maxDepth = d
		}
	}

	waves := make([][]domain.LoanRow, maxDepth+1)
	for i, r := range rows {
		d := depth[i]
		if cyclic[i] {
			d = maxDepth
		}
		waves[d] = append(waves[d], r)
	}
	return waves
}

// chunk splits rows into batches of at most size.
func chunk[T any](rows []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	var out [][]T
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}
