package importer

import (
	"slices"

	"github.com/segyhp/loan-importer/internal/extractor"
	"github.com/segyhp/loan-importer/internal/logger"
)

// LoadSource extracts every logical source of a route workbook. Loans,
// payments and leads are required; expense and payroll sheets are read only
// when present in sheets. Rejected payment, expense and lead rows are logged.
func LoadSource(ex *extractor.Extractor, layout extractor.Layout, sheets []string, log logger.Logger) (Source, error) {
	var (
		src Source
		err error
	)

	src.Loans, src.RejectedLoans, err = ex.LoanRows()
	if err != nil {
		return Source{}, err
	}

	var rejected []extractor.Rejected
	src.Payments, rejected, err = ex.PaymentRows()
	if err != nil {
		return Source{}, err
	}
	logRejected(log, rejected)

	src.Leads, rejected, err = ex.LeadRows()
	if err != nil {
		return Source{}, err
	}
	logRejected(log, rejected)

	if slices.Contains(sheets, layout.Expenses.Sheet) {
		src.Expenses, rejected, err = ex.ExpenseRows()
		if err != nil {
			return Source{}, err
		}
		logRejected(log, rejected)
	}

	if slices.Contains(sheets, layout.Payroll.Sheet) {
		src.Payroll, rejected, err = ex.PayrollRows()
		if err != nil {
			return Source{}, err
		}
		logRejected(log, rejected)
	}

	log.Info("Source extracted", map[string]interface{}{
		"loans":          len(src.Loans),
		"rejected_loans": len(src.RejectedLoans),
		"payments":       len(src.Payments),
		"expenses":       len(src.Expenses),
		"payroll":        len(src.Payroll),
		"leads":          len(src.Leads),
	})
	return src, nil
}

func logRejected(log logger.Logger, rejected []extractor.Rejected) {
	for _, r := range rejected {
		log.Warn("Source row rejected", map[string]interface{}{
			"sheet":       r.Sheet,
			"row":         r.Row,
			"external_id": r.ExternalID,
			"error":       r.Err.Error(),
		})
	}
}
