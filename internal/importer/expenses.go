package importer

import (
	"context"
	"fmt"

	"github.com/segyhp/loan-importer/internal/domain"
	"github.com/segyhp/loan-importer/internal/repository"
	"github.com/segyhp/loan-importer/pkg/errors"
	"github.com/segyhp/loan-importer/pkg/utils"
)

// expenseKey groups expense transactions that are indistinguishable once stored.
func expenseKey(tx *domain.Transaction) string {
	return fmt.Sprintf("expense|%s|%s|%s|%s|%s",
		tx.RouteID, tx.Date.Format("2006-01-02"), tx.Amount.StringFixed(2), tx.ExpenseSource, tx.Description)
}

func (e *Engine) importExpenses(ctx context.Context, r *run, summary *domain.RunSummary, rows []domain.ExpenseRow) {
	txs := make([]*domain.Transaction, 0, len(rows))
	for _, row := range rows {
		description := row.Description
		if description == "" {
			description = row.Concept
		}

		tx := e.transaction(r, row.Amount, row.Date, nil)
		tx.Type = domain.TransactionTypeExpense
		tx.ExpenseSource = ClassifyExpenseSource(row.Concept)
		tx.SourceAccountID = &r.cashFund.ID
		tx.Description = description
		txs = append(txs, tx)
	}

	e.writeExpenses(ctx, r, summary, txs)
}

func (e *Engine) importPayroll(ctx context.Context, r *run, summary *domain.RunSummary, rows []domain.PayrollRow) {
	txs := make([]*domain.Transaction, 0, len(rows))
	for _, row := range rows {
		leadID, ok := r.leads.Lookup(row.LeadExternalID)
		if !ok {
			summary.ExpensesSkipped++
			e.logger.Warn("Payroll row skipped", map[string]interface{}{
				"row":     row.Row,
				"lead_id": row.LeadExternalID,
				"reason":  "lead not in mapping",
			})
			continue
		}

		description := row.Description
		if description == "" {
			description = "Nomina " + utils.NormalizeExternalID(row.LeadExternalID)
		}

		tx := e.transaction(r, row.Amount, row.Date, &leadID)
		tx.Type = domain.TransactionTypeExpense
		tx.ExpenseSource = domain.ExpenseSourceSalary
		tx.SourceAccountID = &r.cashFund.ID
		tx.Description = description
		txs = append(txs, tx)
	}

	e.writeExpenses(ctx, r, summary, txs)
}

// writeExpenses persists each source row once: a key seen n times in the
// source is written n times, less what earlier runs already stored.
func (e *Engine) writeExpenses(ctx context.Context, r *run, summary *domain.RunSummary, txs []*domain.Transaction) {
	pending := make([]*domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		key := expenseKey(tx)
		before, ok := r.expensesBefore[key]
		if !ok {
			count, err := e.store.CountExpenses(ctx, tx.RouteID, tx.Date, tx.Amount, tx.ExpenseSource, tx.Description)
			if err != nil {
				summary.ExpensesSkipped++
				e.logger.Error("Expense lookup failed", map[string]interface{}{
					"route":       r.route.Name,
					"description": tx.Description,
					"error":       err.Error(),
				})
				continue
			}
			before = count
			r.expensesBefore[key] = before
		}

		r.expensesSeen[key]++
		if r.expensesSeen[key] <= before {
			summary.ExpensesSkipped++
			continue
		}
		pending = append(pending, tx)
	}

	for _, batch := range chunk(pending, e.opts.BatchSize) {
		index := r.nextBatch()
		err := e.store.WithinTx(ctx, func(w repository.Writer) error {
			for _, tx := range batch {
				if err := w.CreateTransaction(ctx, tx); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			err = errors.WrapBatchWriteFailed(r.route.Name, index, err)
			summary.FailedBatches++
			e.logger.Error("Expense batch failed to commit", map[string]interface{}{
				"route": r.route.Name,
				"batch": index,
				"rows":  len(batch),
				"error": err.Error(),
			})
			continue
		}
		summary.ExpensesPersisted += len(batch)
	}
}
