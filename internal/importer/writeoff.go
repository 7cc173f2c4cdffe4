package importer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/segyhp/loan-importer/internal/domain"
	"github.com/segyhp/loan-importer/internal/repository"
	"github.com/segyhp/loan-importer/pkg/utils"
)

// prepareWriteOff books a marked row as a loss instead of a loan. Payments
// keyed to the row become recoveries against the loss.
func (e *Engine) prepareWriteOff(ctx context.Context, r *run, row domain.LoanRow) rowPlan {
	externalID := ExternalLoanID(r.route.Name, row.ExternalID)

	existing, err := e.store.FindWriteOffByExternalID(ctx, externalID)
	if err == nil {
		return skip(row, domain.OutcomeSkippedDuplicate, fmt.Sprintf("write-off %s already booked", existing.ExternalID))
	}
	if !repository.IsNotFound(err) {
		return failed(row, fmt.Errorf("write-off lookup: %w", err))
	}

	key := "writeoff|" + externalID
	if !r.claims.claim(key) {
		return skip(row, domain.OutcomeSkippedDuplicate, "same write-off already booked in this run")
	}

	var leadID *uuid.UUID
	if id, ok := r.leads.Lookup(row.LeadExternalID); ok {
		leadID = &id
	}

	loss := e.transaction(r, row.AmountGiven, row.SignDate, leadID)
	loss.Type = domain.TransactionTypeExpense
	loss.ExpenseSource = domain.ExpenseSourceWriteOffLoss
	loss.SourceAccountID = &r.cashFund.ID
	loss.Description = "Perdida " + row.BorrowerName

	writeOff := &domain.WriteOff{
		ID:            uuid.New(),
		ExternalID:    externalID,
		RouteID:       r.route.ID,
		BorrowerName:  row.BorrowerName,
		Amount:        row.AmountGiven,
		Outstanding:   row.AmountGiven,
		Date:          utils.DateOnly(row.SignDate),
		TransactionID: loss.ID,
	}

	writes := []write{
		createTransaction(loss),
		func(ctx context.Context, w repository.Writer) error { return w.CreateWriteOff(ctx, writeOff) },
	}

	payments := r.payments[utils.NormalizeExternalID(row.ExternalID)]
	for _, p := range payments {
		tx := e.transaction(r, p.Amount, p.ReceivedAt, leadID)
		tx.Type = domain.TransactionTypeIncome
		tx.IncomeSource = domain.IncomeSourceWriteOffRecover
		tx.DestinationAccountID = &r.accountFor(p.Type).ID
		tx.ReturnToCapital = p.Amount
		tx.Description = "Recuperacion " + externalID

		recovery := &domain.WriteOffRecovery{
			ID:            uuid.New(),
			WriteOffID:    writeOff.ID,
			Amount:        p.Amount,
			ReceivedAt:    tx.Date,
			TransactionID: tx.ID,
		}
		writes = append(writes,
			createTransaction(tx),
			func(ctx context.Context, w repository.Writer) error { return w.CreateWriteOffRecovery(ctx, recovery) },
		)
	}

	return rowPlan{
		outcome: domain.Outcome{
			Tag:            domain.OutcomeWriteOff,
			Row:            row.Row,
			ExternalID:     row.ExternalID,
			BorrowerName:   row.BorrowerName,
			LeadExternalID: row.LeadExternalID,
			Recoveries:     len(payments),
		},
		writes: writes,
		claims: []string{key},
	}
}
