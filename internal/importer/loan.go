package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-importer/internal/domain"
	"github.com/segyhp/loan-importer/internal/profit"
	"github.com/segyhp/loan-importer/internal/repository"
	"github.com/segyhp/loan-importer/pkg/utils"
)

// duplicateOf checks the row against persisted loans by duplicate key and by
// stored external id.
func (e *Engine) duplicateOf(ctx context.Context, r *run, row domain.LoanRow) (string, error) {
	key := DuplicateKeyOf(row)
	existing, err := e.store.FindDuplicateLoan(ctx, key.BorrowerName, key.SignDate, key.AmountGiven)
	if err == nil {
		return fmt.Sprintf("loan %s has the same borrower, sign date and amount", existing.ExternalID), nil
	}
	if !repository.IsNotFound(err) {
		return "", fmt.Errorf("duplicate lookup: %w", err)
	}

	externalID := ExternalLoanID(r.route.Name, row.ExternalID)
	if _, err := e.store.FindLoanByExternalID(ctx, externalID); err == nil {
		return fmt.Sprintf("external id %s already imported", externalID), nil
	} else if !repository.IsNotFound(err) {
		return "", fmt.Errorf("external id lookup: %w", err)
	}

	return "", nil
}

// prepareLoan handles a row without predecessor.
func (e *Engine) prepareLoan(ctx context.Context, r *run, row domain.LoanRow) rowPlan {
	reason, err := e.duplicateOf(ctx, r, row)
	if err != nil {
		return failed(row, err)
	}
	if reason != "" {
		return skip(row, domain.OutcomeSkippedDuplicate, reason)
	}

	leadID, ok := r.leads.Lookup(row.LeadExternalID)
	if !ok {
		return skip(row, domain.OutcomeSkippedNoLead, "lead not in mapping")
	}

	return e.planLoan(ctx, r, row, leadID, nil, "")
}

// prepareRenewal handles a row naming a predecessor. The predecessor must be
// committed already and must not have another successor.
func (e *Engine) prepareRenewal(ctx context.Context, r *run, row domain.LoanRow) rowPlan {
	reason, err := e.duplicateOf(ctx, r, row)
	if err != nil {
		return failed(row, err)
	}
	if reason != "" {
		return skip(row, domain.OutcomeSkippedDuplicate, reason)
	}

	leadID, ok := r.leads.Lookup(row.LeadExternalID)
	if !ok {
		return skip(row, domain.OutcomeSkippedNoLead, "lead not in mapping")
	}

	predecessor, err := e.findPredecessor(ctx, r, row.PreviousLoanExternalID)
	if err != nil {
		return failed(row, err)
	}

	if predecessor == nil {
		if !e.opts.RenewalStandaloneFallback {
			return skip(row, domain.OutcomeSkippedNoPredecessor,
				fmt.Sprintf("predecessor %s not found", row.PreviousLoanExternalID))
		}
		plan := e.planLoan(ctx, r, row, leadID, nil, "")
		plan.outcome.Renewal = false
		if plan.outcome.Tag == domain.OutcomePersisted {
			plan.outcome.Reason = fmt.Sprintf("predecessor %s not found, imported standalone", row.PreviousLoanExternalID)
		}
		return plan
	}

	hasSuccessor, err := e.store.HasSuccessor(ctx, predecessor.ID)
	if err != nil {
		return failed(row, fmt.Errorf("successor lookup: %w", err))
	}
	if hasSuccessor {
		return skip(row, domain.OutcomeSkippedRenewalConflict,
			fmt.Sprintf("loan %s is already renewed", predecessor.ExternalID))
	}

	return e.planLoan(ctx, r, row, leadID, predecessor, "prev|"+predecessor.ID.String())
}

// findPredecessor tries the route-prefixed id first and the bare id second.
func (e *Engine) findPredecessor(ctx context.Context, r *run, previousID string) (*domain.Loan, error) {
	for _, id := range []string{ExternalLoanID(r.route.Name, previousID), utils.NormalizeExternalID(previousID)} {
		loan, err := e.store.FindLoanByExternalID(ctx, id)
		if err == nil {
			return loan, nil
		}
		if !repository.IsNotFound(err) {
			return nil, fmt.Errorf("predecessor lookup %s: %w", id, err)
		}
	}
	return nil, nil
}

// planLoan resolves identities and profit figures and builds the writes of
// a loan with its disbursement, guarantor and payments.
func (e *Engine) planLoan(ctx context.Context, r *run, row domain.LoanRow, leadID uuid.UUID, predecessor *domain.Loan, predecessorClaim string) rowPlan {
	externalID := ExternalLoanID(r.route.Name, row.ExternalID)
	keys := []string{DuplicateKeyOf(row).String(), "ext|" + externalID}
	if predecessorClaim != "" {
		keys = append(keys, predecessorClaim)
	}
	if !r.claims.claim(keys...) {
		if predecessor != nil {
			return skip(row, domain.OutcomeSkippedRenewalConflict,
				fmt.Sprintf("loan %s is renewed by another row of this run", predecessor.ExternalID))
		}
		return skip(row, domain.OutcomeSkippedDuplicate, "same loan already imported in this run")
	}

	plan, err := e.buildLoan(ctx, r, row, externalID, leadID, predecessor)
	if err != nil {
		r.claims.release(keys...)
		return failed(row, err)
	}
	plan.claims = keys
	return plan
}

func (e *Engine) buildLoan(ctx context.Context, r *run, row domain.LoanRow, externalID string, leadID uuid.UUID, predecessor *domain.Loan) (rowPlan, error) {
	var borrowerID uuid.UUID
	if predecessor != nil {
		borrowerID = predecessor.BorrowerID
	} else {
		b, err := e.resolver.ResolveBorrower(ctx, row.BorrowerName, row.BorrowerPhone)
		if err != nil {
			return rowPlan{}, fmt.Errorf("resolve borrower: %w", err)
		}
		borrowerID = b.BorrowerID
	}

	guarantor, err := e.resolver.ResolveGuarantor(ctx, row.GuarantorName, row.GuarantorPhone)
	if err != nil {
		return rowPlan{}, fmt.Errorf("resolve guarantor: %w", err)
	}

	loanType, err := e.resolver.ResolveLoanType(row.WeekDuration, row.Rate)
	if err != nil {
		return rowPlan{}, fmt.Errorf("resolve loan type: %w", err)
	}

	requested := row.RequestedAmount
	if requested.IsZero() {
		requested = row.AmountGiven
	}

	figures, err := e.calc.Plan(ctx, requested, loanType.Rate, predecessor)
	if err != nil {
		return rowPlan{}, err
	}

	loan := &domain.Loan{
		ID:              uuid.New(),
		ExternalID:      externalID,
		BorrowerID:      borrowerID,
		LeadID:          leadID,
		LoanTypeID:      loanType.ID,
		RouteID:         r.route.ID,
		SignDate:        utils.DateOnly(row.SignDate),
		AmountGiven:     row.AmountGiven,
		RequestedAmount: requested,
		ProfitAmount:    figures.LoanTotalProfit,
		BadDebtDate:     row.BadDebtDate,
		Status:          domain.LoanStatusActive,
		CreatedAt:       e.now(),
		RouteSnapshot:   r.snapshot,
	}
	if predecessor != nil {
		loan.PreviousLoanID = &predecessor.ID
	}

	writes := []write{
		func(ctx context.Context, w repository.Writer) error { return w.CreateLoan(ctx, loan) },
	}
	if guarantor != nil {
		gid := *guarantor
		writes = append(writes, func(ctx context.Context, w repository.Writer) error {
			return w.LinkCollateral(ctx, loan.ID, gid)
		})
	}

	disbursement := e.transaction(r, row.AmountGiven, loan.SignDate, &leadID)
	disbursement.Type = domain.TransactionTypeExpense
	disbursement.ExpenseSource = domain.ExpenseSourceLoanGranted
	disbursement.SourceAccountID = &r.cashFund.ID
	disbursement.LoanID = &loan.ID
	disbursement.Description = "Prestamo " + externalID
	writes = append(writes, createTransaction(disbursement))

	payments := r.payments[utils.NormalizeExternalID(row.ExternalID)]
	for _, p := range payments {
		writes = append(writes, e.paymentWrites(r, loan, figures, p, leadID)...)
	}

	loanID := loan.ID
	return rowPlan{
		outcome: domain.Outcome{
			Tag:            domain.OutcomePersisted,
			Row:            row.Row,
			ExternalID:     row.ExternalID,
			BorrowerName:   row.BorrowerName,
			LeadExternalID: row.LeadExternalID,
			LoanID:         &loanID,
			Renewal:        predecessor != nil,
			Payments:       len(payments),
		},
		writes: writes,
	}, nil
}

func (e *Engine) paymentWrites(r *run, loan *domain.Loan, figures profit.Plan, row domain.PaymentRow, leadID uuid.UUID) []write {
	split := figures.Split(row.Amount, loan.BadDebtDate, row.ReceivedAt)

	payment := &domain.Payment{
		ID:              uuid.New(),
		LoanID:          loan.ID,
		ReceivedAt:      utils.DateOnly(row.ReceivedAt),
		Amount:          row.Amount,
		Type:            row.Type,
		Description:     row.Description,
		ProfitAmount:    split.Profit,
		ReturnToCapital: split.Capital,
	}

	tx := e.transaction(r, row.Amount, payment.ReceivedAt, &leadID)
	tx.Type = domain.TransactionTypeIncome
	tx.IncomeSource = IncomeSourceForPayment(row.Type)
	tx.DestinationAccountID = &r.accountFor(row.Type).ID
	tx.LoanID = &loan.ID
	tx.LoanPaymentID = &payment.ID
	tx.ProfitAmount = split.Profit
	tx.ReturnToCapital = split.Capital
	tx.Description = row.Description

	return []write{
		func(ctx context.Context, w repository.Writer) error { return w.CreatePayment(ctx, payment) },
		createTransaction(tx),
	}
}

// transaction returns a ledger entry stamped with the run's route snapshot.
func (e *Engine) transaction(r *run, amount decimal.Decimal, date time.Time, leadID *uuid.UUID) *domain.Transaction {
	return &domain.Transaction{
		ID:            uuid.New(),
		Amount:        amount,
		Date:          utils.DateOnly(date),
		LeadID:        leadID,
		RouteID:       r.route.ID,
		RouteSnapshot: r.snapshot,
	}
}

func createTransaction(tx *domain.Transaction) write {
	return func(ctx context.Context, w repository.Writer) error { return w.CreateTransaction(ctx, tx) }
}
