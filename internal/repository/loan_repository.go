package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-importer/internal/domain"
)

const loanColumns = `
	l.id, l.external_id, l.borrower_id, l.lead_id, l.loan_type_id, l.route_id, l.sign_date,
	l.amount_given, l.requested_amount, l.profit_amount, l.previous_loan_id, l.bad_debt_date,
	l.finished_date, l.status, l.total_debt_acquired, l.expected_weekly_payment, l.total_paid,
	l.pending_amount_stored, lt.rate, lt.week_duration, l.created_at,
	l.snapshot_route_id, l.snapshot_route_name, l.snapshot_lead_id, l.snapshot_lead_name,
	l.snapshot_lead_assigned_at
`

func (s *PostgresStore) CreateLoan(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (
			id, external_id, borrower_id, lead_id, loan_type_id, route_id, sign_date,
			amount_given, requested_amount, profit_amount, previous_loan_id, bad_debt_date,
			finished_date, status, snapshot_route_id, snapshot_route_name, snapshot_lead_id,
			snapshot_lead_name, snapshot_lead_assigned_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := s.q.ExecContext(ctx, query,
		loan.ID,
		loan.ExternalID,
		loan.BorrowerID,
		loan.LeadID,
		loan.LoanTypeID,
		loan.RouteID,
		loan.SignDate,
		loan.AmountGiven,
		loan.RequestedAmount,
		loan.ProfitAmount,
		loan.PreviousLoanID,
		loan.BadDebtDate,
		loan.FinishedDate,
		loan.Status,
		loan.SnapshotRouteID,
		loan.SnapshotRouteName,
		loan.SnapshotLeadID,
		loan.SnapshotLeadName,
		loan.SnapshotLeadAssignedAt,
		loan.CreatedAt,
	)

	return err
}

func (s *PostgresStore) FindLoanByExternalID(ctx context.Context, externalID string) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + `
		FROM loans l
		JOIN loan_types lt ON lt.id = l.loan_type_id
		WHERE l.external_id = $1
	`

	var loan domain.Loan
	if err := sqlx.GetContext(ctx, s.q, &loan, query, externalID); err != nil {
		return nil, err
	}

	return &loan, nil
}

// FindDuplicateLoan matches on borrower name, sign date and amount given.
// Route is deliberately not part of the key.
func (s *PostgresStore) FindDuplicateLoan(ctx context.Context, normalizedBorrowerName string, signDate time.Time, amountGiven decimal.Decimal) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + `
		FROM loans l
		JOIN loan_types lt ON lt.id = l.loan_type_id
		JOIN borrowers b ON b.id = l.borrower_id
		JOIN personal_data pd ON pd.id = b.personal_data_id
		WHERE pd.normalized_name = $1 AND l.sign_date = $2 AND l.amount_given = $3
		LIMIT 1
	`

	var loan domain.Loan
	if err := sqlx.GetContext(ctx, s.q, &loan, query, normalizedBorrowerName, signDate, amountGiven); err != nil {
		return nil, err
	}

	return &loan, nil
}

func (s *PostgresStore) HasSuccessor(ctx context.Context, loanID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM loans WHERE previous_loan_id = $1)`

	var exists bool
	if err := sqlx.GetContext(ctx, s.q, &exists, query, loanID); err != nil {
		return false, err
	}

	return exists, nil
}

func (s *PostgresStore) ListLoansByRoute(ctx context.Context, routeID uuid.UUID) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + `
		FROM loans l
		JOIN loan_types lt ON lt.id = l.loan_type_id
		WHERE l.route_id = $1
		ORDER BY l.sign_date, l.external_id
	`

	var loans []*domain.Loan
	if err := sqlx.SelectContext(ctx, s.q, &loans, query, routeID); err != nil {
		return nil, err
	}

	return loans, nil
}

func (s *PostgresStore) UpdateLoanLifecycle(ctx context.Context, update domain.LoanLifecycleUpdate) error {
	query := `
		UPDATE loans
		SET status = $2, finished_date = $3, total_debt_acquired = $4, expected_weekly_payment = $5,
			total_paid = $6, pending_amount_stored = $7
		WHERE id = $1
	`

	_, err := s.q.ExecContext(ctx, query,
		update.LoanID,
		update.Status,
		update.FinishedDate,
		update.TotalDebtAcquired,
		update.ExpectedWeeklyPayment,
		update.TotalPaid,
		update.PendingAmountStored,
	)

	return err
}

// LinkCollateral relies on the composite primary key so relinking is a no-op.
func (s *PostgresStore) LinkCollateral(ctx context.Context, loanID, guarantorPersonalDataID uuid.UUID) error {
	query := `
		INSERT INTO loan_collaterals (loan_id, personal_data_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`

	_, err := s.q.ExecContext(ctx, query, loanID, guarantorPersonalDataID)
	return err
}
