package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-importer/internal/domain"
)

func (s *PostgresStore) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, amount, date, type, income_source, expense_source, source_account_id,
			destination_account_id, loan_id, loan_payment_id, lead_id, route_id, profit_amount,
			return_to_capital, description, snapshot_route_id, snapshot_route_name,
			snapshot_lead_id, snapshot_lead_name, snapshot_lead_assigned_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := s.q.ExecContext(ctx, query,
		tx.ID,
		tx.Amount,
		tx.Date,
		tx.Type,
		tx.IncomeSource,
		tx.ExpenseSource,
		tx.SourceAccountID,
		tx.DestinationAccountID,
		tx.LoanID,
		tx.LoanPaymentID,
		tx.LeadID,
		tx.RouteID,
		tx.ProfitAmount,
		tx.ReturnToCapital,
		tx.Description,
		tx.SnapshotRouteID,
		tx.SnapshotRouteName,
		tx.SnapshotLeadID,
		tx.SnapshotLeadName,
		tx.SnapshotLeadAssignedAt,
	)

	return err
}

func (s *PostgresStore) EnsureAccount(ctx context.Context, routeID uuid.UUID, accountType, name string) (*domain.Account, error) {
	insert := `
		INSERT INTO accounts (id, name, type, route_id, amount)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT (route_id, type) DO NOTHING
	`
	if _, err := s.q.ExecContext(ctx, insert, uuid.New(), name, accountType, routeID); err != nil {
		return nil, err
	}

	query := `SELECT id, name, type, route_id, amount FROM accounts WHERE route_id = $1 AND type = $2`

	var account domain.Account
	if err := sqlx.GetContext(ctx, s.q, &account, query, routeID, accountType); err != nil {
		return nil, err
	}

	return &account, nil
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	query := `SELECT id, name, type, route_id, amount FROM accounts ORDER BY name`

	var accounts []*domain.Account
	if err := sqlx.SelectContext(ctx, s.q, &accounts, query); err != nil {
		return nil, err
	}

	return accounts, nil
}

func (s *PostgresStore) CountExpenses(ctx context.Context, routeID uuid.UUID, date time.Time, amount decimal.Decimal, expenseSource, description string) (int, error) {
	query := `
		SELECT COUNT(*) FROM transactions
		WHERE type = 'EXPENSE' AND route_id = $1 AND date = $2 AND amount = $3
			AND expense_source = $4 AND description = $5
	`

	var count int
	if err := sqlx.GetContext(ctx, s.q, &count, query, routeID, date, amount, expenseSource, description); err != nil {
		return 0, err
	}

	return count, nil
}

// RefreshAccountBalances sets balance = incoming INCOME - outgoing EXPENSE.
func (s *PostgresStore) RefreshAccountBalances(ctx context.Context) error {
	query := `
		UPDATE accounts a
		SET amount = COALESCE((
			SELECT SUM(t.amount) FROM transactions t
			WHERE t.type = 'INCOME' AND t.destination_account_id = a.id
		), 0) - COALESCE((
			SELECT SUM(t.amount) FROM transactions t
			WHERE t.type = 'EXPENSE' AND t.source_account_id = a.id
		), 0)
	`

	_, err := s.q.ExecContext(ctx, query)
	return err
}
