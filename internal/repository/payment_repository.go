package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-importer/internal/domain"
)

func (s *PostgresStore) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO loan_payments (id, loan_id, received_at, amount, type, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.q.ExecContext(ctx, query,
		payment.ID,
		payment.LoanID,
		payment.ReceivedAt,
		payment.Amount,
		payment.Type,
		payment.Description,
	)

	return err
}

func (s *PostgresStore) GetPaymentsByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error) {
	query := `
		SELECT id, loan_id, received_at, amount, type, description
		FROM loan_payments
		WHERE loan_id = $1
		ORDER BY received_at
	`

	var payments []*domain.Payment
	if err := sqlx.SelectContext(ctx, s.q, &payments, query, loanID); err != nil {
		return nil, err
	}

	return payments, nil
}

func (s *PostgresStore) PaymentStatsByRoute(ctx context.Context, routeID uuid.UUID) (map[uuid.UUID]domain.PaymentStats, error) {
	query := `
		SELECT p.loan_id, COALESCE(SUM(p.amount), 0) AS total_paid, MAX(p.received_at) AS last_payment_at,
			COUNT(*) AS payment_count
		FROM loan_payments p
		JOIN loans l ON l.id = p.loan_id
		WHERE l.route_id = $1
		GROUP BY p.loan_id
	`

	var rows []domain.PaymentStats
	if err := sqlx.SelectContext(ctx, s.q, &rows, query, routeID); err != nil {
		return nil, err
	}

	stats := make(map[uuid.UUID]domain.PaymentStats, len(rows))
	for _, r := range rows {
		stats[r.LoanID] = r
	}
	return stats, nil
}

func (s *PostgresStore) TotalProfitPaid(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(profit_amount), 0)
		FROM transactions
		WHERE loan_id = $1 AND loan_payment_id IS NOT NULL AND type = 'INCOME'
	`

	var total decimal.Decimal
	if err := sqlx.GetContext(ctx, s.q, &total, query, loanID); err != nil {
		return decimal.Zero, err
	}

	return total, nil
}
