package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-importer/internal/domain"
)

func (s *PostgresStore) FindWriteOffByExternalID(ctx context.Context, externalID string) (*domain.WriteOff, error) {
	query := `
		SELECT id, external_id, route_id, borrower_name, amount, outstanding, date, transaction_id
		FROM write_offs
		WHERE external_id = $1
	`

	var w domain.WriteOff
	if err := sqlx.GetContext(ctx, s.q, &w, query, externalID); err != nil {
		return nil, err
	}

	return &w, nil
}

func (s *PostgresStore) CreateWriteOff(ctx context.Context, w *domain.WriteOff) error {
	query := `
		INSERT INTO write_offs (id, external_id, route_id, borrower_name, amount, outstanding, date, transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.q.ExecContext(ctx, query, w.ID, w.ExternalID, w.RouteID, w.BorrowerName, w.Amount, w.Outstanding, w.Date, w.TransactionID)
	return err
}

func (s *PostgresStore) CreateWriteOffRecovery(ctx context.Context, r *domain.WriteOffRecovery) error {
	query := `
		INSERT INTO write_off_recoveries (id, write_off_id, amount, received_at, transaction_id)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := s.q.ExecContext(ctx, query, r.ID, r.WriteOffID, r.Amount, r.ReceivedAt, r.TransactionID); err != nil {
		return err
	}

	update := `UPDATE write_offs SET outstanding = GREATEST(outstanding - $2, 0) WHERE id = $1`
	_, err := s.q.ExecContext(ctx, update, r.WriteOffID, r.Amount)
	return err
}
