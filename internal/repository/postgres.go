package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresStore implements Store on top of sqlx. A store created by WithinTx
// shares the connection pool but routes every statement through the open
// transaction.
type PostgresStore struct {
	db *sqlx.DB
	q  sqlx.ExtContext
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(w Writer) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&PostgresStore{db: s.db, q: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// IsNotFound reports whether err means a lookup matched nothing.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
