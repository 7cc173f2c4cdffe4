package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-importer/internal/domain"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPostgresStore(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresStore_FindLoanByExternalID_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE l.external_id = $1")).
		WithArgs("RUTA1-77").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.FindLoanByExternalID(context.Background(), "RUTA1-77")
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_HasSuccessor(t *testing.T) {
	store, mock := newMockStore(t)
	loanID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM loans WHERE previous_loan_id = $1)")).
		WithArgs(loanID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	has, err := store.HasSuccessor(context.Background(), loanID)
	require.NoError(t, err)
	assert.True(t, has)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountExpenses(t *testing.T) {
	store, mock := newMockStore(t)
	routeID := uuid.New()
	date := time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC)
	amount := decimal.NewFromInt(200)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM transactions")).
		WithArgs(routeID, date, amount, domain.ExpenseSourceGasoline, "Gasolina").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := store.CountExpenses(context.Background(), routeID, date, amount, domain.ExpenseSourceGasoline, "Gasolina")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TotalProfitPaid(t *testing.T) {
	store, mock := newMockStore(t)
	loanID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(profit_amount), 0)")).
		WithArgs(loanID).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("40.00"))

	total, err := store.TotalProfitPaid(context.Background(), loanID)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(40)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PaymentStatsByRoute(t *testing.T) {
	store, mock := newMockStore(t)
	routeID := uuid.New()
	loanID := uuid.New()
	last := time.Date(2023, 3, 12, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY p.loan_id")).
		WithArgs(routeID).
		WillReturnRows(sqlmock.NewRows([]string{"loan_id", "total_paid", "last_payment_at", "payment_count"}).
			AddRow(loanID.String(), "1000.00", last, 3))

	stats, err := store.PaymentStatsByRoute(context.Background(), routeID)
	require.NoError(t, err)
	require.Contains(t, stats, loanID)
	assert.Equal(t, 3, stats[loanID].Count)
	assert.True(t, stats[loanID].TotalPaid.Equal(decimal.NewFromInt(1000)))
	assert.True(t, stats[loanID].LastPaymentAt.Equal(last))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WithinTx(t *testing.T) {
	payment := &domain.Payment{
		ID:         uuid.New(),
		LoanID:     uuid.New(),
		ReceivedAt: time.Date(2023, 3, 12, 0, 0, 0, 0, time.UTC),
		Amount:     decimal.NewFromInt(140),
		Type:       domain.PaymentTypeCash,
	}

	tests := []struct {
		name      string
		execErr   error
		expectErr bool
	}{
		{name: "commits when every write succeeds"},
		{name: "rolls back when a write fails", execErr: errors.New("unique violation"), expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)

			mock.ExpectBegin()
			exec := mock.ExpectExec(regexp.QuoteMeta("INSERT INTO loan_payments")).
				WithArgs(payment.ID, payment.LoanID, payment.ReceivedAt, payment.Amount, payment.Type, payment.Description)
			if tt.execErr != nil {
				exec.WillReturnError(tt.execErr)
				mock.ExpectRollback()
			} else {
				exec.WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			}

			err := store.WithinTx(context.Background(), func(w Writer) error {
				return w.CreatePayment(context.Background(), payment)
			})

			if tt.expectErr {
				assert.ErrorIs(t, err, tt.execErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_LinkCollateral_IgnoresConflict(t *testing.T) {
	store, mock := newMockStore(t)
	loanID, pdID := uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT DO NOTHING")).
		WithArgs(loanID, pdID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, store.LinkCollateral(context.Background(), loanID, pdID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateWriteOffRecovery_ReducesOutstanding(t *testing.T) {
	store, mock := newMockStore(t)
	recovery := &domain.WriteOffRecovery{
		ID:            uuid.New(),
		WriteOffID:    uuid.New(),
		Amount:        decimal.NewFromInt(200),
		ReceivedAt:    time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC),
		TransactionID: uuid.New(),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO write_off_recoveries")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE write_offs SET outstanding = GREATEST(outstanding - $2, 0)")).
		WithArgs(recovery.WriteOffID, recovery.Amount).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.CreateWriteOffRecovery(context.Background(), recovery))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EnsureAccount(t *testing.T) {
	store, mock := newMockStore(t)
	routeID := uuid.New()
	accountID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (route_id, type) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE route_id = $1 AND type = $2")).
		WithArgs(routeID, domain.AccountTypeBank).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "type", "route_id", "amount"}).
			AddRow(accountID.String(), "Banco RUTA1", domain.AccountTypeBank, routeID.String(), "0"))

	account, err := store.EnsureAccount(context.Background(), routeID, domain.AccountTypeBank, "Banco RUTA1")
	require.NoError(t, err)
	assert.Equal(t, accountID, account.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindPersonalData_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE pd.kind = $1 AND pd.normalized_name = $2")).
		WithArgs(domain.PersonKindGuarantor, "MARIA SOTO").
		WillReturnError(sql.ErrNoRows)

	_, err := store.FindPersonalData(context.Background(), domain.PersonKindGuarantor, "MARIA SOTO")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
