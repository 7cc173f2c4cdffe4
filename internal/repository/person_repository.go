package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-importer/internal/domain"
)

func (s *PostgresStore) FindPersonalData(ctx context.Context, kind, normalizedName string) (*domain.PersonalData, error) {
	query := `
		SELECT pd.id, pd.kind, pd.full_name, pd.normalized_name, pd.client_code, COALESCE(ph.number, '') AS phone
		FROM personal_data pd
		LEFT JOIN phones ph ON ph.personal_data_id = pd.id
		WHERE pd.kind = $1 AND pd.normalized_name = $2
	`

	var pd domain.PersonalData
	if err := sqlx.GetContext(ctx, s.q, &pd, query, kind, normalizedName); err != nil {
		return nil, err
	}

	return &pd, nil
}

func (s *PostgresStore) CreatePersonalData(ctx context.Context, pd *domain.PersonalData) error {
	query := `
		INSERT INTO personal_data (id, kind, full_name, normalized_name, client_code)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := s.q.ExecContext(ctx, query, pd.ID, pd.Kind, pd.FullName, pd.NormalizedName, pd.ClientCode); err != nil {
		return err
	}

	if pd.Phone == "" {
		return nil
	}
	return s.UpdatePhone(ctx, pd.ID, pd.Phone)
}

func (s *PostgresStore) UpdatePhone(ctx context.Context, personalDataID uuid.UUID, phone string) error {
	query := `
		INSERT INTO phones (personal_data_id, number)
		VALUES ($1, $2)
		ON CONFLICT (personal_data_id) DO UPDATE SET number = EXCLUDED.number
	`

	_, err := s.q.ExecContext(ctx, query, personalDataID, phone)
	return err
}

func (s *PostgresStore) FindBorrowerByPersonalData(ctx context.Context, personalDataID uuid.UUID) (*domain.Borrower, error) {
	query := `SELECT id, personal_data_id FROM borrowers WHERE personal_data_id = $1`

	var b domain.Borrower
	if err := sqlx.GetContext(ctx, s.q, &b, query, personalDataID); err != nil {
		return nil, err
	}

	return &b, nil
}

func (s *PostgresStore) CreateBorrower(ctx context.Context, borrower *domain.Borrower) error {
	query := `INSERT INTO borrowers (id, personal_data_id) VALUES ($1, $2)`

	_, err := s.q.ExecContext(ctx, query, borrower.ID, borrower.PersonalDataID)
	return err
}

func (s *PostgresStore) ListEmployees(ctx context.Context) ([]*domain.Employee, error) {
	query := `
		SELECT e.id, e.personal_data_id, COALESCE(e.route_id, '00000000-0000-0000-0000-000000000000') AS route_id,
			e.external_id, e.type, pd.full_name
		FROM employees e
		JOIN personal_data pd ON pd.id = e.personal_data_id
		ORDER BY e.created_at
	`

	var employees []*domain.Employee
	if err := sqlx.SelectContext(ctx, s.q, &employees, query); err != nil {
		return nil, err
	}

	return employees, nil
}

func (s *PostgresStore) CreateEmployee(ctx context.Context, employee *domain.Employee) error {
	query := `
		INSERT INTO employees (id, personal_data_id, route_id, external_id, type)
		VALUES ($1, $2, $3, $4, $5)
	`

	var routeID *uuid.UUID
	if employee.RouteID != uuid.Nil {
		routeID = &employee.RouteID
	}

	_, err := s.q.ExecContext(ctx, query, employee.ID, employee.PersonalDataID, routeID, employee.ExternalID, employee.Type)
	return err
}

func (s *PostgresStore) ListLoanTypes(ctx context.Context) ([]*domain.LoanType, error) {
	query := `
		SELECT id, name, week_duration, rate, loan_granted_comission, loan_payment_comission
		FROM loan_types
		ORDER BY week_duration, rate
	`

	var types []*domain.LoanType
	if err := sqlx.SelectContext(ctx, s.q, &types, query); err != nil {
		return nil, err
	}

	return types, nil
}

func (s *PostgresStore) CreateLoanType(ctx context.Context, lt *domain.LoanType) error {
	query := `
		INSERT INTO loan_types (id, name, week_duration, rate, loan_granted_comission, loan_payment_comission)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.q.ExecContext(ctx, query, lt.ID, lt.Name, lt.WeekDuration, lt.Rate, lt.LoanGrantedComission, lt.LoanPaymentComission)
	return err
}
