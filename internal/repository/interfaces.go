package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-importer/internal/domain"
)

// Lookups return sql.ErrNoRows when nothing matches.

// PersonRepository defines personal data and borrower operations
type PersonRepository interface {
	// FindPersonalData finds personal data by identity space and normalized name
	FindPersonalData(ctx context.Context, kind, normalizedName string) (*domain.PersonalData, error)

	// CreatePersonalData creates personal data and its phone, if any
	CreatePersonalData(ctx context.Context, pd *domain.PersonalData) error

	// UpdatePhone replaces the stored phone of a person
	UpdatePhone(ctx context.Context, personalDataID uuid.UUID, phone string) error

	// FindBorrowerByPersonalData finds the borrower linked to personal data
	FindBorrowerByPersonalData(ctx context.Context, personalDataID uuid.UUID) (*domain.Borrower, error)

	// CreateBorrower creates a borrower
	CreateBorrower(ctx context.Context, borrower *domain.Borrower) error
}

// EmployeeRepository defines employee (lead) operations
type EmployeeRepository interface {
	// ListEmployees lists every employee with its full name
	ListEmployees(ctx context.Context) ([]*domain.Employee, error)

	// CreateEmployee creates an employee
	CreateEmployee(ctx context.Context, employee *domain.Employee) error
}

// LoanTypeRepository defines loan type operations
type LoanTypeRepository interface {
	ListLoanTypes(ctx context.Context) ([]*domain.LoanType, error)
	CreateLoanType(ctx context.Context, loanType *domain.LoanType) error
}

// LoanRepository defines loan read operations
type LoanRepository interface {
	// FindLoanByExternalID retrieves a loan by its external ID
	FindLoanByExternalID(ctx context.Context, externalID string) (*domain.Loan, error)

	// FindDuplicateLoan finds a loan with the same borrower name, sign date and amount given
	FindDuplicateLoan(ctx context.Context, normalizedBorrowerName string, signDate time.Time, amountGiven decimal.Decimal) (*domain.Loan, error)

	// HasSuccessor reports whether some loan renews the given loan
	HasSuccessor(ctx context.Context, loanID uuid.UUID) (bool, error)

	// ListLoansByRoute lists the loans of a route with their loan type terms
	ListLoansByRoute(ctx context.Context, routeID uuid.UUID) ([]*domain.Loan, error)
}

// PaymentRepository defines payment aggregate operations
type PaymentRepository interface {
	// GetPaymentsByLoanID retrieves all payments for a loan
	GetPaymentsByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error)

	// PaymentStatsByRoute aggregates payments per loan for a route
	PaymentStatsByRoute(ctx context.Context, routeID uuid.UUID) (map[uuid.UUID]domain.PaymentStats, error)

	// TotalProfitPaid sums the profit portion of a loan's payment transactions
	TotalProfitPaid(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error)
}

// LedgerRepository defines account and transaction operations
type LedgerRepository interface {
	// EnsureAccount returns the route account of the given type, creating it if missing
	EnsureAccount(ctx context.Context, routeID uuid.UUID, accountType, name string) (*domain.Account, error)

	// ListAccounts lists every account
	ListAccounts(ctx context.Context) ([]*domain.Account, error)

	// CountExpenses counts the persisted expense transactions with these fields
	CountExpenses(ctx context.Context, routeID uuid.UUID, date time.Time, amount decimal.Decimal, expenseSource, description string) (int, error)

	// RefreshAccountBalances recomputes every account balance from its transactions
	RefreshAccountBalances(ctx context.Context) error
}

// RouteRepository supplies routes and their audit snapshot
type RouteRepository interface {
	EnsureRoute(ctx context.Context, name string) (*domain.Route, error)
	FindRouteByName(ctx context.Context, name string) (*domain.Route, error)
	ListRoutes(ctx context.Context) ([]*domain.Route, error)

	// RouteSnapshot returns the route and its assigned lead at the time of the call
	RouteSnapshot(ctx context.Context, routeID uuid.UUID) (domain.RouteSnapshot, error)
}

// WriteOffRepository defines write-off lookups
type WriteOffRepository interface {
	FindWriteOffByExternalID(ctx context.Context, externalID string) (*domain.WriteOff, error)
}

// Writer holds every mutation issued by a batch. Inside WithinTx all of them
// commit together or not at all.
type Writer interface {
	CreateLoan(ctx context.Context, loan *domain.Loan) error
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error

	// LinkCollateral links a guarantor to a loan; linking the same pair twice is a no-op
	LinkCollateral(ctx context.Context, loanID, guarantorPersonalDataID uuid.UUID) error

	CreateWriteOff(ctx context.Context, writeOff *domain.WriteOff) error
	CreateWriteOffRecovery(ctx context.Context, recovery *domain.WriteOffRecovery) error
	UpdateLoanLifecycle(ctx context.Context, update domain.LoanLifecycleUpdate) error
}

// Store is the full persistence surface used by the importer.
type Store interface {
	PersonRepository
	EmployeeRepository
	LoanTypeRepository
	LoanRepository
	PaymentRepository
	LedgerRepository
	RouteRepository
	WriteOffRepository
	Writer

	// WithinTx runs fn against a writer whose writes commit atomically
	WithinTx(ctx context.Context, fn func(w Writer) error) error

	// Ping checks connectivity
	Ping(ctx context.Context) error
}
