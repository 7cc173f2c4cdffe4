// Package memory is an in-process Store used for dry runs and tests. It keeps
// the uniqueness rules of the Postgres schema so that batches fail the same
// way they would against the database.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-importer/internal/domain"
	"github.com/segyhp/loan-importer/internal/repository"
)

type collateralKey struct {
	loanID         uuid.UUID
	personalDataID uuid.UUID
}

// state is copied on every transaction. Stored values are never mutated in
// place, so a shallow copy of each map is enough to roll back.
type state struct {
	routes        map[uuid.UUID]domain.Route
	personalData  map[uuid.UUID]domain.PersonalData
	borrowers     map[uuid.UUID]domain.Borrower
	employees     map[uuid.UUID]domain.Employee
	employeeSince map[uuid.UUID]time.Time
	loanTypes     map[uuid.UUID]domain.LoanType
	loans         map[uuid.UUID]domain.Loan
	payments      map[uuid.UUID]domain.Payment
	transactions  map[uuid.UUID]domain.Transaction
	accounts      map[uuid.UUID]domain.Account
	collaterals   map[collateralKey]struct{}
	writeOffs     map[uuid.UUID]domain.WriteOff
	recoveries    map[uuid.UUID]domain.WriteOffRecovery
}

func newState() *state {
	return &state{
		routes:        make(map[uuid.UUID]domain.Route),
		personalData:  make(map[uuid.UUID]domain.PersonalData),
		borrowers:     make(map[uuid.UUID]domain.Borrower),
		employees:     make(map[uuid.UUID]domain.Employee),
		employeeSince: make(map[uuid.UUID]time.Time),
		loanTypes:     make(map[uuid.UUID]domain.LoanType),
		loans:         make(map[uuid.UUID]domain.Loan),
		payments:      make(map[uuid.UUID]domain.Payment),
		transactions:  make(map[uuid.UUID]domain.Transaction),
		accounts:      make(map[uuid.UUID]domain.Account),
		collaterals:   make(map[collateralKey]struct{}),
		writeOffs:     make(map[uuid.UUID]domain.WriteOff),
		recoveries:    make(map[uuid.UUID]domain.WriteOffRecovery),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		routes:        cloneMap(s.routes),
		personalData:  cloneMap(s.personalData),
		borrowers:     cloneMap(s.borrowers),
		employees:     cloneMap(s.employees),
		employeeSince: cloneMap(s.employeeSince),
		loanTypes:     cloneMap(s.loanTypes),
		loans:         cloneMap(s.loans),
		payments:      cloneMap(s.payments),
		transactions:  cloneMap(s.transactions),
		accounts:      cloneMap(s.accounts),
		collaterals:   cloneMap(s.collaterals),
		writeOffs:     cloneMap(s.writeOffs),
		recoveries:    cloneMap(s.recoveries),
	}
}

// Store implements repository.Store in memory.
type Store struct {
	mu  sync.RWMutex
	st  *state
	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

// WithinTx buffers the writes issued by fn and applies them to a copy of the
// current state. The copy replaces the state only if every write succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(w repository.Writer) error) error {
	tx := &txWriter{}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.st.clone()
	for _, op := range tx.ops {
		if err := op(next); err != nil {
			return err
		}
	}
	s.st = next
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// apply runs a single write outside WithinTx.
func (s *Store) apply(op func(*state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.st.clone()
	if err := op(next); err != nil {
		return err
	}
	s.st = next
	return nil
}

func (s *Store) CreateLoan(ctx context.Context, loan *domain.Loan) error {
	return s.apply(createLoan(*loan))
}

func (s *Store) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	return s.apply(createPayment(*payment))
}

func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	return s.apply(createTransaction(*tx))
}

func (s *Store) LinkCollateral(ctx context.Context, loanID, guarantorPersonalDataID uuid.UUID) error {
	return s.apply(linkCollateral(loanID, guarantorPersonalDataID))
}

func (s *Store) CreateWriteOff(ctx context.Context, writeOff *domain.WriteOff) error {
	return s.apply(createWriteOff(*writeOff))
}

func (s *Store) CreateWriteOffRecovery(ctx context.Context, recovery *domain.WriteOffRecovery) error {
	return s.apply(createWriteOffRecovery(*recovery))
}

func (s *Store) UpdateLoanLifecycle(ctx context.Context, update domain.LoanLifecycleUpdate) error {
	return s.apply(updateLoanLifecycle(update))
}

// txWriter records writes until WithinTx commits them.
type txWriter struct {
	ops []func(*state) error
}

func (w *txWriter) CreateLoan(ctx context.Context, loan *domain.Loan) error {
	w.ops = append(w.ops, createLoan(*loan))
	return nil
}

func (w *txWriter) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	w.ops = append(w.ops, createPayment(*payment))
	return nil
}

func (w *txWriter) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	w.ops = append(w.ops, createTransaction(*tx))
	return nil
}

func (w *txWriter) LinkCollateral(ctx context.Context, loanID, guarantorPersonalDataID uuid.UUID) error {
	w.ops = append(w.ops, linkCollateral(loanID, guarantorPersonalDataID))
	return nil
}

func (w *txWriter) CreateWriteOff(ctx context.Context, writeOff *domain.WriteOff) error {
	w.ops = append(w.ops, createWriteOff(*writeOff))
	return nil
}

func (w *txWriter) CreateWriteOffRecovery(ctx context.Context, recovery *domain.WriteOffRecovery) error {
	w.ops = append(w.ops, createWriteOffRecovery(*recovery))
	return nil
}

func (w *txWriter) UpdateLoanLifecycle(ctx context.Context, update domain.LoanLifecycleUpdate) error {
	w.ops = append(w.ops, updateLoanLifecycle(update))
	return nil
}

func createLoan(loan domain.Loan) func(*state) error {
	return func(st *state) error {
		if _, ok := st.loans[loan.ID]; ok {
			return fmt.Errorf("loan %s already exists", loan.ID)
		}
		if _, ok := st.loanTypes[loan.LoanTypeID]; !ok {
			return fmt.Errorf("loan type %s does not exist", loan.LoanTypeID)
		}
		for _, existing := range st.loans {
			if existing.ExternalID == loan.ExternalID {
				return fmt.Errorf("duplicate loan external id %s", loan.ExternalID)
			}
			if loan.PreviousLoanID != nil && existing.PreviousLoanID != nil && *existing.PreviousLoanID == *loan.PreviousLoanID {
				return fmt.Errorf("loan %s already has a successor", *loan.PreviousLoanID)
			}
		}
		if loan.PreviousLoanID != nil {
			if _, ok := st.loans[*loan.PreviousLoanID]; !ok {
				return fmt.Errorf("previous loan %s does not exist", *loan.PreviousLoanID)
			}
		}
		st.loans[loan.ID] = loan
		return nil
	}
}

func createPayment(payment domain.Payment) func(*state) error {
	return func(st *state) error {
		if _, ok := st.loans[payment.LoanID]; !ok {
			return fmt.Errorf("payment %s references unknown loan %s", payment.ID, payment.LoanID)
		}
		if _, ok := st.payments[payment.ID]; ok {
			return fmt.Errorf("payment %s already exists", payment.ID)
		}
		st.payments[payment.ID] = payment
		return nil
	}
}

func createTransaction(tx domain.Transaction) func(*state) error {
	return func(st *state) error {
		if _, ok := st.transactions[tx.ID]; ok {
			return fmt.Errorf("transaction %s already exists", tx.ID)
		}
		if tx.LoanPaymentID != nil {
			if _, ok := st.payments[*tx.LoanPaymentID]; !ok {
				return fmt.Errorf("transaction %s references unknown payment %s", tx.ID, *tx.LoanPaymentID)
			}
			for _, existing := range st.transactions {
				if existing.LoanPaymentID != nil && *existing.LoanPaymentID == *tx.LoanPaymentID {
					return fmt.Errorf("payment %s already has a transaction", *tx.LoanPaymentID)
				}
			}
		}
		st.transactions[tx.ID] = tx
		return nil
	}
}

func linkCollateral(loanID, personalDataID uuid.UUID) func(*state) error {
	return func(st *state) error {
		if _, ok := st.loans[loanID]; !ok {
			return fmt.Errorf("collateral references unknown loan %s", loanID)
		}
		st.collaterals[collateralKey{loanID: loanID, personalDataID: personalDataID}] = struct{}{}
		return nil
	}
}

func createWriteOff(w domain.WriteOff) func(*state) error {
	return func(st *state) error {
		for _, existing := range st.writeOffs {
			if existing.ExternalID == w.ExternalID {
				return fmt.Errorf("duplicate write-off external id %s", w.ExternalID)
			}
		}
		if _, ok := st.transactions[w.TransactionID]; !ok {
			return fmt.Errorf("write-off %s references unknown transaction %s", w.ExternalID, w.TransactionID)
		}
		st.writeOffs[w.ID] = w
		return nil
	}
}

func createWriteOffRecovery(r domain.WriteOffRecovery) func(*state) error {
	return func(st *state) error {
		w, ok := st.writeOffs[r.WriteOffID]
		if !ok {
			return fmt.Errorf("recovery references unknown write-off %s", r.WriteOffID)
		}
		st.recoveries[r.ID] = r
		w.Outstanding = w.Outstanding.Sub(r.Amount)
		if w.Outstanding.IsNegative() {
			w.Outstanding = decimal.Zero
		}
		st.writeOffs[w.ID] = w
		return nil
	}
}

func updateLoanLifecycle(u domain.LoanLifecycleUpdate) func(*state) error {
	return func(st *state) error {
		loan, ok := st.loans[u.LoanID]
		if !ok {
			return fmt.Errorf("loan %s not found", u.LoanID)
		}
		loan.Status = u.Status
		loan.FinishedDate = u.FinishedDate
		loan.TotalDebtAcquired = u.TotalDebtAcquired
		loan.ExpectedWeeklyPayment = u.ExpectedWeeklyPayment
		loan.TotalPaid = u.TotalPaid
		loan.PendingAmountStored = u.PendingAmountStored
		st.loans[loan.ID] = loan
		return nil
	}
}

func (s *Store) FindPersonalData(ctx context.Context, kind, normalizedName string) (*domain.PersonalData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, pd := range s.st.personalData {
		if pd.Kind == kind && pd.NormalizedName == normalizedName {
			return &pd, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *Store) CreatePersonalData(ctx context.Context, pd *domain.PersonalData) error {
	record := *pd
	return s.apply(func(st *state) error {
		for _, existing := range st.personalData {
			if existing.Kind == record.Kind && existing.NormalizedName == record.NormalizedName {
				return fmt.Errorf("duplicate personal data %s/%s", record.Kind, record.NormalizedName)
			}
		}
		st.personalData[record.ID] = record
		return nil
	})
}

func (s *Store) UpdatePhone(ctx context.Context, personalDataID uuid.UUID, phone string) error {
	return s.apply(func(st *state) error {
		pd, ok := st.personalData[personalDataID]
		if !ok {
			return fmt.Errorf("personal data %s not found", personalDataID)
		}
		pd.Phone = phone
		st.personalData[pd.ID] = pd
		return nil
	})
}

func (s *Store) FindBorrowerByPersonalData(ctx context.Context, personalDataID uuid.UUID) (*domain.Borrower, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.st.borrowers {
		if b.PersonalDataID == personalDataID {
			return &b, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *Store) CreateBorrower(ctx context.Context, borrower *domain.Borrower) error {
	record := *borrower
	return s.apply(func(st *state) error {
		for _, existing := range st.borrowers {
			if existing.PersonalDataID == record.PersonalDataID {
				return fmt.Errorf("personal data %s already has a borrower", record.PersonalDataID)
			}
		}
		st.borrowers[record.ID] = record
		return nil
	})
}

func (s *Store) ListEmployees(ctx context.Context) ([]*domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Employee, 0, len(s.st.employees))
	for _, e := range s.st.employees {
		e := e
		if pd, ok := s.st.personalData[e.PersonalDataID]; ok {
			e.FullName = pd.FullName
		}
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool {
		return s.st.employeeSince[out[i].ID].Before(s.st.employeeSince[out[j].ID])
	})
	return out, nil
}

func (s *Store) CreateEmployee(ctx context.Context, employee *domain.Employee) error {
	record := *employee
	since := s.now()
	return s.apply(func(st *state) error {
		if _, ok := st.personalData[record.PersonalDataID]; !ok {
			return fmt.Errorf("employee references unknown personal data %s", record.PersonalDataID)
		}
		st.employees[record.ID] = record
		st.employeeSince[record.ID] = since
		return nil
	})
}

func (s *Store) ListLoanTypes(ctx context.Context) ([]*domain.LoanType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.LoanType, 0, len(s.st.loanTypes))
	for _, lt := range s.st.loanTypes {
		lt := lt
		out = append(out, &lt)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WeekDuration != out[j].WeekDuration {
			return out[i].WeekDuration < out[j].WeekDuration
		}
		return out[i].Rate.LessThan(out[j].Rate)
	})
	return out, nil
}

func (s *Store) CreateLoanType(ctx context.Context, loanType *domain.LoanType) error {
	record := *loanType
	return s.apply(func(st *state) error {
		st.loanTypes[record.ID] = record
		return nil
	})
}

// withTerms fills the fields Postgres reads through the loan_types join.
func (st *state) withTerms(loan domain.Loan) *domain.Loan {
	if lt, ok := st.loanTypes[loan.LoanTypeID]; ok {
		loan.Rate = lt.Rate
		loan.WeekDuration = lt.WeekDuration
	}
	return &loan
}

func (s *Store) FindLoanByExternalID(ctx context.Context, externalID string) (*domain.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, loan := range s.st.loans {
		if loan.ExternalID == externalID {
			return s.st.withTerms(loan), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *Store) FindDuplicateLoan(ctx context.Context, normalizedBorrowerName string, signDate time.Time, amountGiven decimal.Decimal) (*domain.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, loan := range s.st.loans {
		if !sameDay(loan.SignDate, signDate) || !loan.AmountGiven.Equal(amountGiven) {
			continue
		}
		b, ok := s.st.borrowers[loan.BorrowerID]
		if !ok {
			continue
		}
		if pd, ok := s.st.personalData[b.PersonalDataID]; ok && pd.NormalizedName == normalizedBorrowerName {
			return s.st.withTerms(loan), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *Store) HasSuccessor(ctx context.Context, loanID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, loan := range s.st.loans {
		if loan.PreviousLoanID != nil && *loan.PreviousLoanID == loanID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListLoansByRoute(ctx context.Context, routeID uuid.UUID) ([]*domain.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Loan
	for _, loan := range s.st.loans {
		if loan.RouteID == routeID {
			out = append(out, s.st.withTerms(loan))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SignDate.Equal(out[j].SignDate) {
			return out[i].SignDate.Before(out[j].SignDate)
		}
		return out[i].ExternalID < out[j].ExternalID
	})
	return out, nil
}

func (s *Store) GetPaymentsByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Payment
	for _, p := range s.st.payments {
		if p.LoanID == loanID {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out, nil
}

func (s *Store) PaymentStatsByRoute(ctx context.Context, routeID uuid.UUID) (map[uuid.UUID]domain.PaymentStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[uuid.UUID]domain.PaymentStats)
	for _, p := range s.st.payments {
		loan, ok := s.st.loans[p.LoanID]
		if !ok || loan.RouteID != routeID {
			continue
		}
		st := stats[p.LoanID]
		st.LoanID = p.LoanID
		st.TotalPaid = st.TotalPaid.Add(p.Amount)
		st.Count++
		if st.LastPaymentAt == nil || p.ReceivedAt.After(*st.LastPaymentAt) {
			at := p.ReceivedAt
			st.LastPaymentAt = &at
		}
		stats[p.LoanID] = st
	}
	return stats, nil
}

func (s *Store) TotalProfitPaid(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, tx := range s.st.transactions {
		if tx.Type == domain.TransactionTypeIncome && tx.LoanPaymentID != nil && tx.LoanID != nil && *tx.LoanID == loanID {
			total = total.Add(tx.ProfitAmount)
		}
	}
	return total, nil
}

func (s *Store) EnsureAccount(ctx context.Context, routeID uuid.UUID, accountType, name string) (*domain.Account, error) {
	var account domain.Account
	err := s.apply(func(st *state) error {
		for _, a := range st.accounts {
			if a.RouteID == routeID && a.Type == accountType {
				account = a
				return nil
			}
		}
		account = domain.Account{ID: uuid.New(), Name: name, Type: accountType, RouteID: routeID}
		st.accounts[account.ID] = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Account, 0, len(s.st.accounts))
	for _, a := range s.st.accounts {
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CountExpenses(ctx context.Context, routeID uuid.UUID, date time.Time, amount decimal.Decimal, expenseSource, description string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, tx := range s.st.transactions {
		if tx.Type == domain.TransactionTypeExpense && tx.RouteID == routeID && sameDay(tx.Date, date) &&
			tx.Amount.Equal(amount) && tx.ExpenseSource == expenseSource && tx.Description == description {
			count++
		}
	}
	return count, nil
}

func (s *Store) RefreshAccountBalances(ctx context.Context) error {
	return s.apply(func(st *state) error {
		balances := make(map[uuid.UUID]decimal.Decimal, len(st.accounts))
		for _, tx := range st.transactions {
			switch {
			case tx.Type == domain.TransactionTypeIncome && tx.DestinationAccountID != nil:
				balances[*tx.DestinationAccountID] = balances[*tx.DestinationAccountID].Add(tx.Amount)
			case tx.Type == domain.TransactionTypeExpense && tx.SourceAccountID != nil:
				balances[*tx.SourceAccountID] = balances[*tx.SourceAccountID].Sub(tx.Amount)
			}
		}
		for id, a := range st.accounts {
			a.Amount = balances[id]
			st.accounts[id] = a
		}
		return nil
	})
}

func (s *Store) EnsureRoute(ctx context.Context, name string) (*domain.Route, error) {
	var route domain.Route
	err := s.apply(func(st *state) error {
		for _, r := range st.routes {
			if r.Name == name {
				route = r
				return nil
			}
		}
		route = domain.Route{ID: uuid.New(), Name: name}
		st.routes[route.ID] = route
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &route, nil
}

func (s *Store) FindRouteByName(ctx context.Context, name string) (*domain.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.st.routes {
		if r.Name == name {
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *Store) ListRoutes(ctx context.Context) ([]*domain.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Route, 0, len(s.st.routes))
	for _, r := range s.st.routes {
		r := r
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) RouteSnapshot(ctx context.Context, routeID uuid.UUID) (domain.RouteSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	route, ok := s.st.routes[routeID]
	if !ok {
		return domain.RouteSnapshot{}, sql.ErrNoRows
	}
	snapshot := domain.RouteSnapshot{SnapshotRouteID: route.ID, SnapshotRouteName: route.Name}

	var lead *domain.Employee
	for _, e := range s.st.employees {
		if e.RouteID != routeID || e.Type != domain.EmployeeTypeLead {
			continue
		}
		if lead == nil || s.st.employeeSince[e.ID].Before(s.st.employeeSince[lead.ID]) {
			e := e
			lead = &e
		}
	}
	if lead != nil {
		id := lead.ID
		since := s.st.employeeSince[lead.ID]
		snapshot.SnapshotLeadID = &id
		snapshot.SnapshotLeadAssignedAt = &since
		snapshot.SnapshotLeadName = s.st.personalData[lead.PersonalDataID].FullName
	}
	return snapshot, nil
}

func (s *Store) FindWriteOffByExternalID(ctx context.Context, externalID string) (*domain.WriteOff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, w := range s.st.writeOffs {
		if w.ExternalID == externalID {
			return &w, nil
		}
	}
	return nil, sql.ErrNoRows
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
