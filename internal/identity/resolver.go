// Package identity resolves borrowers, guarantors, leads and loan types to
// persisted identities, creating them at most once across runs.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/segyhp/loan-importer/internal/domain"
	"github.com/segyhp/loan-importer/internal/logger"
	"github.com/segyhp/loan-importer/internal/repository"
)

var (
	// ErrEmptyName is returned when a name normalizes to nothing.
	ErrEmptyName = errors.New("empty name")
	// ErrLoanTypesNotPrepared is returned by ResolveLoanType before
	// PrepareLoanTypes has loaded the index.
	ErrLoanTypesNotPrepared = errors.New("loan types not prepared")
)

// Store is the persistence the resolver needs.
type Store interface {
	repository.PersonRepository
	repository.EmployeeRepository
	repository.LoanTypeRepository
}

// BorrowerIdentity is the resolved borrower of a loan row.
type BorrowerIdentity struct {
	BorrowerID     uuid.UUID
	PersonalDataID uuid.UUID
}

type cachedBorrower struct {
	identity BorrowerIdentity
	phone    string
}

// Resolver is owned by one import run. Reset clears its caches between
// routes.
type Resolver struct {
	store       Store
	logger      logger.Logger
	concurrency int

	locks *keyedMutex

	mu         sync.Mutex
	borrowers  map[string]cachedBorrower
	guarantors map[string]uuid.UUID
	inflight   singleflight.Group

	loanTypes *loanTypeIndex
}

func NewResolver(store Store, log logger.Logger, concurrency int) *Resolver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Resolver{
		store:       store,
		logger:      log,
		concurrency: concurrency,
		locks:       newKeyedMutex(),
		borrowers:   make(map[string]cachedBorrower),
		guarantors:  make(map[string]uuid.UUID),
	}
}

// Reset drops every cached identity and loan type.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.borrowers = make(map[string]cachedBorrower)
	r.guarantors = make(map[string]uuid.UUID)
	r.loanTypes = nil
}

// ResolveBorrower returns the borrower for fullName, creating its personal
// data and borrower if needed. Concurrent calls for the same normalized name
// run one after another, so only the first one creates.
func (r *Resolver) ResolveBorrower(ctx context.Context, fullName, phone string) (BorrowerIdentity, error) {
	name := NormalizeName(fullName)
	if name == "" {
		return BorrowerIdentity{}, ErrEmptyName
	}

	unlock := r.locks.Lock(name)
	defer unlock()

	r.mu.Lock()
	cached, ok := r.borrowers[name]
	r.mu.Unlock()

	if !ok {
		var err error
		cached, err = r.findOrCreateBorrower(ctx, fullName, name, phone)
		if err != nil {
			return BorrowerIdentity{}, err
		}
	}

	if ShouldUpdatePhone(cached.phone, phone) {
		if err := r.store.UpdatePhone(ctx, cached.identity.PersonalDataID, phone); err != nil {
			return BorrowerIdentity{}, fmt.Errorf("update phone of %s: %w", name, err)
		}
		cached.phone = phone
	}

	r.mu.Lock()
	r.borrowers[name] = cached
	r.mu.Unlock()

	return cached.identity, nil
}

func (r *Resolver) findOrCreateBorrower(ctx context.Context, fullName, name, phone string) (cachedBorrower, error) {
	pd, err := r.store.FindPersonalData(ctx, domain.PersonKindBorrower, name)
	switch {
	case repository.IsNotFound(err):
		pd = &domain.PersonalData{
			ID:             uuid.New(),
			Kind:           domain.PersonKindBorrower,
			FullName:       fullName,
			NormalizedName: name,
		}
		if ValidPhone(phone) {
			pd.Phone = phone
		}
		if err := r.store.CreatePersonalData(ctx, pd); err != nil {
			return cachedBorrower{}, fmt.Errorf("create personal data for %s: %w", name, err)
		}
		r.logger.Debug("Created borrower personal data", map[string]interface{}{
			"name": name,
		})
	case err != nil:
		return cachedBorrower{}, fmt.Errorf("find personal data for %s: %w", name, err)
	}

	borrower, err := r.store.FindBorrowerByPersonalData(ctx, pd.ID)
	switch {
	case repository.IsNotFound(err):
		borrower = &domain.Borrower{ID: uuid.New(), PersonalDataID: pd.ID}
		if err := r.store.CreateBorrower(ctx, borrower); err != nil {
			return cachedBorrower{}, fmt.Errorf("create borrower for %s: %w", name, err)
		}
	case err != nil:
		return cachedBorrower{}, fmt.Errorf("find borrower for %s: %w", name, err)
	}

	return cachedBorrower{
		identity: BorrowerIdentity{BorrowerID: borrower.ID, PersonalDataID: pd.ID},
		phone:    pd.Phone,
	}, nil
}

// ResolveGuarantor returns the guarantor personal data id for name, or nil
// when the name is empty. The phone is only stored when the guarantor is
// created.
func (r *Resolver) ResolveGuarantor(ctx context.Context, fullName, phone string) (*uuid.UUID, error) {
	name := NormalizeName(fullName)
	if name == "" {
		return nil, nil
	}

	r.mu.Lock()
	id, ok := r.guarantors[name]
	r.mu.Unlock()
	if ok {
		return &id, nil
	}

	v, err, _ := r.inflight.Do(name, func() (interface{}, error) {
		return r.findOrCreateGuarantor(ctx, fullName, name, phone)
	})
	if err != nil {
		return nil, err
	}

	id = v.(uuid.UUID)
	r.mu.Lock()
	r.guarantors[name] = id
	r.mu.Unlock()

	return &id, nil
}

func (r *Resolver) findOrCreateGuarantor(ctx context.Context, fullName, name, phone string) (uuid.UUID, error) {
	pd, err := r.store.FindPersonalData(ctx, domain.PersonKindGuarantor, name)
	if err == nil {
		return pd.ID, nil
	}
	if !repository.IsNotFound(err) {
		return uuid.Nil, fmt.Errorf("find guarantor %s: %w", name, err)
	}

	pd = &domain.PersonalData{
		ID:             uuid.New(),
		Kind:           domain.PersonKindGuarantor,
		FullName:       fullName,
		NormalizedName: name,
	}
	if ValidPhone(phone) {
		pd.Phone = phone
	}
	if err := r.store.CreatePersonalData(ctx, pd); err != nil {
		return uuid.Nil, fmt.Errorf("create guarantor %s: %w", name, err)
	}

	return pd.ID, nil
}

// WarmGuarantors resolves every distinct guarantor of rows up front.
func (r *Resolver) WarmGuarantors(ctx context.Context, rows []domain.LoanRow) error {
	seen := make(map[string]struct{})

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, row := range rows {
		name := NormalizeName(row.GuarantorName)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		row := row
		g.Go(func() error {
			_, err := r.ResolveGuarantor(ctx, row.GuarantorName, row.GuarantorPhone)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	r.logger.Info("Guarantors warmed", map[string]interface{}{
		"count": len(seen),
	})
	return nil
}
