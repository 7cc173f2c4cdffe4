package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-importer/internal/domain"
	"github.com/segyhp/loan-importer/pkg/utils"
)

// LoanTerms is a (weeks, rate) key. Rate is a fraction.
type LoanTerms struct {
	Weeks int
	Rate  decimal.Decimal
}

func (t LoanTerms) key() string {
	return fmt.Sprintf("%d|%s", t.Weeks, t.Rate.String())
}

// LoanTypeName is the display name of a loan type, e.g. "14 semanas 40%".
func LoanTypeName(t LoanTerms) string {
	return fmt.Sprintf("%d semanas %s%%", t.Weeks, t.Rate.Mul(decimal.NewFromInt(100)).String())
}

type loanTypeIndex struct {
	exact    map[string]*domain.LoanType
	byWeeks  map[int][]*domain.LoanType
	fallback *domain.LoanType
}

func newLoanTypeIndex(types []*domain.LoanType, fallback *domain.LoanType) *loanTypeIndex {
	idx := &loanTypeIndex{
		exact:    make(map[string]*domain.LoanType, len(types)),
		byWeeks:  make(map[int][]*domain.LoanType),
		fallback: fallback,
	}
	for _, lt := range types {
		idx.add(lt)
	}
	return idx
}

func (idx *loanTypeIndex) add(lt *domain.LoanType) {
	k := LoanTerms{Weeks: lt.WeekDuration, Rate: lt.Rate}.key()
	if _, ok := idx.exact[k]; ok {
		return
	}
	idx.exact[k] = lt
	idx.byWeeks[lt.WeekDuration] = append(idx.byWeeks[lt.WeekDuration], lt)
}

func (idx *loanTypeIndex) lookup(terms LoanTerms) *domain.LoanType {
	if lt, ok := idx.exact[terms.key()]; ok {
		return lt
	}

	var best *domain.LoanType
	var bestDiff decimal.Decimal
	for _, lt := range idx.byWeeks[terms.Weeks] {
		diff := lt.Rate.Sub(terms.Rate).Abs()
		if best == nil || diff.LessThan(bestDiff) || (diff.Equal(bestDiff) && lt.Rate.LessThan(best.Rate)) {
			best, bestDiff = lt, diff
		}
	}
	if best != nil {
		return best
	}
	return idx.fallback
}

// PrepareLoanTypes loads the persisted loan types, creates one for every
// distinct positive-week pair in terms that is missing, and makes sure the
// fallback type exists. It must run before ResolveLoanType.
func (r *Resolver) PrepareLoanTypes(ctx context.Context, terms []LoanTerms, fallback LoanTerms) error {
	existing, err := r.store.ListLoanTypes(ctx)
	if err != nil {
		return fmt.Errorf("list loan types: %w", err)
	}

	idx := newLoanTypeIndex(existing, nil)

	ensure := func(t LoanTerms) (*domain.LoanType, error) {
		t.Rate = utils.NormalizeRate(t.Rate)
		if lt, ok := idx.exact[t.key()]; ok {
			return lt, nil
		}
		lt := &domain.LoanType{
			ID:           uuid.New(),
			Name:         LoanTypeName(t),
			WeekDuration: t.Weeks,
			Rate:         t.Rate,
		}
		if err := r.store.CreateLoanType(ctx, lt); err != nil {
			return nil, fmt.Errorf("create loan type %s: %w", lt.Name, err)
		}
		idx.add(lt)
		r.logger.Info("Created loan type", map[string]interface{}{
			"name":  lt.Name,
			"weeks": lt.WeekDuration,
			"rate":  lt.Rate.String(),
		})
		return lt, nil
	}

	for _, t := range terms {
		if t.Weeks <= 0 {
			continue
		}
		if _, err := ensure(t); err != nil {
			return err
		}
	}

	fb, err := ensure(fallback)
	if err != nil {
		return err
	}
	idx.fallback = fb

	r.mu.Lock()
	r.loanTypes = idx
	r.mu.Unlock()
	return nil
}

// ResolveLoanType picks the exact (weeks, rate) type, else the type with the
// same weeks and the closest rate, else the fallback. Once PrepareLoanTypes
// has run it always returns a type.
func (r *Resolver) ResolveLoanType(weeks int, rate decimal.Decimal) (*domain.LoanType, error) {
	r.mu.Lock()
	idx := r.loanTypes
	r.mu.Unlock()

	if idx == nil {
		return nil, ErrLoanTypesNotPrepared
	}
	return idx.lookup(LoanTerms{Weeks: weeks, Rate: utils.NormalizeRate(rate)}), nil
}
