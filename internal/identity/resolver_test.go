package identity

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-importer/internal/domain"
	"github.com/segyhp/loan-importer/internal/logger"
	"github.com/segyhp/loan-importer/internal/repository/memory"
)

// countingStore counts personal data creations.
type countingStore struct {
	*memory.Store
	created atomic.Int32
}

func (s *countingStore) CreatePersonalData(ctx context.Context, pd *domain.PersonalData) error {
	s.created.Add(1)
	return s.Store.CreatePersonalData(ctx, pd)
}

func newTestResolver(t *testing.T) (*Resolver, *countingStore) {
	store := &countingStore{Store: memory.NewStore()}
	return NewResolver(store, logger.NewTestLogger(t), 4), store
}

func TestResolveBorrower_SequentialCallsReuseIdentity(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()

	first, err := r.ResolveBorrower(ctx, "Juan  Perez", "")
	require.NoError(t, err)

	r.Reset()

	second, err := r.ResolveBorrower(ctx, "JUAN PEREZ", "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), store.created.Load())
	assert.Equal(t, 1, store.BorrowerCount())
}

func TestResolveBorrower_ConcurrentCallsCreateOnce(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()

	const callers = 25
	results := make([]BorrowerIdentity, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := r.ResolveBorrower(ctx, "maria lopez", "")
			assert.NoError(t, err)
			results[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range results {
		assert.Equal(t, results[0], id)
	}
	assert.Equal(t, int32(1), store.created.Load())
	assert.Len(t, store.PersonalData(domain.PersonKindBorrower), 1)
	assert.Equal(t, 0, r.locks.Len())
}

func TestResolveBorrower_PhonePrecedence(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()

	_, err := r.ResolveBorrower(ctx, "Ana Ruiz", "PENDIENTE")
	require.NoError(t, err)
	assert.Equal(t, "", store.PersonalData(domain.PersonKindBorrower)[0].Phone)

	_, err = r.ResolveBorrower(ctx, "Ana Ruiz", "9611111111")
	require.NoError(t, err)
	assert.Equal(t, "9611111111", store.PersonalData(domain.PersonKindBorrower)[0].Phone)

	_, err = r.ResolveBorrower(ctx, "Ana Ruiz", "N/A")
	require.NoError(t, err)
	assert.Equal(t, "9611111111", store.PersonalData(domain.PersonKindBorrower)[0].Phone)

	_, err = r.ResolveBorrower(ctx, "Ana Ruiz", "9612222222")
	require.NoError(t, err)
	assert.Equal(t, "9612222222", store.PersonalData(domain.PersonKindBorrower)[0].Phone)
}

func TestResolveBorrower_EmptyName(t *testing.T) {
	r, _ := newTestResolver(t)

	_, err := r.ResolveBorrower(context.Background(), "   ", "")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestResolveGuarantor_SeparateIdentitySpace(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()

	borrower, err := r.ResolveBorrower(ctx, "Pedro Gomez", "")
	require.NoError(t, err)

	guarantor, err := r.ResolveGuarantor(ctx, "pedro gomez", "")
	require.NoError(t, err)
	require.NotNil(t, guarantor)
	assert.NotEqual(t, borrower.PersonalDataID, *guarantor)

	again, err := r.ResolveGuarantor(ctx, "PEDRO GOMEZ", "")
	require.NoError(t, err)
	assert.Equal(t, *guarantor, *again)

	none, err := r.ResolveGuarantor(ctx, "", "")
	require.NoError(t, err)
	assert.Nil(t, none)

	assert.Len(t, store.PersonalData(domain.PersonKindGuarantor), 1)
}

func TestWarmGuarantors(t *testing.T) {
	r, store := newTestResolver(t)

	rows := []domain.LoanRow{
		{ExternalID: "1", GuarantorName: "Rosa Diaz"},
		{ExternalID: "2", GuarantorName: "ROSA  DIAZ"},
		{ExternalID: "3", GuarantorName: "Luis Vega"},
		{ExternalID: "4"},
	}
	require.NoError(t, r.WarmGuarantors(context.Background(), rows))

	assert.Len(t, store.PersonalData(domain.PersonKindGuarantor), 2)
	assert.Equal(t, int32(2), store.created.Load())
}

func TestResolveLoanType(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()

	existing := &domain.LoanType{ID: uuid.New(), Name: "14 semanas 40%", WeekDuration: 14, Rate: decimal.RequireFromString("0.4")}
	require.NoError(t, store.CreateLoanType(ctx, existing))

	terms := []LoanTerms{
		{Weeks: 14, Rate: decimal.RequireFromString("40")},
		{Weeks: 20, Rate: decimal.RequireFromString("0.6")},
		{Weeks: 0, Rate: decimal.RequireFromString("0.3")},
	}
	fallback := LoanTerms{Weeks: 10, Rate: decimal.Zero}
	require.NoError(t, r.PrepareLoanTypes(ctx, terms, fallback))

	types, err := store.ListLoanTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, types, 3)

	tests := []struct {
		name      string
		weeks     int
		rate      string
		wantWeeks int
		wantRate  string
	}{
		{"exact match", 14, "0.4", 14, "0.4"},
		{"percentage rate", 14, "40", 14, "0.4"},
		{"nearest rate with same weeks", 20, "0.55", 20, "0.6"},
		{"no type shares weeks", 12, "0.4", 10, "0"},
		{"zero weeks", 0, "0.3", 10, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lt, err := r.ResolveLoanType(tt.weeks, decimal.RequireFromString(tt.rate))
			require.NoError(t, err)
			require.NotNil(t, lt)
			assert.Equal(t, tt.wantWeeks, lt.WeekDuration)
			assert.True(t, lt.Rate.Equal(decimal.RequireFromString(tt.wantRate)), lt.Rate.String())
		})
	}

	require.NoError(t, r.PrepareLoanTypes(ctx, terms, fallback))
	types, err = store.ListLoanTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, types, 3)
}

func TestResolveLeadMapping(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()

	route, err := store.EnsureRoute(ctx, "RUTA1")
	require.NoError(t, err)

	created, err := r.SeedLeads(ctx, route.ID, []domain.LeadRow{{ExternalID: "7.0", FullName: "Luis Perez"}})
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	pd := &domain.PersonalData{ID: uuid.New(), Kind: domain.PersonKindEmployee, FullName: "Carla Mendez", NormalizedName: "CARLA MENDEZ"}
	require.NoError(t, store.CreatePersonalData(ctx, pd))
	byName := &domain.Employee{ID: uuid.New(), PersonalDataID: pd.ID, Type: domain.EmployeeTypeLead}
	require.NoError(t, store.CreateEmployee(ctx, byName))

	leads := []domain.LeadRow{
		{Row: 2, ExternalID: "7", FullName: "Someone Else"},
		{Row: 3, ExternalID: "8", FullName: "carla  mendez"},
		{Row: 4, ExternalID: "9", FullName: "Nobody Known"},
	}
	mapping, err := r.ResolveLeadMapping(ctx, route.ID, leads)
	require.NoError(t, err)

	assert.Equal(t, 2, mapping.Len())
	_, ok := mapping.Lookup("7")
	assert.True(t, ok)
	id, ok := mapping.Lookup("8.0")
	assert.True(t, ok)
	assert.Equal(t, byName.ID, id)
	_, ok = mapping.Lookup("9")
	assert.False(t, ok)

	again, err := r.SeedLeads(ctx, route.ID, []domain.LeadRow{{ExternalID: "7", FullName: "Luis Perez"}})
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestResolveLoanType_NotPrepared(t *testing.T) {
	r, _ := newTestResolver(t)

	lt, err := r.ResolveLoanType(14, decimal.RequireFromString("0.4"))
	assert.ErrorIs(t, err, ErrLoanTypesNotPrepared)
	assert.Nil(t, lt)
}

func TestPrepareLoanTypes_RoundsRates(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()

	terms := []LoanTerms{
		{Weeks: 14, Rate: decimal.RequireFromString("0.4")},
		{Weeks: 14, Rate: decimal.RequireFromString("0.40000000000000002")},
		{Weeks: 14, Rate: decimal.RequireFromString("40.000000000000002")},
	}
	require.NoError(t, r.PrepareLoanTypes(ctx, terms, LoanTerms{Weeks: 10, Rate: decimal.Zero}))

	types, err := store.ListLoanTypes(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(types))
	for _, lt := range types {
		names = append(names, lt.Name)
	}
	assert.ElementsMatch(t, []string{"14 semanas 40%", "10 semanas 0%"}, names)

	lt, err := r.ResolveLoanType(14, decimal.RequireFromString("0.40000000000000002"))
	require.NoError(t, err)
	assert.Equal(t, "14 semanas 40%", lt.Name)
}
