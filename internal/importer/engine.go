// Package importer loads the loans, payments and expenses of one route from
// extracted workbook rows into the store.
package importer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-importer/internal/config"
	"github.com/segyhp/loan-importer/internal/domain"
	"github.com/segyhp/loan-importer/internal/extractor"
	"github.com/segyhp/loan-importer/internal/identity"
	"github.com/segyhp/loan-importer/internal/lifecycle"
	"github.com/segyhp/loan-importer/internal/logger"
	"github.com/segyhp/loan-importer/internal/profit"
	"github.com/segyhp/loan-importer/internal/repository"
	"github.com/segyhp/loan-importer/pkg/errors"
	"github.com/segyhp/loan-importer/pkg/utils"
)

// Source holds the rows extracted for one route.
type Source struct {
	Loans         []domain.LoanRow
	RejectedLoans []extractor.Rejected
	Payments      []domain.PaymentRow
	Expenses      []domain.ExpenseRow
	Payroll       []domain.PayrollRow
	Leads         []domain.LeadRow
}

// SourceRows is the number of loan rows the summary must account for.
func (s Source) SourceRows() int {
	return len(s.Loans) + len(s.RejectedLoans)
}

// Recorder publishes a finished run summary.
type Recorder interface {
	Record(ctx context.Context, summary *domain.RunSummary) error
}

// Options tunes the engine.
type Options struct {
	BatchSize                 int
	Concurrency               int
	RenewalStandaloneFallback bool
	PaidEpsilon               decimal.Decimal
	DefaultLoanType           identity.LoanTerms
}

// Engine imports one route at a time.
type Engine struct {
	store     repository.Store
	logger    logger.Logger
	opts      Options
	resolver  *identity.Resolver
	calc      *profit.Calculator
	lifecycle *lifecycle.Pass
	recorders []Recorder
	now       func() time.Time
}

func NewEngine(store repository.Store, log logger.Logger, opts Options, recorders ...Recorder) *Engine {
	if opts.BatchSize < 1 {
		opts.BatchSize = 200
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Engine{
		store:     store,
		logger:    log,
		opts:      opts,
		resolver:  identity.NewResolver(store, log, opts.Concurrency),
		calc:      profit.NewCalculator(store),
		lifecycle: lifecycle.NewPass(store, log, opts.PaidEpsilon),
		recorders: recorders,
		now:       time.Now,
	}
}

// run is the state shared by every row of one route import.
type run struct {
	route    *domain.Route
	snapshot domain.RouteSnapshot
	cashFund *domain.Account
	bank     *domain.Account
	leads    identity.LeadMapping
	payments map[string][]domain.PaymentRow
	claims   *claims
	batch    int

	// expensesBefore holds the persisted count per expense key as first seen
	// by this run; expensesSeen counts the source rows per key so far.
	expensesBefore map[string]int
	expensesSeen   map[string]int
}

func (r *run) accountFor(paymentType string) *domain.Account {
	if AccountTypeForPayment(paymentType) == domain.AccountTypeBank {
		return r.bank
	}
	return r.cashFund
}

func (r *run) nextBatch() int {
	r.batch++
	return r.batch
}

// claims reserves keys for the duration of a run so two rows of the same run
// never write the same loan.
type claims struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newClaims() *claims {
	return &claims{keys: make(map[string]struct{})}
}

// claim reserves every key or none of them.
func (c *claims) claim(keys ...string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		if _, ok := c.keys[k]; ok {
			return false
		}
	}
	for _, k := range keys {
		c.keys[k] = struct{}{}
	}
	return true
}

func (c *claims) release(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.keys, k)
	}
}

// ImportRoute imports src into routeName. It returns an error only when the
// run cannot start; row and batch failures are reported in the summary.
func (e *Engine) ImportRoute(ctx context.Context, routeName string, src Source) (*domain.RunSummary, error) {
	if err := e.store.Ping(ctx); err != nil {
		return nil, errors.WrapPersistenceUnavailable(err)
	}

	e.resolver.Reset()
	defer e.resolver.Reset()

	r, err := e.startRun(ctx, routeName, src)
	if err != nil {
		return nil, err
	}

	summary := domain.NewRunSummary(routeName, src.SourceRows())
	summary.StartedAt = e.now()

	for _, rej := range src.RejectedLoans {
		summary.Add(domain.Outcome{
			Tag:        domain.OutcomeSkippedInvalid,
			Row:        rej.Row,
			ExternalID: rej.ExternalID,
			Reason:     rej.Err.Error(),
		})
	}

	writeOffs, standard, renewals, invalid := partition(src.Loans)
	summary.Add(invalid...)
	for _, o := range invalid {
		e.logSkip(o)
	}

	for _, rows := range chunk(writeOffs, e.opts.BatchSize) {
		e.runBatch(ctx, r, summary, rows, e.prepareWriteOff)
	}
	for _, rows := range chunk(standard, e.opts.BatchSize) {
		e.runBatch(ctx, r, summary, rows, e.prepareLoan)
	}
	for _, wave := range RenewalWaves(renewals) {
		for _, rows := range chunk(wave, e.opts.BatchSize) {
			e.runBatch(ctx, r, summary, rows, e.prepareRenewal)
		}
	}

	e.importExpenses(ctx, r, summary, src.Expenses)
	e.importPayroll(ctx, r, summary, src.Payroll)

	if _, err := e.lifecycle.Run(ctx, r.route.ID); err != nil {
		e.logger.Error("Lifecycle pass failed", map[string]interface{}{
			"route": routeName,
			"error": err.Error(),
		})
		summary.FinishedAt = e.now()
		e.publish(ctx, summary)
		return summary, fmt.Errorf("lifecycle pass for route %s: %w", routeName, err)
	}

	summary.FinishedAt = e.now()
	e.report(summary)
	e.publish(ctx, summary)
	return summary, nil
}

func (e *Engine) startRun(ctx context.Context, routeName string, src Source) (*run, error) {
	route, err := e.store.EnsureRoute(ctx, routeName)
	if err != nil {
		return nil, errors.WrapDatabaseError(fmt.Errorf("ensure route %s: %w", routeName, err))
	}

	snapshot, err := e.store.RouteSnapshot(ctx, route.ID)
	if err != nil {
		return nil, errors.WrapDatabaseError(fmt.Errorf("route snapshot %s: %w", routeName, err))
	}

	cashFund, err := e.store.EnsureAccount(ctx, route.ID, domain.AccountTypeCashFund, "Fondo "+routeName)
	if err != nil {
		return nil, errors.WrapDatabaseError(err)
	}
	bank, err := e.store.EnsureAccount(ctx, route.ID, domain.AccountTypeBank, "Banco "+routeName)
	if err != nil {
		return nil, errors.WrapDatabaseError(err)
	}

	leads, err := e.resolver.ResolveLeadMapping(ctx, route.ID, src.Leads)
	if err != nil {
		return nil, errors.WrapDatabaseError(err)
	}

	terms := make([]identity.LoanTerms, 0, len(src.Loans))
	for _, row := range src.Loans {
		terms = append(terms, identity.LoanTerms{Weeks: row.WeekDuration, Rate: row.Rate})
	}
	if err := e.resolver.PrepareLoanTypes(ctx, terms, e.opts.DefaultLoanType); err != nil {
		return nil, errors.WrapDatabaseError(err)
	}

	if err := e.resolver.WarmGuarantors(ctx, src.Loans); err != nil {
		return nil, errors.WrapDatabaseError(err)
	}

	payments := make(map[string][]domain.PaymentRow)
	for _, p := range src.Payments {
		id := utils.NormalizeExternalID(p.LoanExternalID)
		payments[id] = append(payments[id], p)
	}

	return &run{
		route:    route,
		snapshot: snapshot,
		cashFund: cashFund,
		bank:     bank,
		leads:    leads,
		payments: payments,
		claims:   newClaims(),

		expensesBefore: make(map[string]int),
		expensesSeen:   make(map[string]int),
	}, nil
}

// partition splits loan rows by how they are processed. Rows without a
// borrower name are returned as invalid outcomes.
func partition(rows []domain.LoanRow) (writeOffs, standard, renewals []domain.LoanRow, invalid []domain.Outcome) {
	for _, row := range rows {
		switch {
		case identity.NormalizeName(row.BorrowerName) == "":
			invalid = append(invalid, domain.Outcome{
				Tag:            domain.OutcomeSkippedInvalid,
				Row:            row.Row,
				ExternalID:     row.ExternalID,
				LeadExternalID: row.LeadExternalID,
				Reason:         "empty borrower name",
			})
		case IsWriteOffMarker(row.BorrowerName):
			writeOffs = append(writeOffs, row)
		case row.IsRenewal():
			renewals = append(renewals, row)
		default:
			standard = append(standard, row)
		}
	}
	return writeOffs, standard, renewals, invalid
}

// report logs the summary and flags rows that got no outcome.
func (e *Engine) report(s *domain.RunSummary) {
	counts := make(map[string]interface{}, len(s.Counts))
	for tag, n := range s.Counts {
		counts[string(tag)] = n
	}

	fields := map[string]interface{}{
		"route":               s.Route,
		"source_rows":         s.SourceRows,
		"processed":           s.Processed(),
		"renewals_processed":  s.RenewalsProcessed,
		"payments_persisted":  s.PaymentsPersisted,
		"recoveries_recorded": s.RecoveriesRecorded,
		"expenses_persisted":  s.ExpensesPersisted,
		"expenses_skipped":    s.ExpensesSkipped,
		"failed_batches":      s.FailedBatches,
		"counts":              counts,
		"duration":            s.FinishedAt.Sub(s.StartedAt).String(),
	}

	if !s.Reconciled() {
		e.logger.Error("Import did not account for every source row", fields)
		return
	}
	e.logger.Info("Import completed", fields)
}

func (e *Engine) publish(ctx context.Context, s *domain.RunSummary) {
	for _, rec := range e.recorders {
		if err := rec.Record(ctx, s); err != nil {
			e.logger.Warn("Failed to publish run summary", map[string]interface{}{
				"route": s.Route,
				"error": err.Error(),
			})
		}
	}
}

func (e *Engine) logSkip(o domain.Outcome) {
	e.logger.Warn("Loan row skipped", map[string]interface{}{
		"outcome":       string(o.Tag),
		"row":           o.Row,
		"external_id":   o.ExternalID,
		"borrower_name": o.BorrowerName,
		"lead_id":       o.LeadExternalID,
		"reason":        o.Reason,
	})
}

// Refresh re-runs the lifecycle pass for an existing route.
func (e *Engine) Refresh(ctx context.Context, routeName string) (*lifecycle.Result, error) {
	route, err := e.store.FindRouteByName(ctx, routeName)
	if repository.IsNotFound(err) {
		return nil, errors.WrapRouteNotFound(routeName)
	}
	if err != nil {
		return nil, errors.WrapDatabaseError(err)
	}
	return e.lifecycle.Run(ctx, route.ID)
}

// RefreshAll re-runs the lifecycle pass for every route, one after another.
// A failing route is logged and does not stop the others.
func (e *Engine) RefreshAll(ctx context.Context) ([]*lifecycle.Result, error) {
	routes, err := e.store.ListRoutes(ctx)
	if err != nil {
		return nil, errors.WrapDatabaseError(err)
	}

	var results []*lifecycle.Result
	for _, route := range routes {
		res, err := e.lifecycle.Run(ctx, route.ID)
		if err != nil {
			e.logger.Error("Lifecycle refresh failed", map[string]interface{}{
				"route": route.Name,
				"error": err.Error(),
			})
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// SeedLeads creates employees for the lead rows of a route that have none.
func (e *Engine) SeedLeads(ctx context.Context, routeName string, leads []domain.LeadRow) (int, error) {
	route, err := e.store.EnsureRoute(ctx, routeName)
	if err != nil {
		return 0, errors.WrapDatabaseError(err)
	}
	return e.resolver.SeedLeads(ctx, route.ID, leads)
}

// OptionsFromConfig maps the import settings of cfg to engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BatchSize:                 cfg.Import.BatchSize,
		Concurrency:               cfg.Import.Concurrency,
		RenewalStandaloneFallback: cfg.Import.RenewalStandaloneFallback,
		PaidEpsilon:               cfg.GetPaidEpsilon(),
		DefaultLoanType: identity.LoanTerms{
			Weeks: cfg.Import.DefaultLoanWeeks,
			Rate:  cfg.GetDefaultLoanRate(),
		},
	}
}
