package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-importer/internal/domain"
	"github.com/segyhp/loan-importer/internal/logger"
	"github.com/segyhp/loan-importer/internal/repository"
)

// Store is the persistence the pass needs.
type Store interface {
	ListLoansByRoute(ctx context.Context, routeID uuid.UUID) ([]*domain.Loan, error)
	PaymentStatsByRoute(ctx context.Context, routeID uuid.UUID) (map[uuid.UUID]domain.PaymentStats, error)
	RefreshAccountBalances(ctx context.Context) error
	WithinTx(ctx context.Context, fn func(w repository.Writer) error) error
}

// Result summarizes one run of the pass.
type Result struct {
	RouteID       uuid.UUID     `json:"route_id"`
	Loans         int           `json:"loans"`
	Active        int           `json:"active"`
	Finished      int           `json:"finished"`
	PaidOff       int           `json:"paid_off"`
	RenewedOpen   int           `json:"renewed_open"`
	RenewedClosed int           `json:"renewed_closed"`
	Duration      time.Duration `json:"duration"`
}

// Pass runs denormalization, closing rules and the account balance refresh.
type Pass struct {
	store   Store
	logger  logger.Logger
	epsilon decimal.Decimal
}

func NewPass(store Store, log logger.Logger, epsilon decimal.Decimal) *Pass {
	return &Pass{store: store, logger: log, epsilon: epsilon}
}

// Run updates every loan of the route in one transaction and then refreshes
// every account balance.
func (p *Pass) Run(ctx context.Context, routeID uuid.UUID) (*Result, error) {
	start := time.Now()

	loans, err := p.store.ListLoansByRoute(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}

	stats, err := p.store.PaymentStatsByRoute(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("payment stats: %w", err)
	}

	updates, c, err := Plan(loans, stats, p.epsilon)
	if err != nil {
		p.logger.Error("Lifecycle rules overlap", map[string]interface{}{
			"route_id": routeID.String(),
			"error":    err.Error(),
		})
		return nil, err
	}

	err = p.store.WithinTx(ctx, func(w repository.Writer) error {
		for _, u := range updates {
			if err := w.UpdateLoanLifecycle(ctx, u); err != nil {
				return fmt.Errorf("update loan %s: %w", u.LoanID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := p.store.RefreshAccountBalances(ctx); err != nil {
		return nil, fmt.Errorf("refresh account balances: %w", err)
	}

	result := &Result{
		RouteID:       routeID,
		Loans:         len(updates),
		PaidOff:       len(c.PaidOff),
		RenewedOpen:   len(c.RenewedOpen),
		RenewedClosed: len(c.RenewedClosed),
		Duration:      time.Since(start),
	}
	for _, u := range updates {
		if u.Status == domain.LoanStatusFinished {
			result.Finished++
		} else {
			result.Active++
		}
	}

	p.logger.Info("Lifecycle pass completed", map[string]interface{}{
		"route_id": routeID.String(),
		"loans":    result.Loans,
		"finished": result.Finished,
		"active":   result.Active,
		"duration": result.Duration.String(),
	})
	return result, nil
}
