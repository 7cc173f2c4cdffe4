package importer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/segyhp/loan-importer/internal/domain"
	"github.com/segyhp/loan-importer/internal/repository"
	"github.com/segyhp/loan-importer/pkg/errors"
)

// write is one mutation issued inside a batch transaction.
type write func(ctx context.Context, w repository.Writer) error

// rowPlan is the outcome of preparing one row. Rows with writes are only
// final once their batch commits.
type rowPlan struct {
	outcome domain.Outcome
	writes  []write
	claims  []string
}

func skip(row domain.LoanRow, tag domain.OutcomeTag, reason string) rowPlan {
	return rowPlan{outcome: domain.Outcome{
		Tag:            tag,
		Row:            row.Row,
		ExternalID:     row.ExternalID,
		BorrowerName:   row.BorrowerName,
		LeadExternalID: row.LeadExternalID,
		Renewal:        row.IsRenewal(),
		Reason:         reason,
	}}
}

func failed(row domain.LoanRow, err error) rowPlan {
	return skip(row, domain.OutcomeError, err.Error())
}

type prepareFunc func(ctx context.Context, r *run, row domain.LoanRow) rowPlan

// runBatch prepares the rows of a batch concurrently, then issues all their
// writes in one transaction. A failed commit turns every row that had writes
// into an error outcome and releases its claims so a later run can retry it.
func (e *Engine) runBatch(ctx context.Context, r *run, summary *domain.RunSummary, rows []domain.LoanRow, prepare prepareFunc) {
	batch := r.nextBatch()
	plans := make([]rowPlan, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			plans[i] = prepare(gctx, r, row)
			return nil
		})
	}
	_ = g.Wait()

	err := e.store.WithinTx(ctx, func(w repository.Writer) error {
		for _, p := range plans {
			for _, fn := range p.writes {
				if err := fn(ctx, w); err != nil {
					return err
				}
			}
		}
		return nil
	})

	if err != nil {
		err = errors.WrapBatchWriteFailed(r.route.Name, batch, err)
		summary.FailedBatches++
		e.logger.Error("Batch failed to commit", map[string]interface{}{
			"route": r.route.Name,
			"batch": batch,
			"rows":  len(rows),
			"error": err.Error(),
		})
		for i := range plans {
			if len(plans[i].writes) == 0 {
				continue
			}
			r.claims.release(plans[i].claims...)
			plans[i].outcome.Tag = domain.OutcomeError
			plans[i].outcome.LoanID = nil
			plans[i].outcome.Reason = err.Error()
		}
	}

	for _, p := range plans {
		switch p.outcome.Tag {
		case domain.OutcomePersisted, domain.OutcomeWriteOff:
		default:
			e.logSkip(p.outcome)
		}
		summary.Add(p.outcome)
	}
}
