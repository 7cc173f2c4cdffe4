package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeTag classifies what happened to one loan row.
type OutcomeTag string

const (
	OutcomePersisted              OutcomeTag = "PERSISTED"
	OutcomeSkippedDuplicate       OutcomeTag = "SKIPPED_DUPLICATE"
	OutcomeSkippedNoLead          OutcomeTag = "SKIPPED_NO_LEAD"
	OutcomeSkippedNoPredecessor   OutcomeTag = "SKIPPED_NO_PREDECESSOR"
	OutcomeSkippedRenewalConflict OutcomeTag = "SKIPPED_RENEWAL_CONFLICT"
	OutcomeSkippedInvalid         OutcomeTag = "SKIPPED_INVALID"
	OutcomeWriteOff               OutcomeTag = "WRITE_OFF"
	OutcomeError                  OutcomeTag = "ERROR"
)

// Outcome is the result of processing one loan row.
type Outcome struct {
	Tag            OutcomeTag `json:"tag"`
	Row            int        `json:"row"`
	ExternalID     string     `json:"external_id"`
	BorrowerName   string     `json:"borrower_name"`
	LeadExternalID string     `json:"lead_external_id"`
	LoanID         *uuid.UUID `json:"loan_id,omitempty"`
	Renewal        bool       `json:"renewal"`
	Payments       int        `json:"payments"`
	Recoveries     int        `json:"recoveries"`
	Reason         string     `json:"reason,omitempty"`
}

// RunSummary is the per-route tally published at the end of an import.
type RunSummary struct {
	Route              string             `json:"route"`
	SourceRows         int                `json:"source_rows"`
	Counts             map[OutcomeTag]int `json:"counts"`
	RenewalsProcessed  int                `json:"renewals_processed"`
	PaymentsPersisted  int                `json:"payments_persisted"`
	RecoveriesRecorded int                `json:"recoveries_recorded"`
	ExpensesPersisted  int                `json:"expenses_persisted"`
	ExpensesSkipped    int                `json:"expenses_skipped"`
	FailedBatches      int                `json:"failed_batches"`
	StartedAt          time.Time          `json:"started_at"`
	FinishedAt         time.Time          `json:"finished_at"`
}

func NewRunSummary(route string, sourceRows int) *RunSummary {
	return &RunSummary{
		Route:      route,
		SourceRows: sourceRows,
		Counts:     make(map[OutcomeTag]int),
		StartedAt:  time.Now(),
	}
}

// Add tallies outcomes into the summary.
func (s *RunSummary) Add(outcomes ...Outcome) {
	for _, o := range outcomes {
		s.Counts[o.Tag]++
		if o.Tag != OutcomePersisted && o.Tag != OutcomeWriteOff {
			continue
		}
		if o.Renewal {
			s.RenewalsProcessed++
		}
		s.PaymentsPersisted += o.Payments
		s.RecoveriesRecorded += o.Recoveries
	}
}

// Processed returns the number of loan rows accounted for by any outcome.
func (s *RunSummary) Processed() int {
	total := 0
	for _, n := range s.Counts {
		total += n
	}
	return total
}

// Reconciled reports whether every source row got exactly one outcome.
func (s *RunSummary) Reconciled() bool {
	return s.Processed() == s.SourceRows
}
