package memory

import (
	"sort"

	"github.com/google/uuid"

	"github.com/segyhp/loan-importer/internal/domain"
)

// The accessors below expose committed state for assertions and for the
// dry-run report.

func (s *Store) Loans() []domain.Loan {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Loan, 0, len(s.st.loans))
	for _, l := range s.st.loans {
		out = append(out, *s.st.withTerms(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out
}

func (s *Store) Payments() []domain.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Payment, 0, len(s.st.payments))
	for _, p := range s.st.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out
}

func (s *Store) Transactions() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, 0, len(s.st.transactions))
	for _, t := range s.st.transactions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Amount.LessThan(out[j].Amount)
	})
	return out
}

func (s *Store) PersonalData(kind string) []domain.PersonalData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PersonalData
	for _, pd := range s.st.personalData {
		if pd.Kind == kind {
			out = append(out, pd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NormalizedName < out[j].NormalizedName })
	return out
}

func (s *Store) BorrowerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.borrowers)
}

func (s *Store) CollateralsOf(loanID uuid.UUID) []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []uuid.UUID
	for k := range s.st.collaterals {
		if k.loanID == loanID {
			out = append(out, k.personalDataID)
		}
	}
	return out
}

func (s *Store) WriteOffs() []domain.WriteOff {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.WriteOff, 0, len(s.st.writeOffs))
	for _, w := range s.st.writeOffs {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out
}

func (s *Store) Recoveries() []domain.WriteOffRecovery {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.WriteOffRecovery, 0, len(s.st.recoveries))
	for _, r := range s.st.recoveries {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out
}
