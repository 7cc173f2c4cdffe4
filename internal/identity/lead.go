package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/segyhp/loan-importer/internal/domain"
	"github.com/segyhp/loan-importer/internal/repository"
	"github.com/segyhp/loan-importer/pkg/utils"
)

// LeadMapping translates workbook lead ids to employee ids. It is built once
// per route and never modified afterwards.
type LeadMapping struct {
	ids map[string]uuid.UUID
}

// Lookup returns the employee id for an external lead id.
func (m LeadMapping) Lookup(externalID string) (uuid.UUID, bool) {
	id, ok := m.ids[utils.NormalizeExternalID(externalID)]
	return id, ok
}

func (m LeadMapping) Len() int {
	return len(m.ids)
}

// NewLeadMapping builds a mapping from explicit pairs.
func NewLeadMapping(ids map[string]uuid.UUID) LeadMapping {
	m := LeadMapping{ids: make(map[string]uuid.UUID, len(ids))}
	for k, v := range ids {
		m.ids[utils.NormalizeExternalID(k)] = v
	}
	return m
}

type employeeIndex struct {
	byExternalID map[string]*domain.Employee
	byName       map[string]*domain.Employee
}

// indexEmployees keys the employees visible to a route: external ids are
// only trusted within the route (or for unassigned staff), names globally.
func indexEmployees(employees []*domain.Employee, routeID uuid.UUID) employeeIndex {
	idx := employeeIndex{
		byExternalID: make(map[string]*domain.Employee),
		byName:       make(map[string]*domain.Employee),
	}
	for _, e := range employees {
		if e.ExternalID != "" && (e.RouteID == routeID || e.RouteID == uuid.Nil) {
			key := utils.NormalizeExternalID(e.ExternalID)
			if _, ok := idx.byExternalID[key]; !ok {
				idx.byExternalID[key] = e
			}
		}
		if name := NormalizeName(e.FullName); name != "" {
			if _, ok := idx.byName[name]; !ok {
				idx.byName[name] = e
			}
		}
	}
	return idx
}

// ResolveLeadMapping matches the lead rows of a route against persisted
// employees, by external id first and full name second. Unmatched leads are
// logged and left out.
func (r *Resolver) ResolveLeadMapping(ctx context.Context, routeID uuid.UUID, leads []domain.LeadRow) (LeadMapping, error) {
	employees, err := r.store.ListEmployees(ctx)
	if err != nil {
		return LeadMapping{}, fmt.Errorf("list employees: %w", err)
	}
	idx := indexEmployees(employees, routeID)

	ids := make(map[string]uuid.UUID, len(leads))
	for _, lead := range leads {
		externalID := utils.NormalizeExternalID(lead.ExternalID)
		if e, ok := idx.byExternalID[externalID]; ok {
			ids[externalID] = e.ID
			continue
		}
		if e, ok := idx.byName[NormalizeName(lead.FullName)]; ok {
			ids[externalID] = e.ID
			continue
		}
		r.logger.Warn("Lead not matched to any employee", map[string]interface{}{
			"lead_id":   externalID,
			"lead_name": lead.FullName,
			"row":       lead.Row,
		})
	}

	r.logger.Info("Lead mapping built", map[string]interface{}{
		"route_id": routeID.String(),
		"leads":    len(leads),
		"matched":  len(ids),
	})
	return LeadMapping{ids: ids}, nil
}

// SeedLeads creates an employee for every lead row that has no employee with
// the same external id on the route. It returns how many were created.
func (r *Resolver) SeedLeads(ctx context.Context, routeID uuid.UUID, leads []domain.LeadRow) (int, error) {
	employees, err := r.store.ListEmployees(ctx)
	if err != nil {
		return 0, fmt.Errorf("list employees: %w", err)
	}
	idx := indexEmployees(employees, routeID)

	created := 0
	for _, lead := range leads {
		externalID := utils.NormalizeExternalID(lead.ExternalID)
		if _, ok := idx.byExternalID[externalID]; ok {
			continue
		}

		pdID, err := r.resolveEmployeePerson(ctx, lead)
		if err != nil {
			return created, err
		}

		employeeType := lead.Type
		if employeeType == "" {
			employeeType = domain.EmployeeTypeLead
		}
		e := &domain.Employee{
			ID:             uuid.New(),
			PersonalDataID: pdID,
			RouteID:        routeID,
			ExternalID:     externalID,
			Type:           employeeType,
			FullName:       lead.FullName,
		}
		if err := r.store.CreateEmployee(ctx, e); err != nil {
			return created, fmt.Errorf("create employee %s: %w", externalID, err)
		}
		idx.byExternalID[externalID] = e
		created++
	}

	return created, nil
}

func (r *Resolver) resolveEmployeePerson(ctx context.Context, lead domain.LeadRow) (uuid.UUID, error) {
	name := NormalizeName(lead.FullName)
	if name == "" {
		return uuid.Nil, fmt.Errorf("lead %s: %w", lead.ExternalID, ErrEmptyName)
	}

	pd, err := r.store.FindPersonalData(ctx, domain.PersonKindEmployee, name)
	if err == nil {
		return pd.ID, nil
	}
	if !repository.IsNotFound(err) {
		return uuid.Nil, fmt.Errorf("find employee person %s: %w", name, err)
	}

	pd = &domain.PersonalData{
		ID:             uuid.New(),
		Kind:           domain.PersonKindEmployee,
		FullName:       lead.FullName,
		NormalizedName: name,
	}
	if ValidPhone(lead.Phone) {
		pd.Phone = lead.Phone
	}
	if err := r.store.CreatePersonalData(ctx, pd); err != nil {
		return uuid.Nil, fmt.Errorf("create employee person %s: %w", name, err)
	}
	return pd.ID, nil
}
