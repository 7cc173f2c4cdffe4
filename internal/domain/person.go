package domain

import "github.com/google/uuid"

// Identity spaces for personal data. A person may exist once per kind.
const (
	PersonKindBorrower  = "BORROWER"
	PersonKindGuarantor = "GUARANTOR"
	PersonKindEmployee  = "EMPLOYEE"
)

const EmployeeTypeLead = "ROUTE_LEAD"

type PersonalData struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Kind           string    `json:"kind" db:"kind"`
	FullName       string    `json:"full_name" db:"full_name"`
	NormalizedName string    `json:"normalized_name" db:"normalized_name"`
	ClientCode     string    `json:"client_code" db:"client_code"`
	Phone          string    `json:"phone" db:"phone"`
}

type Borrower struct {
	ID             uuid.UUID `json:"id" db:"id"`
	PersonalDataID uuid.UUID `json:"personal_data_id" db:"personal_data_id"`
}

// Employee is field staff. ExternalID is the id used by the source workbook.
type Employee struct {
	ID             uuid.UUID `json:"id" db:"id"`
	PersonalDataID uuid.UUID `json:"personal_data_id" db:"personal_data_id"`
	RouteID        uuid.UUID `json:"route_id" db:"route_id"`
	ExternalID     string    `json:"external_id" db:"external_id"`
	Type           string    `json:"type" db:"type"`
	FullName       string    `json:"full_name" db:"full_name"`
}
