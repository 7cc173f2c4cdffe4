package extractor

// Field names shared by the default layout and the typed row builders.
const (
	FieldID             = "id"
	FieldBorrowerName   = "borrower_name"
	FieldBorrowerPhone  = "borrower_phone"
	FieldGuarantorName  = "guarantor_name"
	FieldGuarantorPhone = "guarantor_phone"
	FieldSignDate       = "sign_date"
	FieldAmountGiven    = "amount_given"
	FieldRequested      = "requested_amount"
	FieldWeeks          = "weeks"
	FieldRate           = "rate"
	FieldLeadID         = "lead_id"
	FieldPreviousLoanID = "previous_loan_id"
	FieldBadDebtDate    = "bad_debt_date"

	FieldLoanID      = "loan_id"
	FieldReceivedAt  = "received_at"
	FieldAmount      = "amount"
	FieldPaymentType = "payment_type"
	FieldDescription = "description"

	FieldDate    = "date"
	FieldConcept = "concept"

	FieldFullName = "full_name"
	FieldPhone    = "phone"
	FieldType     = "type"
)

// SheetLayout names a sheet and how its columns map to fields.
type SheetLayout struct {
	Sheet   string
	Mapping Mapping
}

// Layout describes every logical source in a route workbook.
type Layout struct {
	Loans    SheetLayout
	Payments SheetLayout
	Expenses SheetLayout
	Payroll  SheetLayout
	Leads    SheetLayout
}

// DefaultLayout is the column arrangement used by the route workbooks.
func DefaultLayout() Layout {
	return Layout{
		Loans: SheetLayout{
			Sheet: "CREDITOS",
			Mapping: Mapping{
				"A": FieldID,
				"B": FieldBorrowerName,
				"C": FieldBorrowerPhone,
				"D": FieldGuarantorName,
				"E": FieldGuarantorPhone,
				"F": FieldSignDate,
				"G": FieldAmountGiven,
				"H": FieldRequested,
				"I": FieldWeeks,
				"J": FieldRate,
				"K": FieldLeadID,
				"L": FieldPreviousLoanID,
				"M": FieldBadDebtDate,
			},
		},
		Payments: SheetLayout{
			Sheet: "ABONOS",
			Mapping: Mapping{
				"A": FieldLoanID,
				"B": FieldReceivedAt,
				"C": FieldAmount,
				"D": FieldPaymentType,
				"E": FieldDescription,
			},
		},
		Expenses: SheetLayout{
			Sheet: "GASTOS",
			Mapping: Mapping{
				"A": FieldDate,
				"B": FieldAmount,
				"C": FieldConcept,
				"D": FieldDescription,
			},
		},
		Payroll: SheetLayout{
			Sheet: "NOMINA",
			Mapping: Mapping{
				"A": FieldDate,
				"B": FieldLeadID,
				"C": FieldAmount,
				"D": FieldDescription,
			},
		},
		Leads: SheetLayout{
			Sheet: "LIDERES",
			Mapping: Mapping{
				"A": FieldID,
				"B": FieldFullName,
				"C": FieldPhone,
				"D": FieldType,
			},
		},
	}
}
