// Package extractor turns workbook sheets into typed import rows.
package extractor

import (
	"iter"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-importer/internal/domain"
	customError "github.com/segyhp/loan-importer/pkg/errors"
	"github.com/segyhp/loan-importer/pkg/utils"
)

// Rejected is a row that had an id but failed validation.
type Rejected struct {
	Sheet      string
	Row        int
	ExternalID string
	Err        error
}

// Extractor reads typed rows from a SheetReader.
type Extractor struct {
	reader    SheetReader
	decode    DateDecoder
	layout    Layout
	validator *validator.Validate
}

func New(reader SheetReader, decode DateDecoder, layout Layout) *Extractor {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	return &Extractor{
		reader:    reader,
		decode:    decode,
		layout:    layout,
		validator: v,
	}
}

// Records returns the non-empty data rows of a sheet as field records.
// Failing to read the sheet is fatal for the caller.
func (e *Extractor) Records(sl SheetLayout) (iter.Seq[Record], error) {
	cols, err := resolveColumns(sl.Mapping)
	if err != nil {
		return nil, err
	}
	rows, err := e.reader.ReadSheet(sl.Sheet)
	if err != nil {
		return nil, customError.WrapSourceUnreadable(sl.Sheet, err)
	}
	return records(rows, cols, e.decode), nil
}

// LoanRows extracts loans. Rows without a loan id are dropped silently.
func (e *Extractor) LoanRows() ([]domain.LoanRow, []Rejected, error) {
	seq, err := e.Records(e.layout.Loans)
	if err != nil {
		return nil, nil, err
	}
	var (
		out      []domain.LoanRow
		rejected []Rejected
	)
	for rec := range seq {
		id := utils.NormalizeExternalID(rec.String(FieldID))
		if id == "" {
			continue
		}
		row := domain.LoanRow{
			Row:                    rec.Row,
			ExternalID:             id,
			BorrowerName:           rec.String(FieldBorrowerName),
			BorrowerPhone:          rec.String(FieldBorrowerPhone),
			GuarantorName:          rec.String(FieldGuarantorName),
			GuarantorPhone:         rec.String(FieldGuarantorPhone),
			AmountGiven:            rec.Decimal(FieldAmountGiven),
			RequestedAmount:        rec.Decimal(FieldRequested),
			WeekDuration:           rec.Int(FieldWeeks),
			Rate:                   rec.Rate(FieldRate),
			LeadExternalID:         utils.NormalizeExternalID(rec.String(FieldLeadID)),
			PreviousLoanExternalID: utils.NormalizeExternalID(rec.String(FieldPreviousLoanID)),
			BadDebtDate:            rec.Date(FieldBadDebtDate),
		}
		if d := rec.Date(FieldSignDate); d != nil {
			row.SignDate = *d
		}
		if row.RequestedAmount.IsZero() {
			row.RequestedAmount = row.AmountGiven
		}
		if err := e.validator.Struct(row); err != nil {
			rejected = append(rejected, Rejected{Sheet: e.layout.Loans.Sheet, Row: rec.Row, ExternalID: id, Err: customError.WrapRowInvalid(e.layout.Loans.Sheet, rec.Row, err)})
			continue
		}
		out = append(out, row)
	}
	return out, rejected, nil
}

// PaymentRows extracts payments. Rows without a loan id are dropped.
func (e *Extractor) PaymentRows() ([]domain.PaymentRow, []Rejected, error) {
	seq, err := e.Records(e.layout.Payments)
	if err != nil {
		return nil, nil, err
	}
	var (
		out      []domain.PaymentRow
		rejected []Rejected
	)
	for rec := range seq {
		id := utils.NormalizeExternalID(rec.String(FieldLoanID))
		if id == "" {
			continue
		}
		row := domain.PaymentRow{
			Row:            rec.Row,
			LoanExternalID: id,
			Amount:         rec.Decimal(FieldAmount),
			Type:           normalizePaymentType(rec.String(FieldPaymentType)),
			Description:    rec.String(FieldDescription),
		}
		if d := rec.Date(FieldReceivedAt); d != nil {
			row.ReceivedAt = *d
		}
		if err := e.validator.Struct(row); err != nil {
			rejected = append(rejected, Rejected{Sheet: e.layout.Payments.Sheet, Row: rec.Row, ExternalID: id, Err: customError.WrapRowInvalid(e.layout.Payments.Sheet, rec.Row, err)})
			continue
		}
		out = append(out, row)
	}
	return out, rejected, nil
}

func (e *Extractor) ExpenseRows() ([]domain.ExpenseRow, []Rejected, error) {
	seq, err := e.Records(e.layout.Expenses)
	if err != nil {
		return nil, nil, err
	}
	var (
		out      []domain.ExpenseRow
		rejected []Rejected
	)
	for rec := range seq {
		row := domain.ExpenseRow{
			Row:         rec.Row,
			Amount:      rec.Decimal(FieldAmount),
			Concept:     rec.String(FieldConcept),
			Description: rec.String(FieldDescription),
		}
		if d := rec.Date(FieldDate); d != nil {
			row.Date = *d
		}
		if err := e.validator.Struct(row); err != nil {
			rejected = append(rejected, Rejected{Sheet: e.layout.Expenses.Sheet, Row: rec.Row, Err: customError.WrapRowInvalid(e.layout.Expenses.Sheet, rec.Row, err)})
			continue
		}
		out = append(out, row)
	}
	return out, rejected, nil
}

func (e *Extractor) PayrollRows() ([]domain.PayrollRow, []Rejected, error) {
	seq, err := e.Records(e.layout.Payroll)
	if err != nil {
		return nil, nil, err
	}
	var (
		out      []domain.PayrollRow
		rejected []Rejected
	)
	for rec := range seq {
		row := domain.PayrollRow{
			Row:            rec.Row,
			LeadExternalID: utils.NormalizeExternalID(rec.String(FieldLeadID)),
			Amount:         rec.Decimal(FieldAmount),
			Description:    rec.String(FieldDescription),
		}
		if d := rec.Date(FieldDate); d != nil {
			row.Date = *d
		}
		if err := e.validator.Struct(row); err != nil {
			rejected = append(rejected, Rejected{Sheet: e.layout.Payroll.Sheet, Row: rec.Row, ExternalID: row.LeadExternalID, Err: customError.WrapRowInvalid(e.layout.Payroll.Sheet, rec.Row, err)})
			continue
		}
		out = append(out, row)
	}
	return out, rejected, nil
}

// LeadRows extracts lead rows. Rows without an id are dropped.
func (e *Extractor) LeadRows() ([]domain.LeadRow, []Rejected, error) {
	seq, err := e.Records(e.layout.Leads)
	if err != nil {
		return nil, nil, err
	}
	var (
		out      []domain.LeadRow
		rejected []Rejected
	)
	for rec := range seq {
		id := utils.NormalizeExternalID(rec.String(FieldID))
		if id == "" {
			continue
		}
		row := domain.LeadRow{
			Row:        rec.Row,
			ExternalID: id,
			FullName:   rec.String(FieldFullName),
			Phone:      rec.String(FieldPhone),
			Type:       rec.String(FieldType),
		}
		if err := e.validator.Struct(row); err != nil {
			rejected = append(rejected, Rejected{Sheet: e.layout.Leads.Sheet, Row: rec.Row, ExternalID: id, Err: customError.WrapRowInvalid(e.layout.Leads.Sheet, rec.Row, err)})
			continue
		}
		out = append(out, row)
	}
	return out, rejected, nil
}

func normalizePaymentType(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "TRANSFERENCIA", "TRANSFER", "BANCO", "MONEY_TRANSFER", "DEPOSITO":
		return domain.PaymentTypeMoneyTransfer
	default:
		return domain.PaymentTypeCash
	}
}
