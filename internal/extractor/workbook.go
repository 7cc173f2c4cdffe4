package extractor

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/segyhp/loan-importer/pkg/utils"
)

// SheetReader returns the rows of a named sheet as positional cell values,
// header row included.
type SheetReader interface {
	ReadSheet(sheet string) ([][]string, error)
}

// DateDecoder turns a workbook date serial into a calendar date. ok is false
// when the serial does not decode to a valid date.
type DateDecoder func(serial float64) (date time.Time, ok bool)

// Workbook reads sheets from an xlsx file.
type Workbook struct {
	file    *excelize.File
	use1904 bool
}

// OpenWorkbook opens an xlsx workbook from disk.
func OpenWorkbook(path string, use1904 bool) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return NewWorkbook(f, use1904), nil
}

func NewWorkbook(f *excelize.File, use1904 bool) *Workbook {
	return &Workbook{file: f, use1904: use1904}
}

// ReadSheet returns raw cell values so date cells keep their serial number.
func (w *Workbook) ReadSheet(sheet string) ([][]string, error) {
	rows, err := w.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// SheetNames lists the sheets in workbook order.
func (w *Workbook) SheetNames() []string {
	return w.file.GetSheetList()
}

func (w *Workbook) DecodeDate(serial float64) (time.Time, bool) {
	return DecodeSerialDate(serial, w.use1904)
}

func (w *Workbook) Close() error {
	return w.file.Close()
}

// DecodeSerialDate converts a workbook date serial to a UTC calendar date.
func DecodeSerialDate(serial float64, use1904 bool) (time.Time, bool) {
	if serial <= 0 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, use1904)
	if err != nil {
		return time.Time{}, false
	}
	if t.Year() < 1900 || t.Year() > 9999 {
		return time.Time{}, false
	}
	return utils.DateOnly(t), true
}
