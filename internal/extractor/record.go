package extractor

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/segyhp/loan-importer/pkg/utils"
)

// Mapping maps a column letter ("A", "AB") to a field name.
type Mapping map[string]string

// Record is one data row keyed by field name.
type Record struct {
	Row    int
	fields map[string]string
	decode DateDecoder
}

func (r Record) String(field string) string {
	return strings.TrimSpace(r.fields[field])
}

// Decimal returns the field as a money amount rounded to cents, zero when
// empty or unparsable.
func (r Record) Decimal(field string) decimal.Decimal {
	return r.number(field).Round(2)
}

// Rate returns the field as a fractional rate at the precision loan types
// are stored with.
func (r Record) Rate(field string) decimal.Decimal {
	return utils.NormalizeRate(r.number(field))
}

func (r Record) number(field string) decimal.Decimal {
	raw := strings.ReplaceAll(r.String(field), ",", "")
	raw = strings.TrimPrefix(raw, "$")
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (r Record) Int(field string) int {
	raw := r.String(field)
	if raw == "" {
		return 0
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(f)
	}
	return 0
}

// Date decodes a date-serial field. It returns nil when the cell is empty or
// the serial is not a valid date.
func (r Record) Date(field string) *time.Time {
	raw := r.String(field)
	if raw == "" || r.decode == nil {
		return nil
	}
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	t, ok := r.decode(serial)
	if !ok {
		return nil
	}
	return &t
}

// Empty reports whether every mapped field is blank.
func (r Record) Empty() bool {
	for _, v := range r.fields {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

type column struct {
	index int
	field string
}

func resolveColumns(mapping Mapping) ([]column, error) {
	cols := make([]column, 0, len(mapping))
	for letter, field := range mapping {
		n, err := excelize.ColumnNameToNumber(letter)
		if err != nil {
			return nil, fmt.Errorf("column %q for field %s: %w", letter, field, err)
		}
		cols = append(cols, column{index: n - 1, field: field})
	}
	return cols, nil
}

// records yields one Record per non-empty data row. The sequence can be
// ranged over any number of times.
func records(rows [][]string, cols []column, decode DateDecoder) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for i := 1; i < len(rows); i++ {
			rec := Record{Row: i + 1, fields: make(map[string]string, len(cols)), decode: decode}
			for _, c := range cols {
				if c.index < len(rows[i]) {
					rec.fields[c.field] = rows[i][c.index]
				}
			}
			if rec.Empty() {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}
}
