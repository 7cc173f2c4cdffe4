package importer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/segyhp/loan-importer/internal/domain"
	"github.com/segyhp/loan-importer/internal/extractor"
	"github.com/segyhp/loan-importer/internal/logger"
	"github.com/segyhp/loan-importer/internal/repository/memory"
	apperrors "github.com/segyhp/loan-importer/pkg/errors"
)

// 2023-01-01 in the 1900 date system.
const serial20230101 = 44927

func writeSheets(t *testing.T, sheets map[string][][]interface{}) *extractor.Workbook {
	t.Helper()
	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })

	for name, rows := range sheets {
		_, err := f.NewSheet(name)
		require.NoError(t, err)
		for i, row := range rows {
			for j, v := range row {
				cell, err := excelize.CoordinatesToCellName(j+1, i+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellValue(name, cell, v))
			}
		}
	}
	return extractor.NewWorkbook(f, false)
}

func routeWorkbook(t *testing.T) *extractor.Workbook {
	return writeSheets(t, map[string][][]interface{}{
		"CREDITOS": {
			{"ID", "CLIENTE", "TEL", "AVAL", "TEL AVAL", "FECHA", "ENTREGADO", "SOLICITADO", "SEMANAS", "TASA", "LIDER", "ANTERIOR", "CARTERA MUERTA"},
			{77, "Ana Lopez", "555-1234", "", "", serial20230101, 1000, 1000, 10, 0, 1, "", ""},
			{78, "ANA LOPEZ", "", "Rosa Diaz", "", serial20230101 + 71, 1000, 1000, 14, 40, 1, 77, ""},
			{90, "JUAN FALCO PEREZ", "", "", "", serial20230101 + 5, 500, 500, 10, 0, 1, "", ""},
			{91, "SIN FECHA", "", "", "", "", 500, 500, 10, 0, 1, "", ""},
		},
		"ABONOS": {
			{"CREDITO", "FECHA", "MONTO", "TIPO", "NOTA"},
			{77, serial20230101 + 70, 1000, "EFECTIVO", ""},
			{78, serial20230101 + 78, 140, "TRANSFERENCIA", ""},
			{90, serial20230101 + 40, 200, "EFECTIVO", ""},
		},
		"LIDERES": {
			{"ID", "NOMBRE", "TEL", "TIPO"},
			{1, "Luis Perez", "", ""},
		},
		"GASTOS": {
			{"FECHA", "MONTO", "CONCEPTO", "NOTA"},
			{serial20230101 + 3, 150, "Gasolina", ""},
		},
	})
}

func TestLoadSource(t *testing.T) {
	wb := routeWorkbook(t)
	layout := extractor.DefaultLayout()
	ex := extractor.New(wb, wb.DecodeDate, layout)

	src, err := LoadSource(ex, layout, wb.SheetNames(), logger.NewTestLogger(t))
	require.NoError(t, err)

	assert.Len(t, src.Loans, 3)
	assert.Len(t, src.RejectedLoans, 1)
	assert.Equal(t, 4, src.SourceRows())
	assert.Len(t, src.Payments, 3)
	assert.Len(t, src.Leads, 1)
	assert.Len(t, src.Expenses, 1)
	assert.Empty(t, src.Payroll)
}

func TestLoadSource_MissingRequiredSheet(t *testing.T) {
	wb := writeSheets(t, map[string][][]interface{}{
		"CREDITOS": {{"ID"}},
	})
	layout := extractor.DefaultLayout()
	ex := extractor.New(wb, wb.DecodeDate, layout)

	_, err := LoadSource(ex, layout, wb.SheetNames(), logger.NewTestLogger(t))
	assert.ErrorIs(t, err, apperrors.ErrSourceUnreadable)
}

func TestWorkbookToSummary(t *testing.T) {
	wb := routeWorkbook(t)
	layout := extractor.DefaultLayout()
	log := logger.NewTestLogger(t)

	src, err := LoadSource(extractor.New(wb, wb.DecodeDate, layout), layout, wb.SheetNames(), log)
	require.NoError(t, err)

	store := memory.NewStore()
	e := NewEngine(store, log, testOptions())
	_, err = e.SeedLeads(context.Background(), "RUTA1", src.Leads)
	require.NoError(t, err)

	summary, err := e.ImportRoute(context.Background(), "RUTA1", src)
	require.NoError(t, err)

	assert.True(t, summary.Reconciled())
	assert.Equal(t, 2, summary.Counts[domain.OutcomePersisted])
	assert.Equal(t, 1, summary.Counts[domain.OutcomeWriteOff])
	assert.Equal(t, 1, summary.Counts[domain.OutcomeSkippedInvalid])
	assert.Equal(t, 1, summary.RenewalsProcessed)
	assert.Equal(t, 1, summary.ExpensesPersisted)
	assert.Len(t, store.PersonalData(domain.PersonKindGuarantor), 1)
}
