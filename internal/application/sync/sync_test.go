package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain/entity"
)

// fakeSheet hoja en memoria para los sincronizadores.
type fakeSheet struct {
	rows     []entity.RowSnapshot
	updates  map[int64]map[string]any
	failRows map[int64]error
}

func newFakeSheet(rows ...entity.RowSnapshot) *fakeSheet {
	return &fakeSheet{
		rows:     rows,
		updates:  make(map[int64]map[string]any),
		failRows: make(map[int64]error),
	}
}

func (s *fakeSheet) FetchSheet(context.Context, int64) ([]entity.RowSnapshot, error) {
	return s.rows, nil
}

func (s *fakeSheet) UpdateCells(_ context.Context, _ int64, rowID int64, values map[string]any) error {
	if err := s.failRows[rowID]; err != nil {
		return err
	}
	s.updates[rowID] = values
	return nil
}

type fakeInventory struct {
	items []entity.StockItem
	err   error
}

func (f *fakeInventory) GetInventory(context.Context, string) ([]entity.StockItem, error) {
	return f.items, f.err
}

type fakeInvoices struct {
	invoices []entity.ERPInvoice
	since    time.Time
}

func (f *fakeInvoices) GetInvoices(_ context.Context, since time.Time) ([]entity.ERPInvoice, error) {
	f.since = since
	return f.invoices, nil
}

func stockRow(rowID int64, code string) entity.RowSnapshot {
	return entity.RowSnapshot{RowID: rowID, Cells: map[string]any{ColCodigo: code}}
}

func TestInventoryRunActualizaFilasEmparejadas(t *testing.T) {
	sheet := newFakeSheet(
		stockRow(1, "SKU-1"),
		stockRow(2, "sku-2"),
		stockRow(3, "SKU-HUERFANO"),
		entity.RowSnapshot{RowID: 4, Cells: map[string]any{}},
	)
	source := &fakeInventory{items: []entity.StockItem{
		{Code: "SKU-1", Stock: decimal.NewFromInt(12), WarehouseName: "Central"},
		{Code: "SKU-2", Stock: decimal.NewFromFloat(3.5)},
	}}
	r := NewInventoryReconciler(sheet, source, 777, "w-1")

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 2, report.Skipped)
	assert.Empty(t, report.Errors)
	assert.NotEmpty(t, report.RunID)

	assert.Equal(t, 12.0, sheet.updates[1][ColExistencias])
	assert.Equal(t, "Central", sheet.updates[1][ColAlmacen])
	assert.NotEmpty(t, sheet.updates[1][ColUltimaActualizacion])
	// El emparejamiento por código ignora mayúsculas.
	assert.Equal(t, 3.5, sheet.updates[2][ColExistencias])
	assert.NotContains(t, sheet.updates, int64(3))
}

func TestInventoryRunAcumulaFallasPorFila(t *testing.T) {
	sheet := newFakeSheet(stockRow(1, "SKU-1"), stockRow(2, "SKU-2"))
	sheet.failRows[1] = errors.New("columna bloqueada")
	source := &fakeInventory{items: []entity.StockItem{
		{Code: "SKU-1", Stock: decimal.NewFromInt(1)},
		{Code: "SKU-2", Stock: decimal.NewFromInt(2)},
	}}
	r := NewInventoryReconciler(sheet, source, 777, "")

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "columna bloqueada")
}

func TestInventoryRunFallaSiElERPNoResponde(t *testing.T) {
	r := NewInventoryReconciler(newFakeSheet(), &fakeInventory{err: errors.New("timeout")}, 777, "")
	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "obtener inventario")
}

func invoiceRow(rowID int64, uuidValue, status string) entity.RowSnapshot {
	cells := map[string]any{ColInvoiceUUID: uuidValue}
	if status != "" {
		cells[ColEstadoFactura] = status
	}
	return entity.RowSnapshot{RowID: rowID, Cells: cells}
}

func TestInvoiceRunRefrescaEstatus(t *testing.T) {
	sheet := newFakeSheet(
		invoiceRow(1, "UUID-A", "Vigente"),
		invoiceRow(2, "uuid-b", ""),
		invoiceRow(3, "", ""),
	)
	source := &fakeInvoices{invoices: []entity.ERPInvoice{
		{UUID: "UUID-A", Status: 2, Total: decimal.NewFromInt(1160)},
		{UUID: "UUID-B", Status: 1, Total: decimal.NewFromInt(500), Balance: decimal.Zero},
	}}
	s := NewInvoiceSyncer(sheet, source, 555, 30*time.Minute)

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 1, report.Skipped)

	assert.Equal(t, "Cancelada", sheet.updates[1][ColEstadoFactura])
	// El UUID de la hoja se empareja sin distinguir mayúsculas.
	assert.Equal(t, "Pagada", sheet.updates[2][ColEstadoFactura])
	assert.Equal(t, 500.0, sheet.updates[2][ColTotalFactura])

	// La consulta al ERP queda acotada por el lookback.
	assert.False(t, source.since.IsZero())
}

func TestInvoiceRunOmiteEstatusSinCambio(t *testing.T) {
	sheet := newFakeSheet(invoiceRow(1, "UUID-A", "Pagada"))
	source := &fakeInvoices{invoices: []entity.ERPInvoice{{UUID: "UUID-A", Status: 1}}}
	s := NewInvoiceSyncer(sheet, source, 555, 0)

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Updated)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, sheet.updates)
	// Sin lookback la consulta va sin filtro de fecha.
	assert.True(t, source.since.IsZero())
}

func TestReportFailed(t *testing.T) {
	assert.False(t, Report{}.Failed())
	assert.True(t, Report{Errors: []string{fmt.Sprintf("fila %d", 1)}}.Failed())
}
