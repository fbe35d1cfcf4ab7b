package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain/entity"
)

// fakeSheet gateway de hoja en memoria que registra las escrituras.
type fakeSheet struct {
	rows     map[int64]entity.RowSnapshot
	updates  []map[string]any
	comments []string
	failPut  error
}

func newFakeSheet(rows ...entity.RowSnapshot) *fakeSheet {
	s := &fakeSheet{rows: make(map[int64]entity.RowSnapshot)}
	for _, r := range rows {
		s.rows[r.RowID] = r
	}
	return s
}

func (s *fakeSheet) FetchRow(_ context.Context, _ int64, rowID int64) (entity.RowSnapshot, error) {
	row, ok := s.rows[rowID]
	if !ok {
		return entity.RowSnapshot{}, fmt.Errorf("fila %d no existe", rowID)
	}
	return row, nil
}

func (s *fakeSheet) UpdateCells(_ context.Context, _ int64, rowID int64, values map[string]any) error {
	if s.failPut != nil {
		return s.failPut
	}
	s.updates = append(s.updates, values)
	row := s.rows[rowID]
	if row.Cells == nil {
		row.Cells = make(map[string]any)
	}
	for k, v := range values {
		row.Cells[k] = v
	}
	s.rows[rowID] = row
	return nil
}

func (s *fakeSheet) AppendComment(_ context.Context, _ int64, _ int64, text string) error {
	s.comments = append(s.comments, text)
	return nil
}

// fakeResolver resolutor de clientes con respuesta fija.
type fakeResolver struct {
	client *entity.Counterparty
	err    error
	calls  int
}

func (r *fakeResolver) GetClientByRFC(context.Context, string) (*entity.Counterparty, error) {
	r.calls++
	return r.client, r.err
}

// fakeSubmitter timbrador con respuesta fija.
type fakeSubmitter struct {
	result     *SubmittedInvoice
	err        error
	calls      int
	lastTotals Totals
}

func (s *fakeSubmitter) Submit(_ context.Context, _ *entity.InvoiceRequest, _ *entity.Counterparty, totals Totals) (*SubmittedInvoice, error) {
	s.calls++
	s.lastTotals = totals
	return s.result, s.err
}

func testOrchestrator(sheet *fakeSheet, resolver *fakeResolver, submitter *fakeSubmitter) *Orchestrator {
	o := NewOrchestrator(sheet, resolver, submitter, 555)
	o.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }
	return o
}

func requestedRow() entity.RowSnapshot {
	return validRow()
}

func TestProcessRowEventTimbraFilaSolicitada(t *testing.T) {
	sheet := newFakeSheet(requestedRow())
	resolver := &fakeResolver{client: &entity.Counterparty{ID: "c-1", RFC: "AAA010101AAA"}}
	submitter := &fakeSubmitter{result: &SubmittedInvoice{UUID: "UUID-1", Folio: "45"}}
	o := testOrchestrator(sheet, resolver, submitter)

	result, err := o.ProcessRowEvent(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "UUID-1", result.UUID)
	assert.Equal(t, "45", result.Folio)

	// Primero el reclamo, luego el desenlace, nada más.
	require.Len(t, sheet.updates, 2)
	assert.Equal(t, "Procesando", sheet.updates[0][ColEstado])
	final := sheet.updates[1]
	assert.Equal(t, "Facturado", final[ColEstado])
	assert.Equal(t, "UUID-1", final[ColUUID])
	assert.Equal(t, "45", final[ColFolioFiscal])
	assert.Equal(t, "Exitoso", final[ColResultado])
	assert.Equal(t, "2026-08-28 12:00:00", final[ColFechaFacturacion])

	// El IVA viaja calculado al timbrador.
	assert.Equal(t, "160", submitter.lastTotals.VAT.String())

	// Una reentrega del mismo evento no genera una segunda factura.
	again, err := o.ProcessRowEvent(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	assert.Equal(t, 1, submitter.calls)
}

func TestProcessRowEventIgnoraFilaSinCentinela(t *testing.T) {
	row := requestedRow()
	row.Cells[ColEstado] = "Borrador"
	sheet := newFakeSheet(row)
	resolver := &fakeResolver{}
	submitter := &fakeSubmitter{}
	o := testOrchestrator(sheet, resolver, submitter)

	result, err := o.ProcessRowEvent(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Empty(t, sheet.updates)
	assert.Zero(t, resolver.calls)
	assert.Zero(t, submitter.calls)
}

func TestProcessRowEventNoRetimbraFilaFacturada(t *testing.T) {
	row := requestedRow()
	row.Cells[ColEstado] = "Facturado"
	row.Cells[ColUUID] = "UUID-VIEJO"
	sheet := newFakeSheet(row)
	submitter := &fakeSubmitter{}
	o := testOrchestrator(sheet, &fakeResolver{}, submitter)

	result, err := o.ProcessRowEvent(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Zero(t, submitter.calls)
	assert.Empty(t, sheet.updates)
}

func TestProcessRowEventValidacionFallidaNoLlamaAlERP(t *testing.T) {
	row := requestedRow()
	row.Cells[ColClaveSATProducto] = "123"
	sheet := newFakeSheet(row)
	resolver := &fakeResolver{}
	submitter := &fakeSubmitter{}
	o := testOrchestrator(sheet, resolver, submitter)

	result, err := o.ProcessRowEvent(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Zero(t, resolver.calls)
	assert.Zero(t, submitter.calls)

	require.Len(t, sheet.updates, 2)
	final := sheet.updates[1]
	assert.Equal(t, "Error", final[ColEstado])
	assert.Contains(t, final[ColResultado], ColClaveSATProducto)
}

func TestProcessRowEventRFCNoRegistradoEsTerminal(t *testing.T) {
	sheet := newFakeSheet(requestedRow())
	resolver := &fakeResolver{err: fmt.Errorf("cliente: %w", domain.ErrCounterpartyNotFound)}
	submitter := &fakeSubmitter{}
	o := testOrchestrator(sheet, resolver, submitter)

	result, err := o.ProcessRowEvent(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Zero(t, submitter.calls)
	assert.Contains(t, result.Message, "no registrado como cliente")
}

func TestProcessRowEventConservaElDetalleDelUpstream(t *testing.T) {
	sheet := newFakeSheet(requestedRow())
	resolver := &fakeResolver{client: &entity.Counterparty{ID: "c-1"}}
	submitter := &fakeSubmitter{err: errors.New("bind: error 400: certificado fiscal vencido")}
	o := testOrchestrator(sheet, resolver, submitter)

	result, err := o.ProcessRowEvent(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "certificado fiscal vencido")

	final := sheet.updates[len(sheet.updates)-1]
	assert.Contains(t, final[ColResultado], "certificado fiscal vencido")
	require.NotEmpty(t, sheet.comments)
	assert.Contains(t, sheet.comments[0], "certificado fiscal vencido")
}
