package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Columnas de estatus fiscal en la hoja de solicitudes.
const (
	ColInvoiceUUID   = "UUID"
	ColEstadoFactura = "Estado Factura"
	ColTotalFactura  = "Total"
	ColSaldoFactura  = "Saldo"
)

// InvoiceSyncer refresca en la hoja el estatus de las facturas ya timbradas
// (Vigente, Pagada, Cancelada) consultando las emitidas recientemente en
// Bind. Solo actualiza filas que ya traen UUID; nunca crea filas.
type InvoiceSyncer struct {
	sheet    SheetGateway
	source   InvoiceSource
	sheetID  int64
	lookback time.Duration

	now func() time.Time
}

// NewInvoiceSyncer construye el sincronizador de estatus de facturas.
// lookback acota la consulta al ERP a las facturas recientes.
func NewInvoiceSyncer(sheet SheetGateway, source InvoiceSource, sheetID int64, lookback time.Duration) *InvoiceSyncer {
	return &InvoiceSyncer{
		sheet:    sheet,
		source:   source,
		sheetID:  sheetID,
		lookback: lookback,
		now:      time.Now,
	}
}

// Run ejecuta una corrida de sincronización de estatus.
func (s *InvoiceSyncer) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), StartedAt: s.now()}

	since := time.Time{}
	if s.lookback > 0 {
		since = s.now().Add(-s.lookback)
	}
	invoices, err := s.source.GetInvoices(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("obtener facturas de Bind: %w", err)
	}
	byUUID := make(map[string]int, len(invoices))
	for i, inv := range invoices {
		if inv.UUID == "" {
			continue
		}
		byUUID[strings.ToUpper(inv.UUID)] = i
	}

	rows, err := s.sheet.FetchSheet(ctx, s.sheetID)
	if err != nil {
		return nil, fmt.Errorf("leer hoja de solicitudes: %w", err)
	}

	for _, row := range rows {
		rowUUID := strings.ToUpper(strings.TrimSpace(row.String(ColInvoiceUUID)))
		if rowUUID == "" {
			report.Skipped++
			continue
		}
		idx, found := byUUID[rowUUID]
		if !found {
			report.Skipped++
			continue
		}
		inv := invoices[idx]

		status := inv.ERPInvoiceStatus()
		if current := row.String(ColEstadoFactura); current == status {
			report.Skipped++
			continue
		}
		values := map[string]any{
			ColEstadoFactura: status,
			ColTotalFactura:  inv.Total.InexactFloat64(),
			ColSaldoFactura:  inv.Balance.InexactFloat64(),
		}
		if err := s.sheet.UpdateCells(ctx, s.sheetID, row.RowID, values); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("fila %d (%s): %v", row.RowID, rowUUID, err))
			continue
		}
		report.Updated++
		log.Debug().Int64("row_id", row.RowID).Str("uuid", rowUUID).Str("status", status).
			Msg("estatus de factura actualizado")
	}

	report.FinishedAt = s.now()
	log.Info().Str("run_id", report.RunID).Int("updated", report.Updated).
		Int("skipped", report.Skipped).Int("errors", len(report.Errors)).
		Msg("sincronización de facturas terminada")
	return report, nil
}
