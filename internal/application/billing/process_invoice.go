package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain/entity"
)

// VATRate tasa de IVA aplicada a cada partida.
var VATRate = decimal.NewFromFloat(0.16)

// Formato en que se escribe la fecha de timbrado en la hoja.
const issuedAtLayout = "2006-01-02 15:04:05"

// Orchestrator coordina el ciclo de vida de una solicitud de factura: lee la
// fila, aplica el guard del centinela y la idempotencia, mapea y valida,
// resuelve al cliente, timbra y escribe el desenlace en la hoja.
type Orchestrator struct {
	sheet     SheetGateway
	clients   CounterpartyResolver
	submitter InvoiceSubmitter
	sheetID   int64

	now func() time.Time
}

// NewOrchestrator construye el orquestador para la hoja de solicitudes dada.
func NewOrchestrator(sheet SheetGateway, clients CounterpartyResolver, submitter InvoiceSubmitter, sheetID int64) *Orchestrator {
	return &Orchestrator{
		sheet:     sheet,
		clients:   clients,
		submitter: submitter,
		sheetID:   sheetID,
		now:       time.Now,
	}
}

// ComputeTotals calcula subtotal, IVA y total de la solicitud, redondeados a
// dos decimales.
func ComputeTotals(req *entity.InvoiceRequest) Totals {
	subtotal := req.Subtotal().Round(2)
	vat := subtotal.Mul(VATRate).Round(2)
	return Totals{
		Subtotal: subtotal,
		VAT:      vat,
		Total:    subtotal.Add(vat),
	}
}

// ProcessRowEvent procesa el evento de una fila notificada por webhook o por
// un barrido manual. Siempre devuelve un resultado describiendo el
// desenlace; error solo cuando ni siquiera pudo leerse la fila.
//
// Garantías:
//   - Solo actúa si Estado == "Facturar" (el centinela exacto).
//   - Una fila ya facturada (Facturado con UUID) nunca se retimbra.
//   - El desenlace se escribe en la fila una sola vez, en un solo lote.
func (o *Orchestrator) ProcessRowEvent(ctx context.Context, rowID int64) (*entity.InvoiceResult, error) {
	row, err := o.sheet.FetchRow(ctx, o.sheetID, rowID)
	if err != nil {
		return nil, fmt.Errorf("leer fila %d: %w", rowID, err)
	}

	state := entity.RowStateFrom(row.String(ColEstado))

	// Idempotencia: reentregas del webhook sobre una fila ya facturada no
	// deben generar una segunda factura.
	if state == entity.StateCompleted && row.Has(ColUUID) {
		log.Debug().Int64("row_id", rowID).Msg("fila ya facturada, se ignora")
		return &entity.InvoiceResult{RowID: rowID, Skipped: true, Message: "ya facturada"}, nil
	}
	if state != entity.StateRequested {
		log.Debug().Int64("row_id", rowID).Str("estado", row.String(ColEstado)).
			Msg("fila sin centinela de facturación, se ignora")
		return &entity.InvoiceResult{RowID: rowID, Skipped: true, Message: "sin solicitud de factura"}, nil
	}

	// Reclama la fila para que un barrido concurrente no la tome dos veces.
	if err := o.sheet.UpdateCells(ctx, o.sheetID, rowID, map[string]any{
		ColEstado: string(entity.StateProcessing),
	}); err != nil {
		return nil, fmt.Errorf("reclamar fila %d: %w", rowID, err)
	}

	req, err := MapRow(row)
	if err != nil {
		return o.fail(ctx, rowID, err)
	}

	client, err := o.clients.GetClientByRFC(ctx, req.RFC)
	if err != nil {
		if errors.Is(err, domain.ErrCounterpartyNotFound) {
			return o.fail(ctx, rowID, fmt.Errorf("RFC %s no registrado como cliente en Bind ERP", req.RFC))
		}
		return o.fail(ctx, rowID, err)
	}

	totals := ComputeTotals(req)
	submitted, err := o.submitter.Submit(ctx, req, client, totals)
	if err != nil {
		return o.fail(ctx, rowID, err)
	}

	issuedAt := submitted.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = o.now()
	}
	if err := o.sheet.UpdateCells(ctx, o.sheetID, rowID, map[string]any{
		ColEstado:           string(entity.StateCompleted),
		ColUUID:             submitted.UUID,
		ColFolioFiscal:      submitted.Folio,
		ColFechaFacturacion: issuedAt.Format(issuedAtLayout),
		ColResultado:        "Exitoso",
	}); err != nil {
		// La factura ya existe en el ERP; dejar evidencia en la fila para
		// que el operador no la retimbre a mano.
		log.Error().Int64("row_id", rowID).Str("uuid", submitted.UUID).Err(err).
			Msg("factura timbrada pero no se pudo actualizar la fila")
		o.comment(ctx, rowID, fmt.Sprintf("Factura timbrada (UUID %s) pero la fila no pudo actualizarse: %v", submitted.UUID, err))
		return nil, fmt.Errorf("actualizar fila %d tras timbrar: %w", rowID, err)
	}

	log.Info().Int64("row_id", rowID).Str("uuid", submitted.UUID).Str("folio", submitted.Folio).
		Str("rfc", req.RFC).Msg("factura timbrada")
	return &entity.InvoiceResult{
		RowID:    rowID,
		Success:  true,
		UUID:     submitted.UUID,
		Folio:    submitted.Folio,
		IssuedAt: issuedAt,
		Message:  "Exitoso",
	}, nil
}

// fail registra el desenlace fallido en la fila, conservando el detalle de
// la causa para el operador.
func (o *Orchestrator) fail(ctx context.Context, rowID int64, cause error) (*entity.InvoiceResult, error) {
	msg := "Error: " + cause.Error()
	if err := o.sheet.UpdateCells(ctx, o.sheetID, rowID, map[string]any{
		ColEstado:    string(entity.StateFailed),
		ColResultado: msg,
	}); err != nil {
		log.Error().Int64("row_id", rowID).Err(err).Msg("no se pudo escribir el desenlace fallido")
		return nil, fmt.Errorf("escribir falla en fila %d: %w", rowID, err)
	}
	o.comment(ctx, rowID, msg)

	log.Warn().Int64("row_id", rowID).Err(cause).Msg("solicitud de factura fallida")
	return &entity.InvoiceResult{RowID: rowID, Message: msg}, nil
}

func (o *Orchestrator) comment(ctx context.Context, rowID int64, text string) {
	if err := o.sheet.AppendComment(ctx, o.sheetID, rowID, text); err != nil {
		log.Warn().Int64("row_id", rowID).Err(err).Msg("no se pudo comentar la fila")
	}
}
