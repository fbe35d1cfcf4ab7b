package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain/entity"
)

// SheetGateway operaciones sobre la hoja de solicitudes de factura.
type SheetGateway interface {
	FetchRow(ctx context.Context, sheetID, rowID int64) (entity.RowSnapshot, error)
	// UpdateCells escribe varias columnas de la fila en una sola llamada.
	UpdateCells(ctx context.Context, sheetID, rowID int64, values map[string]any) error
	// AppendComment anota la fila; su falla no interrumpe el flujo.
	AppendComment(ctx context.Context, sheetID, rowID int64, text string) error
}

// CounterpartyResolver resuelve el cliente receptor por RFC en el ERP.
// Nunca lo crea: un RFC inexistente es falla terminal de la solicitud.
type CounterpartyResolver interface {
	GetClientByRFC(ctx context.Context, rfc string) (*entity.Counterparty, error)
}

// Totals montos calculados de la factura, con el IVA desglosado.
type Totals struct {
	Subtotal decimal.Decimal
	VAT      decimal.Decimal
	Total    decimal.Decimal
}

// SubmittedInvoice identificadores fiscales devueltos por el ERP al timbrar.
type SubmittedInvoice struct {
	UUID     string
	Folio    string
	IssuedAt time.Time
}

// InvoiceSubmitter timbra la factura en el ERP.
type InvoiceSubmitter interface {
	Submit(ctx context.Context, req *entity.InvoiceRequest, client *entity.Counterparty, totals Totals) (*SubmittedInvoice, error)
}
