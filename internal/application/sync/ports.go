package sync

import (
	"context"
	"time"

	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain/entity"
)

// SheetGateway operaciones de hoja que usan los sincronizadores.
type SheetGateway interface {
	FetchSheet(ctx context.Context, sheetID int64) ([]entity.RowSnapshot, error)
	UpdateCells(ctx context.Context, sheetID, rowID int64, values map[string]any) error
}

// InventorySource existencias por almacén del ERP.
type InventorySource interface {
	GetInventory(ctx context.Context, warehouseID string) ([]entity.StockItem, error)
}

// InvoiceSource facturas emitidas del ERP desde una fecha dada.
type InvoiceSource interface {
	GetInvoices(ctx context.Context, since time.Time) ([]entity.ERPInvoice, error)
}

// Report desenlace de una corrida de sincronización.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Updated    int
	Skipped    int
	Errors     []string
}

// Failed indica si la corrida registró al menos un error por fila.
func (r Report) Failed() bool { return len(r.Errors) > 0 }
