package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Columnas de la hoja de inventario.
const (
	ColCodigo              = "Codigo"
	ColProducto            = "Producto"
	ColExistencias         = "Existencias"
	ColAlmacen             = "Almacen"
	ColUltimaActualizacion = "Ultima Actualizacion"
)

const stockUpdatedLayout = "2006-01-02 15:04:05"

// InventoryReconciler empuja las existencias de Bind ERP hacia la hoja de
// inventario. Solo actualiza filas existentes emparejadas por código de
// producto; nunca inserta ni borra filas, la hoja es del operador.
type InventoryReconciler struct {
	sheet       SheetGateway
	source      InventorySource
	sheetID     int64
	warehouseID string

	now func() time.Time
}

// NewInventoryReconciler construye el reconciliador de inventario.
func NewInventoryReconciler(sheet SheetGateway, source InventorySource, sheetID int64, warehouseID string) *InventoryReconciler {
	return &InventoryReconciler{
		sheet:       sheet,
		source:      source,
		sheetID:     sheetID,
		warehouseID: warehouseID,
		now:         time.Now,
	}
}

// Run ejecuta una corrida completa de reconciliación. Las fallas por fila se
// acumulan en el reporte sin abortar el resto de la corrida; error solo
// cuando no pudo obtenerse el inventario o la hoja.
func (r *InventoryReconciler) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), StartedAt: r.now()}

	stock, err := r.source.GetInventory(ctx, r.warehouseID)
	if err != nil {
		return nil, fmt.Errorf("obtener inventario de Bind: %w", err)
	}
	byCode := make(map[string]int, len(stock))
	for i, item := range stock {
		byCode[normalizeCode(item.Code)] = i
	}

	rows, err := r.sheet.FetchSheet(ctx, r.sheetID)
	if err != nil {
		return nil, fmt.Errorf("leer hoja de inventario: %w", err)
	}

	timestamp := r.now().Format(stockUpdatedLayout)
	for _, row := range rows {
		code := normalizeCode(row.String(ColCodigo))
		if code == "" {
			report.Skipped++
			continue
		}
		idx, found := byCode[code]
		if !found {
			report.Skipped++
			log.Debug().Int64("row_id", row.RowID).Str("codigo", code).
				Msg("producto sin existencia en Bind, fila sin cambios")
			continue
		}
		item := stock[idx]

		values := map[string]any{
			ColExistencias:         item.Stock.InexactFloat64(),
			ColUltimaActualizacion: timestamp,
		}
		if item.WarehouseName != "" {
			values[ColAlmacen] = item.WarehouseName
		}
		if err := r.sheet.UpdateCells(ctx, r.sheetID, row.RowID, values); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("fila %d (%s): %v", row.RowID, code, err))
			continue
		}
		report.Updated++
	}

	report.FinishedAt = r.now()
	log.Info().Str("run_id", report.RunID).Int("updated", report.Updated).
		Int("skipped", report.Skipped).Int("errors", len(report.Errors)).
		Msg("reconciliación de inventario terminada")
	return report, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
