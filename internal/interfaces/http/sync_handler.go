package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/EntersysMX/smartsheet-bind-awalab/internal/application/dto"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/application/sync"
)

// Syncer corrida manual de un sincronizador.
type Syncer interface {
	Run(ctx context.Context) (*sync.Report, error)
}

// SyncHandler dispara corridas manuales de sincronización (protegido).
type SyncHandler struct {
	inventory Syncer
	invoices  Syncer
}

// NewSyncHandler construye el handler.
func NewSyncHandler(inventory, invoices Syncer) *SyncHandler {
	return &SyncHandler{inventory: inventory, invoices: invoices}
}

// Inventory ejecuta la reconciliación de inventario ahora.
// POST /api/sync/inventory
func (h *SyncHandler) Inventory(c *fiber.Ctx) error {
	return h.run(c, h.inventory)
}

// Invoices ejecuta la sincronización de estatus de facturas ahora.
// POST /api/sync/invoices
func (h *SyncHandler) Invoices(c *fiber.Ctx) error {
	return h.run(c, h.invoices)
}

func (h *SyncHandler) run(c *fiber.Ctx, syncer Syncer) error {
	if syncer == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "sincronizador no configurado"})
	}
	report, err := syncer.Run(c.Context())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "UPSTREAM", Message: err.Error()})
	}
	return c.JSON(dto.SyncReportResponse{
		RunID:   report.RunID,
		Updated: report.Updated,
		Skipped: report.Skipped,
		Errors:  report.Errors,
	})
}
