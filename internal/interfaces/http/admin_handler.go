package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/EntersysMX/smartsheet-bind-awalab/internal/application/dto"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/application/scheduler"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain"
)

// AdminHandler panel de administración de los procesos programados (protegido).
type AdminHandler struct {
	runner *scheduler.Runner
}

// NewAdminHandler construye el handler.
func NewAdminHandler(runner *scheduler.Runner) *AdminHandler {
	return &AdminHandler{runner: runner}
}

// ListJobs lista los procesos y su configuración vigente.
// GET /api/admin/jobs
func (h *AdminHandler) ListJobs(c *fiber.Ctx) error {
	configs, err := h.runner.Configs(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	jobs := make([]dto.JobResponse, 0, len(configs))
	for _, cfg := range configs {
		jobs = append(jobs, dto.JobResponse{
			JobID:           cfg.JobID,
			Name:            cfg.Name,
			Description:     cfg.Description,
			IntervalMinutes: cfg.IntervalMinutes,
			Active:          cfg.Active,
			SourceSystem:    cfg.SourceSystem,
			TargetSystem:    cfg.TargetSystem,
			SyncDirection:   cfg.SyncDirection,
		})
	}
	return c.JSON(jobs)
}

// History devuelve las últimas corridas, más reciente primero.
// GET /api/admin/jobs/history
func (h *AdminHandler) History(c *fiber.Ctx) error {
	return c.JSON(h.runner.History().Snapshot())
}

// Pause deshabilita un proceso.
// POST /api/admin/jobs/:id/pause
func (h *AdminHandler) Pause(c *fiber.Ctx) error {
	if err := h.runner.Pause(c.Context(), c.Params("id")); err != nil {
		return jobError(c, err)
	}
	return c.JSON(dto.StatusResponse{Status: "paused"})
}

// Resume rehabilita un proceso.
// POST /api/admin/jobs/:id/resume
func (h *AdminHandler) Resume(c *fiber.Ctx) error {
	if err := h.runner.Resume(c.Context(), c.Params("id")); err != nil {
		return jobError(c, err)
	}
	return c.JSON(dto.StatusResponse{Status: "resumed"})
}

// RunNow ejecuta un proceso de inmediato, fuera de su programación.
// POST /api/admin/jobs/:id/run
func (h *AdminHandler) RunNow(c *fiber.Ctx) error {
	if err := h.runner.RunNow(c.Context(), c.Params("id")); err != nil {
		return jobError(c, err)
	}
	return c.JSON(dto.StatusResponse{Status: "executed"})
}

// UpdateInterval cambia el intervalo de un proceso (1 a 1440 minutos).
// PUT /api/admin/jobs/:id/interval
func (h *AdminHandler) UpdateInterval(c *fiber.Ctx) error {
	var in dto.IntervalRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := h.runner.UpdateInterval(c.Context(), c.Params("id"), in.IntervalMinutes); err != nil {
		return jobError(c, err)
	}
	return c.JSON(dto.StatusResponse{Status: "updated"})
}

func jobError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "job no encontrado"})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
