package http

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/EntersysMX/smartsheet-bind-awalab/internal/application/dto"
)

// HealthChecker verificación de conectividad de una dependencia externa.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler reporta el estado de las dependencias externas.
type HealthHandler struct {
	services map[string]HealthChecker
}

// NewHealthHandler construye el handler con las dependencias a verificar.
func NewHealthHandler(services map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{services: services}
}

// Live sonda de vida del proceso.
// GET /health/live
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(dto.StatusResponse{Status: "ok"})
}

// Ready verifica todas las dependencias en paralelo. Responde 503 si alguna
// falla, con el detalle por servicio.
// GET /health/ready
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 10*time.Second)
	defer cancel()

	var mu sync.Mutex
	var wg sync.WaitGroup
	results := make(map[string]string, len(h.services))

	for name, checker := range h.services {
		wg.Add(1)
		go func(name string, checker HealthChecker) {
			defer wg.Done()
			status := "ok"
			if err := checker.HealthCheck(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			results[name] = status
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()

	healthy := true
	for _, status := range results {
		if status != "ok" {
			healthy = false
			break
		}
	}

	resp := dto.HealthResponse{Status: "healthy", Services: results}
	if !healthy {
		resp.Status = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}
