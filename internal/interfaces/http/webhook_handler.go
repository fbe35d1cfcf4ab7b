package http

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/EntersysMX/smartsheet-bind-awalab/internal/application/dto"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain/entity"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/infrastructure/smartsheet"
)

// InvoiceProcessor procesa el evento de una fila de la hoja de solicitudes.
type InvoiceProcessor interface {
	ProcessRowEvent(ctx context.Context, rowID int64) (*entity.InvoiceResult, error)
}

// WebhookHandler recibe los callbacks del webhook de Smartsheet: responde el
// handshake de verificación y dispara el orquestador por cada fila creada o
// modificada.
type WebhookHandler struct {
	processor InvoiceProcessor
	secret    string
}

// NewWebhookHandler construye el handler. Con secret vacío la verificación
// de firma queda deshabilitada; el arranque ya lo advierte.
func NewWebhookHandler(processor InvoiceProcessor, secret string) *WebhookHandler {
	return &WebhookHandler{processor: processor, secret: secret}
}

// Receive procesa un callback de Smartsheet.
// POST /webhooks/smartsheet
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	// La firma se calcula sobre el cuerpo crudo, antes de decodificar.
	body := c.Body()
	if h.secret != "" {
		signature := c.Get(smartsheet.SignatureHeader)
		if !smartsheet.VerifySignature(h.secret, body, signature) {
			log.Warn().Str("ip", c.IP()).Msg("webhook con firma inválida rechazado")
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_SIGNATURE", Message: domain.ErrInvalidSignature.Error()})
		}
	}

	var callback smartsheet.Callback
	if err := json.Unmarshal(body, &callback); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}

	// Handshake de verificación: se responde el challenge tal cual.
	if callback.Challenge != "" {
		return c.JSON(fiber.Map{"smartsheetHookResponse": callback.Challenge})
	}

	rows := callback.RowEvents()
	processed := 0
	for _, rowID := range rows {
		result, err := h.processor.ProcessRowEvent(c.Context(), rowID)
		if err != nil {
			log.Error().Int64("row_id", rowID).Err(err).Msg("evento de fila no procesado")
			continue
		}
		if !result.Skipped {
			processed++
		}
	}

	log.Info().Int("events", len(callback.Events)).Int("rows", len(rows)).
		Int("processed", processed).Msg("callback de webhook atendido")
	return c.JSON(dto.StatusResponse{Status: "ok"})
}
