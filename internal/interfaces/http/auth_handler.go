package http

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/EntersysMX/smartsheet-bind-awalab/internal/application/dto"
	"github.com/EntersysMX/smartsheet-bind-awalab/pkg/config"
	"github.com/EntersysMX/smartsheet-bind-awalab/pkg/jwt"
)

// AuthHandler canjea la llave de acceso del panel por un Bearer Token.
type AuthHandler struct {
	cfg config.JWTConfig
}

// NewAuthHandler construye el handler.
func NewAuthHandler(cfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{cfg: cfg}
}

type tokenRequest struct {
	Operator  string `json:"operator"`
	AccessKey string `json:"access_key"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"` // segundos
}

// Token emite un JWT para el operador si la llave de acceso coincide.
// POST /auth/token
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	var in tokenRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.Operator == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "operator es requerido"})
	}
	if h.cfg.AccessKey == "" ||
		subtle.ConstantTimeCompare([]byte(in.AccessKey), []byte(h.cfg.AccessKey)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_KEY", Message: "llave de acceso inválida"})
	}

	token, err := jwt.Generate(h.cfg.Secret, in.Operator, h.cfg.Issuer, h.cfg.Expiration)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(tokenResponse{Token: token, ExpiresIn: h.cfg.Expiration * 60})
}
