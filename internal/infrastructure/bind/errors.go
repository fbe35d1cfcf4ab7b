package bind

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError error devuelto por la API de Bind ERP. Conserva el status y el
// cuerpo de la respuesta para que la causa llegue íntegra hasta la fila.
type APIError struct {
	StatusCode int
	Body       string
	Message    string
	// Transient indica 429/5xx/timeout: reintentables con backoff. Los 4xx
	// restantes son errores del llamador o de los datos y no se reintentan.
	Transient bool
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return "bind: " + e.Message
	}
	return fmt.Sprintf("bind: error %d: %s", e.StatusCode, e.Message)
}

// IsTransient indica si el error es reintentable (429, 5xx o timeout de red).
func IsTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Transient
}

// IsRateLimited distingue el 429 de otras fallas para que el orquestador
// pueda decidir diferir en lugar de marcar la operación como fallida.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}
