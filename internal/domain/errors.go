package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	// ErrCounterpartyNotFound el RFC no existe como cliente en Bind ERP.
	// Terminal: este núcleo nunca da de alta clientes.
	ErrCounterpartyNotFound = errors.New("cliente no encontrado en Bind ERP")
	// ErrInvalidSignature la firma HMAC del webhook no coincide.
	ErrInvalidSignature = errors.New("firma de webhook inválida")
	// ErrJobNotFound el job no existe en el registro de procesos.
	ErrJobNotFound = errors.New("job no encontrado")
	// ErrInvalidInput entrada inválida en la capa HTTP.
	ErrInvalidInput = errors.New("entrada inválida")
)

// FieldError una violación de contrato sobre un campo de la fila.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors colección de errores de campo. El mapeador acumula todas
// las violaciones para que el operador reciba un solo mensaje agregado en la
// hoja en lugar de corregir campo por campo.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return "validación fallida: " + strings.Join(msgs, "; ")
}

// Fields devuelve los nombres de columna con violaciones.
func (v ValidationErrors) Fields() []string {
	fields := make([]string, len(v))
	for i, e := range v {
		fields[i] = e.Field
	}
	return fields
}

// ConfigurationError configuración crítica ausente o inválida.
// Se detecta al arrancar o al inicio de un job, nunca a media transacción.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuración inválida: %s", strings.Join(e.Missing, "; "))
}
