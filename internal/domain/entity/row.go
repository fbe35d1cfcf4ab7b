package entity

import (
	"math"
	"strconv"
)

// RowState ciclo de vida de una fila de solicitud de factura.
// La hoja externa es el almacén durable de este estado (columna "Estado"),
// por lo que el valor puede cambiar por ediciones de usuario en cualquier
// momento; el orquestador lo relee antes de escribir en lugar de asumir
// exclusividad.
type RowState string

const (
	StatePending    RowState = ""           // sin solicitud
	StateRequested  RowState = "Facturar"   // valor centinela: la fila pide facturarse
	StateProcessing RowState = "Procesando" // el orquestador reclamó la fila
	StateCompleted  RowState = "Facturado"
	StateFailed     RowState = "Error"
)

// RowStateFrom interpreta el valor de la columna Estado.
func RowStateFrom(estado string) RowState {
	switch estado {
	case string(StateRequested), string(StateProcessing), string(StateCompleted), string(StateFailed):
		return RowState(estado)
	default:
		return StatePending
	}
}

// RowSnapshot instantánea tipada de una fila: nombre de columna -> valor.
// Los valores llegan del JSON de la hoja como string, float64 o bool.
type RowSnapshot struct {
	RowID int64
	Cells map[string]any
}

// Has indica si la columna tiene un valor no vacío.
func (r RowSnapshot) Has(column string) bool {
	v, ok := r.Cells[column]
	if !ok || v == nil {
		return false
	}
	s, isStr := v.(string)
	return !isStr || s != ""
}

// String devuelve el valor de la columna como texto ("" si no existe).
// Los números enteros se formatean sin parte decimal (las hojas entregan
// todo numérico como float64).
func (r RowSnapshot) String(column string) string {
	v, ok := r.Cells[column]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
