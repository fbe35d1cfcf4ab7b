package bind

import (
	"fmt"
	"strings"
	"time"
)

// Filter condición OData estructurada (campo, operador, valor).
// El valor se escapa al construir la expresión para que comillas en los
// datos no malformen el query.
type Filter struct {
	Field    string
	Operator string // eq, gt, lt, ge, le, ne
	Value    any
}

// String genera la expresión OData, ej: RFC eq 'AAA010101AAA'.
func (f Filter) String() string {
	return f.Field + " " + f.Operator + " " + formatValue(f.Value)
}

// OrderBy genera la expresión de ordenamiento, ej: Date desc.
func OrderBy(field, direction string) string {
	if direction == "" {
		return field
	}
	return field + " " + direction
}

// And combina filtros con el conector "and".
func And(filters ...Filter) string {
	parts := make([]string, len(filters))
	for i, f := range filters {
		parts[i] = f.String()
	}
	return strings.Join(parts, " and ")
}

// formatValue serializa un valor para la expresión de filtro. Los strings
// van entre comillas simples con las comillas internas duplicadas; las
// fechas usan el literal DateTime que espera Bind.
func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case time.Time:
		return "DateTime'" + t.Format("2006-01-02T15:04:05") + "'"
	case int, int32, int64:
		return fmt.Sprintf("%d", t)
	case float64:
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", t), "'", "''") + "'"
	}
}
