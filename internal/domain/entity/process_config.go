package entity

import "time"

// Direcciones de sincronización de un proceso.
const (
	SyncDirectionPull          = "pull"
	SyncDirectionPush          = "push"
	SyncDirectionBidirectional = "bidirectional"
)

// ProcessConfig configuración persistida de un proceso programado.
// Se crea con valores por defecto en el primer arranque y solo la muta el
// panel de administración; nunca se borra en operación normal (se
// deshabilita con Active=false).
type ProcessConfig struct {
	JobID           string
	Name            string
	Description     string
	SheetID         int64
	SheetName       string
	IntervalMinutes int
	Active          bool
	SourceSystem    string // "bind" | "smartsheet"
	TargetSystem    string // "bind" | "smartsheet"
	SyncDirection   string // pull | push | bidirectional
	FieldsMapping   map[string][]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
