package dto

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusResponse respuesta simple de operación.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// IntervalRequest cambio de intervalo de un proceso programado.
type IntervalRequest struct {
	IntervalMinutes int `json:"interval_minutes"`
}

// SyncReportResponse desenlace de una corrida de sincronización.
type SyncReportResponse struct {
	RunID   string   `json:"run_id"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// JobResponse configuración visible de un proceso programado.
type JobResponse struct {
	JobID           string `json:"job_id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	IntervalMinutes int    `json:"interval_minutes"`
	Active          bool   `json:"active"`
	SourceSystem    string `json:"source_system"`
	TargetSystem    string `json:"target_system"`
	SyncDirection   string `json:"sync_direction"`
}

// HealthResponse estado de las dependencias externas.
type HealthResponse struct {
	Status   string            `json:"status"` // healthy | degraded
	Services map[string]string `json:"services"`
}
