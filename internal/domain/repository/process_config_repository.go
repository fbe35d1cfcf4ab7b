package repository

import (
	"context"

	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain/entity"
)

// ProcessConfigRepository puerto de persistencia para la configuración de
// procesos programados.
type ProcessConfigRepository interface {
	// GetByJobID devuelve la configuración del job o nil si no existe.
	GetByJobID(ctx context.Context, jobID string) (*entity.ProcessConfig, error)
	// List devuelve todas las configuraciones ordenadas por job_id.
	List(ctx context.Context) ([]*entity.ProcessConfig, error)
	// Upsert crea o actualiza la configuración de un job.
	Upsert(ctx context.Context, cfg *entity.ProcessConfig) error
	// SetActive habilita o deshabilita un job (borrado suave).
	SetActive(ctx context.Context, jobID string, active bool) error
	// UpdateInterval cambia el intervalo de ejecución; aplica en el
	// siguiente ciclo del job, no a media corrida.
	UpdateInterval(ctx context.Context, jobID string, minutes int) error
	// Seed crea las configuraciones por defecto solo si no existen, para
	// preservar los ajustes hechos por el operador.
	Seed(ctx context.Context, defaults []*entity.ProcessConfig) error
}
