package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain/entity"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain/repository"
)

// Asegura que ProcessConfigRepo implementa repository.ProcessConfigRepository.
var _ repository.ProcessConfigRepository = (*ProcessConfigRepo)(nil)

// ProcessConfigRepo implementación del puerto ProcessConfigRepository sobre PostgreSQL.
type ProcessConfigRepo struct {
	pool *pgxpool.Pool
}

// NewProcessConfigRepository construye el adaptador de persistencia de procesos.
func NewProcessConfigRepository(pool *pgxpool.Pool) *ProcessConfigRepo {
	return &ProcessConfigRepo{pool: pool}
}

// EnsureSchema crea la tabla de configuración si no existe.
func (r *ProcessConfigRepo) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS process_configs (
			job_id           TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			sheet_id         BIGINT NOT NULL DEFAULT 0,
			sheet_name       TEXT NOT NULL DEFAULT '',
			interval_minutes INTEGER NOT NULL,
			active           BOOLEAN NOT NULL DEFAULT TRUE,
			source_system    TEXT NOT NULL,
			target_system    TEXT NOT NULL,
			sync_direction   TEXT NOT NULL,
			fields_mapping   JSONB NOT NULL DEFAULT '{}',
			created_at       TIMESTAMPTZ NOT NULL,
			updated_at       TIMESTAMPTZ NOT NULL
		)`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("crear tabla process_configs: %w", err)
	}
	return nil
}

const processConfigColumns = `
	job_id, name, description, sheet_id, sheet_name, interval_minutes,
	active, source_system, target_system, sync_direction, fields_mapping,
	created_at, updated_at`

// GetByJobID obtiene la configuración de un job; nil si no existe.
func (r *ProcessConfigRepo) GetByJobID(ctx context.Context, jobID string) (*entity.ProcessConfig, error) {
	query := `SELECT ` + processConfigColumns + ` FROM process_configs WHERE job_id = $1`
	cfg, err := scanProcessConfig(r.pool.QueryRow(ctx, query, jobID))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get process_config %s: %w", jobID, err)
	}
	return cfg, nil
}

// List devuelve todas las configuraciones ordenadas por job_id.
func (r *ProcessConfigRepo) List(ctx context.Context) ([]*entity.ProcessConfig, error) {
	query := `SELECT ` + processConfigColumns + ` FROM process_configs ORDER BY job_id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list process_configs: %w", err)
	}
	defer rows.Close()

	var configs []*entity.ProcessConfig
	for rows.Next() {
		cfg, err := scanProcessConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan process_config: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list process_configs: %w", err)
	}
	return configs, nil
}

// Upsert crea o actualiza la configuración de un job.
func (r *ProcessConfigRepo) Upsert(ctx context.Context, cfg *entity.ProcessConfig) error {
	mapping, err := json.Marshal(cfg.FieldsMapping)
	if err != nil {
		return fmt.Errorf("serializar fields_mapping: %w", err)
	}
	now := time.Now().UTC()
	query := `
		INSERT INTO process_configs (` + processConfigColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT (job_id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			sheet_id = EXCLUDED.sheet_id,
			sheet_name = EXCLUDED.sheet_name,
			interval_minutes = EXCLUDED.interval_minutes,
			active = EXCLUDED.active,
			source_system = EXCLUDED.source_system,
			target_system = EXCLUDED.target_system,
			sync_direction = EXCLUDED.sync_direction,
			fields_mapping = EXCLUDED.fields_mapping,
			updated_at = EXCLUDED.updated_at`
	_, err = r.pool.Exec(ctx, query,
		cfg.JobID, cfg.Name, cfg.Description, cfg.SheetID, cfg.SheetName,
		cfg.IntervalMinutes, cfg.Active, cfg.SourceSystem, cfg.TargetSystem,
		cfg.SyncDirection, mapping, now,
	)
	if err != nil {
		return fmt.Errorf("upsert process_config %s: %w", cfg.JobID, err)
	}
	return nil
}

// SetActive habilita o deshabilita un job.
func (r *ProcessConfigRepo) SetActive(ctx context.Context, jobID string, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE process_configs SET active = $2, updated_at = $3 WHERE job_id = $1`,
		jobID, active, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set active %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set active %s: job no registrado", jobID)
	}
	return nil
}

// UpdateInterval cambia el intervalo de ejecución de un job.
func (r *ProcessConfigRepo) UpdateInterval(ctx context.Context, jobID string, minutes int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE process_configs SET interval_minutes = $2, updated_at = $3 WHERE job_id = $1`,
		jobID, minutes, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update interval %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update interval %s: job no registrado", jobID)
	}
	return nil
}

// Seed crea las configuraciones por defecto solo si no existen, preservando
// los ajustes que el operador ya haya hecho.
func (r *ProcessConfigRepo) Seed(ctx context.Context, defaults []*entity.ProcessConfig) error {
	for _, cfg := range defaults {
		mapping, err := json.Marshal(cfg.FieldsMapping)
		if err != nil {
			return fmt.Errorf("serializar fields_mapping de %s: %w", cfg.JobID, err)
		}
		now := time.Now().UTC()
		query := `
			INSERT INTO process_configs (` + processConfigColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
			ON CONFLICT (job_id) DO NOTHING`
		_, err = r.pool.Exec(ctx, query,
			cfg.JobID, cfg.Name, cfg.Description, cfg.SheetID, cfg.SheetName,
			cfg.IntervalMinutes, cfg.Active, cfg.SourceSystem, cfg.TargetSystem,
			cfg.SyncDirection, mapping, now,
		)
		if err != nil {
			return fmt.Errorf("seed process_config %s: %w", cfg.JobID, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProcessConfig(row rowScanner) (*entity.ProcessConfig, error) {
	var cfg entity.ProcessConfig
	var mapping []byte
	err := row.Scan(
		&cfg.JobID, &cfg.Name, &cfg.Description, &cfg.SheetID, &cfg.SheetName,
		&cfg.IntervalMinutes, &cfg.Active, &cfg.SourceSystem, &cfg.TargetSystem,
		&cfg.SyncDirection, &mapping, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(mapping) > 0 {
		if err := json.Unmarshal(mapping, &cfg.FieldsMapping); err != nil {
			return nil, fmt.Errorf("decodificar fields_mapping: %w", err)
		}
	}
	return &cfg, nil
}

// isNoRows indica si el error es la ausencia de filas de pgx.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
