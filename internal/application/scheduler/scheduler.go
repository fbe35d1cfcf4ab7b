// Package scheduler ejecuta los procesos de sincronización de forma
// periódica, gobernados por su ProcessConfig persistido. El intervalo y la
// pausa se releen antes de cada ciclo, por lo que un cambio desde el panel
// de administración surte efecto sin reiniciar el servicio.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain/entity"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain/repository"
)

// Límites del intervalo configurable.
const (
	MinIntervalMinutes = 1
	MaxIntervalMinutes = 1440
)

// JobFunc cuerpo de un proceso programado.
type JobFunc func(ctx context.Context) error

// Job proceso registrado en el programador.
type Job struct {
	ID   string
	Name string
	Run  JobFunc
}

// Registry mapa de jobs disponibles. Sin estado global: se construye en el
// arranque y se comparte por inyección.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

// NewRegistry crea un registro vacío.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]Job)}
}

// Register agrega un job al registro. Un ID repetido reemplaza al anterior.
func (r *Registry) Register(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

// Get devuelve el job por ID.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return job, ok
}

// IDs lista los IDs registrados en orden estable.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.jobs))
	for id := range r.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Execution corrida registrada en el historial.
type Execution struct {
	JobID      string    `json:"job_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Success    bool      `json:"success"`
	Message    string    `json:"message,omitempty"`
	Manual     bool      `json:"manual"`
}

// historyLimit corridas retenidas en memoria.
const historyLimit = 100

// History anillo en memoria con las últimas corridas.
type History struct {
	mu      sync.Mutex
	entries []Execution
}

// NewHistory crea el historial vacío.
func NewHistory() *History {
	return &History{}
}

// Add registra una corrida, descartando la más vieja al llegar al límite.
func (h *History) Add(e Execution) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	if len(h.entries) > historyLimit {
		h.entries = h.entries[len(h.entries)-historyLimit:]
	}
}

// Snapshot devuelve las corridas, más reciente primero.
func (h *History) Snapshot() []Execution {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Execution, len(h.entries))
	for i, e := range h.entries {
		out[len(h.entries)-1-i] = e
	}
	return out
}

// Runner lanza una goroutine por job activo y mantiene el historial.
type Runner struct {
	registry *Registry
	configs  repository.ProcessConfigRepository
	history  *History

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewRunner construye el ejecutor de procesos.
func NewRunner(registry *Registry, configs repository.ProcessConfigRepository, history *History) *Runner {
	return &Runner{registry: registry, configs: configs, history: history}
}

// History expone el historial de corridas.
func (r *Runner) History() *History { return r.history }

// Start lanza las goroutines de todos los jobs registrados. Cada goroutine
// relee su ProcessConfig antes de dormir, para honrar pausas y cambios de
// intervalo sin reinicio.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	for _, id := range r.registry.IDs() {
		job, _ := r.registry.Get(id)
		r.wg.Add(1)
		go func(job Job) {
			defer r.wg.Done()
			r.loop(ctx, job)
		}(job)
	}
}

// Stop cancela las goroutines y espera a que terminen el ciclo en curso.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, job Job) {
	log.Info().Str("job_id", job.ID).Msg("job programado iniciado")
	for {
		interval, active := r.currentSchedule(ctx, job.ID)
		if active {
			r.execute(ctx, job, false)
			// Releer tras correr: el panel pudo cambiar el intervalo
			// mientras el job estaba en ejecución.
			interval, _ = r.currentSchedule(ctx, job.ID)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Str("job_id", job.ID).Msg("job programado detenido")
			return
		case <-timer.C:
		}
	}
}

// currentSchedule obtiene intervalo y bandera de actividad vigentes. Ante
// una falla de lectura conserva un intervalo prudente y no ejecuta.
func (r *Runner) currentSchedule(ctx context.Context, jobID string) (time.Duration, bool) {
	cfg, err := r.configs.GetByJobID(ctx, jobID)
	if err != nil {
		log.Error().Str("job_id", jobID).Err(err).Msg("no se pudo leer la configuración del job")
		return time.Minute, false
	}
	if cfg == nil {
		return time.Minute, false
	}
	minutes := cfg.IntervalMinutes
	if minutes < MinIntervalMinutes {
		minutes = MinIntervalMinutes
	}
	if minutes > MaxIntervalMinutes {
		minutes = MaxIntervalMinutes
	}
	return time.Duration(minutes) * time.Minute, cfg.Active
}

func (r *Runner) execute(ctx context.Context, job Job, manual bool) {
	exec := Execution{JobID: job.ID, StartedAt: time.Now(), Manual: manual}
	err := job.Run(ctx)
	exec.FinishedAt = time.Now()
	if err != nil {
		exec.Message = err.Error()
		log.Error().Str("job_id", job.ID).Err(err).Msg("job terminó con error")
	} else {
		exec.Success = true
	}
	r.history.Add(exec)
}

// RunNow ejecuta el job de inmediato, al margen de su programación. El
// historial marca la corrida como manual.
func (r *Runner) RunNow(ctx context.Context, jobID string) error {
	job, ok := r.registry.Get(jobID)
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrJobNotFound)
	}
	r.execute(ctx, job, true)
	return nil
}

// Pause deshabilita el job; la goroutine lo respeta en su siguiente ciclo.
func (r *Runner) Pause(ctx context.Context, jobID string) error {
	return r.setActive(ctx, jobID, false)
}

// Resume rehabilita el job.
func (r *Runner) Resume(ctx context.Context, jobID string) error {
	return r.setActive(ctx, jobID, true)
}

func (r *Runner) setActive(ctx context.Context, jobID string, active bool) error {
	if _, ok := r.registry.Get(jobID); !ok {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrJobNotFound)
	}
	return r.configs.SetActive(ctx, jobID, active)
}

// UpdateInterval valida y persiste el nuevo intervalo del job.
func (r *Runner) UpdateInterval(ctx context.Context, jobID string, minutes int) error {
	if _, ok := r.registry.Get(jobID); !ok {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrJobNotFound)
	}
	if minutes < MinIntervalMinutes || minutes > MaxIntervalMinutes {
		return fmt.Errorf("intervalo %d fuera de rango [%d, %d]: %w",
			minutes, MinIntervalMinutes, MaxIntervalMinutes, domain.ErrInvalidInput)
	}
	return r.configs.UpdateInterval(ctx, jobID, minutes)
}

// Configs lista las configuraciones persistidas de los jobs.
func (r *Runner) Configs(ctx context.Context) ([]*entity.ProcessConfig, error) {
	return r.configs.List(ctx)
}
