package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	appsync "github.com/EntersysMX/smartsheet-bind-awalab/internal/application/sync"

	"github.com/EntersysMX/smartsheet-bind-awalab/internal/application/billing"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/application/scheduler"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain/entity"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/infrastructure/bind"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/infrastructure/postgres"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/infrastructure/smartsheet"
	httpRouter "github.com/EntersysMX/smartsheet-bind-awalab/internal/interfaces/http"
	"github.com/EntersysMX/smartsheet-bind-awalab/pkg/config"
	"github.com/EntersysMX/smartsheet-bind-awalab/pkg/logger"
)

// IDs de los procesos programados.
const (
	JobInventorySync = "inventory_sync"
	JobInvoicesSync  = "invoices_sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	if missing := cfg.Validate(); len(missing) > 0 {
		cfgErr := &domain.ConfigurationError{Missing: missing}
		if !cfg.App.Debug {
			log.Fatal().Err(cfgErr).Msg("configuración incompleta")
		}
		log.Warn().Err(cfgErr).Msg("configuración incompleta, continuando en modo debug")
	}
	if cfg.Smartsheet.WebhookSecret == "" {
		log.Warn().Msg("SMARTSHEET_WEBHOOK_SECRET vacío: la firma de los webhooks NO se verificará")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	configRepo := postgres.NewProcessConfigRepository(pool)
	if err := configRepo.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("esquema de process_configs")
	}
	if err := configRepo.Seed(ctx, defaultProcessConfigs(cfg)); err != nil {
		log.Fatal().Err(err).Msg("seed de process_configs")
	}

	bindClient, err := bind.New(bind.Config{
		BaseURL:        cfg.Bind.BaseURL,
		APIKey:         cfg.Bind.APIKey,
		MaxAttempts:    cfg.Bind.MaxAttempts,
		InitialBackoff: cfg.Bind.InitialBackoff,
		Timeout:        cfg.Bind.Timeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("cliente Bind")
	}
	sheetClient, err := smartsheet.New(smartsheet.Config{
		AccessToken: cfg.Smartsheet.AccessToken,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("cliente Smartsheet")
	}

	orchestrator := billing.NewOrchestrator(
		sheetClient, bindClient, bind.NewInvoiceSubmitter(bindClient),
		cfg.Smartsheet.InvoicesSheetID,
	)
	invoiceSyncer := appsync.NewInvoiceSyncer(
		sheetClient, bindClient, cfg.Smartsheet.InvoicesSheetID,
		time.Duration(cfg.Sync.InvoicesLookbackMinutes)*time.Minute,
	)
	var inventoryReconciler *appsync.InventoryReconciler
	if cfg.Smartsheet.InventorySheetID != 0 {
		inventoryReconciler = appsync.NewInventoryReconciler(
			sheetClient, bindClient, cfg.Smartsheet.InventorySheetID, cfg.Bind.WarehouseID,
		)
	} else {
		log.Warn().Msg("SMARTSHEET_INVENTORY_SHEET_ID no configurado: reconciliación de inventario deshabilitada")
	}

	registry := scheduler.NewRegistry()
	registry.Register(scheduler.Job{
		ID:   JobInvoicesSync,
		Name: "Sincronización de estatus de facturas",
		Run: func(ctx context.Context) error {
			_, err := invoiceSyncer.Run(ctx)
			return err
		},
	})
	if inventoryReconciler != nil {
		registry.Register(scheduler.Job{
			ID:   JobInventorySync,
			Name: "Reconciliación de inventario",
			Run: func(ctx context.Context) error {
				_, err := inventoryReconciler.Run(ctx)
				return err
			},
		})
	}
	runner := scheduler.NewRunner(registry, configRepo, scheduler.NewHistory())
	runner.Start(ctx)
	defer runner.Stop()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	var inventorySyncer httpRouter.Syncer
	if inventoryReconciler != nil {
		inventorySyncer = inventoryReconciler
	}
	httpRouter.Router(app, httpRouter.RouterDeps{
		Webhook: httpRouter.NewWebhookHandler(orchestrator, cfg.Smartsheet.WebhookSecret),
		Admin:   httpRouter.NewAdminHandler(runner),
		Sync:    httpRouter.NewSyncHandler(inventorySyncer, invoiceSyncer),
		Health: httpRouter.NewHealthHandler(map[string]httpRouter.HealthChecker{
			"bind":       bindClient,
			"smartsheet": sheetClient,
		}),
		Auth:      httpRouter.NewAuthHandler(cfg.JWT),
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

// defaultProcessConfigs configuración inicial de los jobs; solo se inserta
// si el job no existe todavía, para no pisar ajustes del operador.
func defaultProcessConfigs(cfg *config.Config) []*entity.ProcessConfig {
	return []*entity.ProcessConfig{
		{
			JobID:           JobInvoicesSync,
			Name:            "Sincronización de estatus de facturas",
			Description:     "Refleja en la hoja el estatus fiscal de las facturas timbradas en Bind",
			SheetID:         cfg.Smartsheet.InvoicesSheetID,
			IntervalMinutes: cfg.Sync.InvoicesIntervalMinutes,
			Active:          true,
			SourceSystem:    "bind",
			TargetSystem:    "smartsheet",
			SyncDirection:   entity.SyncDirectionPull,
			FieldsMapping: map[string][]string{
				"UUID": {"Estado Factura", "Total", "Saldo"},
			},
		},
		{
			JobID:           JobInventorySync,
			Name:            "Reconciliación de inventario",
			Description:     "Empuja las existencias del almacén de Bind hacia la hoja de inventario",
			SheetID:         cfg.Smartsheet.InventorySheetID,
			IntervalMinutes: cfg.Sync.InventoryIntervalMinutes,
			Active:          cfg.Smartsheet.InventorySheetID != 0,
			SourceSystem:    "bind",
			TargetSystem:    "smartsheet",
			SyncDirection:   entity.SyncDirectionPull,
			FieldsMapping: map[string][]string{
				"Codigo": {"Existencias", "Almacen", "Ultima Actualizacion"},
			},
		},
	}
}
