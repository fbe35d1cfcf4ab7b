package http

import (
	"github.com/gofiber/fiber/v2"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Webhook   *WebhookHandler
	Admin     *AdminHandler
	Sync      *SyncHandler
	Health    *HealthHandler
	Auth      *AuthHandler
	JWTSecret string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	// Sondas de salud (público)
	app.Get("/health/live", deps.Health.Live)
	app.Get("/health/ready", deps.Health.Ready)

	// Webhook de Smartsheet (público; autenticado por firma HMAC)
	app.Post("/webhooks/smartsheet", deps.Webhook.Receive)

	// Emisión de tokens del panel (público; valida llave de acceso)
	app.Post("/auth/token", deps.Auth.Token)

	// Rutas protegidas (requieren Bearer Token)
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	admin := api.Group("/admin/jobs")
	admin.Get("/", deps.Admin.ListJobs)
	admin.Get("/history", deps.Admin.History)
	admin.Post("/:id/pause", deps.Admin.Pause)
	admin.Post("/:id/resume", deps.Admin.Resume)
	admin.Post("/:id/run", deps.Admin.RunNow)
	admin.Put("/:id/interval", deps.Admin.UpdateInterval)

	syncGroup := api.Group("/sync")
	syncGroup.Post("/inventory", deps.Sync.Inventory)
	syncGroup.Post("/invoices", deps.Sync.Invoices)
}
