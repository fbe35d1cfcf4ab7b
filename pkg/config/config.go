package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración del middleware (lectura vía Viper desde env y opcionalmente archivo .env).
type Config struct {
	App        AppConfig
	HTTP       HTTPConfig
	DB         DBConfig
	JWT        JWTConfig
	Bind       BindConfig
	Smartsheet SmartsheetConfig
	Sync       SyncConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env   string // development, staging, production
	Name  string
	Debug bool
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DBConfig configuración de PostgreSQL para la tabla de procesos.
// Si DatabaseURL no está vacío se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// ConnectionString devuelve el DSN a usar: DatabaseURL si está definido, si no uno construido.
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// JWTConfig configuración del token para el panel de administración.
// AccessKey es la llave compartida que canjea el operador por un token.
type JWTConfig struct {
	Secret     string
	AccessKey  string
	Expiration int // minutos
	Issuer     string
}

// BindConfig credenciales y política de reintentos del cliente Bind ERP.
type BindConfig struct {
	BaseURL        string
	APIKey         string
	WarehouseID    string
	MaxAttempts    int
	InitialBackoff time.Duration
	Timeout        time.Duration // timeout por intento
}

// SmartsheetConfig credenciales y hojas destino de Smartsheet.
type SmartsheetConfig struct {
	AccessToken      string
	WebhookSecret    string // vacío = verificación de firma deshabilitada (se advierte al arrancar)
	InvoicesSheetID  int64
	InventorySheetID int64
}

// SyncConfig intervalos por defecto de los procesos programados (0 = deshabilitado).
type SyncConfig struct {
	InventoryIntervalMinutes int
	InvoicesIntervalMinutes  int
	InvoicesLookbackMinutes  int
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde .env).
// Las env vars tienen prioridad. Nombres esperados: BIND_API_KEY, SMARTSHEET_ACCESS_TOKEN, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:   getString(v, "APP_ENV", "development"),
			Name:  getString(v, "APP_NAME", "smartsheet-bind-middleware"),
			Debug: getString(v, "DEBUG_MODE", "false") == "true",
		},
		HTTP: HTTPConfig{
			Host: getString(v, "SERVER_HOST", "0.0.0.0"),
			Port: getInt(v, "SERVER_PORT", 8000),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "middleware"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			AccessKey:  getString(v, "ADMIN_ACCESS_KEY", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "smartsheet-bind-middleware"),
		},
		Bind: BindConfig{
			BaseURL:        getString(v, "BIND_API_BASE_URL", "https://api.bind.com.mx/api"),
			APIKey:         getString(v, "BIND_API_KEY", ""),
			WarehouseID:    getString(v, "BIND_WAREHOUSE_ID", ""),
			MaxAttempts:    getInt(v, "BIND_MAX_ATTEMPTS", 5),
			InitialBackoff: time.Duration(getInt(v, "BIND_INITIAL_BACKOFF_MS", 1000)) * time.Millisecond,
			Timeout:        time.Duration(getInt(v, "BIND_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Smartsheet: SmartsheetConfig{
			AccessToken:      getString(v, "SMARTSHEET_ACCESS_TOKEN", ""),
			WebhookSecret:    getString(v, "SMARTSHEET_WEBHOOK_SECRET", ""),
			InvoicesSheetID:  getInt64(v, "SMARTSHEET_INVOICES_SHEET_ID", 0),
			InventorySheetID: getInt64(v, "SMARTSHEET_INVENTORY_SHEET_ID", 0),
		},
		Sync: SyncConfig{
			InventoryIntervalMinutes: getInt(v, "SYNC_INVENTORY_INTERVAL_MINUTES", 60),
			InvoicesIntervalMinutes:  getInt(v, "SYNC_INVOICES_INTERVAL_MINUTES", 10),
			InvoicesLookbackMinutes:  getInt(v, "SYNC_INVOICES_LOOKBACK_MINUTES", 10),
		},
	}

	return cfg, nil
}

// Validate revisa que las variables críticas estén configuradas.
// Retorna la lista de errores encontrados; vacía si la configuración es utilizable.
func (c *Config) Validate() []string {
	var errs []string

	if c.Bind.APIKey == "" {
		errs = append(errs, "BIND_API_KEY no está configurada")
	}
	if c.Smartsheet.AccessToken == "" {
		errs = append(errs, "SMARTSHEET_ACCESS_TOKEN no está configurado")
	}
	if c.Smartsheet.InvoicesSheetID == 0 {
		errs = append(errs, "SMARTSHEET_INVOICES_SHEET_ID no está configurado")
	}

	return errs
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case string:
			n, err := strconv.Atoi(v.GetString(key))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getInt64(v *viper.Viper, key string, def int64) int64 {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case string:
			n, err := strconv.ParseInt(v.GetString(key), 10, 64)
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt64(key)
		}
	}
	return def
}
