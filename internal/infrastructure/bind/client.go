package bind

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Cuota publicada por Bind ERP. El cliente no implementa un token bucket;
// el 429 se expone vía IsRateLimited para que el llamador decida diferir.
const (
	RateLimitRequests = 300
	RateLimitWindow   = 5 * time.Minute
)

// PageSize máximo de registros por página que entrega Bind.
const PageSize = 100

const maxErrorBody = 64 << 10 // al preservar cuerpos de error

// Config parámetros del cliente.
type Config struct {
	BaseURL        string
	APIKey         string
	MaxAttempts    int           // intentos totales por petición (default 5)
	InitialBackoff time.Duration // espera antes del segundo intento; se duplica en cada reintento
	Timeout        time.Duration // timeout por intento
}

// Client cliente HTTP para la API de Bind ERP.
//
// Autenticación Bearer, paginación OData ($skip/$top), filtrado $filter y
// reintentos con backoff exponencial para 429/5xx/timeouts. Los contadores
// de backoff son por petición, no estado compartido: llamadas concurrentes
// del orquestador y el reconciliador no se interfieren.
type Client struct {
	baseURL        string
	apiKey         string
	httpc          *http.Client
	maxAttempts    int
	initialBackoff time.Duration

	// sleep se reemplaza en tests para no dormir de verdad.
	sleep func(ctx context.Context, d time.Duration) error
}

// New construye el cliente. APIKey es obligatoria.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("bind: APIKey es requerida")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("bind: BaseURL es requerida")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		httpc:          &http.Client{Timeout: cfg.Timeout},
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		sleep:          sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Get ejecuta GET sobre un endpoint relativo (ej. "/Clients") y devuelve el
// cuerpo JSON crudo.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

// Post ejecuta POST con cuerpo JSON y devuelve la respuesta cruda.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, nil, body)
}

// do realiza la petición con reintentos y backoff exponencial.
//
// 429 y 5xx se reintentan duplicando la espera en cada intento (429 respeta
// Retry-After si viene); los timeouts de red reciben el mismo trato. El
// resto de 4xx falla de inmediato conservando status y cuerpo: señalan un
// error del llamador o de los datos, no una condición pasajera.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("bind: serializar cuerpo: %w", err)
		}
	}

	backoff := c.initialBackoff
	var lastErr *APIError

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
		if err != nil {
			return nil, fmt.Errorf("bind: crear request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("bind: petición cancelada: %w", ctx.Err())
			}
			// Timeout o error de conexión: reintentable.
			lastErr = &APIError{Message: err.Error(), Transient: true}
			log.Warn().Str("url", fullURL).Int("attempt", attempt).Err(err).
				Msg("bind: error de red, reintentando")
			if attempt == c.maxAttempts {
				break
			}
			if werr := c.wait(ctx, &backoff, 0); werr != nil {
				return nil, werr
			}
			continue
		}

		raw, status, retryAfter := readResponse(resp)

		switch {
		case status == http.StatusOK || status == http.StatusCreated:
			return raw, nil
		case status == http.StatusNoContent || len(raw) == 0 && status < 300:
			return nil, nil
		case status == http.StatusTooManyRequests:
			lastErr = newAPIError(status, raw, true)
			log.Warn().Str("url", fullURL).Int("attempt", attempt).
				Msg("bind: límite de peticiones alcanzado (429)")
			if attempt == c.maxAttempts {
				break
			}
			if werr := c.wait(ctx, &backoff, retryAfter); werr != nil {
				return nil, werr
			}
			continue
		case status >= 500:
			lastErr = newAPIError(status, raw, true)
			log.Warn().Str("url", fullURL).Int("status", status).Int("attempt", attempt).
				Msg("bind: error de servidor, reintentando")
			if attempt == c.maxAttempts {
				break
			}
			if werr := c.wait(ctx, &backoff, 0); werr != nil {
				return nil, werr
			}
			continue
		default:
			// 4xx distinto de 429: terminal, con el cuerpo adjunto.
			return nil, newAPIError(status, raw, false)
		}
		break
	}

	if lastErr == nil {
		lastErr = &APIError{Message: "reintentos agotados", Transient: true}
	}
	return nil, fmt.Errorf("bind: reintentos agotados tras %d intentos: %w", c.maxAttempts, lastErr)
}

// wait duerme el backoff actual (o Retry-After si es mayor a cero) y duplica
// la espera para el siguiente intento.
func (c *Client) wait(ctx context.Context, backoff *time.Duration, retryAfter time.Duration) error {
	d := *backoff
	if retryAfter > 0 {
		d = retryAfter
	}
	if err := c.sleep(ctx, d); err != nil {
		return fmt.Errorf("bind: espera de reintento cancelada: %w", err)
	}
	*backoff *= 2
	return nil
}

// readResponse lee el cuerpo (limitado) y el Retry-After si aplica.
func readResponse(resp *http.Response) (raw []byte, status int, retryAfter time.Duration) {
	defer resp.Body.Close()
	raw, _ = io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			retryAfter = time.Duration(secs) * time.Second
		}
	}
	return raw, resp.StatusCode, retryAfter
}

// newAPIError construye el error extrayendo el mensaje del cuerpo JSON
// ({"message": ...} o {"error": ...}) cuando existe.
func newAPIError(status int, raw []byte, transient bool) *APIError {
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}
	msg := http.StatusText(status)
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Message != "" {
			msg = parsed.Message
		} else if parsed.Error != "" {
			msg = parsed.Error
		}
	}
	return &APIError{
		StatusCode: status,
		Body:       string(raw),
		Message:    msg,
		Transient:  transient,
	}
}

// decodeRecords acepta los dos formatos de listado de Bind: un arreglo JSON
// plano o un objeto {"value": [...]}.
func decodeRecords(raw json.RawMessage) ([]json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("bind: decodificar listado: %w", err)
		}
		return records, nil
	}
	var wrapper struct {
		Value []json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, fmt.Errorf("bind: decodificar listado: %w", err)
	}
	return wrapper.Value, nil
}
