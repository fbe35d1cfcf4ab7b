package smartsheet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain/entity"
)

// DefaultBaseURL API pública de Smartsheet.
const DefaultBaseURL = "https://api.smartsheet.com/2.0"

// ErrMissingColumn ninguna de las columnas a escribir existe en la hoja.
var ErrMissingColumn = fmt.Errorf("smartsheet: ninguna columna destino existe en la hoja")

// Config parámetros del cliente.
type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

// Client cliente de la API de Smartsheet. Cachea el mapa título→columna por
// hoja; los títulos de columna son el contrato con los operadores, los IDs
// son detalle de Smartsheet.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client

	mu      sync.Mutex
	columns map[int64]map[string]int64 // sheetID → título → columnID
}

// New construye el cliente. AccessToken es obligatorio.
func New(cfg Config) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("smartsheet: AccessToken es requerido")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.AccessToken,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		columns: make(map[int64]map[string]int64),
	}, nil
}

type apiColumn struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type apiCell struct {
	ColumnID int64 `json:"columnId"`
	Value    any   `json:"value,omitempty"`
}

type apiRow struct {
	ID    int64     `json:"id,omitempty"`
	Cells []apiCell `json:"cells"`
}

type apiSheet struct {
	ID      int64       `json:"id"`
	Name    string      `json:"name"`
	Columns []apiColumn `json:"columns"`
	Rows    []apiRow    `json:"rows"`
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("smartsheet: serializar cuerpo: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("smartsheet: crear request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("smartsheet: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("smartsheet: %s %s devolvió %d: %s", method, path, resp.StatusCode, truncate(raw, 512))
	}
	return raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

// columnMap devuelve el mapa título→columnID de la hoja, consultando la API
// la primera vez y cacheando después.
func (c *Client) columnMap(ctx context.Context, sheetID int64) (map[string]int64, error) {
	c.mu.Lock()
	if m, ok := c.columns[sheetID]; ok {
		c.mu.Unlock()
		return m, nil
	}
	c.mu.Unlock()

	raw, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sheets/%d/columns?level=2", sheetID), nil)
	if err != nil {
		return nil, err
	}
	var listing struct {
		Data []apiColumn `json:"data"`
	}
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, fmt.Errorf("smartsheet: decodificar columnas: %w", err)
	}
	m := make(map[string]int64, len(listing.Data))
	for _, col := range listing.Data {
		m[col.Title] = col.ID
	}

	c.mu.Lock()
	c.columns[sheetID] = m
	c.mu.Unlock()
	return m, nil
}

// InvalidateColumns descarta el caché de columnas de la hoja. Se invoca al
// recibir un error de columna inexistente tras un cambio de estructura.
func (c *Client) InvalidateColumns(sheetID int64) {
	c.mu.Lock()
	delete(c.columns, sheetID)
	c.mu.Unlock()
}

// FetchRow lee una fila y la devuelve como instantánea título→valor.
func (c *Client) FetchRow(ctx context.Context, sheetID, rowID int64) (entity.RowSnapshot, error) {
	cols, err := c.columnMap(ctx, sheetID)
	if err != nil {
		return entity.RowSnapshot{}, err
	}
	byID := make(map[int64]string, len(cols))
	for title, id := range cols {
		byID[id] = title
	}

	raw, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sheets/%d/rows/%d", sheetID, rowID), nil)
	if err != nil {
		return entity.RowSnapshot{}, err
	}
	var row apiRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return entity.RowSnapshot{}, fmt.Errorf("smartsheet: decodificar fila: %w", err)
	}

	snap := entity.RowSnapshot{RowID: rowID, Cells: make(map[string]any, len(row.Cells))}
	for _, cell := range row.Cells {
		title, ok := byID[cell.ColumnID]
		if !ok || cell.Value == nil {
			continue
		}
		snap.Cells[title] = cell.Value
	}
	return snap, nil
}

// UpdateCells escribe varios valores de una fila en un solo PUT. Las
// columnas que no existen en la hoja se omiten con advertencia; si ninguna
// existe devuelve ErrMissingColumn sin tocar la hoja.
func (c *Client) UpdateCells(ctx context.Context, sheetID, rowID int64, values map[string]any) error {
	cols, err := c.columnMap(ctx, sheetID)
	if err != nil {
		return err
	}
	cells := make([]apiCell, 0, len(values))
	for title, value := range values {
		colID, ok := cols[title]
		if !ok {
			log.Warn().Int64("sheet_id", sheetID).Str("column", title).
				Msg("smartsheet: columna inexistente, se omite")
			continue
		}
		cells = append(cells, apiCell{ColumnID: colID, Value: value})
	}
	if len(cells) == 0 {
		// Si ninguna columna coincide lo más probable es que la estructura
		// de la hoja cambió: se descarta el caché para la próxima llamada.
		c.InvalidateColumns(sheetID)
		return ErrMissingColumn
	}

	payload := []apiRow{{ID: rowID, Cells: cells}}
	_, err = c.do(ctx, http.MethodPut, fmt.Sprintf("/sheets/%d/rows", sheetID), payload)
	return err
}

// AppendComment agrega un comentario a la discusión de la fila. Es anotación
// auxiliar: su falla no debe tumbar el flujo que la invoca.
func (c *Client) AppendComment(ctx context.Context, sheetID, rowID int64, text string) error {
	payload := map[string]any{
		"comment": map[string]string{"text": text},
	}
	_, err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/sheets/%d/rows/%d/discussions", sheetID, rowID), payload)
	return err
}

// FetchSheet lee la hoja completa como instantáneas de fila, en el orden de
// la hoja.
func (c *Client) FetchSheet(ctx context.Context, sheetID int64) ([]entity.RowSnapshot, error) {
	raw, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sheets/%d", sheetID), nil)
	if err != nil {
		return nil, err
	}
	var sheet apiSheet
	if err := json.Unmarshal(raw, &sheet); err != nil {
		return nil, fmt.Errorf("smartsheet: decodificar hoja: %w", err)
	}

	byID := make(map[int64]string, len(sheet.Columns))
	for _, col := range sheet.Columns {
		byID[col.ID] = col.Title
	}

	// Refresca el caché de paso: ya tenemos las columnas frescas.
	m := make(map[string]int64, len(sheet.Columns))
	for _, col := range sheet.Columns {
		m[col.Title] = col.ID
	}
	c.mu.Lock()
	c.columns[sheetID] = m
	c.mu.Unlock()

	rows := make([]entity.RowSnapshot, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		snap := entity.RowSnapshot{RowID: row.ID, Cells: make(map[string]any, len(row.Cells))}
		for _, cell := range row.Cells {
			title, ok := byID[cell.ColumnID]
			if !ok || cell.Value == nil {
				continue
			}
			snap.Cells[title] = cell.Value
		}
		rows = append(rows, snap)
	}
	return rows, nil
}

// HealthCheck verifica el token consultando al usuario actual.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/users/me", nil)
	return err
}
