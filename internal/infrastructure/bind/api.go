package bind

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain/entity"
)

// Formato de fecha que Bind acepta y devuelve en sus payloads JSON.
const dateLayout = "2006-01-02T15:04:05"

// clientRecord registro de cliente tal como lo devuelve /Clients.
type clientRecord struct {
	ID          string `json:"ID"`
	RFC         string `json:"RFC"`
	LegalName   string `json:"LegalName"`
	CommercialN string `json:"CommercialName"`
	Email       string `json:"Email"`
}

// productRecord registro de producto de /Products.
type productRecord struct {
	ID          string  `json:"ID"`
	Code        string  `json:"Code"`
	Title       string  `json:"Title"`
	Description string  `json:"Description"`
	Unit        string  `json:"Unit"`
	Cost        float64 `json:"Cost"`
	Price1      float64 `json:"Price1"`
	CurrentInv  float64 `json:"CurrentInventory"`
}

// inventoryRecord existencia por almacén de /Inventory.
type inventoryRecord struct {
	ProductID     string  `json:"ProductID"`
	Code          string  `json:"Code"`
	Name          string  `json:"Name"`
	Description   string  `json:"Description"`
	Quantity      float64 `json:"Quantity"`
	Unit          string  `json:"Unit"`
	Price         float64 `json:"Price"`
	WarehouseName string  `json:"WarehouseName"`
}

// invoiceRecord factura emitida de /Invoices.
type invoiceRecord struct {
	ID              string  `json:"ID"`
	UUID            string  `json:"UUID"`
	Serie           string  `json:"Serie"`
	Number          int64   `json:"Number"`
	Date            string  `json:"Date"`
	ClientName      string  `json:"ClientName"`
	RFC             string  `json:"RFC"`
	Subtotal        float64 `json:"Subtotal"`
	VAT             float64 `json:"VAT"`
	Total           float64 `json:"Total"`
	Balance         float64 `json:"CurrentBalance"`
	PaidAmount      float64 `json:"PaidAmount"`
	Status          int     `json:"Status"`
	IsFiscalInvoice bool    `json:"IsFiscalInvoice"`
	PurchaseOrder   string  `json:"PurchaseOrder"`
	SellerName      string  `json:"SellerName"`
}

// warehouseRecord almacén de /Warehouses.
type warehouseRecord struct {
	ID   string `json:"ID"`
	Name string `json:"Name"`
}

// InvoiceTax impuesto por partida del payload de creación. Bind espera
// números JSON; los montos se redondean a dos decimales antes de convertir.
type InvoiceTax struct {
	Name   string  `json:"Name"`
	Rate   float64 `json:"Rate"`
	Amount float64 `json:"Amount"`
	Type   string  `json:"Type"`
	Base   float64 `json:"Base"`
}

// InvoiceItem partida del payload de creación de factura.
type InvoiceItem struct {
	ProductServiceKey string       `json:"ProductServiceKey"`
	UnitKey           string       `json:"UnitKey"`
	Description       string       `json:"Description"`
	Quantity          float64      `json:"Quantity"`
	UnitPrice         float64      `json:"UnitPrice"`
	Subtotal          float64      `json:"Subtotal"`
	Taxes             []InvoiceTax `json:"Taxes"`
	Total             float64      `json:"Total"`
}

// InvoicePayload cuerpo de POST /Invoices.
type InvoicePayload struct {
	ClientID      string        `json:"ClientID"`
	Date          string        `json:"Date"`
	PaymentMethod string        `json:"PaymentMethod"`
	PaymentForm   string        `json:"PaymentForm"`
	CFDIUse       string        `json:"CFDIUse"`
	Currency      string        `json:"Currency"`
	ExchangeRate  float64       `json:"ExchangeRate"`
	Comments      string        `json:"Comments,omitempty"`
	Items         []InvoiceItem `json:"Items"`
	Subtotal      float64       `json:"Subtotal"`
	Total         float64       `json:"Total"`
}

// invoiceCreated respuesta de POST /Invoices.
type invoiceCreated struct {
	ID     string `json:"ID"`
	UUID   string `json:"UUID"`
	Serie  string `json:"Serie"`
	Number int64  `json:"Number"`
	Folio  string `json:"Folio"`
}

// CreatedInvoice identificadores fiscales de la factura recién timbrada.
type CreatedInvoice struct {
	ID    string
	UUID  string
	Folio string
}

// GetClientByRFC busca el cliente por RFC (normalizado a mayúsculas y sin
// espacios). Devuelve domain.ErrCounterpartyNotFound si no existe: la
// integración nunca da de alta clientes.
func (c *Client) GetClientByRFC(ctx context.Context, rfc string) (*entity.Counterparty, error) {
	rfc = strings.ToUpper(strings.TrimSpace(rfc))
	q := url.Values{}
	q.Set("$filter", Filter{Field: "RFC", Operator: "eq", Value: rfc}.String())
	q.Set("$top", "1")

	raw, err := c.Get(ctx, "/Clients", q)
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(raw)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("cliente con RFC %s: %w", rfc, domain.ErrCounterpartyNotFound)
	}
	var rec clientRecord
	if err := json.Unmarshal(records[0], &rec); err != nil {
		return nil, fmt.Errorf("bind: decodificar cliente: %w", err)
	}
	return &entity.Counterparty{
		ID:          rec.ID,
		RFC:         rec.RFC,
		RazonSocial: rec.LegalName,
	}, nil
}

// GetProducts lista el catálogo completo de productos.
func (c *Client) GetProducts(ctx context.Context) ([]entity.StockItem, error) {
	records, err := c.NewPager("/Products", nil).CollectAll(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]entity.StockItem, 0, len(records))
	for _, r := range records {
		var rec productRecord
		if err := json.Unmarshal(r, &rec); err != nil {
			return nil, fmt.Errorf("bind: decodificar producto: %w", err)
		}
		items = append(items, entity.StockItem{
			ID:          rec.ID,
			Code:        rec.Code,
			Name:        rec.Title,
			Description: rec.Description,
			Stock:       decimal.NewFromFloat(rec.CurrentInv),
			Unit:        rec.Unit,
			Price:       decimal.NewFromFloat(rec.Price1),
		})
	}
	return items, nil
}

// GetProductByCode busca un producto por su código interno.
func (c *Client) GetProductByCode(ctx context.Context, code string) (*entity.StockItem, error) {
	q := url.Values{}
	q.Set("$filter", Filter{Field: "Code", Operator: "eq", Value: code}.String())
	q.Set("$top", "1")

	raw, err := c.Get(ctx, "/Products", q)
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(raw)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	var rec productRecord
	if err := json.Unmarshal(records[0], &rec); err != nil {
		return nil, fmt.Errorf("bind: decodificar producto: %w", err)
	}
	return &entity.StockItem{
		ID:          rec.ID,
		Code:        rec.Code,
		Name:        rec.Title,
		Description: rec.Description,
		Stock:       decimal.NewFromFloat(rec.CurrentInv),
		Unit:        rec.Unit,
		Price:       decimal.NewFromFloat(rec.Price1),
	}, nil
}

// GetInventory lista las existencias del almacén indicado. Con warehouseID
// vacío devuelve las existencias de todos los almacenes.
func (c *Client) GetInventory(ctx context.Context, warehouseID string) ([]entity.StockItem, error) {
	q := url.Values{}
	if warehouseID != "" {
		q.Set("$filter", Filter{Field: "WarehouseID", Operator: "eq", Value: warehouseID}.String())
	}
	records, err := c.NewPager("/Inventory", q).CollectAll(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]entity.StockItem, 0, len(records))
	for _, r := range records {
		var rec inventoryRecord
		if err := json.Unmarshal(r, &rec); err != nil {
			return nil, fmt.Errorf("bind: decodificar existencia: %w", err)
		}
		items = append(items, entity.StockItem{
			ID:            rec.ProductID,
			Code:          rec.Code,
			Name:          rec.Name,
			Description:   rec.Description,
			Stock:         decimal.NewFromFloat(rec.Quantity),
			Unit:          rec.Unit,
			Price:         decimal.NewFromFloat(rec.Price),
			WarehouseName: rec.WarehouseName,
		})
	}
	return items, nil
}

// GetInvoices lista facturas emitidas desde la fecha dada, más reciente
// primero. since en cero omite el filtro.
func (c *Client) GetInvoices(ctx context.Context, since time.Time) ([]entity.ERPInvoice, error) {
	q := url.Values{}
	q.Set("$orderby", OrderBy("Date", "desc"))
	if !since.IsZero() {
		q.Set("$filter", Filter{Field: "Date", Operator: "ge", Value: since}.String())
	}
	records, err := c.NewPager("/Invoices", q).CollectAll(ctx)
	if err != nil {
		return nil, err
	}
	invoices := make([]entity.ERPInvoice, 0, len(records))
	for _, r := range records {
		var rec invoiceRecord
		if err := json.Unmarshal(r, &rec); err != nil {
			return nil, fmt.Errorf("bind: decodificar factura: %w", err)
		}
		inv := entity.ERPInvoice{
			ID:              rec.ID,
			UUID:            rec.UUID,
			Serie:           rec.Serie,
			Folio:           fmt.Sprintf("%d", rec.Number),
			ClientName:      rec.ClientName,
			RFC:             rec.RFC,
			Subtotal:        decimal.NewFromFloat(rec.Subtotal),
			VAT:             decimal.NewFromFloat(rec.VAT),
			Total:           decimal.NewFromFloat(rec.Total),
			Balance:         decimal.NewFromFloat(rec.Balance),
			PaidAmount:      decimal.NewFromFloat(rec.PaidAmount),
			Status:          rec.Status,
			IsFiscalInvoice: rec.IsFiscalInvoice,
			PurchaseOrder:   rec.PurchaseOrder,
			SellerName:      rec.SellerName,
		}
		if t, err := time.Parse(dateLayout, strings.TrimSuffix(rec.Date, "Z")); err == nil {
			inv.Date = t
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

// GetWarehouses lista los almacenes de la cuenta.
func (c *Client) GetWarehouses(ctx context.Context) (map[string]string, error) {
	records, err := c.NewPager("/Warehouses", nil).CollectAll(ctx)
	if err != nil {
		return nil, err
	}
	warehouses := make(map[string]string, len(records))
	for _, r := range records {
		var rec warehouseRecord
		if err := json.Unmarshal(r, &rec); err != nil {
			return nil, fmt.Errorf("bind: decodificar almacén: %w", err)
		}
		warehouses[rec.ID] = rec.Name
	}
	return warehouses, nil
}

// CreateInvoice timbra la factura en Bind y devuelve sus identificadores
// fiscales. No reintenta sobre 4xx: un rechazo de timbrado es definitivo.
func (c *Client) CreateInvoice(ctx context.Context, payload InvoicePayload) (*CreatedInvoice, error) {
	raw, err := c.Post(ctx, "/Invoices", payload)
	if err != nil {
		return nil, err
	}
	var rec invoiceCreated
	if len(raw) > 0 {
		// Bind a veces responde el ID como cadena JSON suelta.
		if err := json.Unmarshal(raw, &rec); err != nil {
			var id string
			if err2 := json.Unmarshal(raw, &id); err2 != nil {
				return nil, fmt.Errorf("bind: decodificar respuesta de timbrado: %w", err)
			}
			rec.ID = id
		}
	}
	folio := rec.Folio
	if folio == "" && rec.Number != 0 {
		folio = fmt.Sprintf("%d", rec.Number)
	}
	return &CreatedInvoice{ID: rec.ID, UUID: rec.UUID, Folio: folio}, nil
}

// HealthCheck verifica credenciales y conectividad con una consulta mínima.
func (c *Client) HealthCheck(ctx context.Context) error {
	q := url.Values{}
	q.Set("$top", "1")
	_, err := c.Get(ctx, "/Warehouses", q)
	return err
}
