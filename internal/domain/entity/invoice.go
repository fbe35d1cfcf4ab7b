package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceRequest representación normalizada y validada de la intención de
// facturar de una fila. Se construye únicamente a través del mapeador; una
// fila que no pasa validación nunca produce un InvoiceRequest parcial.
type InvoiceRequest struct {
	RowID            int64
	RFC              string // normalizado: mayúsculas, sin espacios
	RazonSocial      string
	Concepto         string
	Descripcion      string
	Cantidad         decimal.Decimal
	PrecioUnitario   decimal.Decimal
	ClaveSATProducto string // 8 dígitos
	ClaveSATUnidad   string // 2-3 alfanuméricos
	MetodoPago       string // PUE | PPD
	FormaPago        string // 2 dígitos
	UsoCFDI          string // letra + 2 dígitos
	RegimenFiscal    string // 3 dígitos, opcional
	CodigoPostal     string // 5 dígitos, opcional
}

// Subtotal = cantidad × precio unitario.
func (r *InvoiceRequest) Subtotal() decimal.Decimal {
	return r.Cantidad.Mul(r.PrecioUnitario)
}

// Counterparty cliente receptor de la factura, resuelto (nunca creado) en
// Bind ERP por su RFC. El ID es el identificador opaco que asigna Bind.
type Counterparty struct {
	ID          string
	RFC         string
	RazonSocial string
}

// InvoiceResult desenlace de un intento de facturación. Se escribe en la
// fila exactamente una vez por evento disparador.
type InvoiceResult struct {
	RowID    int64
	Success  bool
	Skipped  bool // guard del centinela o fila ya facturada: no hubo intento
	UUID     string
	Folio    string
	IssuedAt time.Time
	// Message conserva la causa legible; en fallas de upstream incluye el
	// detalle devuelto por Bind para que el operador no dependa de los logs.
	Message    string
	StatusCode int
}

// StockItem existencia de un producto en el almacén de Bind ERP, tal como
// la consume el reconciliador de inventario.
type StockItem struct {
	ID            string
	Code          string
	Name          string
	Description   string
	Stock         decimal.Decimal
	Unit          string
	Price         decimal.Decimal
	WarehouseName string
}

// ERPInvoice factura emitida en Bind ERP, tal como la consume la
// sincronización de facturas hacia la hoja.
type ERPInvoice struct {
	ID              string
	UUID            string
	Serie           string
	Folio           string
	Date            time.Time
	ClientName      string
	RFC             string
	Subtotal        decimal.Decimal
	VAT             decimal.Decimal
	Total           decimal.Decimal
	Balance         decimal.Decimal
	PaidAmount      decimal.Decimal
	Status          int // 0 = vigente/borrador, 1 = pagada, 2 = cancelada
	IsFiscalInvoice bool
	PurchaseOrder   string
	SellerName      string
}

// ERPInvoiceStatus calcula el estatus legible de una factura Bind.
// Status 0 sin UUID significa borrador (no timbrada).
func (i ERPInvoice) ERPInvoiceStatus() string {
	switch i.Status {
	case 2:
		return "Cancelada"
	case 1:
		return "Pagada"
	case 0:
		if i.UUID != "" {
			return "Vigente"
		}
		return "Borrador"
	default:
		return "Desconocido"
	}
}
