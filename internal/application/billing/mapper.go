package billing

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain/entity"
)

// Columnas de la hoja de solicitudes. Los títulos son el contrato con los
// operadores: se comparan literalmente.
const (
	ColRFC              = "RFC"
	ColRazonSocial      = "Razon Social"
	ColConcepto         = "Concepto"
	ColDescripcion      = "Descripcion"
	ColCantidad         = "Cantidad"
	ColPrecioUnitario   = "Precio Unitario"
	ColClaveSATProducto = "Clave SAT Producto"
	ColClaveSATUnidad   = "Clave SAT Unidad"
	ColMetodoPago       = "Metodo Pago"
	ColFormaPago        = "Forma Pago"
	ColUsoCFDI          = "Uso CFDI"
	ColRegimenFiscal    = "Regimen Fiscal"
	ColCodigoPostal     = "Codigo Postal"
	ColEstado           = "Estado"
	ColUUID             = "UUID"
	ColFolioFiscal      = "Folio Fiscal"
	ColFechaFacturacion = "Fecha Facturacion"
	ColResultado        = "Resultado"
)

// Valores por defecto fiscales cuando la fila deja el campo vacío.
const (
	DefaultMetodoPago = "PUE"
	DefaultFormaPago  = "03"
	DefaultUsoCFDI    = "G03"
)

// Patrones de los catálogos del SAT.
var (
	rfcPattern         = regexp.MustCompile(`^[A-ZÑ&]{3,4}\d{6}[A-Z0-9]{3}$`)
	claveProdPattern   = regexp.MustCompile(`^\d{8}$`)
	claveUnidadPattern = regexp.MustCompile(`^[A-Z0-9]{2,3}$`)
	metodoPagoPattern  = regexp.MustCompile(`^(PUE|PPD)$`)
	formaPagoPattern   = regexp.MustCompile(`^\d{2}$`)
	usoCFDIPattern     = regexp.MustCompile(`^[A-Z]\d{2}$`)
	regimenPattern     = regexp.MustCompile(`^\d{3}$`)
	cpPattern          = regexp.MustCompile(`^\d{5}$`)
)

// moneyCleaner símbolos de formato que los operadores pegan en los montos.
var moneyCleaner = strings.NewReplacer("$", "", ",", "", " ", "")

// MapRow transforma una instantánea de fila en una solicitud de factura
// validada. Es una función pura: no hace I/O ni muta la fila. Acumula TODAS
// las violaciones antes de devolver, para que el operador corrija la fila
// completa en una sola pasada.
func MapRow(row entity.RowSnapshot) (*entity.InvoiceRequest, error) {
	var errs domain.ValidationErrors

	req := &entity.InvoiceRequest{RowID: row.RowID}

	req.RFC = strings.ToUpper(strings.TrimSpace(row.String(ColRFC)))
	if req.RFC == "" {
		errs = append(errs, domain.FieldError{Field: ColRFC, Message: "es requerido"})
	} else if !rfcPattern.MatchString(req.RFC) {
		errs = append(errs, domain.FieldError{Field: ColRFC, Message: "formato de RFC inválido"})
	}

	req.RazonSocial = strings.TrimSpace(row.String(ColRazonSocial))
	req.Concepto = strings.TrimSpace(row.String(ColConcepto))
	if req.Concepto == "" {
		errs = append(errs, domain.FieldError{Field: ColConcepto, Message: "es requerido"})
	}
	req.Descripcion = strings.TrimSpace(row.String(ColDescripcion))
	if req.Descripcion == "" {
		req.Descripcion = req.Concepto
	}

	var parsed bool
	req.Cantidad, parsed = parseAmount(row.String(ColCantidad), ColCantidad, &errs)
	if parsed && !req.Cantidad.IsPositive() {
		errs = append(errs, domain.FieldError{Field: ColCantidad, Message: "debe ser mayor que cero"})
	}
	// El precio admite cero (partidas de cortesía); negativo no.
	req.PrecioUnitario, parsed = parseAmount(row.String(ColPrecioUnitario), ColPrecioUnitario, &errs)
	if parsed && req.PrecioUnitario.IsNegative() {
		errs = append(errs, domain.FieldError{Field: ColPrecioUnitario, Message: "no puede ser negativo"})
	}

	req.ClaveSATProducto = strings.TrimSpace(row.String(ColClaveSATProducto))
	if !claveProdPattern.MatchString(req.ClaveSATProducto) {
		errs = append(errs, domain.FieldError{Field: ColClaveSATProducto, Message: "debe ser de 8 dígitos"})
	}
	req.ClaveSATUnidad = strings.ToUpper(strings.TrimSpace(row.String(ColClaveSATUnidad)))
	if !claveUnidadPattern.MatchString(req.ClaveSATUnidad) {
		errs = append(errs, domain.FieldError{Field: ColClaveSATUnidad, Message: "debe ser de 2 o 3 caracteres alfanuméricos"})
	}

	req.MetodoPago = defaulted(row.String(ColMetodoPago), DefaultMetodoPago)
	if !metodoPagoPattern.MatchString(req.MetodoPago) {
		errs = append(errs, domain.FieldError{Field: ColMetodoPago, Message: "debe ser PUE o PPD"})
	}
	req.FormaPago = defaulted(row.String(ColFormaPago), DefaultFormaPago)
	if !formaPagoPattern.MatchString(req.FormaPago) {
		errs = append(errs, domain.FieldError{Field: ColFormaPago, Message: "debe ser clave de 2 dígitos"})
	}
	req.UsoCFDI = strings.ToUpper(defaulted(row.String(ColUsoCFDI), DefaultUsoCFDI))
	if !usoCFDIPattern.MatchString(req.UsoCFDI) {
		errs = append(errs, domain.FieldError{Field: ColUsoCFDI, Message: "debe ser letra seguida de 2 dígitos"})
	}

	// Opcionales: solo se validan si vienen con valor.
	req.RegimenFiscal = strings.TrimSpace(row.String(ColRegimenFiscal))
	if req.RegimenFiscal != "" && !regimenPattern.MatchString(req.RegimenFiscal) {
		errs = append(errs, domain.FieldError{Field: ColRegimenFiscal, Message: "debe ser clave de 3 dígitos"})
	}
	req.CodigoPostal = strings.TrimSpace(row.String(ColCodigoPostal))
	if req.CodigoPostal != "" && !cpPattern.MatchString(req.CodigoPostal) {
		errs = append(errs, domain.FieldError{Field: ColCodigoPostal, Message: "debe ser de 5 dígitos"})
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return req, nil
}

// parseAmount interpreta un monto quitando símbolos de moneda y separadores
// de miles. Devuelve false cuando el valor falta o no es numérico, dejando
// el error de campo registrado para que el llamador no lo duplique.
func parseAmount(raw, field string, errs *domain.ValidationErrors) (decimal.Decimal, bool) {
	cleaned := moneyCleaner.Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		*errs = append(*errs, domain.FieldError{Field: field, Message: "es requerido"})
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		*errs = append(*errs, domain.FieldError{Field: field, Message: "no es un número válido"})
		return decimal.Zero, false
	}
	return value, true
}

func defaulted(raw, def string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return def
	}
	return v
}
