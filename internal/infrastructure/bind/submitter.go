package bind

import (
	"context"
	"fmt"
	"time"

	"github.com/EntersysMX/smartsheet-bind-awalab/internal/application/billing"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain/entity"
)

// Asegura que los adaptadores cumplen los puertos de facturación.
var (
	_ billing.CounterpartyResolver = (*Client)(nil)
	_ billing.InvoiceSubmitter     = (*InvoiceSubmitter)(nil)
)

// InvoiceSubmitter adaptador que traduce una solicitud validada al payload
// de timbrado de Bind. Los montos viajan como números JSON; el cálculo con
// decimales queda del lado del orquestador.
type InvoiceSubmitter struct {
	client *Client
	now    func() time.Time
}

// NewInvoiceSubmitter construye el adaptador de timbrado.
func NewInvoiceSubmitter(client *Client) *InvoiceSubmitter {
	return &InvoiceSubmitter{client: client, now: time.Now}
}

// Submit timbra la factura de una partida en Bind ERP.
func (s *InvoiceSubmitter) Submit(ctx context.Context, req *entity.InvoiceRequest, client *entity.Counterparty, totals billing.Totals) (*billing.SubmittedInvoice, error) {
	issuedAt := s.now()
	subtotal, _ := totals.Subtotal.Round(2).Float64()
	vat, _ := totals.VAT.Round(2).Float64()
	total, _ := totals.Total.Round(2).Float64()
	quantity, _ := req.Cantidad.Float64()
	unitPrice, _ := req.PrecioUnitario.Float64()
	vatRate, _ := billing.VATRate.Float64()

	payload := InvoicePayload{
		ClientID:      client.ID,
		Date:          issuedAt.Format(dateLayout),
		PaymentMethod: req.MetodoPago,
		PaymentForm:   req.FormaPago,
		CFDIUse:       req.UsoCFDI,
		Currency:      "MXN",
		ExchangeRate:  1,
		Comments:      req.Concepto,
		Items: []InvoiceItem{{
			ProductServiceKey: req.ClaveSATProducto,
			UnitKey:           req.ClaveSATUnidad,
			Description:       req.Descripcion,
			Quantity:          quantity,
			UnitPrice:         unitPrice,
			Subtotal:          subtotal,
			Taxes: []InvoiceTax{{
				Name:   "IVA",
				Rate:   vatRate,
				Amount: vat,
				Type:   "Tasa",
				Base:   subtotal,
			}},
			Total: total,
		}},
		Subtotal: subtotal,
		Total:    total,
	}

	created, err := s.client.CreateInvoice(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("timbrar en Bind: %w", err)
	}
	return &billing.SubmittedInvoice{
		UUID:     created.UUID,
		Folio:    created.Folio,
		IssuedAt: issuedAt,
	}, nil
}
