package entity

import "github.com/shopspring/decimal"

// InvoiceLine representa una línea de detalle (servicio facturado) de una factura.
type InvoiceLine struct {
	ID          string
	InvoiceID   string
	Position    int
	Description string
	Quantity    decimal.Decimal // horas o unidades
	UnitPrice   decimal.Decimal
}

// Subtotal cantidad * precio unitario, sin descuento ni IVA.
func (l *InvoiceLine) Subtotal() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}
