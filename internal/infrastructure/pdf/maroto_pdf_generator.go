// Package pdf genera la representación gráfica de la factura.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Emisor + NIF        │  N° Factura + Fechas         │
//	│  ─────────────────────────────────────────────────────────  │
//	│  DEUDOR: Nombre + NIF + dirección de facturación            │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Pos | Descripción | Cant | P.Unit | Importe         │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Subtotal / Descuento / IVA / TOTAL                │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: QR de referencia + vencimiento                     │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strconv"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jhoicas/invoicing-core/internal/application/billing"
	"github.com/jhoicas/invoicing-core/internal/domain/entity"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
)

var hundred = decimal.NewFromInt(100)

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoPDFGenerator implementa billing.InvoicePDFGenerator usando Maroto v2.
type MarotoPDFGenerator struct {
	printer *message.Printer
}

var _ billing.InvoicePDFGenerator = (*MarotoPDFGenerator)(nil)

// NewMarotoPDFGenerator construye el generador. lang fija el formato de importes
// (separador de miles y decimales); vacío = alemán.
func NewMarotoPDFGenerator(lang string) *MarotoPDFGenerator {
	tag := language.German
	if lang != "" {
		if t, err := language.Parse(lang); err == nil {
			tag = t
		}
	}
	return &MarotoPDFGenerator{printer: message.NewPrinter(tag)}
}

// GenerateInvoicePDF genera el PDF y devuelve sus bytes.
func (g *MarotoPDFGenerator) GenerateInvoicePDF(ctx context.Context, doc billing.InvoiceDocument) ([]byte, error) {
	if doc.Invoice == nil {
		return nil, fmt.Errorf("pdf: documento sin factura")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inv := doc.Invoice
	issuer := orUnknown(doc.Issuer, inv.IssuerID)
	debtor := orUnknown(doc.Debtor, inv.DebtorID)
	totals := ComputeTotals(inv, doc.Lines)

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(documentTitle(inv), true).
		WithAuthor(issuer.Name, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(inv, issuer))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(debtorRow(inv, debtor))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(g.tableDetailRows(inv.Currency, doc.Lines)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(g.totalsRow(inv, totals))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(g.footerRows(inv, totals)...)

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return out.GetBytes(), nil
}

// ── Totales ───────────────────────────────────────────────────────────────────

// Totals importes derivados de las líneas y los porcentajes de la cabecera.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Net      decimal.Decimal
	VAT      decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals: descuento sobre el subtotal, IVA sobre el neto. Redondeo a 2 decimales.
func ComputeTotals(inv *entity.Invoice, lines []*entity.InvoiceLine) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Subtotal())
	}
	subtotal = subtotal.Round(2)
	discount := subtotal.Mul(inv.DiscountPct).Div(hundred).Round(2)
	net := subtotal.Sub(discount)
	vat := net.Mul(inv.VATPct).Div(hundred).Round(2)
	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Net:      net,
		VAT:      vat,
		Total:    net.Add(vat),
	}
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(inv *entity.Invoice, issuer *entity.Company) core.Row {
	number := inv.DisplayNumber()
	if number == "" {
		number = "SIN NÚMERO"
	}
	return row.New(22).Add(
		col.New(7).Add(
			text.New(issuer.Name, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("NIF: "+nonEmpty(issuer.TaxID, "—"), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
			text.New(nonEmpty(issuer.Address, ""), props.Text{
				Size: 8, Top: 14, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(documentTitle(inv), props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(number, props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Fecha: "+formatDate(inv.InvoiceDate), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
			text.New("Vencimiento: "+formatDate(inv.DueDate), props.Text{
				Size: 8, Align: align.Right, Top: 18, Color: colorGray,
			}),
		),
	)
}

func debtorRow(inv *entity.Invoice, debtor *entity.Company) core.Row {
	addr := inv.BillingAddress
	name := nonEmpty(addr.Name, debtor.Name)
	street := debtor.Address
	if addr.Street != "" {
		street = fmt.Sprintf("%s, %s %s, %s", addr.Street, addr.PostalCode, addr.City, addr.Country)
	}
	return row.New(16).Add(
		col.New(12).Add(
			text.New("FACTURAR A", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(name, props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("NIF: %s   |   %s   |   Email: %s",
				nonEmpty(debtor.TaxID, "—"),
				nonEmpty(street, "—"),
				nonEmpty(debtor.Email, "—"),
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Pos.", 1, align.Center),
		h("Descripción del servicio", 5, align.Left),
		h("Cant.", 2, align.Right),
		h("Precio Unit.", 2, align.Right),
		h("Importe", 2, align.Right),
	).WithStyle(&props.Cell{BackgroundColor: colorPrimary})
}

func (g *MarotoPDFGenerator) tableDetailRows(currency string, lines []*entity.InvoiceLine) []core.Row {
	result := make([]core.Row, 0, len(lines))
	for i, l := range lines {
		pos := l.Position
		if pos == 0 {
			pos = i + 1
		}
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(strconv.Itoa(pos),
				props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(5).Add(text.New(l.Description,
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1})),
			col.New(2).Add(text.New(g.FormatQuantity(l.Quantity),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(g.FormatMoney(l.UnitPrice, currency),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(g.FormatMoney(l.Subtotal(), currency),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return result
}

func (g *MarotoPDFGenerator) totalsRow(inv *entity.Invoice, t Totals) core.Row {
	cur := inv.Currency
	return row.New(30).Add(
		col.New(4),
		col.New(4).Add(
			text.New("Subtotal:", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: 1}),
			text.New(fmt.Sprintf("Descuento (%s%%):", inv.DiscountPct.String()), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: 7}),
			text.New(fmt.Sprintf("IVA (%s%%):", inv.VATPct.String()), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: 13}),
			text.New("TOTAL:", props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Right: 2, Top: 20, Color: colorPrimary}),
		),
		col.New(4).Add(
			text.New(g.FormatMoney(t.Subtotal, cur), props.Text{Size: 9, Align: align.Right, Right: 1, Top: 1}),
			text.New("-"+g.FormatMoney(t.Discount, cur), props.Text{Size: 9, Align: align.Right, Right: 1, Top: 7}),
			text.New(g.FormatMoney(t.VAT, cur), props.Text{Size: 9, Align: align.Right, Right: 1, Top: 13}),
			text.New(g.FormatMoney(t.Total, cur), props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Right: 1, Top: 20, Color: colorPrimary}),
		),
	)
}

func (g *MarotoPDFGenerator) footerRows(inv *entity.Invoice, t Totals) []core.Row {
	ref := fmt.Sprintf("invoice:%s|%s|%s %s", inv.ID, inv.DisplayNumber(), t.Total.StringFixed(2), inv.Currency)
	return []core.Row{
		row.New(40).Add(
			col.New(3).Add(code.NewQr(ref, props.Rect{Percent: 95, Center: true})),
			col.New(9).Add(
				text.New(fmt.Sprintf("Pago a %s desde la fecha de factura.", dueLabel(inv)), props.Text{
					Size: 8, Top: 4, Left: 3, Color: colorGray,
				}),
				text.New("Referencia: "+inv.ID, props.Text{
					Size: 7, Top: 10, Left: 3, Color: colorGray,
				}),
			),
		),
	}
}

// ── helpers ───────────────────────────────────────────────────────────────────

// FormatMoney importe con dos decimales, separadores del idioma y la moneda al final.
func (g *MarotoPDFGenerator) FormatMoney(d decimal.Decimal, currency string) string {
	s := g.printer.Sprintf("%.2f", d.Round(2).InexactFloat64())
	if currency == "" {
		return s
	}
	return s + " " + currency
}

// FormatQuantity cantidad sin ceros decimales sobrantes.
func (g *MarotoPDFGenerator) FormatQuantity(d decimal.Decimal) string {
	if d.IsInteger() {
		return g.printer.Sprintf("%d", d.IntPart())
	}
	return g.printer.Sprintf("%.2f", d.InexactFloat64())
}

func documentTitle(inv *entity.Invoice) string {
	switch inv.Type {
	case entity.InvoiceTypeCreditNote:
		return "NOTA DE CRÉDITO"
	case entity.InvoiceTypePhantom:
		return "DOCUMENTO SIN VALOR FISCAL"
	default:
		return "FACTURA"
	}
}

func dueLabel(inv *entity.Invoice) string {
	if inv.InvoiceDate == nil || inv.DueDate == nil {
		return "la vista"
	}
	days := int(inv.DueDate.Sub(*inv.InvoiceDate).Hours() / 24)
	return strconv.Itoa(days) + " días"
}

func orUnknown(c *entity.Company, id string) *entity.Company {
	if c != nil {
		return c
	}
	return &entity.Company{ID: id, Name: id}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "—"
	}
	return t.Format("02/01/2006")
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
