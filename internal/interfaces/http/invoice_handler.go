package http

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/invoicing-core/internal/application/dto"
	"github.com/jhoicas/invoicing-core/internal/domain/entity"
)

// Contratos que el handler necesita de los casos de uso de billing.

type invoiceFinalizer interface {
	Finalize(ctx context.Context, invoiceID string) (*entity.Invoice, error)
	CanFinalize(ctx context.Context, invoiceID string) (bool, error)
}

type invoiceTransitioner interface {
	TransitionInvoice(ctx context.Context, invoiceID string, target entity.InvoiceStatus) (*entity.Invoice, error)
	ValidNextStates(from entity.InvoiceStatus) []entity.InvoiceStatus
	IsTerminal(s entity.InvoiceStatus) bool
}

type invoicePromoter interface {
	Promote(ctx context.Context, invoiceID string) (*entity.Invoice, error)
}

type invoicePDFService interface {
	Regenerate(ctx context.Context, invoiceID string) error
	Download(ctx context.Context, invoiceID string) ([]byte, string, error)
}

// InvoiceHandler maneja las peticiones HTTP del ciclo de vida de facturas (protegido).
type InvoiceHandler struct {
	finalizer    invoiceFinalizer
	transitioner invoiceTransitioner
	promoter     invoicePromoter
	pdf          invoicePDFService
	log          zerolog.Logger
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(
	finalizer invoiceFinalizer,
	transitioner invoiceTransitioner,
	promoter invoicePromoter,
	pdf invoicePDFService,
	log zerolog.Logger,
) *InvoiceHandler {
	return &InvoiceHandler{
		finalizer:    finalizer,
		transitioner: transitioner,
		promoter:     promoter,
		pdf:          pdf,
		log:          log.With().Str("component", "invoice-handler").Logger(),
	}
}

// GetByID devuelve la cabecera de la factura.
// GET /api/invoices/:id
func (h *InvoiceHandler) GetByID(c *fiber.Ctx) error {
	inv := scopedInvoice(c)
	if inv == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "factura no encontrada"})
	}
	return c.JSON(dto.NewInvoiceResponse(inv))
}

// Finalize asigna número y pasa el borrador a CREATED.
// POST /api/invoices/:id/finalize
func (h *InvoiceHandler) Finalize(c *fiber.Ctx) error {
	inv, err := h.finalizer.Finalize(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.NewInvoiceResponse(inv))
}

// CanFinalize indica si la factura sigue en DRAFT.
// GET /api/invoices/:id/can-finalize
func (h *InvoiceHandler) CanFinalize(c *fiber.Ctx) error {
	id := c.Params("id")
	ok, err := h.finalizer.CanFinalize(c.UserContext(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.CanFinalizeResponse{InvoiceID: id, CanFinalize: ok})
}

// Transition aplica una transición de ciclo de vida.
// POST /api/invoices/:id/transition  {"status": "SUBMITTED"}
func (h *InvoiceHandler) Transition(c *fiber.Ctx) error {
	var in dto.TransitionRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	target, ok := entity.ParseInvoiceStatus(in.Status)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "estado desconocido: " + in.Status})
	}
	inv, err := h.transitioner.TransitionInvoice(c.UserContext(), c.Params("id"), target)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.NewInvoiceResponse(inv))
}

// NextStates lista los destinos legales desde el estado actual.
// GET /api/invoices/:id/next-states
func (h *InvoiceHandler) NextStates(c *fiber.Ctx) error {
	inv := scopedInvoice(c)
	if inv == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "factura no encontrada"})
	}
	next := h.transitioner.ValidNextStates(inv.Status)
	out := make([]string, 0, len(next))
	for _, s := range next {
		out = append(out, string(s))
	}
	return c.JSON(dto.NextStatesResponse{
		InvoiceID:  inv.ID,
		Status:     string(inv.Status),
		NextStates: out,
		Terminal:   h.transitioner.IsTerminal(inv.Status),
	})
}

// Promote finaliza un dependiente cuyo origen ya está pagado.
// POST /api/invoices/:id/promote
func (h *InvoiceHandler) Promote(c *fiber.Ctx) error {
	inv, err := h.promoter.Promote(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.NewInvoiceResponse(inv))
}

// RegeneratePDF borra el artefacto para que el próximo barrido lo vuelva a generar.
// POST /api/invoices/:id/pdf/regenerate
func (h *InvoiceHandler) RegeneratePDF(c *fiber.Ctx) error {
	if err := h.pdf.Regenerate(c.UserContext(), c.Params("id")); err != nil {
		return writeError(c, h.log, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// DownloadPDF renderiza el PDF al vuelo.
// GET /api/invoices/:id/pdf
func (h *InvoiceHandler) DownloadPDF(c *fiber.Ctx) error {
	content, filename, err := h.pdf.Download(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename="+strconv.Quote(filename))
	return c.Send(content)
}
