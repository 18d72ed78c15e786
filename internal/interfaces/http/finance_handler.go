package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/invoicing-core/internal/application/dto"
)

type financeStatusService interface {
	UpdateFinanceStatus(ctx context.Context, invoiceID string, externalStatus, voucherRef *string) error
	ResetFinanceStatus(ctx context.Context, invoiceID string) error
}

// FinanceHandler recibe los cambios de estado financiero reportados por el ERP.
type FinanceHandler struct {
	svc financeStatusService
	log zerolog.Logger
}

// NewFinanceHandler construye el handler.
func NewFinanceHandler(svc financeStatusService, log zerolog.Logger) *FinanceHandler {
	return &FinanceHandler{svc: svc, log: log.With().Str("component", "finance-handler").Logger()}
}

// Update aplica el estado del ERP. Un estado desconocido no es error (se guarda NONE).
// PUT /api/invoices/:id/finance-status  {"status": "PAID", "voucher_ref": "V-1"}
func (h *FinanceHandler) Update(c *fiber.Ctx) error {
	var in dto.FinanceStatusRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
		}
	}
	if err := h.svc.UpdateFinanceStatus(c.UserContext(), c.Params("id"), in.Status, in.VoucherRef); err != nil {
		return writeError(c, h.log, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Reset vuelve el estado financiero a NONE (reintento de carga al ERP).
// DELETE /api/invoices/:id/finance-status
func (h *FinanceHandler) Reset(c *fiber.Ctx) error {
	if err := h.svc.ResetFinanceStatus(c.UserContext(), c.Params("id")); err != nil {
		return writeError(c, h.log, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
