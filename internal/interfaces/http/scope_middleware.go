package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/invoicing-core/internal/application/dto"
	"github.com/jhoicas/invoicing-core/internal/domain/entity"
)

// LocalInvoice key de la factura cargada por RequireIssuerScope.
const LocalInvoice = "invoice"

// invoiceReader contrato mínimo para cargar la factura de la ruta.
// Lo implementa repository.InvoiceRepository; devuelve (nil, nil) si no existe.
type invoiceReader interface {
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
}

// RequireIssuerScope restringe las rutas /invoices/:id a facturas emitidas por la
// empresa del token. El rol admin opera sobre cualquier emisor.
// Debe usarse DESPUÉS de AuthMiddleware.
//
// Comportamiento:
//   - 404 Not Found → la factura no existe.
//   - 403 Forbidden → la factura pertenece a otro emisor.
//   - 503 Service Unavailable → fallo al consultar la DB.
func RequireIssuerScope(reader invoiceReader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
		}
		inv, err := reader.GetByID(c.UserContext(), id)
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Code:    "SCOPE_CHECK_FAILED",
				Message: "no se pudo verificar la factura, intente más tarde",
			})
		}
		if inv == nil {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "factura no encontrada"})
		}
		if GetRole(c) != RoleAdmin && inv.IssuerID != GetCompanyID(c) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "la factura pertenece a otro emisor"})
		}
		c.Locals(LocalInvoice, inv)
		return c.Next()
	}
}

// scopedInvoice factura cargada por RequireIssuerScope (nil si no pasó por él).
func scopedInvoice(c *fiber.Ctx) *entity.Invoice {
	inv, _ := c.Locals(LocalInvoice).(*entity.Invoice)
	return inv
}
