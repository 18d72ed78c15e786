package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/invoicing-core/internal/application/billing"
	"github.com/jhoicas/invoicing-core/internal/domain/repository"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	InvoiceRepo   repository.InvoiceRepository
	Finalize      *billing.FinalizeInvoiceUseCase
	Lifecycle     *billing.LifecycleUseCase
	Promotion     *billing.PromotionUseCase
	PDF           *billing.PDFUseCase
	FinanceStatus *billing.FinanceStatusUseCase
	JWTSecret     string
	Log           zerolog.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	Register(app,
		deps.InvoiceRepo,
		NewInvoiceHandler(deps.Finalize, deps.Lifecycle, deps.Promotion, deps.PDF, deps.Log),
		NewFinanceHandler(deps.FinanceStatus, deps.Log),
		deps.JWTSecret,
	)
}

// Register monta las rutas sobre handlers ya construidos.
func Register(app *fiber.App, reader invoiceReader, invoices *InvoiceHandler, finance *FinanceHandler, jwtSecret string) {
	api := app.Group("/api")
	inv := api.Group("/invoices")

	// Rutas protegidas: Bearer Token + la factura debe ser del emisor del token
	auth := AuthMiddleware(jwtSecret)
	scope := RequireIssuerScope(reader)
	backoffice := RequireRole(RoleAdmin, RoleOperator)

	inv.Get("/:id", auth, scope, invoices.GetByID)
	inv.Get("/:id/can-finalize", auth, scope, invoices.CanFinalize)
	inv.Get("/:id/next-states", auth, scope, invoices.NextStates)
	inv.Get("/:id/pdf", auth, scope, invoices.DownloadPDF)
	inv.Post("/:id/finalize", auth, backoffice, scope, invoices.Finalize)
	inv.Post("/:id/transition", auth, backoffice, scope, invoices.Transition)
	inv.Post("/:id/promote", auth, backoffice, scope, invoices.Promote)
	inv.Post("/:id/pdf/regenerate", auth, backoffice, scope, invoices.RegeneratePDF)

	// Webhook del ERP
	inv.Put("/:id/finance-status", auth, RequireRole(RoleAdmin, RoleERP), scope, finance.Update)
	inv.Delete("/:id/finance-status", auth, RequireRole(RoleAdmin), scope, finance.Reset)
}
