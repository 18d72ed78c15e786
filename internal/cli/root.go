// Package cli comandos de operación (invoicectl): migraciones y acciones manuales del núcleo.
package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/jhoicas/invoicing-core/internal/application/auth"
	"github.com/jhoicas/invoicing-core/internal/application/billing"
	"github.com/jhoicas/invoicing-core/internal/application/dto"
	"github.com/jhoicas/invoicing-core/internal/bootstrap"
	"github.com/jhoicas/invoicing-core/internal/domain/entity"
	"github.com/jhoicas/invoicing-core/pkg/config"
	"github.com/jhoicas/invoicing-core/pkg/logger"
)

var version = "dev"

// backend operaciones que exponen los comandos. En producción es el Container.
type backend interface {
	Finalize(ctx context.Context, invoiceID string) (*entity.Invoice, error)
	Promote(ctx context.Context, invoiceID string) (*entity.Invoice, error)
	RegeneratePDF(ctx context.Context, invoiceID string) error
	SweepPromotion(ctx context.Context) (billing.SweepResult, error)
	SweepPDF(ctx context.Context) (billing.PDFSweepResult, error)
	CreateCompany(ctx context.Context, in dto.CreateCompanyRequest) (*dto.CompanyResponse, error)
	GetCompany(ctx context.Context, id string) (*dto.CompanyResponse, error)
	IssueToken(ctx context.Context, in auth.IssueTokenRequest) (string, error)
	Close()
}

// deps lo que necesitan los comandos; los tests lo sustituyen.
type deps struct {
	open    func(ctx context.Context) (backend, error)
	migrate func(up bool) error
}

func newRootCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "invoicectl",
		Short:         "Operación del núcleo de facturación",
		Long:          "invoicectl aplica migraciones y ejecuta manualmente finalización, promoción, regeneración de PDFs y barridos.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newMigrateCmd(d))
	cmd.AddCommand(newFinalizeCmd(d))
	cmd.AddCommand(newPromoteCmd(d))
	cmd.AddCommand(newRegeneratePDFCmd(d))
	cmd.AddCommand(newSweepCmd(d))
	cmd.AddCommand(newCompanyCmd(d))
	cmd.AddCommand(newTokenCmd(d))
	return cmd
}

// Execute construye el árbol de comandos con dependencias reales y lo ejecuta.
func Execute(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level}).Component("invoicectl")

	d := deps{
		open: func(ctx context.Context) (backend, error) {
			// El CLI nunca migra implícitamente.
			cfg.DB.AutoMigrate = false
			c, err := bootstrap.New(ctx, cfg, log)
			if err != nil {
				return nil, err
			}
			return containerBackend{c}, nil
		},
		migrate: func(up bool) error {
			return bootstrap.Migrate(cfg.DB.ConnectionString(), log, up)
		},
	}
	return newRootCmd(d).ExecuteContext(ctx)
}

// containerBackend adapta el Container a backend.
type containerBackend struct{ c *bootstrap.Container }

func (b containerBackend) Finalize(ctx context.Context, id string) (*entity.Invoice, error) {
	return b.c.Finalize.Finalize(ctx, id)
}

func (b containerBackend) Promote(ctx context.Context, id string) (*entity.Invoice, error) {
	return b.c.Promotion.Promote(ctx, id)
}

func (b containerBackend) RegeneratePDF(ctx context.Context, id string) error {
	return b.c.PDF.Regenerate(ctx, id)
}

func (b containerBackend) SweepPromotion(ctx context.Context) (billing.SweepResult, error) {
	return b.c.Promotion.RunSweep(ctx)
}

func (b containerBackend) SweepPDF(ctx context.Context) (billing.PDFSweepResult, error) {
	return b.c.PDF.RunSweep(ctx)
}

func (b containerBackend) CreateCompany(ctx context.Context, in dto.CreateCompanyRequest) (*dto.CompanyResponse, error) {
	return b.c.Companies.Create(ctx, in)
}

func (b containerBackend) GetCompany(ctx context.Context, id string) (*dto.CompanyResponse, error) {
	return b.c.Companies.GetByID(ctx, id)
}

func (b containerBackend) IssueToken(ctx context.Context, in auth.IssueTokenRequest) (string, error) {
	return b.c.Tokens.Issue(ctx, in)
}

func (b containerBackend) Close() { b.c.Close() }

// withBackend abre el backend, ejecuta fn y lo cierra.
func withBackend(cmd *cobra.Command, d deps, fn func(b backend) error) error {
	b, err := d.open(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
