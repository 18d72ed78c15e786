package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/invoicing-core/internal/application/dto"
)

func newMigrateCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica o revierte las migraciones embebidas",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Aplica las migraciones pendientes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := d.migrate(true); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migraciones aplicadas")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revierte todas las migraciones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := d.migrate(false); err != nil {
				return fmt.Errorf("migrate down: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migraciones revertidas")
			return nil
		},
	})
	return cmd
}

func newFinalizeCmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "finalize <invoice-id>",
		Short: "Finaliza un borrador (número + DRAFT → CREATED)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, d, func(b backend) error {
				inv, err := b.Finalize(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("finalize %s: %w", args[0], err)
				}
				return printJSON(cmd.OutOrStdout(), dto.NewInvoiceResponse(inv))
			})
		},
	}
}

func newPromoteCmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <invoice-id>",
		Short: "Promueve un dependiente cuyo origen ya está pagado",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, d, func(b backend) error {
				inv, err := b.Promote(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("promote %s: %w", args[0], err)
				}
				return printJSON(cmd.OutOrStdout(), dto.NewInvoiceResponse(inv))
			})
		},
	}
}

func newRegeneratePDFCmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate-pdf <invoice-id>",
		Short: "Borra el PDF almacenado para que el próximo barrido lo regenere",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, d, func(b backend) error {
				if err := b.RegeneratePDF(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("regenerate-pdf %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "PDF de %s marcado para regenerar\n", args[0])
				return nil
			})
		},
	}
}

func newSweepCmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:       "sweep <promotion|pdf>",
		Short:     "Ejecuta un ciclo de barrido una sola vez",
		ValidArgs: []string{"promotion", "pdf"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, d, func(b backend) error {
				if args[0] == "promotion" {
					res, err := b.SweepPromotion(cmd.Context())
					if err != nil {
						return fmt.Errorf("sweep promotion: %w", err)
					}
					return printJSON(cmd.OutOrStdout(), res)
				}
				res, err := b.SweepPDF(cmd.Context())
				if err != nil {
					return fmt.Errorf("sweep pdf: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}
