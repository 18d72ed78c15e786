package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/invoicing-core/internal/application/auth"
	"github.com/jhoicas/invoicing-core/internal/application/dto"
)

func newCompanyCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "company",
		Short: "Gestión de organizaciones (emisores y deudores)",
	}

	var in dto.CreateCompanyRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Registra una organización",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, d, func(b backend) error {
				out, err := b.CreateCompany(cmd.Context(), in)
				if err != nil {
					return fmt.Errorf("company create: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	create.Flags().StringVar(&in.Name, "name", "", "razón social")
	create.Flags().StringVar(&in.TaxID, "tax-id", "", "NIF / VAT ID")
	create.Flags().StringVar(&in.Address, "address", "", "dirección")
	create.Flags().StringVar(&in.Email, "email", "", "email de facturación")
	_ = create.MarkFlagRequired("name")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Muestra una organización",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, d, func(b backend) error {
				out, err := b.GetCompany(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("company get: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}

	cmd.AddCommand(create, get)
	return cmd
}

func newTokenCmd(d deps) *cobra.Command {
	var in auth.IssueTokenRequest
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Emite un token de servicio (operador o integración ERP)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, d, func(b backend) error {
				tok, err := b.IssueToken(cmd.Context(), in)
				if err != nil {
					return fmt.Errorf("token: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), tok)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Subject, "subject", "", "usuario o integración")
	cmd.Flags().StringVar(&in.CompanyID, "company", "", "ID del emisor")
	cmd.Flags().StringVar(&in.Role, "role", "operator", "admin | operator | erp")
	cmd.Flags().IntVar(&in.ExpMinutes, "exp-minutes", 0, "vigencia; 0 = JWT_EXPIRATION_MINUTES")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
