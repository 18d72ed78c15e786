package dto

import (
	"time"

	"github.com/jhoicas/invoicing-core/internal/domain/entity"
)

// CreateCompanyRequest alta de emisor o deudor (invoicectl company create).
type CreateCompanyRequest struct {
	Name    string `json:"name"`
	TaxID   string `json:"tax_id"`
	Address string `json:"address,omitempty"`
	Email   string `json:"email,omitempty"`
}

// CompanyResponse organización en respuestas.
type CompanyResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TaxID     string    `json:"tax_id"`
	Address   string    `json:"address,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCompanyResponse proyecta la entidad.
func NewCompanyResponse(c *entity.Company) CompanyResponse {
	return CompanyResponse{
		ID:        c.ID,
		Name:      c.Name,
		TaxID:     c.TaxID,
		Address:   c.Address,
		Email:     c.Email,
		CreatedAt: c.CreatedAt,
	}
}
