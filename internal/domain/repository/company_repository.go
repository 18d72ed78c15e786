package repository

import (
	"context"

	"github.com/jhoicas/invoicing-core/internal/domain/entity"
)

// CompanyRepository define el puerto de persistencia de organizaciones (emisores y deudores).
// La implementación vive en infrastructure. Los Get* devuelven (nil, nil) si no existe.
type CompanyRepository interface {
	Create(ctx context.Context, company *entity.Company) error
	GetByID(ctx context.Context, id string) (*entity.Company, error)
	GetByTaxID(ctx context.Context, taxID string) (*entity.Company, error)
}
