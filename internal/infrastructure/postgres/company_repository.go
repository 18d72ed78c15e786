package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/invoicing-core/internal/domain"
	"github.com/jhoicas/invoicing-core/internal/domain/entity"
	"github.com/jhoicas/invoicing-core/internal/domain/repository"
)

// Asegura que CompanyRepo implementa repository.CompanyRepository.
var _ repository.CompanyRepository = (*CompanyRepo)(nil)

// CompanyRepo organizaciones (emisores y deudores) sobre PostgreSQL.
type CompanyRepo struct {
	q Querier
}

// NewCompanyRepository construye el adaptador de persistencia para organizaciones.
func NewCompanyRepository(q Querier) *CompanyRepo {
	return &CompanyRepo{q: q}
}

// Create persiste una organización. Lo usan la CLI y los tests de integración.
func (r *CompanyRepo) Create(ctx context.Context, c *entity.Company) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
		c.UpdatedAt = c.CreatedAt
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO companies (id, name, tax_id, address, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Name, c.TaxID, c.Address, c.Email, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: NIF %s ya registrado", domain.ErrConflict, c.TaxID)
		}
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

// GetByID obtiene una organización por ID. (nil, nil) si no existe.
func (r *CompanyRepo) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.get(ctx, `WHERE id = $1`, id)
}

// GetByTaxID obtiene una organización por NIF. (nil, nil) si no existe.
func (r *CompanyRepo) GetByTaxID(ctx context.Context, taxID string) (*entity.Company, error) {
	if taxID == "" {
		return nil, nil
	}
	return r.get(ctx, `WHERE tax_id = $1`, taxID)
}

func (r *CompanyRepo) get(ctx context.Context, where string, arg string) (*entity.Company, error) {
	var c entity.Company
	err := r.q.QueryRow(ctx, `
		SELECT id, name, tax_id, address, email, created_at, updated_at
		FROM companies `+where, arg).Scan(
		&c.ID, &c.Name, &c.TaxID, &c.Address, &c.Email, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &c, nil
}
