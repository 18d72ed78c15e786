package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/invoicing-core/internal/application/dto"
	"github.com/jhoicas/invoicing-core/internal/application/usecase"
	"github.com/jhoicas/invoicing-core/internal/domain"
	"github.com/jhoicas/invoicing-core/internal/domain/entity"
)

type memCompanies map[string]*entity.Company

func (m memCompanies) Create(_ context.Context, c *entity.Company) error {
	m[c.ID] = c
	return nil
}

func (m memCompanies) GetByID(_ context.Context, id string) (*entity.Company, error) {
	return m[id], nil
}

func (m memCompanies) GetByTaxID(_ context.Context, taxID string) (*entity.Company, error) {
	for _, c := range m {
		if c.TaxID == taxID {
			return c, nil
		}
	}
	return nil, nil
}

func TestCompanyCreate_NormalizaYPersiste(t *testing.T) {
	repo := memCompanies{}
	uc := usecase.NewCompanyUseCase(repo)

	out, err := uc.Create(context.Background(), dto.CreateCompanyRequest{Name: "  Cliente Sur ", TaxID: " de987 "})
	require.NoError(t, err)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "Cliente Sur", out.Name)
	assert.Equal(t, "DE987", out.TaxID)

	got, err := uc.GetByID(context.Background(), out.ID)
	require.NoError(t, err)
	assert.Equal(t, out.ID, got.ID)
}

func TestCompanyCreate_NIFDuplicadoYNombreVacio(t *testing.T) {
	repo := memCompanies{}
	uc := usecase.NewCompanyUseCase(repo)
	_, err := uc.Create(context.Background(), dto.CreateCompanyRequest{Name: "A", TaxID: "X1"})
	require.NoError(t, err)

	_, err = uc.Create(context.Background(), dto.CreateCompanyRequest{Name: "B", TaxID: "x1"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = uc.Create(context.Background(), dto.CreateCompanyRequest{TaxID: "X2"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Len(t, repo, 1)
}

func TestCompanyGetByID_NoExiste(t *testing.T) {
	_, err := usecase.NewCompanyUseCase(memCompanies{}).GetByID(context.Background(), "nada")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
