package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/invoicing-core/internal/domain"
	"github.com/jhoicas/invoicing-core/internal/domain/repository"
	"github.com/jhoicas/invoicing-core/pkg/jwt"
)

// JWTConfig configuración para generación de tokens.
type JWTConfig struct {
	Secret     string
	ExpMinutes int
	Issuer     string
}

// IssueTokenRequest datos del token: sujeto (usuario o integración), emisor y rol.
type IssueTokenRequest struct {
	Subject    string
	CompanyID  string
	Role       string
	ExpMinutes int // 0 = valor de configuración
}

// TokenUseCase emite tokens de servicio para operadores y para la integración del ERP.
type TokenUseCase struct {
	companyRepo repository.CompanyRepository
	jwtCfg      JWTConfig
}

// NewTokenUseCase construye el caso de uso.
func NewTokenUseCase(companyRepo repository.CompanyRepository, jwtCfg JWTConfig) *TokenUseCase {
	return &TokenUseCase{companyRepo: companyRepo, jwtCfg: jwtCfg}
}

// Issue valida rol y emisor y firma el token.
//   - domain.ErrInvalidInput si falta el sujeto, el rol no existe o un rol con alcance no trae emisor.
//   - domain.ErrNotFound si la organización no existe (salvo admin sin organización).
func (uc *TokenUseCase) Issue(ctx context.Context, in IssueTokenRequest) (string, error) {
	role, err := jwt.ParseRole(in.Role)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if strings.TrimSpace(in.Subject) == "" {
		return "", fmt.Errorf("%w: sujeto requerido", domain.ErrInvalidInput)
	}
	id := jwt.Identity{Subject: strings.TrimSpace(in.Subject), CompanyID: in.CompanyID, Role: role}
	if id.Scoped() && id.CompanyID == "" {
		return "", fmt.Errorf("%w: el rol %s exige emisor", domain.ErrInvalidInput, role)
	}
	if id.CompanyID != "" {
		company, err := uc.companyRepo.GetByID(ctx, in.CompanyID)
		if err != nil {
			return "", err
		}
		if company == nil {
			return "", fmt.Errorf("%w: organización %s", domain.ErrNotFound, in.CompanyID)
		}
	}
	exp := in.ExpMinutes
	if exp <= 0 {
		exp = uc.jwtCfg.ExpMinutes
	}
	return jwt.Generate(uc.jwtCfg.Secret, uc.jwtCfg.Issuer, id, time.Duration(exp)*time.Minute)
}
