package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role rol de servicio que viaja en el claim "role".
type Role string

const (
	RoleAdmin    Role = "admin"    // cualquier emisor
	RoleOperator Role = "operator" // backoffice de su emisor: finalizar, transicionar, PDFs
	RoleERP      Role = "erp"      // integración del ERP: estado financiero de su emisor
)

var (
	// ErrInvalidRole el claim role no es uno de los roles de servicio.
	ErrInvalidRole = errors.New("jwt: rol desconocido")
	// ErrMissingCompany operator y erp deben ir ligados a un emisor.
	ErrMissingCompany = errors.New("jwt: el rol exige company_id")
)

// ParseRole normaliza (mayúsculas/espacios) y valida un rol.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleOperator, RoleERP:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// Identity quién llama: sujeto (operador o integración), emisor y rol.
type Identity struct {
	Subject   string
	CompanyID string
	Role      Role
}

// Scoped true si solo puede operar sobre facturas de su propio emisor.
func (id Identity) Scoped() bool { return id.Role != RoleAdmin }

func (id Identity) validate() error {
	switch id.Role {
	case RoleAdmin, RoleOperator, RoleERP:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRole, id.Role)
	}
	if id.Scoped() && id.CompanyID == "" {
		return fmt.Errorf("%w: rol %s", ErrMissingCompany, id.Role)
	}
	return nil
}

// Claims claims estándar más emisor y rol; el sujeto va en "sub".
type Claims struct {
	jwt.RegisteredClaims
	CompanyID string `json:"company_id,omitempty"`
	Role      Role   `json:"role"`
}

// Generate firma (HS256) un token para id con vigencia ttl.
func Generate(secret, issuer string, id Identity, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt: secret vacío")
	}
	if err := id.validate(); err != nil {
		return "", err
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		CompanyID: id.CompanyID,
		Role:      id.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Parse valida firma, expiración y rol y devuelve la identidad del token.
// Un token bien firmado con un rol desconocido o sin emisor (si el rol lo exige) se rechaza.
func Parse(secret, tokenString string) (Identity, error) {
	if secret == "" {
		return Identity{}, fmt.Errorf("jwt: secret vacío")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("método de firma inesperado: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid {
		return Identity{}, fmt.Errorf("claims inválidos")
	}
	id := Identity{Subject: claims.Subject, CompanyID: claims.CompanyID, Role: claims.Role}
	if err := id.validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}
