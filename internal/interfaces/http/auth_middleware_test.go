package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgjwt "github.com/jhoicas/invoicing-core/pkg/jwt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	testJWTSecret = "test-secret-key-for-unit-tests"
	testSubject   = "backoffice-ana"
	testCompanyID = "00000000-0000-0000-0000-000000000002"
	testIssuer    = "invoicing-core-test"
)

// tokenForRole token del emisor de prueba con el rol indicado.
func tokenForRole(t *testing.T, role string) string {
	t.Helper()
	tok, err := pkgjwt.Generate(testJWTSecret, testIssuer, pkgjwt.Identity{
		Subject:   testSubject,
		CompanyID: testCompanyID,
		Role:      pkgjwt.Role(role),
	}, time.Hour)
	require.NoError(t, err, "debe generarse un token JWT válido")
	return "Bearer " + tok
}

// rawToken firma claims arbitrarios, sin las validaciones de pkg/jwt.
func rawToken(t *testing.T, claims pkgjwt.Claims) string {
	t.Helper()
	tok, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return "Bearer " + tok
}

func expiresIn(d time.Duration) gojwt.RegisteredClaims {
	return gojwt.RegisteredClaims{Subject: testSubject, ExpiresAt: gojwt.NewNumericDate(time.Now().Add(d))}
}

// ──────────────────────────────────────────────────────────────────────────────
// AuthMiddleware sobre /api/invoices/:id
// ──────────────────────────────────────────────────────────────────────────────

func TestAuthMiddleware_RechazaCredencialesInvalidas(t *testing.T) {
	app, _, _ := newInvoiceApp(t)

	otherSecret, err := pkgjwt.Generate("otro-secret", testIssuer, pkgjwt.Identity{
		Subject: testSubject, CompanyID: testCompanyID, Role: pkgjwt.RoleOperator,
	}, time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		code   string
	}{
		{"sin cabecera", "", "MISSING_TOKEN"},
		{"esquema distinto de Bearer", "Token abc", "INVALID_TOKEN"},
		{"token basura", "Bearer no.es.jwt", "INVALID_TOKEN"},
		{"firmado con otro secreto", "Bearer " + otherSecret, "INVALID_TOKEN"},
		{"expirado", rawToken(t, pkgjwt.Claims{
			RegisteredClaims: expiresIn(-time.Minute), CompanyID: testCompanyID, Role: pkgjwt.RoleAdmin,
		}), "INVALID_TOKEN"},
		{"sin expiración", rawToken(t, pkgjwt.Claims{
			RegisteredClaims: gojwt.RegisteredClaims{Subject: testSubject}, CompanyID: testCompanyID, Role: pkgjwt.RoleAdmin,
		}), "INVALID_TOKEN"},
		{"rol desconocido", rawToken(t, pkgjwt.Claims{
			RegisteredClaims: expiresIn(time.Hour), CompanyID: testCompanyID, Role: "bodeguero",
		}), "INVALID_TOKEN"},
		{"operator sin emisor", rawToken(t, pkgjwt.Claims{
			RegisteredClaims: expiresIn(time.Hour), Role: pkgjwt.RoleOperator,
		}), "INVALID_TOKEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/invoices/"+ownInvoiceID, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, tc.code, decodeError(t, resp).Code)
		})
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Matriz de permisos de la tabla de rutas
// ──────────────────────────────────────────────────────────────────────────────

func TestRoutes_PermisosPorRol(t *testing.T) {
	const (
		own        = "/api/invoices/" + ownInvoiceID
		cancelBody = `{"status":"CANCELLED"}`
		paidBody   = `{"status":"PAID"}`
	)
	cases := []struct {
		method, path, body string
		role               string
		status             int
	}{
		{http.MethodGet, own, "", "erp", http.StatusOK},
		{http.MethodGet, own + "/next-states", "", "operator", http.StatusOK},

		{http.MethodPost, own + "/finalize", "", "operator", http.StatusOK},
		{http.MethodPost, own + "/finalize", "", "erp", http.StatusForbidden},
		{http.MethodPost, own + "/transition", cancelBody, "admin", http.StatusOK},
		{http.MethodPost, own + "/transition", cancelBody, "erp", http.StatusForbidden},
		{http.MethodPost, own + "/promote", "", "operator", http.StatusOK},
		{http.MethodPost, own + "/promote", "", "erp", http.StatusForbidden},
		{http.MethodPost, own + "/pdf/regenerate", "", "operator", http.StatusAccepted},
		{http.MethodPost, own + "/pdf/regenerate", "", "erp", http.StatusForbidden},

		{http.MethodPut, own + "/finance-status", paidBody, "erp", http.StatusNoContent},
		{http.MethodPut, own + "/finance-status", paidBody, "admin", http.StatusNoContent},
		{http.MethodPut, own + "/finance-status", paidBody, "operator", http.StatusForbidden},
		{http.MethodDelete, own + "/finance-status", "", "admin", http.StatusNoContent},
		{http.MethodDelete, own + "/finance-status", "", "operator", http.StatusForbidden},
		{http.MethodDelete, own + "/finance-status", "", "erp", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path[len("/api/invoices/"+ownInvoiceID):]+" "+tc.role, func(t *testing.T) {
			app, _, _ := newInvoiceApp(t)
			resp := call(t, app, tc.method, tc.path, tc.role, tc.body)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestRoutes_AlcanceAntesDeEjecutar(t *testing.T) {
	app, _, fin := newInvoiceApp(t)

	resp := call(t, app, http.MethodPut, "/api/invoices/"+otherInvoiceID+"/finance-status", "erp", `{"status":"PAID"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Nil(t, fin.status, "el webhook de otro emisor no llega al caso de uso")

	resp2 := call(t, app, http.MethodPut, "/api/invoices/no-existe/finance-status", "erp", `{"status":"PAID"}`)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
	assert.Nil(t, fin.status)
}
