package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func runMiddleware(mw echo.MiddlewareFunc, header string) (echo.Context, bool, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	called := false
	err := mw(func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	})(c)
	return c, called, err
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, called, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "")
	if called {
		t.Fatal("handler must not run")
	}
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), tt.header)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidTokenSetsUser(t *testing.T) {
	tok := createTestToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "staff-17",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		FacilityID: "north",
		Roles:      []string{"physician"},
	}, testSigningKey)

	c, called, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected handler to run")
	}
	ctx := c.Request().Context()
	if got := UserIDFromContext(ctx); got != "staff-17" {
		t.Errorf("expected user staff-17, got %q", got)
	}
	if roles := RolesFromContext(ctx); len(roles) != 1 || roles[0] != "physician" {
		t.Errorf("unexpected roles %v", roles)
	}
	if got := c.Get(FacilityKey); got != "north" {
		t.Errorf("expected facility north, got %v", got)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	tok := createTestToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "staff-17",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}, testSigningKey)
	_, _, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tok)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	tok := createTestToken(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "x"}}, []byte("another-key"))
	_, _, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tok)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_IssuerMismatch(t *testing.T) {
	tok := createTestToken(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "x", Issuer: "other"}}, testSigningKey)
	_, _, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Issuer: "console"}), "Bearer "+tok)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestDevAuthMiddleware_NoToken(t *testing.T) {
	c, called, err := runMiddleware(DevAuthMiddleware("physician"), "")
	if err != nil || !called {
		t.Fatalf("expected pass-through, err=%v called=%v", err, called)
	}
	ctx := c.Request().Context()
	if UserIDFromContext(ctx) != "dev-user" {
		t.Errorf("expected dev-user, got %q", UserIDFromContext(ctx))
	}
	if roles := RolesFromContext(ctx); len(roles) != 1 || roles[0] != "physician" {
		t.Errorf("unexpected roles %v", roles)
	}
}

func TestDevAuthMiddleware_DefaultsToAdmin(t *testing.T) {
	c, _, _ := runMiddleware(DevAuthMiddleware(), "")
	if roles := RolesFromContext(c.Request().Context()); len(roles) != 1 || roles[0] != "admin" {
		t.Errorf("expected [admin], got %v", roles)
	}
}

func TestUserFromEmptyContext(t *testing.T) {
	ctx := context.Background()
	if UserIDFromContext(ctx) != "" || RolesFromContext(ctx) != nil {
		t.Error("expected empty values from bare context")
	}
}
