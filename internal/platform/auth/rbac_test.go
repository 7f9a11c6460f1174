package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func withRoles(roles ...string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUser(context.Background(), "u1", roles))
	return e.NewContext(req, httptest.NewRecorder())
}

func okHandler(c echo.Context) error { return c.NoContent(http.StatusOK) }

func TestRequireRole_Allowed(t *testing.T) {
	c := withRoles("nurse")
	if err := RequireRole("physician", "nurse")(okHandler)(c); err != nil {
		t.Fatalf("expected access, got %v", err)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	c := withRoles("receptionist")
	err := RequireRole("physician")(okHandler)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	c := withRoles("admin")
	if err := RequireRole("physician")(okHandler)(c); err != nil {
		t.Fatalf("admin should pass, got %v", err)
	}
}

func TestHasAnyRole(t *testing.T) {
	tests := []struct {
		held   []string
		wanted []string
		want   bool
	}{
		{nil, []string{"physician"}, false},
		{[]string{"physician"}, []string{"physician"}, true},
		{[]string{"nurse"}, []string{"physician"}, false},
		{[]string{"admin"}, nil, true},
	}
	for _, tt := range tests {
		if got := HasAnyRole(tt.held, tt.wanted...); got != tt.want {
			t.Errorf("HasAnyRole(%v, %v) = %v, want %v", tt.held, tt.wanted, got, tt.want)
		}
	}
}
