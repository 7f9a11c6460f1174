package insurance

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandler_List(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	seed(t, svc)
	h := NewHandler(svc)
	e := echo.New()

	tests := []struct {
		query string
		total int
	}{
		{"", 3},
		{"?q=cuong", 1},
		{"?provider=BHXH,BaoViet", 3},
		{"?from=2024-05-01&to=2024-06-30", 1},
		{"?has_card_image=true", 1},
		{"?provider=BHXH&has_card_image=false", 1},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/"+tt.query, nil), rec)
		if err := h.List(c); err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.query, err)
		}
		var page struct {
			Total int `json:"total"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if page.Total != tt.total {
			t.Errorf("%s: expected %d, got %d", tt.query, tt.total, page.Total)
		}
	}
}

func TestHandler_ListBadParams(t *testing.T) {
	h := NewHandler(NewService(NewMemoryRepo()))
	e := echo.New()
	for _, q := range []string{"?from=soon", "?to=2024-13-01", "?has_card_image=maybe"} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/"+q, nil), httptest.NewRecorder())
		err := h.List(c)
		if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %v", q, err)
		}
	}
}

func TestHandler_Create(t *testing.T) {
	h := NewHandler(NewService(NewMemoryRepo()))
	e := echo.New()
	body := `{"patient_id":"6f1c1f5e-3c1b-4a51-9b55-2f7e0b6b1a10","holder_name":"Pham Minh","card_number":"dn4010123456",
		"provider":"BHXH","valid_from":"2024-01-01","valid_to":"2024-12-31"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"card_number":"DN4010123456"`) {
		t.Errorf("expected normalized card number, got %s", rec.Body.String())
	}
}
