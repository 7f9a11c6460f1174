package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, target string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "/", DefaultLimit, 0},
		{"custom", "/?limit=50&offset=10", 50, 10},
		{"max limit", "/?limit=500", MaxLimit, 0},
		{"negative offset", "/?offset=-4", DefaultLimit, 0},
		{"garbage", "/?limit=abc&offset=xyz", DefaultLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := paramsFor(t, tt.target)
			if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
				t.Errorf("got limit=%d offset=%d, want %d/%d", p.Limit, p.Offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]string{"a", "b"}, 10, 2, 0)
	if r.Total != 10 || r.Limit != 2 || r.Offset != 0 || !r.HasMore {
		t.Errorf("unexpected response %+v", r)
	}
	if NewResponse(nil, 10, 5, 5).HasMore {
		t.Error("last page must not report more")
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	r := Page(items, Params{Limit: 2, Offset: 1})
	got := r.Data.([]int)
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("unexpected window %v", got)
	}
	if r.Total != 5 || !r.HasMore {
		t.Errorf("unexpected envelope %+v", r)
	}

	r = Page(items, Params{Limit: 10, Offset: 9})
	if got := r.Data.([]int); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil window, got %#v", got)
	}
}

func TestPage_DoesNotAliasInput(t *testing.T) {
	items := []int{1, 2, 3}
	r := Page(items, Params{Limit: 2})
	r.Data.([]int)[0] = 99
	if items[0] != 1 {
		t.Error("page window must not share the input array")
	}
}

func TestParams_Next(t *testing.T) {
	p := Params{Limit: 10, Offset: 20}
	if !p.HasNext(31) || p.HasNext(30) {
		t.Error("HasNext boundary wrong")
	}
	if p.NextOffset() != 30 {
		t.Errorf("expected next offset 30, got %d", p.NextOffset())
	}
}
