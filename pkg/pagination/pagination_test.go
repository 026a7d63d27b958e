package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(target string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return FromContext(e.NewContext(req, rec))
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor("/")

	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := paramsFor("/?limit=50&offset=10")

	if p.Limit != 50 {
		t.Errorf("expected limit 50, got %d", p.Limit)
	}
	if p.Offset != 10 {
		t.Errorf("expected offset 10, got %d", p.Offset)
	}
}

func TestFromContext_Page(t *testing.T) {
	p := paramsFor("/?limit=10&page=3")
	if p.Offset != 20 {
		t.Errorf("expected offset 20 for page 3, got %d", p.Offset)
	}

	p = paramsFor("/?limit=10&page=3&offset=5")
	if p.Offset != 5 {
		t.Errorf("expected explicit offset to win, got %d", p.Offset)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	p := paramsFor("/?limit=500")

	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativeOffset(t *testing.T) {
	p := paramsFor("/?offset=-5")

	if p.Offset != 0 {
		t.Errorf("expected offset 0 for negative input, got %d", p.Offset)
	}
}

func TestNewResponse(t *testing.T) {
	data := []string{"a", "b", "c"}
	r := NewResponse(data, 10, 3, 0)

	if r.Total != 10 {
		t.Errorf("expected total 10, got %d", r.Total)
	}
	if !r.HasMore {
		t.Error("expected hasMore to be true when offset+limit < total")
	}
	if r.Page != 1 || r.Pages != 4 {
		t.Errorf("expected page 1 of 4, got %d of %d", r.Page, r.Pages)
	}

	r2 := NewResponse(data, 3, 3, 0)
	if r2.HasMore {
		t.Error("expected hasMore to be false when offset+limit >= total")
	}
}

func TestParams_HasNext(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		total  int
		want   bool
	}{
		{"more results", Params{Limit: 10, Offset: 0}, 25, true},
		{"exact end", Params{Limit: 10, Offset: 15}, 25, false},
		{"past end", Params{Limit: 10, Offset: 30}, 25, false},
		{"no results", Params{Limit: 10, Offset: 0}, 0, false},
		{"last partial page", Params{Limit: 10, Offset: 20}, 25, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.HasNext(tt.total); got != tt.want {
				t.Errorf("HasNext() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParams_Pages(t *testing.T) {
	tests := []struct {
		params Params
		total  int
		page   int
		pages  int
	}{
		{Params{Limit: 10, Offset: 0}, 0, 1, 0},
		{Params{Limit: 10, Offset: 0}, 10, 1, 1},
		{Params{Limit: 10, Offset: 10}, 11, 2, 2},
		{Params{Limit: 20, Offset: 45}, 100, 3, 5},
	}
	for _, tt := range tests {
		if got := tt.params.Page(); got != tt.page {
			t.Errorf("%+v Page() = %d, want %d", tt.params, got, tt.page)
		}
		if got := tt.params.Pages(tt.total); got != tt.pages {
			t.Errorf("%+v Pages(%d) = %d, want %d", tt.params, tt.total, got, tt.pages)
		}
	}
}
