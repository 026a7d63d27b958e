package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/middleware"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo, *fixture) {
	t.Helper()
	f := newFixture(t)
	e := echo.New()
	e.Validator = middleware.NewValidator()
	return NewHandler(f.svc), e, f
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_Register(t *testing.T) {
	h, e, _ := newTestHandler(t)
	body := `{"email":"alice@example.com","password":"secret1","name":"Alice","userType":"patient","aadhaarNumber":"111122223333"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, body), rec)

	if err := h.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var resp AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" || resp.User == nil || resp.User.Role != auth.RolePatient {
		t.Errorf("unexpected response %+v", resp)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("password hash must not be serialized")
	}
}

func TestHandler_Register_ValidationMessage(t *testing.T) {
	h, e, _ := newTestHandler(t)
	body := `{"email":"alice@example.com","password":"123","name":"Alice","userType":"patient"}`
	c := e.NewContext(jsonRequest(http.MethodPost, body), httptest.NewRecorder())

	err := h.Register(c)
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("expected Invalid, got %v", err)
	}
	if got := apperr.PublicMessage(err); got != "password must be at least 6 characters" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestHandler_Register_RejectsAdmin(t *testing.T) {
	h, e, _ := newTestHandler(t)
	body := `{"email":"root@example.com","password":"secret1","name":"Root","userType":"admin"}`
	c := e.NewContext(jsonRequest(http.MethodPost, body), httptest.NewRecorder())

	if err := h.Register(c); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected Invalid, got %v", err)
	}
}

func TestHandler_Login(t *testing.T) {
	h, e, f := newTestHandler(t)
	registerPatient(t, f.svc, "alice@example.com", "111122223333")

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"email":"alice@example.com","password":"secret1"}`), rec)
	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c = e.NewContext(jsonRequest(http.MethodPost, `{"email":"alice@example.com","password":"nope"}`), httptest.NewRecorder())
	if err := h.Login(c); apperr.HTTPStatus(err) != http.StatusBadRequest {
		t.Errorf("expected 400 for bad credentials, got %v", err)
	}
}

func TestHandler_CurrentUser(t *testing.T) {
	h, e, f := newTestHandler(t)
	resp := registerPatient(t, f.svc, "alice@example.com", "111122223333")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), resp.User.ID.String(), auth.RolePatient))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CurrentUser(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var u User
	if err := json.Unmarshal(rec.Body.Bytes(), &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("unexpected user %+v", u)
	}
}

func TestHandler_CurrentUser_Unauthenticated(t *testing.T) {
	h, e, _ := newTestHandler(t)
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := h.CurrentUser(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestHandler_UpdateProfile(t *testing.T) {
	h, e, f := newTestHandler(t)
	resp := registerPatient(t, f.svc, "alice@example.com", "111122223333")

	req := jsonRequest(http.MethodPut, `{"address":"12 MG Road","dateOfBirth":"1990-04-12"}`)
	req = req.WithContext(auth.WithIdentity(context.Background(), resp.User.ID.String(), auth.RolePatient))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.UpdateProfile(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"address":"12 MG Road"`) {
		t.Errorf("expected updated address in body, got %s", rec.Body.String())
	}
}

func TestHandler_AddMedicalHistory(t *testing.T) {
	h, e, f := newTestHandler(t)
	resp := registerPatient(t, f.svc, "alice@example.com", "111122223333")

	req := jsonRequest(http.MethodPost, `{"condition":"asthma","notes":"mild"}`)
	req = req.WithContext(auth.WithIdentity(context.Background(), resp.User.ID.String(), auth.RolePatient))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.AddMedicalHistory(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	req = jsonRequest(http.MethodPost, `{"notes":"no condition"}`)
	req = req.WithContext(auth.WithIdentity(context.Background(), resp.User.ID.String(), auth.RolePatient))
	c = e.NewContext(req, httptest.NewRecorder())
	if err := h.AddMedicalHistory(c); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected Invalid for missing condition, got %v", err)
	}
}
