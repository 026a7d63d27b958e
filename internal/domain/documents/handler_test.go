package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
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

func asUser(req *http.Request, id uuid.UUID) *http.Request {
	return req.WithContext(auth.WithIdentity(context.Background(), id.String(), auth.RolePatient))
}

func multipartUpload(t *testing.T, filename, category string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(UploadField, filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	if category != "" {
		w.WriteField("category", category)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestHandler_Upload(t *testing.T) {
	h, e, f := newTestHandler(t)
	owner := f.addUser("Owner")

	rec := httptest.NewRecorder()
	c := e.NewContext(asUser(multipartUpload(t, "rx.pdf", CategoryPrescription, []byte("%PDF-1.4")), owner.ID), rec)
	if err := h.Upload(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var body struct {
		Document Document `json:"document"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Document.Category != CategoryPrescription || body.Document.OriginalName != "rx.pdf" {
		t.Errorf("unexpected document %+v", body.Document)
	}
	if strings.Contains(rec.Body.String(), owner.ID.String()+"/") {
		t.Error("storage key must not be exposed")
	}
}

func TestHandler_Upload_LegacyFieldName(t *testing.T) {
	h, e, f := newTestHandler(t)
	owner := f.addUser("Owner")

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("document", "rx.pdf")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("%PDF-1.4"))
	w.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())

	err = h.Upload(e.NewContext(asUser(req, owner.ID), httptest.NewRecorder()))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a part not named %q, got %v", UploadField, err)
	}
}

func TestHandler_Upload_NoFile(t *testing.T) {
	h, e, f := newTestHandler(t)
	owner := f.addUser("Owner")
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	c := e.NewContext(asUser(req, owner.ID), httptest.NewRecorder())

	err := h.Upload(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_ViewAndDownload(t *testing.T) {
	h, e, f := newTestHandler(t)
	owner := f.addUser("Owner")
	doc := f.upload(t, owner.ID, "report.pdf")

	for _, tt := range []struct {
		handler     echo.HandlerFunc
		disposition string
	}{
		{h.View, "inline"},
		{h.Download, "attachment"},
	} {
		rec := httptest.NewRecorder()
		c := e.NewContext(asUser(httptest.NewRequest(http.MethodGet, "/", nil), owner.ID), rec)
		c.SetParamNames("id")
		c.SetParamValues(doc.ID.String())

		if err := tt.handler(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Body.String() != "%PDF-1.4 test content" {
			t.Errorf("unexpected body %q", rec.Body.String())
		}
		if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.HasPrefix(cd, tt.disposition) {
			t.Errorf("expected %s disposition, got %q", tt.disposition, cd)
		}
		if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/pdf" {
			t.Errorf("unexpected content type %q", ct)
		}
	}
}

func TestHandler_View_Forbidden(t *testing.T) {
	h, e, f := newTestHandler(t)
	owner, stranger := f.addUser("Owner"), f.addUser("Stranger")
	doc := f.upload(t, owner.ID, "report.pdf")

	c := e.NewContext(asUser(httptest.NewRequest(http.MethodGet, "/", nil), stranger.ID), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(doc.ID.String())
	if err := h.View(c); apperr.HTTPStatus(err) != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestHandler_Share(t *testing.T) {
	h, e, f := newTestHandler(t)
	owner, grantee := f.addUser("Owner"), f.addUser("Grace")
	doc := f.upload(t, owner.ID, "report.pdf")

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"recipientEmail":"grace@example.com","expiryDays":3}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(asUser(req, owner.ID), rec)
	c.SetParamNames("id")
	c.SetParamValues(doc.ID.String())

	if err := h.Share(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"expiresAt":"2024-03-04T12:00:00Z"`) {
		t.Errorf("expected expiry in body, got %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"sharedWith":"grace@example.com"`) {
		t.Errorf("expected recipient in body, got %s", rec.Body.String())
	}
	if !f.canAccess(t, doc.ID, grantee.ID, f.now) {
		t.Error("expected grantee access")
	}
}

func TestHandler_Share_RejectsBadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing recipient", `{"expiryDays":3}`},
		{"legacy email field", `{"email":"grace@example.com"}`},
		{"expiry past cap", `{"recipientEmail":"grace@example.com","expiryDays":200000}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, e, f := newTestHandler(t)
			owner, grantee := f.addUser("Owner"), f.addUser("Grace")
			doc := f.upload(t, owner.ID, "report.pdf")

			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			c := e.NewContext(asUser(req, owner.ID), httptest.NewRecorder())
			c.SetParamNames("id")
			c.SetParamValues(doc.ID.String())

			if err := h.Share(c); apperr.HTTPStatus(err) != http.StatusBadRequest {
				t.Errorf("expected 400, got %v", err)
			}
			if f.canAccess(t, doc.ID, grantee.ID, f.now) {
				t.Error("rejected share must not grant access")
			}
		})
	}
}

func TestHandler_Share_BadBody(t *testing.T) {
	h, e, f := newTestHandler(t)
	owner := f.addUser("Owner")
	doc := f.upload(t, owner.ID, "report.pdf")

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"recipientEmail":"not-an-email"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(asUser(req, owner.ID), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(doc.ID.String())

	if err := h.Share(c); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected Invalid, got %v", err)
	}
}

func TestHandler_Revoke_InvalidUserID(t *testing.T) {
	h, e, f := newTestHandler(t)
	owner := f.addUser("Owner")
	doc := f.upload(t, owner.ID, "report.pdf")

	c := e.NewContext(asUser(httptest.NewRequest(http.MethodDelete, "/", nil), owner.ID), httptest.NewRecorder())
	c.SetParamNames("id", "userId")
	c.SetParamValues(doc.ID.String(), "bogus")

	err := h.Revoke(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_Delete(t *testing.T) {
	h, e, f := newTestHandler(t)
	owner := f.addUser("Owner")
	doc := f.upload(t, owner.ID, "report.pdf")

	rec := httptest.NewRecorder()
	c := e.NewContext(asUser(httptest.NewRequest(http.MethodDelete, "/", nil), owner.ID), rec)
	c.SetParamNames("id")
	c.SetParamValues(doc.ID.String())

	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_ListOwned(t *testing.T) {
	h, e, f := newTestHandler(t)
	owner := f.addUser("Owner")
	f.upload(t, owner.ID, "report.pdf")

	rec := httptest.NewRecorder()
	c := e.NewContext(asUser(httptest.NewRequest(http.MethodGet, "/", nil), owner.ID), rec)
	if err := h.ListOwned(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var docs []Document
	if err := json.Unmarshal(rec.Body.Bytes(), &docs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("expected 1 document, got %d", len(docs))
	}
}
