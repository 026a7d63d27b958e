package documents

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
)

// UploadField is the multipart field carrying the file.
const UploadField = "file"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts /documents on an authenticated group. Access is
// decided per document by ownership and grants, not by role.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/documents")
	g.POST("/upload", h.Upload)
	g.GET("", h.ListOwned)
	g.GET("/shared", h.ListShared)
	g.GET("/:id", h.View)
	g.GET("/:id/download", h.Download)
	g.GET("/:id/access-logs", h.AccessLogs)
	g.POST("/:id/share", h.Share)
	g.DELETE("/:id/share/:userId", h.Revoke)
	g.DELETE("/:id", h.Delete)
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *Handler) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	caller, err := auth.CallerID(ctx)
	if err != nil {
		return err
	}
	fh, err := c.FormFile(UploadField)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no file uploaded")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	defer f.Close()

	doc, err := h.svc.Upload(ctx, caller, Upload{
		OriginalName: fh.Filename,
		ContentType:  fh.Header.Get(echo.HeaderContentType),
		Category:     c.FormValue("category"),
		Content:      f,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"message":  "Document uploaded successfully",
		"document": doc,
	})
}

func (h *Handler) ListOwned(c echo.Context) error {
	ctx := c.Request().Context()
	caller, err := auth.CallerID(ctx)
	if err != nil {
		return err
	}
	docs, err := h.svc.ListOwned(ctx, caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, docs)
}

func (h *Handler) ListShared(c echo.Context) error {
	ctx := c.Request().Context()
	caller, err := auth.CallerID(ctx)
	if err != nil {
		return err
	}
	docs, err := h.svc.ListSharedWithMe(ctx, caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, docs)
}

func (h *Handler) View(c echo.Context) error {
	return h.stream(c, ActionView, "inline")
}

func (h *Handler) Download(c echo.Context) error {
	return h.stream(c, ActionDownload, "attachment")
}

func (h *Handler) stream(c echo.Context, action, disposition string) error {
	ctx := c.Request().Context()
	caller, err := auth.CallerID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	doc, rc, err := h.svc.Open(ctx, id, caller, c.RealIP(), action)
	if err != nil {
		return err
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("%s; filename*=UTF-8''%s", disposition, url.PathEscape(doc.OriginalName)))
	return c.Stream(http.StatusOK, doc.ContentType, rc)
}

func (h *Handler) AccessLogs(c echo.Context) error {
	ctx := c.Request().Context()
	caller, err := auth.CallerID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	entries, err := h.svc.AccessLogs(ctx, id, caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) Share(c echo.Context) error {
	ctx := c.Request().Context()
	caller, err := auth.CallerID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req ShareRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	grant, err := h.svc.Share(ctx, id, caller, req, c.RealIP())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":    "Document shared successfully",
		"sharedWith": grant.Email,
		"expiresAt":  grant.ExpiresAt,
	})
}

func (h *Handler) Revoke(c echo.Context) error {
	ctx := c.Request().Context()
	caller, err := auth.CallerID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	grantee, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	if err := h.svc.Revoke(ctx, id, caller, grantee, c.RealIP()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Access revoked successfully"})
}

func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	caller, err := auth.CallerID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(ctx, id, caller); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Document deleted successfully"})
}
