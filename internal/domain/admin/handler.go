package admin

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/domain/verification"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts /admin. Every route requires the admin role.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	g.GET("/users", h.ListUsers)
	g.DELETE("/users/:id", h.DeleteUser)
	g.PUT("/verify-doctor/:id", h.VerifyDoctor)
	g.GET("/pending-verifications", h.PendingVerifications)
	g.GET("/statistics", h.Statistics)
	g.POST("/doctor-keys", h.IssueDoctorKey)
	g.GET("/doctor-keys", h.ListDoctorKeys)
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), c.QueryParam("userType"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, pg.Limit, pg.Offset))
}

func (h *Handler) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	adminID, err := auth.CallerID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteUser(ctx, adminID, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

func (h *Handler) VerifyDoctor(c echo.Context) error {
	ctx := c.Request().Context()
	adminID, err := auth.CallerID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.VerifyDoctor(ctx, adminID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "Doctor verified successfully", "doctor": d})
}

func (h *Handler) PendingVerifications(c echo.Context) error {
	doctors, err := h.svc.PendingVerifications(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doctors)
}

func (h *Handler) Statistics(c echo.Context) error {
	stats, err := h.svc.Statistics(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) IssueDoctorKey(c echo.Context) error {
	ctx := c.Request().Context()
	adminID, err := auth.CallerID(ctx)
	if err != nil {
		return err
	}
	var req verification.IssueKeyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	k, err := h.svc.IssueDoctorKey(ctx, adminID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, k)
}

func (h *Handler) ListDoctorKeys(c echo.Context) error {
	pg := pagination.FromContext(c)
	keys, total, err := h.svc.ListDoctorKeys(c.Request().Context(), c.QueryParam("unused") == "true", pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(keys, total, pg.Limit, pg.Offset))
}
