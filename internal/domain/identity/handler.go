package identity

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts /auth on public and /profiles plus the authenticated
// /auth endpoints on protected.
func (h *Handler) RegisterRoutes(public, protected *echo.Group) {
	public.POST("/auth/register", h.Register)
	public.POST("/auth/login", h.Login)

	protected.GET("/auth/user", h.CurrentUser)
	protected.POST("/auth/logout", h.Logout)

	protected.GET("/profiles", h.GetProfile)
	protected.PUT("/profiles", h.UpdateProfile)
	protected.POST("/profiles/medical-history", h.AddMedicalHistory, auth.RequireRole(auth.RolePatient))
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	resp, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	resp, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) CurrentUser(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := auth.CallerID(ctx)
	if err != nil {
		return err
	}
	u, err := h.svc.CurrentUser(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.svc.Logout(ctx, auth.ClaimsFromContext(ctx)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *Handler) GetProfile(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := auth.CallerID(ctx)
	if err != nil {
		return err
	}
	view, err := h.svc.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := auth.CallerID(ctx)
	if err != nil {
		return err
	}
	var upd ProfileUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&upd); err != nil {
		return err
	}
	view, err := h.svc.UpdateProfile(ctx, id, upd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) AddMedicalHistory(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := auth.CallerID(ctx)
	if err != nil {
		return err
	}
	var entry MedicalHistoryEntry
	if err := c.Bind(&entry); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&entry); err != nil {
		return err
	}
	history, err := h.svc.AddMedicalHistory(ctx, id, entry)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{"medicalHistory": history})
}
