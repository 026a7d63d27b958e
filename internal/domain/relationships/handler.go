package relationships

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/relationships")
	g.POST("/doctor-patient", h.Connect)
	g.DELETE("/doctor-patient", h.Disconnect)
	g.GET("/doctor/:id/patients", h.PatientsOf)
	g.GET("/patient/:id/doctors", h.DoctorsOf)
}

func caller(c echo.Context) (Caller, error) {
	ctx := c.Request().Context()
	id, err := auth.CallerID(ctx)
	if err != nil {
		return Caller{}, err
	}
	return Caller{UserID: id, Role: auth.RoleFromContext(ctx)}, nil
}

func bindLink(c echo.Context) (Link, error) {
	var link Link
	if err := c.Bind(&link); err != nil {
		return Link{}, echo.NewHTTPError(http.StatusBadRequest, "doctorId and patientId must be valid ids")
	}
	if err := c.Validate(&link); err != nil {
		return Link{}, err
	}
	return link, nil
}

func (h *Handler) Connect(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	link, err := bindLink(c)
	if err != nil {
		return err
	}
	if err := h.svc.Connect(c.Request().Context(), who, link); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]string{"message": "Relationship created successfully"})
}

func (h *Handler) Disconnect(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	link, err := bindLink(c)
	if err != nil {
		return err
	}
	if err := h.svc.Disconnect(c.Request().Context(), who, link); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Relationship removed successfully"})
}

func (h *Handler) PatientsOf(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	patients, err := h.svc.PatientsOf(c.Request().Context(), who, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, patients)
}

func (h *Handler) DoctorsOf(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	doctors, err := h.svc.DoctorsOf(c.Request().Context(), who, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doctors)
}
