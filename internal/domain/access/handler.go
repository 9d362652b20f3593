package access

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wardlink/wardlink/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	users := api.Group("/users", auth.RequireRole(auth.RoleAdmin))
	users.POST("", h.Provision)
	users.GET("", h.ListByInstitution)
	users.GET("/:uid", h.Get)
	users.POST("/:uid/enabled", h.SetEnabled)
	users.DELETE("/:uid", h.Delete)

	resets := api.Group("/password-resets")
	resets.POST("", h.RequestReset)
	resets.GET("", h.ListResets, auth.RequireRole(auth.RoleSuperAdmin))
	resets.POST("/:id/approve", h.ApproveReset, auth.RequireRole(auth.RoleSuperAdmin))
	resets.POST("/:id/reject", h.RejectReset, auth.RequireRole(auth.RoleSuperAdmin))
}

type ProvisionRequest struct {
	Email             string    `json:"email"`
	DisplayName       string    `json:"displayName"`
	Role              string    `json:"role"`
	InstitutionID     uuid.UUID `json:"institutionId"`
	InstitutionName   string    `json:"institutionName"`
	AllowedDashboards []string  `json:"allowedDashboards"`
}

func (h *Handler) Provision(c echo.Context) error {
	var req ProvisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	u := &ApprovedUser{
		Email:             req.Email,
		DisplayName:       req.DisplayName,
		Role:              req.Role,
		InstitutionID:     req.InstitutionID,
		InstitutionName:   req.InstitutionName,
		AllowedDashboards: req.AllowedDashboards,
	}
	actor := auth.ActorFromContext(c.Request().Context())
	if err := h.svc.ProvisionUser(c.Request().Context(), u, actor); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) Get(c echo.Context) error {
	u, err := h.svc.GetUser(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ListByInstitution(c echo.Context) error {
	institutionID, err := uuid.Parse(c.QueryParam("institution_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "institution_id is required")
	}
	users, err := h.svc.ListByInstitution(c.Request().Context(), institutionID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *Handler) SetEnabled(c echo.Context) error {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetEnabled(c.Request().Context(), c.Param("uid"), req.Enabled); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.DeleteUser(c.Request().Context(), c.Param("uid")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RequestReset is deliberately unauthenticated at the role level: the person
// asking has lost their password and can only present their user code.
func (h *Handler) RequestReset(c echo.Context) error {
	var req struct {
		UserCode string `json:"userCode"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	reset, err := h.svc.RequestPasswordReset(c.Request().Context(), req.UserCode)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, reset)
}

func (h *Handler) ListResets(c echo.Context) error {
	resets, err := h.svc.ListResetRequests(c.Request().Context(), ResetStatus(c.QueryParam("status")))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resets)
}

func (h *Handler) ApproveReset(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor := auth.ActorFromContext(c.Request().Context())
	req, err := h.svc.ApproveReset(c.Request().Context(), id, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) RejectReset(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor := auth.ActorFromContext(c.Request().Context())
	req, err := h.svc.RejectReset(c.Request().Context(), id, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, req)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnauthorized):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrDuplicatePendingRequest), errors.Is(err, ErrAlreadyResolved):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
