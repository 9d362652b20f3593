package institution

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wardlink/wardlink/internal/platform/auth"
	"github.com/wardlink/wardlink/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/institutions")
	g.GET("", h.List)
	g.GET("/:id", h.Get)

	admin := g.Group("", auth.RequireRole(auth.RoleSuperAdmin))
	admin.POST("", h.Create)
	admin.PUT("/:id", h.Update)
	admin.POST("/:id/credentials", h.IssueCredential)
	admin.DELETE("/:id", h.Delete)
}

func (h *Handler) Create(c echo.Context) error {
	var inst Institution
	if err := c.Bind(&inst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	if err := h.svc.Create(c.Request().Context(), &inst, actor); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, inst)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	inst, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inst)
}

func (h *Handler) List(c echo.Context) error {
	params := pagination.FromContext(c)
	institutions, total, err := h.svc.List(c.Request().Context(), params.Limit, params.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(institutions, total, params.Limit, params.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var inst Institution
	if err := c.Bind(&inst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inst.ID = id
	if err := h.svc.Update(c.Request().Context(), &inst); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inst)
}

func (h *Handler) IssueCredential(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	inst, err := h.svc.IssueCredential(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inst)
}

// Delete runs the cascade and always returns the per-step report. A partial
// failure answers 500 with the same report so the caller can retry the run.
func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	report, err := h.svc.Delete(c.Request().Context(), id)
	if err != nil {
		var partial *PartialFailureError
		if errors.As(err, &partial) {
			return c.JSON(http.StatusInternalServerError, map[string]interface{}{
				"ok":     false,
				"report": partial.Report,
			})
		}
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":     true,
		"report": report,
	})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
