package profile

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wardlink/wardlink/internal/platform/auth"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/profiles/sync", h.Sync)
	api.GET("/me", h.Me)
}

// Sync refreshes the cached profile from the authenticated actor's claims.
// Clients call it once after sign-in.
func (h *Handler) Sync(c echo.Context) error {
	actor := auth.ActorFromContext(c.Request().Context())
	if actor.UID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "no authenticated actor")
	}

	p := &Profile{
		UID:         actor.UID,
		Email:       actor.Email,
		DisplayName: actor.Name,
		Role:        actor.Role,
	}
	if actor.InstitutionID != "" {
		instID, err := uuid.Parse(actor.InstitutionID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid institution id in claims")
		}
		p.InstitutionID = &instID
	}

	if err := h.repo.Upsert(c.Request().Context(), p); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Me(c echo.Context) error {
	actor := auth.ActorFromContext(c.Request().Context())
	if actor.UID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "no authenticated actor")
	}
	p, err := h.repo.GetByUID(c.Request().Context(), actor.UID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}
