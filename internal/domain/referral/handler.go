package referral

import (
	"errors"
	"net/http"
	"time"

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
	g := api.Group("/referrals", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor, auth.RoleNurse))
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/unread-count", h.UnreadCount)
	g.GET("/:id", h.Get)
	g.POST("/:id/accept", h.Accept)
	g.POST("/:id/reject", h.Reject)
	g.POST("/:id/status", h.UpdateStatus)
	g.POST("/:id/read", h.MarkRead)
}

// CreateRequest is the payload for creating a referral.
type CreateRequest struct {
	FromInstitutionID    uuid.UUID  `json:"fromInstitutionId"`
	FromInstitutionName  string     `json:"fromInstitutionName"`
	FromUnit             string     `json:"fromUnit"`
	ToInstitutionID      uuid.UUID  `json:"toInstitutionId"`
	ToInstitutionName    string     `json:"toInstitutionName"`
	ToUnit               string     `json:"toUnit"`
	PatientName          string     `json:"patientName"`
	PatientAge           int        `json:"patientAge"`
	PatientAgeUnit       string     `json:"patientAgeUnit"`
	PatientGender        string     `json:"patientGender"`
	PatientAdmissionDate *time.Time `json:"patientAdmissionDate"`
	Priority             Priority   `json:"priority"`
	ReferralDate         time.Time  `json:"referralDate"`
	Details              Details    `json:"referralDetails"`
	ReferralLetter       *string    `json:"referralLetter"`
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	r := &Referral{
		FromInstitutionID:    req.FromInstitutionID,
		FromInstitutionName:  req.FromInstitutionName,
		FromUnit:             req.FromUnit,
		ToInstitutionID:      req.ToInstitutionID,
		ToInstitutionName:    req.ToInstitutionName,
		ToUnit:               req.ToUnit,
		PatientName:          req.PatientName,
		PatientAge:           req.PatientAge,
		PatientAgeUnit:       req.PatientAgeUnit,
		PatientGender:        req.PatientGender,
		PatientAdmissionDate: req.PatientAdmissionDate,
		Priority:             req.Priority,
		ReferralDate:         req.ReferralDate,
		Details:              req.Details,
		ReferralLetter:       req.ReferralLetter,
	}

	actor := auth.ActorFromContext(c.Request().Context())
	if err := h.svc.Create(c.Request().Context(), r, actor); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

// List returns the referrals for one side of an institution's view:
// direction=sent for outgoing, direction=received for incoming.
func (h *Handler) List(c echo.Context) error {
	institutionID, err := uuid.Parse(c.QueryParam("institution_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "institution_id is required")
	}

	ctx := c.Request().Context()
	switch c.QueryParam("direction") {
	case "sent":
		referrals, err := h.svc.ListBySender(ctx, institutionID)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, referrals)
	case "received":
		referrals, err := h.svc.ListByRecipient(ctx, institutionID)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, referrals)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "direction must be \"sent\" or \"received\"")
	}
}

func (h *Handler) UnreadCount(c echo.Context) error {
	institutionID, err := uuid.Parse(c.QueryParam("institution_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "institution_id is required")
	}
	count, err := h.svc.CountUnread(c.Request().Context(), institutionID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"unread": count})
}

func (h *Handler) Accept(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor := auth.ActorFromContext(c.Request().Context())
	r, err := h.svc.Accept(c.Request().Context(), id, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) Reject(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	r, err := h.svc.Reject(c.Request().Context(), id, actor, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Status     Status      `json:"status"`
		Condition  string      `json:"condition"`
		Notes      string      `json:"notes"`
		VitalSigns *VitalSigns `json:"vitalSigns"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	r, err := h.svc.UpdateStatus(c.Request().Context(), id, actor, req.Status, req.Condition, req.Notes, req.VitalSigns)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

// MarkRead always answers 204: a failed badge update is logged server-side
// but must not block rendering.
func (h *Handler) MarkRead(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor := auth.ActorFromContext(c.Request().Context())
	h.svc.MarkRead(c.Request().Context(), id, actor)
	return c.NoContent(http.StatusNoContent)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnauthorized):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
