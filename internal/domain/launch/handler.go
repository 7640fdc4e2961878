package launch

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
	ttl time.Duration
}

func NewHandler(svc *Service, ttl time.Duration) *Handler {
	return &Handler{svc: svc, ttl: ttl}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/launch", h.Create)
}

type createRequest struct {
	Patient   string `json:"patient"`
	Encounter string `json:"encounter"`
	FHIRUser  string `json:"fhir_user"`
	Tenant    string `json:"tenant"`
}

type createResponse struct {
	Launch    string `json:"launch"`
	ExpiresIn int    `json:"expires_in"`
}

// Create is called by the EHR frontend when it opens an embedded app. The
// returned launch value is handed to the app and comes back on /authorize.
func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	lc, err := h.svc.Create(c.Request().Context(), req.Patient, req.Encounter, req.FHIRUser, req.Tenant)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusCreated, createResponse{
		Launch:    lc.LaunchToken,
		ExpiresIn: int(h.ttl.Seconds()),
	})
}
