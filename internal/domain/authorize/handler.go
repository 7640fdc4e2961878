package authorize

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/ehr/smart-auth/internal/platform/oauth"
)

// UserIDHeader carries the authenticated user asserted by the upstream
// identity layer. End-user login happens outside this service.
const UserIDHeader = "X-User-ID"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/authorize", h.Authorize)
}

// Authorize handles GET /auth/authorize. Failures raised before the client
// and redirect URI are validated come back as JSON; only after that does the
// handler deliver errors (and the code) via redirect.
func (h *Handler) Authorize(c echo.Context) error {
	req := &Request{
		ResponseType:        c.QueryParam("response_type"),
		ClientID:            c.QueryParam("client_id"),
		RedirectURI:         c.QueryParam("redirect_uri"),
		Scope:               c.QueryParam("scope"),
		State:               c.QueryParam("state"),
		Launch:              c.QueryParam("launch"),
		CodeChallenge:       c.QueryParam("code_challenge"),
		CodeChallengeMethod: c.QueryParam("code_challenge_method"),
		UserID:              c.Request().Header.Get(UserIDHeader),
	}

	if req.ResponseType == "" || req.ClientID == "" || req.RedirectURI == "" || req.Scope == "" {
		return c.JSON(http.StatusBadRequest,
			oauth.NewError(oauth.ErrInvalidRequest, "missing required parameters"))
	}

	grant, err := h.svc.Authorize(c.Request().Context(), req)
	if err != nil {
		var oauthErr *oauth.Error
		if !errors.As(err, &oauthErr) {
			return c.JSON(http.StatusInternalServerError,
				oauth.NewError(oauth.ErrServerError, "internal server error"))
		}
		if NoRedirect(err) {
			return c.JSON(http.StatusBadRequest, oauthErr)
		}
		return h.redirectWithError(c, req.RedirectURI, oauthErr, req.State)
	}

	redirectURL, parseErr := url.Parse(req.RedirectURI)
	if parseErr != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "invalid redirect URI")
	}

	q := redirectURL.Query()
	q.Set("code", grant.Code)
	if grant.State != "" {
		q.Set("state", grant.State)
	}
	redirectURL.RawQuery = q.Encode()

	return c.Redirect(http.StatusFound, redirectURL.String())
}

// redirectWithError sends an OAuth2 error redirect. Only called once the
// redirect URI has passed registration checks; an unparseable URI still falls
// back to a JSON body.
func (h *Handler) redirectWithError(c echo.Context, redirectURI string, oerr *oauth.Error, state string) error {
	redirectURL, parseErr := url.Parse(redirectURI)
	if parseErr != nil {
		return c.JSON(http.StatusBadRequest, oerr)
	}

	q := redirectURL.Query()
	q.Set("error", oerr.Code)
	q.Set("error_description", oerr.Description)
	if state != "" {
		q.Set("state", state)
	}
	redirectURL.RawQuery = q.Encode()

	return c.Redirect(http.StatusFound, redirectURL.String())
}
