package token

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/smart-auth/internal/platform/oauth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/token", h.Token)
	g.POST("/introspect", h.Introspect)
	g.POST("/revoke", h.Revoke)
}

// Token handles POST /auth/token for both supported grants.
func (h *Handler) Token(c echo.Context) error {
	switch c.FormValue("grant_type") {
	case "authorization_code":
		return h.exchangeCode(c)
	case "refresh_token":
		return h.refresh(c)
	default:
		return c.JSON(http.StatusBadRequest, oauth.NewError(oauth.ErrUnsupportedGrantType,
			"grant_type must be 'authorization_code' or 'refresh_token'"))
	}
}

func (h *Handler) exchangeCode(c echo.Context) error {
	clientID, clientSecret := extractClientCredentials(c)

	req := &Request{
		GrantType:    "authorization_code",
		Code:         c.FormValue("code"),
		RedirectURI:  c.FormValue("redirect_uri"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		CodeVerifier: c.FormValue("code_verifier"),
	}

	resp, err := h.svc.ExchangeCode(c.Request().Context(), req)
	if err != nil {
		return tokenError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) refresh(c echo.Context) error {
	clientID, clientSecret := extractClientCredentials(c)

	refreshToken := c.FormValue("refresh_token")
	if refreshToken == "" {
		return c.JSON(http.StatusBadRequest, oauth.NewError(oauth.ErrInvalidRequest,
			"refresh_token is required"))
	}

	resp, err := h.svc.Refresh(c.Request().Context(), refreshToken, clientID, clientSecret)
	if err != nil {
		return tokenError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Introspect handles POST /auth/introspect. Always 200: malformed or unknown
// tokens come back as {"active": false}.
func (h *Handler) Introspect(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Introspect(c.Request().Context(), c.FormValue("token")))
}

// Revoke handles POST /auth/revoke. Per RFC 7009 the endpoint returns 200
// whether or not the token existed.
func (h *Handler) Revoke(c echo.Context) error {
	if err := h.svc.Revoke(c.Request().Context(), c.FormValue("token")); err != nil {
		return c.JSON(http.StatusInternalServerError,
			oauth.NewError(oauth.ErrServerError, "internal server error"))
	}
	return c.NoContent(http.StatusOK)
}

// extractClientCredentials reads client authentication from HTTP Basic auth
// or the form body.
func extractClientCredentials(c echo.Context) (string, string) {
	clientID, clientSecret, ok := c.Request().BasicAuth()
	if ok && clientID != "" {
		return clientID, clientSecret
	}
	return c.FormValue("client_id"), c.FormValue("client_secret")
}

// tokenError maps service errors onto OAuth status codes: invalid_client is
// 401, other OAuth errors 400, anything unexpected a generic 500.
func tokenError(c echo.Context, err error) error {
	var oerr *oauth.Error
	if errors.As(err, &oerr) {
		status := http.StatusBadRequest
		if oerr.Code == oauth.ErrInvalidClient {
			status = http.StatusUnauthorized
		}
		return c.JSON(status, oerr)
	}
	return c.JSON(http.StatusInternalServerError,
		oauth.NewError(oauth.ErrServerError, "internal server error"))
}
