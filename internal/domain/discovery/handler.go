// Package discovery serves the SMART on FHIR well-known configuration and
// the JWKS document that resource servers use to verify access tokens.
package discovery

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/smart-auth/internal/platform/keys"
)

// Configuration is the SMART App Launch well-known document (HL7).
type Configuration struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	IntrospectionEndpoint         string   `json:"introspection_endpoint"`
	RevocationEndpoint            string   `json:"revocation_endpoint"`
	RegistrationEndpoint          string   `json:"registration_endpoint"`
	JWKSURI                       string   `json:"jwks_uri"`
	TokenEndpointAuthMethods      []string `json:"token_endpoint_auth_methods_supported"`
	GrantTypes                    []string `json:"grant_types_supported"`
	Scopes                        []string `json:"scopes_supported"`
	ResponseTypes                 []string `json:"response_types_supported"`
	Capabilities                  []string `json:"capabilities"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
}

type Handler struct {
	issuer string
	keys   *keys.Manager
}

func NewHandler(issuer string, km *keys.Manager) *Handler {
	return &Handler{issuer: issuer, keys: km}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/.well-known/smart-configuration", h.SMARTConfiguration)
	e.GET("/jwks", h.JWKS)
}

func (h *Handler) SMARTConfiguration(c echo.Context) error {
	cfg := Configuration{
		Issuer:                   h.issuer,
		AuthorizationEndpoint:    h.issuer + "/auth/authorize",
		TokenEndpoint:            h.issuer + "/auth/token",
		IntrospectionEndpoint:    h.issuer + "/auth/introspect",
		RevocationEndpoint:       h.issuer + "/auth/revoke",
		RegistrationEndpoint:     h.issuer + "/api/v1/clients",
		JWKSURI:                  h.issuer + "/jwks",
		TokenEndpointAuthMethods: []string{"client_secret_basic", "client_secret_post", "none"},
		GrantTypes:               []string{"authorization_code", "refresh_token"},
		Scopes: []string{
			"openid", "profile", "fhirUser", "offline_access",
			"launch", "launch/patient", "launch/encounter",
			"patient/*.read", "patient/*.write",
			"user/*.read", "user/*.write",
			"system/*.read",
		},
		ResponseTypes: []string{"code"},
		Capabilities: []string{
			"launch-ehr", "launch-standalone",
			"client-public", "client-confidential-symmetric",
			"context-ehr-patient", "context-ehr-encounter",
			"context-standalone-patient",
			"sso-openid-connect",
		},
		CodeChallengeMethodsSupported: []string{"S256"},
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) JWKS(c echo.Context) error {
	return c.JSON(http.StatusOK, h.keys.JWKS())
}
