// Package oauth defines the OAuth 2.0 error response type shared by the
// authorize and token endpoints.
package oauth

import "fmt"

// Standard OAuth 2.0 error codes used by this server.
const (
	ErrInvalidRequest          = "invalid_request"
	ErrInvalidClient           = "invalid_client"
	ErrInvalidGrant            = "invalid_grant"
	ErrInvalidScope            = "invalid_scope"
	ErrUnsupportedGrantType    = "unsupported_grant_type"
	ErrUnsupportedResponseType = "unsupported_response_type"
	ErrServerError             = "server_error"
)

// Error represents an OAuth 2.0 error response, serialized as
// {"error": ..., "error_description": ...}.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func NewError(code, description string) *Error {
	return &Error{Code: code, Description: description}
}

// InvalidGrant is the generic code-exchange failure. The description is
// deliberately uniform so callers cannot distinguish missing, used, and
// expired codes.
func InvalidGrant(description string) *Error {
	return &Error{Code: ErrInvalidGrant, Description: description}
}

// InvalidClient covers both unknown clients and bad credentials, again with
// no distinction surfaced.
func InvalidClient() *Error {
	return &Error{Code: ErrInvalidClient, Description: "client authentication failed"}
}
