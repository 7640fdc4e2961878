// Package scope implements the SMART on FHIR scope grammar used by the
// authorization server. Validation is purely syntactic: whether the named
// resource type exists is a question for the FHIR layer, not for token
// issuance.
package scope

import (
	"fmt"
	"strings"
)

// Scope represents a parsed SMART resource scope.
// Format: <context>/<resourceType>.<access>
// Examples: patient/Patient.read, user/Observation.write, patient/*.read
type Scope struct {
	Context      string // "patient", "user", or "system"
	ResourceType string // e.g. "Patient", "Observation", "*"
	Access       string // "read", "write", or "*"
}

func (s Scope) String() string {
	return s.Context + "/" + s.ResourceType + "." + s.Access
}

// standaloneScopes is the fixed set of recognized non-resource SMART scopes.
var standaloneScopes = map[string]bool{
	"openid":           true,
	"fhirUser":         true,
	"profile":          true,
	"launch":           true,
	"launch/patient":   true,
	"launch/encounter": true,
	"offline_access":   true,
}

// Parse splits a scope string on whitespace into individual scope tokens.
func Parse(s string) []string {
	return strings.Fields(s)
}

// ParseResource parses a single SMART resource scope into its components.
// Returns an error for tokens that are not resource-level scopes
// (e.g. "openid", "launch").
func ParseResource(token string) (*Scope, error) {
	slashIdx := strings.Index(token, "/")
	if slashIdx < 0 {
		return nil, fmt.Errorf("not a resource scope: %s", token)
	}

	ctx := token[:slashIdx]
	remainder := token[slashIdx+1:]

	if ctx != "patient" && ctx != "user" && ctx != "system" {
		return nil, fmt.Errorf("invalid scope context %q: must be patient, user, or system", ctx)
	}

	dotIdx := strings.LastIndex(remainder, ".")
	if dotIdx < 0 {
		return nil, fmt.Errorf("invalid scope format %q: missing access level", token)
	}

	resourceType := remainder[:dotIdx]
	access := remainder[dotIdx+1:]

	if resourceType == "" {
		return nil, fmt.Errorf("invalid scope %q: empty resource type", token)
	}
	if access != "read" && access != "write" && access != "*" {
		return nil, fmt.Errorf("invalid access level %q: must be read, write, or *", access)
	}

	return &Scope{
		Context:      ctx,
		ResourceType: resourceType,
		Access:       access,
	}, nil
}

// IsValid reports whether a single scope token is either a recognized
// standalone scope or a well-formed resource scope.
func IsValid(token string) bool {
	if standaloneScopes[token] {
		return true
	}
	_, err := ParseResource(token)
	return err == nil
}

// Validate partitions scope tokens into valid and invalid lists.
func Validate(tokens []string) (valid, invalid []string) {
	for _, tok := range tokens {
		if IsValid(tok) {
			valid = append(valid, tok)
		} else {
			invalid = append(invalid, tok)
		}
	}
	return valid, invalid
}

// Negotiate returns the intersection of requested and registered scopes.
// Every requested token must be syntactically valid; requested tokens the
// client is not registered for are silently dropped. An empty intersection
// is an error.
func Negotiate(requested, registered string) (string, error) {
	requestedScopes := Parse(requested)
	if len(requestedScopes) == 0 {
		return "", fmt.Errorf("no scopes requested")
	}

	for _, tok := range requestedScopes {
		if !IsValid(tok) {
			return "", fmt.Errorf("invalid scope: %s", tok)
		}
	}

	allowed := make(map[string]bool)
	for _, tok := range Parse(registered) {
		allowed[tok] = true
	}

	var negotiated []string
	for _, tok := range requestedScopes {
		if allowed[tok] {
			negotiated = append(negotiated, tok)
		}
	}

	if len(negotiated) == 0 {
		return "", fmt.Errorf("no requested scopes are registered for this client")
	}

	return strings.Join(negotiated, " "), nil
}
