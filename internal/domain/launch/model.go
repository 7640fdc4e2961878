// Package launch stores EHR launch contexts: when the EHR opens an embedded
// app it posts the current patient/encounter here and passes the returned
// launch token to the app, which echoes it on /auth/authorize. Tokens are
// single-use and expire on the authorization-code TTL.
package launch

import "time"

// LaunchContext binds a launch token to the EHR session state it was created
// from. Stored as JSONB; expiry is enforced by the database on read.
type LaunchContext struct {
	LaunchToken string    `json:"launch_token"`
	Patient     string    `json:"patient,omitempty"`
	Encounter   string    `json:"encounter,omitempty"`
	FHIRUser    string    `json:"fhir_user,omitempty"`
	Tenant      string    `json:"tenant,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
