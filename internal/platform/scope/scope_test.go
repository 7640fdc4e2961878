package scope

import (
	"strings"
	"testing"
)

func TestParseResource(t *testing.T) {
	s, err := ParseResource("patient/Patient.read")
	if err != nil {
		t.Fatalf("ParseResource: %v", err)
	}
	if s.Context != "patient" || s.ResourceType != "Patient" || s.Access != "read" {
		t.Errorf("unexpected parse result: %+v", s)
	}

	s, err = ParseResource("user/*.write")
	if err != nil {
		t.Fatalf("ParseResource wildcard: %v", err)
	}
	if s.ResourceType != "*" || s.Access != "write" {
		t.Errorf("unexpected wildcard parse: %+v", s)
	}

	if got := s.String(); got != "user/*.write" {
		t.Errorf("String() = %q", got)
	}
}

func TestParseResourceRejectsMalformed(t *testing.T) {
	cases := []string{
		"openid",
		"admin/Patient.read",
		"patient/Patient",
		"patient/.read",
		"patient/Patient.delete",
		"system/Observation.execute",
	}
	for _, c := range cases {
		if _, err := ParseResource(c); err == nil {
			t.Errorf("expected error for %q", c)
		}
	}
}

func TestIsValid(t *testing.T) {
	valid := []string{
		"openid", "fhirUser", "profile", "launch",
		"launch/patient", "launch/encounter", "offline_access",
		"patient/Patient.read", "system/*.*", "user/Observation.write",
	}
	for _, s := range valid {
		if !IsValid(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}

	invalid := []string{"", "launch/visit", "read", "patient/Patient.execute"}
	for _, s := range invalid {
		if IsValid(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestValidatePartitions(t *testing.T) {
	valid, invalid := Validate([]string{"openid", "bogus", "patient/Patient.read", "x/y"})
	if len(valid) != 2 || valid[0] != "openid" || valid[1] != "patient/Patient.read" {
		t.Errorf("unexpected valid set: %v", valid)
	}
	if len(invalid) != 2 || invalid[0] != "bogus" || invalid[1] != "x/y" {
		t.Errorf("unexpected invalid set: %v", invalid)
	}
}

func TestNegotiate(t *testing.T) {
	registered := "openid fhirUser launch patient/Patient.read patient/Observation.read offline_access"

	got, err := Negotiate("openid patient/Patient.read", registered)
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if got != "openid patient/Patient.read" {
		t.Errorf("negotiated = %q", got)
	}

	// Unregistered scopes are dropped, not rejected.
	got, err = Negotiate("openid patient/Patient.read patient/Patient.write", registered)
	if err != nil {
		t.Fatalf("Negotiate with unregistered: %v", err)
	}
	if strings.Contains(got, "Patient.write") {
		t.Errorf("unregistered scope survived negotiation: %q", got)
	}
}

func TestNegotiateErrors(t *testing.T) {
	if _, err := Negotiate("", "openid"); err == nil {
		t.Error("expected error for empty request")
	}
	if _, err := Negotiate("not-a-scope", "openid"); err == nil {
		t.Error("expected error for malformed scope")
	}
	if _, err := Negotiate("openid", "fhirUser"); err == nil {
		t.Error("expected error for empty intersection")
	}
}
