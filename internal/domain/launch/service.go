package launch

import (
	"context"
	"fmt"
	"time"

	"github.com/ehr/smart-auth/internal/platform/secrets"
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create mints a launch token for the given EHR session state. At least one
// of patient or fhirUser must be present, otherwise the launch carries no
// context worth binding.
func (s *Service) Create(ctx context.Context, patient, encounter, fhirUser, tenant string) (*LaunchContext, error) {
	if patient == "" && fhirUser == "" {
		return nil, fmt.Errorf("launch context requires a patient or a fhir_user")
	}

	token, err := secrets.RandomHex(32)
	if err != nil {
		return nil, fmt.Errorf("generate launch token: %w", err)
	}

	lc := &LaunchContext{
		LaunchToken: token,
		Patient:     patient,
		Encounter:   encounter,
		FHIRUser:    fhirUser,
		Tenant:      tenant,
		CreatedAt:   time.Now(),
	}
	if err := s.store.Save(ctx, token, lc); err != nil {
		return nil, err
	}
	return lc, nil
}

// Consume resolves and burns a launch token. Missing and expired tokens both
// return (nil, nil).
func (s *Service) Consume(ctx context.Context, token string) (*LaunchContext, error) {
	return s.store.Consume(ctx, token)
}

// Cleanup deletes expired launch contexts. Expired rows are skipped by Get
// and Consume but stay on disk until this runs; the cleanup subcommand calls
// it on a schedule.
func (s *Service) Cleanup(ctx context.Context) error {
	return s.store.Cleanup(ctx)
}
