package chat

import (
	"context"
	"net/http"

	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/api"
	"github.com/pkg/errors"
)

// Getter is the read side of the backend client.
type Getter interface {
	Get(ctx context.Context, path string, out any) error
}

// application is the backend's view of an in-progress pre-qualification
type application struct {
	ID                 string         `json:"id"`
	CurrentStep        int            `json:"current_step"`
	CompanyName        string         `json:"company_name"`
	RegistrationNumber string         `json:"registration_number"`
	LegalStructure     LegalStructure `json:"legal_structure"`
}

// SyncApplication pulls the user's saved application and moves the
// transcript to its step. A user without one (404) is left untouched.
func (s *Store) SyncApplication(ctx context.Context, backend Getter) error {
	var app application
	if err := backend.Get(ctx, api.EndpointPrequalification, &app); err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil
		}
		return errors.Wrap(err, "fetching application")
	}
	if app.ID == "" {
		return nil
	}

	s.SetApplicationID(app.ID)
	s.SetCurrentStep(app.CurrentStep)
	if app.CompanyName != "" || app.LegalStructure != "" || app.RegistrationNumber != "" {
		s.SetConversationData(CompanyData{
			CompanyName:        app.CompanyName,
			RegistrationNumber: app.RegistrationNumber,
			LegalEntityType:    app.LegalStructure,
		})
	}
	s.logger.Info().Str("application_id", app.ID).Int("step", app.CurrentStep).Msg("application restored")
	return nil
}
