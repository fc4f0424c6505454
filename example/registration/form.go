package main

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tbxark/formfiller/agent"
	"github.com/tbxark/formfiller/types"
)

var registrationFields = []types.FieldSpec{
	{FieldID: "full_name", Label: "Full name", Required: true},
	{FieldID: "email", Label: "Email", Type: types.FieldEmail, Required: true},
	{FieldID: "phone", Label: "Phone number", Type: types.FieldPhone},
	{FieldID: "arrival", Label: "Arrival date", Type: types.FieldDate, Required: true},
	{FieldID: "ticket", Label: "Ticket type", Type: types.FieldSelect, Required: true, Options: []string{"Standard", "VIP", "Student"}},
	{FieldID: "workshops", Label: "Workshops", Type: types.FieldCheckbox, Options: []string{"Go", "Kubernetes", "Observability"}},
}

var _ agent.Submitter = (*registrationDesk)(nil)

// registrationDesk files each completed registration and logs it.
type registrationDesk struct {
	files  *agent.FileSubmitter
	logger zerolog.Logger
}

func (d *registrationDesk) Submit(ctx context.Context, sessionID string, values map[string]string) error {
	if err := d.files.Submit(ctx, sessionID, values); err != nil {
		return err
	}
	event := d.logger.Info().Str("session_id", sessionID)
	for k, v := range values {
		event = event.Str(k, v)
	}
	event.Msg("registration submitted")
	return nil
}
