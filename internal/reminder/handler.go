package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-confero/internal/common"
	"github.com/noah-isme/backend-confero/internal/events"
	"github.com/noah-isme/backend-confero/internal/obs"
	"github.com/noah-isme/backend-confero/internal/registration"
	"github.com/noah-isme/backend-confero/internal/vat"
)

// RegistrationReader loads the registration a reminder refers to and
// records delivery so the sweep does not enqueue it again.
type RegistrationReader interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (registration.Registration, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) error
}

// Handler consumes payment reminder tasks.
type Handler struct {
	Registrations RegistrationReader
	Email         common.EmailSender
	Events        *events.Bus
	Logger        zerolog.Logger
}

// HandlePaymentReminder sends the reminder email unless the
// registration was cancelled in the meantime. A missing registration
// drops the task without retrying.
func (h *Handler) HandlePaymentReminder(ctx context.Context, task *asynq.Task) error {
	var payload PaymentReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payment reminder payload: %w", asynq.SkipRetry)
	}
	reg, err := h.Registrations.Get(ctx, payload.TenantID, payload.RegistrationID)
	if errors.Is(err, registration.ErrNotFound) {
		obs.IncReminderDispatch("dropped")
		return nil
	}
	if err != nil {
		return err
	}
	if reg.Status != registration.StatusConfirmed {
		h.Logger.Debug().
			Str("registration_id", reg.ID.String()).
			Str("status", reg.Status).
			Msg("skipping reminder for non-confirmed registration")
		obs.IncReminderDispatch("skipped")
		return nil
	}
	subject := "Payment reminder for " + reg.FeeName
	body := fmt.Sprintf("<p>Hi %s,</p><p>your registration fee of %s %s is still awaiting payment.</p>",
		reg.AttendeeName, vat.FormatAmount(reg.PriceGross), reg.Currency)
	if err := h.Email.Send(reg.AttendeeEmail, subject, body); err != nil {
		return fmt.Errorf("send payment reminder: %w", err)
	}
	if err := h.Registrations.MarkReminderSent(ctx, reg.ID); err != nil {
		h.Logger.Warn().Err(err).
			Str("registration_id", reg.ID.String()).
			Msg("record reminder delivery")
	}
	obs.IncReminderDispatch("sent")
	if h.Events != nil {
		_, _ = h.Events.Emit(ctx, events.TopicReminderSent, reg.ID, map[string]any{
			"registrationId": reg.ID.String(),
			"attendeeEmail":  reg.AttendeeEmail,
		})
	}
	return nil
}

// Mux returns an asynq mux with the reminder handlers registered.
func (h *Handler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePaymentReminder, h.HandlePaymentReminder)
	return mux
}
