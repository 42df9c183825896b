package reminder_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-confero/internal/common"
	"github.com/noah-isme/backend-confero/internal/registration"
	"github.com/noah-isme/backend-confero/internal/reminder"
)

type stubReader struct {
	reg    registration.Registration
	err    error
	marked []uuid.UUID
}

func (s *stubReader) Get(_ context.Context, tenantID, id uuid.UUID) (registration.Registration, error) {
	if s.err != nil {
		return registration.Registration{}, s.err
	}
	if s.reg.ID != id || s.reg.TenantID != tenantID {
		return registration.Registration{}, registration.ErrNotFound
	}
	return s.reg, nil
}

func (s *stubReader) MarkReminderSent(_ context.Context, id uuid.UUID) error {
	s.marked = append(s.marked, id)
	return nil
}

func paymentTask(t *testing.T, reg registration.Registration) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(reminder.PaymentReminderPayload{
		RegistrationID: reg.ID,
		TenantID:       reg.TenantID,
	})
	require.NoError(t, err)
	return asynq.NewTask(reminder.TypePaymentReminder, payload)
}

func confirmedRegistration() registration.Registration {
	return registration.Registration{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		ConferenceID:  uuid.New(),
		AttendeeName:  "Ada",
		AttendeeEmail: "ada@example.com",
		FeeName:       "early_bird",
		Currency:      "EUR",
		PriceGross:    decimal.RequireFromString("362.50"),
		Status:        registration.StatusConfirmed,
	}
}

func TestPaymentReminderSendsEmail(t *testing.T) {
	reg := confirmedRegistration()
	outbox := &common.InMemoryEmail{}
	reader := &stubReader{reg: reg}
	h := &reminder.Handler{Registrations: reader, Email: outbox}

	require.NoError(t, h.HandlePaymentReminder(context.Background(), paymentTask(t, reg)))
	require.Len(t, outbox.Outbox, 1)
	require.Equal(t, "ada@example.com", outbox.Outbox[0].To)
	require.Contains(t, outbox.Outbox[0].HTML, "362.50 EUR")
	require.Equal(t, []uuid.UUID{reg.ID}, reader.marked)
}

func TestPaymentReminderSkipsCancelled(t *testing.T) {
	reg := confirmedRegistration()
	reg.Status = registration.StatusCancelled
	outbox := &common.InMemoryEmail{}
	h := &reminder.Handler{Registrations: &stubReader{reg: reg}, Email: outbox}

	require.NoError(t, h.HandlePaymentReminder(context.Background(), paymentTask(t, reg)))
	require.Empty(t, outbox.Outbox)
}

func TestPaymentReminderDropsMissingRegistration(t *testing.T) {
	outbox := &common.InMemoryEmail{}
	h := &reminder.Handler{Registrations: &stubReader{}, Email: outbox}

	task := paymentTask(t, confirmedRegistration())
	require.NoError(t, h.HandlePaymentReminder(context.Background(), task))
	require.Empty(t, outbox.Outbox)
}

func TestPaymentReminderRejectsBadPayload(t *testing.T) {
	h := &reminder.Handler{Registrations: &stubReader{}, Email: common.NopEmailSender{}}

	task := asynq.NewTask(reminder.TypePaymentReminder, []byte("{broken"))
	err := h.HandlePaymentReminder(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
