// Package reminder schedules and delivers payment reminder emails for
// registrations that have not been paid yet.
package reminder

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-confero/internal/registration"
)

// TypePaymentReminder is the asynq task type for payment reminders.
const TypePaymentReminder = "reminder:payment"

// PaymentReminderPayload is the serialized task body.
type PaymentReminderPayload struct {
	RegistrationID uuid.UUID `json:"registrationId"`
	TenantID       uuid.UUID `json:"tenantId"`
}

// Scheduler enqueues reminder tasks. It satisfies
// registration.ReminderScheduler.
type Scheduler struct {
	Client *asynq.Client
	Delay  time.Duration
	Queue  string
}

// SchedulePaymentReminder enqueues a reminder due after the configured
// delay. A zero delay falls back to 24 hours.
func (s *Scheduler) SchedulePaymentReminder(ctx context.Context, reg registration.Registration) error {
	delay := s.Delay
	if delay <= 0 {
		delay = 24 * time.Hour
	}
	return s.enqueue(ctx, reg, delay)
}

// EnqueueNow puts the reminder on the queue for immediate processing.
// Used by the sweep when the original enqueue was lost.
func (s *Scheduler) EnqueueNow(ctx context.Context, reg registration.Registration) error {
	return s.enqueue(ctx, reg, 0)
}

func (s *Scheduler) enqueue(ctx context.Context, reg registration.Registration, delay time.Duration) error {
	if s == nil || s.Client == nil {
		return nil
	}
	payload, err := json.Marshal(PaymentReminderPayload{
		RegistrationID: reg.ID,
		TenantID:       reg.TenantID,
	})
	if err != nil {
		return err
	}
	queue := s.Queue
	if queue == "" {
		queue = "reminders"
	}
	opts := []asynq.Option{
		asynq.Queue(queue),
		asynq.MaxRetry(3),
		asynq.TaskID("payment-reminder:" + reg.ID.String()),
	}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}
	task := asynq.NewTask(TypePaymentReminder, payload)
	_, err = s.Client.EnqueueContext(ctx, task, opts...)
	return err
}
