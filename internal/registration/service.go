package registration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-confero/internal/conference"
	"github.com/noah-isme/backend-confero/internal/events"
	"github.com/noah-isme/backend-confero/internal/feetype"
	"github.com/noah-isme/backend-confero/internal/obs"
	"github.com/noah-isme/backend-confero/internal/pricing"
	"github.com/noah-isme/backend-confero/internal/vat"
)

// ErrFeeUnavailable is returned when the chosen fee type exists but is
// not purchasable right now (inactive, outside its window).
var ErrFeeUnavailable = errors.New("registration: fee not currently available")

// ErrUnknownCategory is returned when the attendee category has no
// price on the conference schedule.
var ErrUnknownCategory = errors.New("registration: no price for attendee category")

// Store is the registration persistence surface used by the service.
type Store interface {
	Insert(ctx context.Context, reg Registration) (Registration, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (Registration, error)
	ListByConference(ctx context.Context, tenantID, conferenceID uuid.UUID, limit, offset int32) ([]Registration, error)
	MarkCancelled(ctx context.Context, tenantID, id uuid.UUID) (Registration, error)
}

// FeeTypeStore is the fee type slice needed while registering. Get is
// conference-pinned so a submitted fee type id can never resolve to
// another conference's price.
type FeeTypeStore interface {
	Get(ctx context.Context, conferenceID, id uuid.UUID) (pricing.FeeType, error)
	ClaimSlot(ctx context.Context, id uuid.UUID) error
	ReleaseSlot(ctx context.Context, id uuid.UUID) error
}

// ConferenceStore loads pricing configuration during registration.
type ConferenceStore interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (conference.Conference, error)
}

// Stores bundles the transaction-bound repositories for one unit of work.
type Stores struct {
	Registrations Store
	FeeTypes      FeeTypeStore
	Conferences   ConferenceStore
}

// TxRunner executes fn inside a single database transaction. The
// Stores passed to fn share that transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(Stores) error) error
}

// ReminderScheduler enqueues a payment reminder for a new registration.
type ReminderScheduler interface {
	SchedulePaymentReminder(ctx context.Context, reg Registration) error
}

// Input describes one registration submit.
type Input struct {
	FeeTypeID     *uuid.UUID
	Category      string
	AttendeeName  string
	AttendeeEmail string
}

// Service runs the registration workflow: resolve the fee, claim the
// slot and snapshot the price in one transaction.
type Service struct {
	Tx        TxRunner
	Events    *events.Bus
	Reminders ReminderScheduler
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Register creates a registration for a conference. Fee resolution and
// the capacity claim happen in the same transaction as the insert, so
// a claimed slot is never left without its registration row.
func (s *Service) Register(ctx context.Context, tenantID, conferenceID uuid.UUID, in Input) (Registration, error) {
	if s == nil || s.Tx == nil {
		return Registration{}, errors.New("registration service not configured")
	}
	if in.Category == "" {
		in.Category = CategoryParticipant
	}
	var created Registration
	err := s.Tx.WithinTx(ctx, func(st Stores) error {
		conf, err := st.Conferences.Get(ctx, tenantID, conferenceID)
		if err != nil {
			return err
		}
		reg := Registration{
			TenantID:      tenantID,
			ConferenceID:  conferenceID,
			Category:      in.Category,
			AttendeeName:  in.AttendeeName,
			AttendeeEmail: in.AttendeeEmail,
			Currency:      conf.Pricing.Currency,
		}
		if in.FeeTypeID != nil {
			if err := s.applyFeeType(ctx, st, &reg, *in.FeeTypeID); err != nil {
				return err
			}
		} else {
			if err := s.applyTier(&reg, conf); err != nil {
				return err
			}
		}
		created, err = st.Registrations.Insert(ctx, reg)
		return err
	})
	if err != nil {
		obs.IncRegistration(registerOutcome(err))
		return Registration{}, err
	}
	obs.IncRegistration("created")
	s.afterRegister(ctx, created)
	return created, nil
}

func registerOutcome(err error) string {
	switch {
	case errors.Is(err, feetype.ErrCapacityExceeded):
		return "sold_out"
	case errors.Is(err, pricing.ErrNoActiveTier), errors.Is(err, ErrFeeUnavailable):
		return "closed"
	default:
		return "error"
	}
}

func (s *Service) applyFeeType(ctx context.Context, st Stores, reg *Registration, feeTypeID uuid.UUID) error {
	ft, err := st.FeeTypes.Get(ctx, reg.ConferenceID, feeTypeID)
	if err != nil {
		return err
	}
	switch ft.StatusAt(s.now()) {
	case pricing.StatusActive, pricing.StatusSoldOut:
		// sold_out is re-checked by the atomic claim below; a slot may
		// have been released since the status snapshot.
	default:
		return ErrFeeUnavailable
	}
	if err := st.FeeTypes.ClaimSlot(ctx, feeTypeID); err != nil {
		if errors.Is(err, feetype.ErrCapacityExceeded) {
			obs.IncFeeClaim("sold_out")
		}
		return err
	}
	obs.IncFeeClaim("claimed")
	reg.FeeTypeID = &ft.ID
	reg.FeeName = ft.Name
	reg.PriceNet = ft.PriceNet
	reg.VATPercentage = ft.VATPercentage
	reg.PriceGross = ft.PriceGross
	return nil
}

func (s *Service) applyTier(reg *Registration, conf conference.Conference) error {
	quote, err := pricing.ResolveActiveTier(conf.Pricing.Schedule, s.now(), conf.StartsAt)
	if err != nil {
		return err
	}
	var amount decimal.Decimal
	switch reg.Category {
	case CategoryParticipant:
		amount = quote.Amount
		reg.Tier = &quote.Tier
		reg.FeeName = string(quote.Tier)
	case CategoryStudent:
		if quote.StudentAmount == nil {
			return ErrUnknownCategory
		}
		amount = *quote.StudentAmount
		reg.Tier = &quote.StudentTier
		reg.FeeName = string(quote.StudentTier)
	case CategoryAccompanying:
		if conf.Pricing.Schedule.AccompanyingPerson == nil {
			return ErrUnknownCategory
		}
		amount = *conf.Pricing.Schedule.AccompanyingPerson
		reg.FeeName = CategoryAccompanying
	default:
		return ErrUnknownCategory
	}
	breakdown, err := vat.Compute(amount, conf.Pricing.VATRate(), conf.Pricing.PricesIncludeVAT)
	if err != nil {
		return err
	}
	reg.PriceNet = breakdown.WithoutVAT
	reg.VATPercentage = conf.Pricing.VATRate()
	reg.PriceGross = breakdown.WithVAT
	return nil
}

// Cancel marks a registration cancelled and reopens its fee type slot.
func (s *Service) Cancel(ctx context.Context, tenantID, id uuid.UUID) (Registration, error) {
	if s == nil || s.Tx == nil {
		return Registration{}, errors.New("registration service not configured")
	}
	var cancelled Registration
	err := s.Tx.WithinTx(ctx, func(st Stores) error {
		reg, err := st.Registrations.MarkCancelled(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if reg.FeeTypeID != nil {
			if err := st.FeeTypes.ReleaseSlot(ctx, *reg.FeeTypeID); err != nil {
				return err
			}
		}
		cancelled = reg
		return nil
	})
	if err != nil {
		return Registration{}, err
	}
	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicRegistrationCancelled, cancelled.ID, map[string]any{
			"registrationId": cancelled.ID.String(),
			"conferenceId":   cancelled.ConferenceID.String(),
		})
	}
	return cancelled, nil
}

// Get returns one registration.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (Registration, error) {
	var reg Registration
	err := s.Tx.WithinTx(ctx, func(st Stores) error {
		var err error
		reg, err = st.Registrations.Get(ctx, tenantID, id)
		return err
	})
	return reg, err
}

// List returns the registrations of a conference.
func (s *Service) List(ctx context.Context, tenantID, conferenceID uuid.UUID, limit, offset int32) ([]Registration, error) {
	var regs []Registration
	err := s.Tx.WithinTx(ctx, func(st Stores) error {
		var err error
		regs, err = st.Registrations.ListByConference(ctx, tenantID, conferenceID, limit, offset)
		return err
	})
	return regs, err
}

// afterRegister runs the best-effort followups of a successful submit.
// Neither a failed event emit nor a failed reminder enqueue rolls the
// registration back.
func (s *Service) afterRegister(ctx context.Context, reg Registration) {
	if s.Events != nil {
		if _, err := s.Events.Emit(ctx, events.TopicRegistrationCreated, reg.ID, map[string]any{
			"registrationId": reg.ID.String(),
			"conferenceId":   reg.ConferenceID.String(),
			"attendeeEmail":  reg.AttendeeEmail,
			"gross":          vat.FormatAmount(reg.PriceGross),
			"currency":       reg.Currency,
		}); err != nil {
			s.Logger.Warn().Err(err).Str("registration_id", reg.ID.String()).Msg("emit registration.created")
		}
	}
	if s.Reminders != nil {
		if err := s.Reminders.SchedulePaymentReminder(ctx, reg); err != nil {
			s.Logger.Warn().Err(err).Str("registration_id", reg.ID.String()).Msg("schedule payment reminder")
		}
	}
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
