package feetype

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-confero/internal/pricing"
	"github.com/noah-isme/backend-confero/internal/vat"
)

// ErrInvalidDateRange is returned when valid_to precedes valid_from.
// Rejected at save time, never persisted.
var ErrInvalidDateRange = errors.New("feetype: valid_to must not precede valid_from")

// Store captures the persistence methods required by the service.
type Store interface {
	Insert(ctx context.Context, p InsertParams) (pricing.FeeType, error)
	Update(ctx context.Context, p UpdateParams) (pricing.FeeType, error)
	Get(ctx context.Context, conferenceID, id uuid.UUID) (pricing.FeeType, error)
	ListByConference(ctx context.Context, tenantID, conferenceID uuid.UUID) ([]pricing.FeeType, error)
	Detach(ctx context.Context, tenantID, id uuid.UUID) (uuid.UUID, error)
	ClaimSlot(ctx context.Context, id uuid.UUID) error
	ReleaseSlot(ctx context.Context, id uuid.UUID) error
}

// QuoteInvalidator drops the cached public quote of a conference after
// its fee configuration changed.
type QuoteInvalidator interface {
	InvalidateQuote(ctx context.Context, tenantID, conferenceID uuid.UUID)
}

// Input is the admin-authored portion of a fee type. The gross price is
// deliberately absent: it is always derived server-side from net and
// VAT so the stored pair can never drift.
type Input struct {
	Name          string
	Description   string
	PriceNet      decimal.Decimal
	VATPercentage decimal.Decimal
	ValidFrom     time.Time
	ValidTo       time.Time
	IsActive      bool
	Capacity      *int32
	DisplayOrder  int32
}

// Service manages custom fee types for a conference. Every operation
// is tenant-scoped; touching another tenant's fee type reads as
// ErrNotFound.
type Service struct {
	Store  Store
	Quotes QuoteInvalidator
	Now    func() time.Time
}

// Create validates the input, derives the gross price and persists a
// new fee type for one of the tenant's conferences.
func (s *Service) Create(ctx context.Context, tenantID, conferenceID uuid.UUID, in Input) (pricing.FeeType, error) {
	if s == nil || s.Store == nil {
		return pricing.FeeType{}, errors.New("feetype service not configured")
	}
	gross, err := validateInput(&in)
	if err != nil {
		return pricing.FeeType{}, err
	}
	created, err := s.Store.Insert(ctx, InsertParams{
		TenantID:      tenantID,
		ConferenceID:  conferenceID,
		Name:          in.Name,
		Description:   in.Description,
		PriceNet:      in.PriceNet,
		VATPercentage: in.VATPercentage,
		PriceGross:    gross,
		ValidFrom:     pricing.DateOf(in.ValidFrom),
		ValidTo:       pricing.DateOf(in.ValidTo),
		IsActive:      in.IsActive,
		Capacity:      in.Capacity,
		DisplayOrder:  in.DisplayOrder,
	})
	if err != nil {
		return pricing.FeeType{}, err
	}
	s.invalidateQuote(ctx, tenantID, created.ConferenceID)
	return created, nil
}

// Update rewrites a fee type's configuration, recomputing the gross
// price from the edited net and VAT values.
func (s *Service) Update(ctx context.Context, tenantID, id uuid.UUID, in Input) (pricing.FeeType, error) {
	if s == nil || s.Store == nil {
		return pricing.FeeType{}, errors.New("feetype service not configured")
	}
	gross, err := validateInput(&in)
	if err != nil {
		return pricing.FeeType{}, err
	}
	updated, err := s.Store.Update(ctx, UpdateParams{
		TenantID:      tenantID,
		ID:            id,
		Name:          in.Name,
		Description:   in.Description,
		PriceNet:      in.PriceNet,
		VATPercentage: in.VATPercentage,
		PriceGross:    gross,
		ValidFrom:     pricing.DateOf(in.ValidFrom),
		ValidTo:       pricing.DateOf(in.ValidTo),
		IsActive:      in.IsActive,
		Capacity:      in.Capacity,
		DisplayOrder:  in.DisplayOrder,
	})
	if err != nil {
		return pricing.FeeType{}, err
	}
	s.invalidateQuote(ctx, tenantID, updated.ConferenceID)
	return updated, nil
}

// Delete detaches the fee type. Historical registrations keep their
// snapshotted amounts.
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if s == nil || s.Store == nil {
		return errors.New("feetype service not configured")
	}
	conferenceID, err := s.Store.Detach(ctx, tenantID, id)
	if err != nil {
		return err
	}
	s.invalidateQuote(ctx, tenantID, conferenceID)
	return nil
}

// Options returns every fee type of the conference annotated with its
// live availability, for both the admin badge view and the public form.
func (s *Service) Options(ctx context.Context, tenantID, conferenceID uuid.UUID) ([]pricing.Option, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("feetype service not configured")
	}
	feeTypes, err := s.Store.ListByConference(ctx, tenantID, conferenceID)
	if err != nil {
		return nil, err
	}
	return pricing.ResolveFeeTypes(feeTypes, s.now()), nil
}

func (s *Service) invalidateQuote(ctx context.Context, tenantID, conferenceID uuid.UUID) {
	if s.Quotes == nil || conferenceID == uuid.Nil {
		return
	}
	s.Quotes.InvalidateQuote(ctx, tenantID, conferenceID)
}

// Claim consumes one slot of the fee type, failing with
// ErrCapacityExceeded when none remains.
func (s *Service) Claim(ctx context.Context, id uuid.UUID) error {
	if s == nil || s.Store == nil {
		return errors.New("feetype service not configured")
	}
	return s.Store.ClaimSlot(ctx, id)
}

// Release frees a previously claimed slot.
func (s *Service) Release(ctx context.Context, id uuid.UUID) error {
	if s == nil || s.Store == nil {
		return errors.New("feetype service not configured")
	}
	return s.Store.ReleaseSlot(ctx, id)
}

// PreviewGross computes the gross side for the amounts an admin is
// typing, without touching persistence.
func PreviewGross(net, vatPct decimal.Decimal) (vat.Breakdown, error) {
	return vat.Compute(net, vatPct, false)
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func validateInput(in *Input) (decimal.Decimal, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return decimal.Zero, errors.New("feetype: name is required")
	}
	if pricing.DateOf(in.ValidTo).Before(pricing.DateOf(in.ValidFrom)) {
		return decimal.Zero, ErrInvalidDateRange
	}
	if in.Capacity != nil && *in.Capacity < 0 {
		return decimal.Zero, errors.New("feetype: capacity must not be negative")
	}
	gross, err := vat.PriceWithVAT(in.PriceNet, in.VATPercentage)
	if err != nil {
		return decimal.Zero, err
	}
	return gross, nil
}
