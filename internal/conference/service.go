package conference

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-confero/internal/obs"
	"github.com/noah-isme/backend-confero/internal/pricing"
	"github.com/noah-isme/backend-confero/internal/tenant"
	"github.com/noah-isme/backend-confero/internal/vat"
)

// ErrInvalidDateRange is returned when a tier window ends before it starts.
var ErrInvalidDateRange = errors.New("conference: tier end date precedes start date")

// Store captures the conference persistence methods used by the service.
type Store interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (Conference, error)
	UpdatePricing(ctx context.Context, tenantID, id uuid.UUID, p PricingParams) (Conference, error)
}

// FeeTypeLister provides the custom fee types of a tenant's conference.
type FeeTypeLister interface {
	ListByConference(ctx context.Context, tenantID, conferenceID uuid.UUID) ([]pricing.FeeType, error)
}

// Quote is the public fee listing for a conference at one instant.
type Quote struct {
	ConferenceID uuid.UUID        `json:"conferenceId"`
	Currency     string           `json:"currency"`
	Scheme       string           `json:"scheme"`
	Options      []pricing.Option `json:"options"`
}

// Service reads and writes conference pricing configuration and
// produces live fee quotes.
type Service struct {
	Store    Store
	FeeTypes FeeTypeLister
	Cache    *Cache
	Now      func() time.Time
}

// GetPricing returns the conference with its pricing configuration and
// fee types attached.
func (s *Service) GetPricing(ctx context.Context, tenantID, id uuid.UUID) (Conference, error) {
	if s == nil || s.Store == nil {
		return Conference{}, errors.New("conference service not configured")
	}
	conf, err := s.Store.Get(ctx, tenantID, id)
	if err != nil {
		return Conference{}, err
	}
	if s.FeeTypes != nil {
		feeTypes, err := s.FeeTypes.ListByConference(ctx, tenantID, id)
		if err != nil {
			return Conference{}, err
		}
		conf.Pricing.FeeTypes = feeTypes
	}
	return conf, nil
}

// UpdatePricing validates and stores a new pricing configuration. Admin
// edits are last-writer-wins; the cached quote is dropped afterwards.
func (s *Service) UpdatePricing(ctx context.Context, tenantID, id uuid.UUID, p PricingParams) (Conference, error) {
	if s == nil || s.Store == nil {
		return Conference{}, errors.New("conference service not configured")
	}
	if err := validatePricing(p); err != nil {
		return Conference{}, err
	}
	conf, err := s.Store.UpdatePricing(ctx, tenantID, id, p)
	if err != nil {
		return Conference{}, err
	}
	_ = s.Cache.Invalidate(ctx, s.quoteKey(tenantID, id))
	return conf, nil
}

// InvalidateQuote drops the cached quote of a conference, used after
// fee type edits.
func (s *Service) InvalidateQuote(ctx context.Context, tenantID, id uuid.UUID) {
	if s == nil {
		return
	}
	_ = s.Cache.Invalidate(ctx, s.quoteKey(tenantID, id))
}

// QuoteFees resolves the purchasable fee options for a conference right
// now. Results are cached briefly; a closed registration window
// (pricing.ErrNoActiveTier) is never cached.
func (s *Service) QuoteFees(ctx context.Context, tenantID, id uuid.UUID) (Quote, error) {
	if s == nil || s.Store == nil {
		return Quote{}, errors.New("conference service not configured")
	}
	start := time.Now()
	key := s.quoteKey(tenantID, id)
	var cached Quote
	if hit, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && hit {
		obs.IncQuote("hit")
		return cached, nil
	}
	obs.IncQuote("miss")

	conf, err := s.GetPricing(ctx, tenantID, id)
	if err != nil {
		return Quote{}, err
	}
	scheme := pricing.SchemeFor(conf.Pricing)
	options, err := scheme.Options(s.now(), conf.StartsAt)
	if err != nil {
		return Quote{}, err
	}
	quote := Quote{
		ConferenceID: id,
		Currency:     conf.Pricing.Currency,
		Options:      options,
		Scheme:       "tiers",
	}
	if _, ok := scheme.(pricing.FeeTypeScheme); ok {
		quote.Scheme = "fee_types"
	}
	_ = s.Cache.SetJSON(ctx, key, quote)
	obs.ObserveQuoteLatency(obs.DurationMillis(time.Since(start)))
	return quote, nil
}

func (s *Service) quoteKey(tenantID, id uuid.UUID) string {
	return tenant.PrefixKey(tenantID.String(), "quote:"+id.String())
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func validatePricing(p PricingParams) error {
	for _, window := range []pricing.TierPrice{p.EarlyBird, p.Regular, p.Late} {
		if window.StartDate != nil && window.EndDate != nil &&
			pricing.DateOf(*window.EndDate).Before(pricing.DateOf(*window.StartDate)) {
			return ErrInvalidDateRange
		}
	}
	amounts := []*decimal.Decimal{
		p.VATPercentage,
		p.EarlyBird.Amount, p.Regular.Amount, p.Late.Amount,
		p.StudentEarlyBird, p.StudentRegular, p.StudentLate,
		p.AccompanyingPerson,
	}
	for _, amount := range amounts {
		if amount != nil && amount.IsNegative() {
			return vat.ErrInvalidAmount
		}
	}
	return nil
}
