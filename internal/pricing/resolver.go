package pricing

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-confero/internal/vat"
)

// ErrNoActiveTier is returned when no legacy tier is purchasable at the
// evaluated instant. Registration is closed from the engine's point of
// view; the caller decides how to present that.
var ErrNoActiveTier = errors.New("pricing: no tier currently purchasable")

// TierQuote is the outcome of legacy tier resolution.
type TierQuote struct {
	Tier          Tier
	Amount        decimal.Decimal
	StudentTier   Tier
	StudentAmount *decimal.Decimal
}

// ResolveActiveTier picks the purchasable legacy tier for the given
// instant. Tiers are evaluated in fixed priority order (early bird,
// regular, late) so overlapping windows stay deterministic. When no
// window matches and the conference has already started, the schedule
// falls back to its last defined tier.
func ResolveActiveTier(s Schedule, now time.Time, conferenceStart *time.Time) (TierQuote, error) {
	day := DateOf(now)

	if s.EarlyBird.Configured() && s.EarlyBird.contains(day) {
		return quoteFor(s, TierEarlyBird), nil
	}
	if s.Regular.Configured() && s.Regular.contains(day) {
		return quoteFor(s, TierRegular), nil
	}
	if s.Late.Configured() && s.Late.contains(day) {
		return quoteFor(s, TierLate), nil
	}

	if conferenceStart != nil && day.After(DateOf(*conferenceStart)) {
		switch {
		case s.Late.Configured():
			return quoteFor(s, TierLate), nil
		case s.Regular.Configured():
			return quoteFor(s, TierRegular), nil
		case s.EarlyBird.Configured():
			return quoteFor(s, TierEarlyBird), nil
		}
	}
	return TierQuote{}, ErrNoActiveTier
}

func quoteFor(s Schedule, tier Tier) TierQuote {
	q := TierQuote{Tier: tier}
	switch tier {
	case TierEarlyBird:
		q.Amount = *s.EarlyBird.Amount
		q.StudentTier = TierStudentEarlyBird
		q.StudentAmount = s.StudentEarlyBird
	case TierRegular:
		q.Amount = *s.Regular.Amount
		q.StudentTier = TierStudentRegular
		q.StudentAmount = s.StudentRegular
	case TierLate:
		q.Amount = *s.Late.Amount
		q.StudentTier = TierStudentLate
		q.StudentAmount = s.StudentLate
	}
	return q
}

// ResolveFeeTypes annotates every fee type with its availability at the
// given day and orders the result for display. Nothing is filtered out:
// ineligible fee types are returned with a non-active status so the
// caller can explain why they cannot be selected.
func ResolveFeeTypes(feeTypes []FeeType, today time.Time) []Option {
	options := make([]Option, 0, len(feeTypes))
	for _, ft := range feeTypes {
		options = append(options, Option{
			ID:                ft.ID,
			Name:              ft.Name,
			Net:               ft.PriceNet,
			Gross:             ft.PriceGross,
			VATPercentage:     ft.VATPercentage,
			Status:            ft.StatusAt(today),
			CapacityRemaining: ft.Remaining(),
			DisplayOrder:      ft.DisplayOrder,
		})
	}
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].DisplayOrder < options[j].DisplayOrder
	})
	return options
}

// TierOptions converts a tier quote into the uniform option shape,
// deriving the missing price side from the conference VAT settings.
// Legacy tiers have no capacity concept, so tier options are always
// active.
func TierOptions(c Config, q TierQuote) ([]Option, error) {
	base, err := tierOption(c, q.Tier, string(q.Tier), q.Amount)
	if err != nil {
		return nil, err
	}
	options := []Option{base}
	if q.StudentAmount != nil {
		student, err := tierOption(c, q.StudentTier, string(q.StudentTier), *q.StudentAmount)
		if err != nil {
			return nil, err
		}
		student.DisplayOrder = 1
		options = append(options, student)
	}
	if c.Schedule.AccompanyingPerson != nil {
		accompanying, err := tierOption(c, "", "accompanying_person", *c.Schedule.AccompanyingPerson)
		if err != nil {
			return nil, err
		}
		accompanying.DisplayOrder = 2
		options = append(options, accompanying)
	}
	return options, nil
}

func tierOption(c Config, tier Tier, name string, amount decimal.Decimal) (Option, error) {
	rate := c.VATRate()
	breakdown, err := vat.Compute(amount, rate, c.PricesIncludeVAT)
	if err != nil {
		return Option{}, err
	}
	return Option{
		Tier:          tier,
		Name:          name,
		Net:           breakdown.WithoutVAT,
		Gross:         breakdown.WithVAT,
		VATPercentage: rate,
		Status:        StatusActive,
	}, nil
}
