// Package pricing resolves which conference fee a registrant can buy at
// a given instant and at what price. It is pure: the clock and every
// piece of configuration are passed in explicitly.
package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tier identifies one of the legacy schedule tiers.
type Tier string

const (
	TierEarlyBird        Tier = "early_bird"
	TierRegular          Tier = "regular"
	TierLate             Tier = "late"
	TierStudentEarlyBird Tier = "student_early_bird"
	TierStudentRegular   Tier = "student_regular"
	TierStudentLate      Tier = "student_late"
)

// TierPrice is one window of the legacy schedule. Dates are inclusive
// and date-only; a nil bound leaves that side of the window open.
type TierPrice struct {
	Amount    *decimal.Decimal
	StartDate *time.Time
	EndDate   *time.Time
}

// Configured reports whether the tier has a price at all.
func (p TierPrice) Configured() bool { return p.Amount != nil }

func (p TierPrice) contains(day time.Time) bool {
	if p.StartDate != nil && day.Before(DateOf(*p.StartDate)) {
		return false
	}
	if p.EndDate != nil && day.After(DateOf(*p.EndDate)) {
		return false
	}
	return true
}

// Schedule holds the legacy early-bird/regular/late pricing. Student
// amounts share the same windows as their non-student counterparts;
// they are a parallel price axis, not a separate time schedule.
type Schedule struct {
	EarlyBird TierPrice
	Regular   TierPrice
	Late      TierPrice

	StudentEarlyBird *decimal.Decimal
	StudentRegular   *decimal.Decimal
	StudentLate      *decimal.Decimal

	AccompanyingPerson *decimal.Decimal
}

// FeeType is a named custom fee with its own validity window, VAT rate
// and optional capacity. A fee type belongs to exactly one conference;
// lookups always pin that membership.
type FeeType struct {
	ID            uuid.UUID
	ConferenceID  uuid.UUID
	Name          string
	Description   string
	PriceNet      decimal.Decimal
	VATPercentage decimal.Decimal
	PriceGross    decimal.Decimal
	ValidFrom     time.Time
	ValidTo       time.Time
	IsActive      bool
	Capacity      *int32
	SoldCount     int32
	DisplayOrder  int32
}

// Config is the per-conference pricing configuration. Either the legacy
// schedule or the custom fee types dominate presentation, but both
// resolve independently.
type Config struct {
	Currency         string
	VATPercentage    *decimal.Decimal
	PricesIncludeVAT bool
	Schedule         Schedule
	FeeTypes         []FeeType
}

// VATRate returns the conference default VAT percentage, zero when unset.
func (c Config) VATRate() decimal.Decimal {
	if c.VATPercentage == nil {
		return decimal.Zero
	}
	return *c.VATPercentage
}

// Option is the uniform quote shape produced by both pricing schemes.
type Option struct {
	ID                uuid.UUID       `json:"id,omitempty"`
	Tier              Tier            `json:"tier,omitempty"`
	Name              string          `json:"name"`
	Net               decimal.Decimal `json:"net"`
	Gross             decimal.Decimal `json:"gross"`
	VATPercentage     decimal.Decimal `json:"vatPercentage"`
	Status            Status          `json:"status"`
	CapacityRemaining *int32          `json:"capacityRemaining,omitempty"`
	DisplayOrder      int32           `json:"displayOrder"`
}

// Selectable reports whether a registrant may choose this option.
func (o Option) Selectable() bool { return o.Status == StatusActive }

// DateOf truncates a timestamp to its UTC calendar day. All window
// comparisons in this package operate on such day values so that
// inclusive date bounds behave the same regardless of time of day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
