package pricing

import "time"

// Status describes the live availability of a fee type. It is derived
// at read time, never stored.
type Status string

const (
	StatusActive   Status = "active"
	StatusNotYet   Status = "not_yet"
	StatusExpired  Status = "expired"
	StatusSoldOut  Status = "sold_out"
	StatusInactive Status = "inactive"
)

// StatusAt derives the availability status for the given day. The
// checks are ordered: the manual kill-switch wins over everything, so
// an inactive sold-out fee reports inactive, and a fee past its window
// reports expired regardless of how many slots were sold.
func (f FeeType) StatusAt(today time.Time) Status {
	day := DateOf(today)
	switch {
	case !f.IsActive:
		return StatusInactive
	case day.After(DateOf(f.ValidTo)):
		return StatusExpired
	case f.Capacity != nil && f.SoldCount >= *f.Capacity:
		return StatusSoldOut
	case day.Before(DateOf(f.ValidFrom)):
		return StatusNotYet
	default:
		return StatusActive
	}
}

// Remaining returns the number of unclaimed slots, or nil for
// unlimited fee types. Never negative.
func (f FeeType) Remaining() *int32 {
	if f.Capacity == nil {
		return nil
	}
	left := *f.Capacity - f.SoldCount
	if left < 0 {
		left = 0
	}
	return &left
}
