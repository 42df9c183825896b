package pricing

import "time"

// Scheme is the common surface of the two pricing variants. Legacy
// tiered pricing and custom fee types coexist per conference; callers
// get the same option shape regardless of which one is in use.
type Scheme interface {
	Options(now time.Time, conferenceStart *time.Time) ([]Option, error)
}

// SchemeFor picks the authoritative pricing variant for a conference.
// Configured fee types dominate presentation; the legacy schedule is
// the fallback.
func SchemeFor(c Config) Scheme {
	if len(c.FeeTypes) > 0 {
		return FeeTypeScheme{Config: c}
	}
	return TieredScheme{Config: c}
}

// TieredScheme quotes from the legacy early-bird/regular/late schedule.
type TieredScheme struct {
	Config          Config
	ConferenceStart *time.Time
}

// Options resolves the active tier and expands it into quote options.
// Returns ErrNoActiveTier when registration is closed.
func (s TieredScheme) Options(now time.Time, conferenceStart *time.Time) ([]Option, error) {
	if conferenceStart == nil {
		conferenceStart = s.ConferenceStart
	}
	quote, err := ResolveActiveTier(s.Config.Schedule, now, conferenceStart)
	if err != nil {
		return nil, err
	}
	return TierOptions(s.Config, quote)
}

// FeeTypeScheme quotes from the conference's custom fee types.
type FeeTypeScheme struct {
	Config Config
}

// Options annotates every configured fee type with its availability.
// The list is never filtered; callers check Selectable per option.
func (s FeeTypeScheme) Options(now time.Time, _ *time.Time) ([]Option, error) {
	return ResolveFeeTypes(s.Config.FeeTypes, now), nil
}
