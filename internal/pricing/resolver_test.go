package pricing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dayPtr(s string) *time.Time {
	t := day(s)
	return &t
}

func testSchedule() Schedule {
	return Schedule{
		EarlyBird: TierPrice{Amount: decPtr("80"), EndDate: dayPtr("2025-01-01")},
		Regular:   TierPrice{Amount: decPtr("100"), StartDate: dayPtr("2025-01-02"), EndDate: dayPtr("2025-03-01")},
		Late:      TierPrice{Amount: decPtr("130"), StartDate: dayPtr("2025-03-02"), EndDate: dayPtr("2025-04-01")},
	}
}

func TestResolveActiveTierPicksRegularAfterEarlyBirdDeadline(t *testing.T) {
	quote, err := ResolveActiveTier(testSchedule(), day("2025-01-15"), nil)
	require.NoError(t, err)
	require.Equal(t, TierRegular, quote.Tier)
	require.True(t, quote.Amount.Equal(dec("100")))
}

func TestResolveActiveTierEarlyBirdWinsOnOverlap(t *testing.T) {
	s := testSchedule()
	s.Regular.StartDate = dayPtr("2024-12-01")
	quote, err := ResolveActiveTier(s, day("2024-12-15"), nil)
	require.NoError(t, err)
	require.Equal(t, TierEarlyBird, quote.Tier)
}

func TestResolveActiveTierDeadlineInclusive(t *testing.T) {
	quote, err := ResolveActiveTier(testSchedule(), day("2025-01-01"), nil)
	require.NoError(t, err)
	require.Equal(t, TierEarlyBird, quote.Tier)
}

func TestResolveActiveTierClosedOutsideAllWindows(t *testing.T) {
	_, err := ResolveActiveTier(testSchedule(), day("2025-05-01"), nil)
	require.ErrorIs(t, err, ErrNoActiveTier)
}

func TestResolveActiveTierFallsBackToLateAfterConferenceStart(t *testing.T) {
	quote, err := ResolveActiveTier(testSchedule(), day("2025-05-01"), dayPtr("2025-04-10"))
	require.NoError(t, err)
	require.Equal(t, TierLate, quote.Tier)
}

func TestResolveActiveTierFallsBackToLastDefinedTier(t *testing.T) {
	s := testSchedule()
	s.Late = TierPrice{}
	quote, err := ResolveActiveTier(s, day("2025-05-01"), dayPtr("2025-04-10"))
	require.NoError(t, err)
	require.Equal(t, TierRegular, quote.Tier)
}

func TestResolveActiveTierNoFallbackBeforeConferenceStart(t *testing.T) {
	_, err := ResolveActiveTier(testSchedule(), day("2025-05-01"), dayPtr("2025-06-01"))
	require.ErrorIs(t, err, ErrNoActiveTier)
}

func TestResolveActiveTierIsPure(t *testing.T) {
	s := testSchedule()
	first, err := ResolveActiveTier(s, day("2025-01-15"), nil)
	require.NoError(t, err)
	second, err := ResolveActiveTier(s, day("2025-01-15"), nil)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestStudentAmountMirrorsTierWindow(t *testing.T) {
	s := testSchedule()
	s.StudentRegular = decPtr("50")
	quote, err := ResolveActiveTier(s, day("2025-02-01"), nil)
	require.NoError(t, err)
	require.Equal(t, TierStudentRegular, quote.StudentTier)
	require.NotNil(t, quote.StudentAmount)
	require.True(t, quote.StudentAmount.Equal(dec("50")))
}

func TestTierOptionsDerivesGrossFromNet(t *testing.T) {
	cfg := Config{
		Currency:      "EUR",
		VATPercentage: decPtr("25"),
		Schedule:      testSchedule(),
	}
	quote, err := ResolveActiveTier(cfg.Schedule, day("2025-01-15"), nil)
	require.NoError(t, err)
	options, err := TierOptions(cfg, quote)
	require.NoError(t, err)
	require.Len(t, options, 1)
	require.True(t, options[0].Net.Equal(dec("100")), "net %s", options[0].Net)
	require.True(t, options[0].Gross.Equal(dec("125")), "gross %s", options[0].Gross)
}

func TestTierOptionsDerivesNetFromGross(t *testing.T) {
	cfg := Config{
		Currency:         "EUR",
		VATPercentage:    decPtr("25"),
		PricesIncludeVAT: true,
		Schedule: Schedule{
			Regular: TierPrice{Amount: decPtr("125")},
		},
	}
	options, err := TieredScheme{Config: cfg}.Options(day("2025-01-15"), nil)
	require.NoError(t, err)
	require.Len(t, options, 1)
	require.True(t, options[0].Net.Equal(dec("100")), "net %s", options[0].Net)
	require.True(t, options[0].Gross.Equal(dec("125")), "gross %s", options[0].Gross)
}

func newFeeType(name string) FeeType {
	return FeeType{
		ID:            uuid.New(),
		Name:          name,
		PriceNet:      dec("100"),
		VATPercentage: dec("25"),
		PriceGross:    dec("125"),
		ValidFrom:     day("2025-01-01"),
		ValidTo:       day("2025-01-31"),
		IsActive:      true,
	}
}

func TestResolveFeeTypesKeepsIneligibleEntries(t *testing.T) {
	active := newFeeType("member")
	upcoming := newFeeType("onsite")
	upcoming.ValidFrom = day("2025-02-01")
	upcoming.ValidTo = day("2025-02-28")
	disabled := newFeeType("sponsor")
	disabled.IsActive = false

	options := ResolveFeeTypes([]FeeType{active, upcoming, disabled}, day("2025-01-15"))
	require.Len(t, options, 3)
	byName := map[string]Option{}
	for _, opt := range options {
		byName[opt.Name] = opt
	}
	require.Equal(t, StatusActive, byName["member"].Status)
	require.Equal(t, StatusNotYet, byName["onsite"].Status)
	require.Equal(t, StatusInactive, byName["sponsor"].Status)
	require.True(t, byName["member"].Selectable())
	require.False(t, byName["onsite"].Selectable())
}

func TestResolveFeeTypesOrdersByDisplayOrder(t *testing.T) {
	first := newFeeType("b")
	first.DisplayOrder = 2
	second := newFeeType("a")
	second.DisplayOrder = 1
	options := ResolveFeeTypes([]FeeType{first, second}, day("2025-01-15"))
	require.Equal(t, "a", options[0].Name)
	require.Equal(t, "b", options[1].Name)
}

func TestSchemeForPrefersFeeTypes(t *testing.T) {
	cfg := Config{Schedule: testSchedule()}
	require.IsType(t, TieredScheme{}, SchemeFor(cfg))
	cfg.FeeTypes = []FeeType{newFeeType("member")}
	require.IsType(t, FeeTypeScheme{}, SchemeFor(cfg))
}
