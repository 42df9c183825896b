package conference_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-confero/internal/conference"
	"github.com/noah-isme/backend-confero/internal/pricing"
)

type stubStore struct {
	conf    conference.Conference
	getErr  error
	updated *conference.PricingParams
}

func (s *stubStore) Get(_ context.Context, tenantID, id uuid.UUID) (conference.Conference, error) {
	if s.getErr != nil {
		return conference.Conference{}, s.getErr
	}
	if s.conf.ID != id || s.conf.TenantID != tenantID {
		return conference.Conference{}, conference.ErrNotFound
	}
	return s.conf, nil
}

func (s *stubStore) UpdatePricing(_ context.Context, tenantID, id uuid.UUID, p conference.PricingParams) (conference.Conference, error) {
	if s.conf.ID != id || s.conf.TenantID != tenantID {
		return conference.Conference{}, conference.ErrNotFound
	}
	s.updated = &p
	s.conf.Pricing.Currency = p.Currency
	s.conf.Pricing.VATPercentage = p.VATPercentage
	s.conf.Pricing.PricesIncludeVAT = p.PricesIncludeVAT
	s.conf.Pricing.Schedule = pricing.Schedule{
		EarlyBird:          p.EarlyBird,
		Regular:            p.Regular,
		Late:               p.Late,
		StudentEarlyBird:   p.StudentEarlyBird,
		StudentRegular:     p.StudentRegular,
		StudentLate:        p.StudentLate,
		AccompanyingPerson: p.AccompanyingPerson,
	}
	return s.conf, nil
}

type stubFeeTypes struct {
	items []pricing.FeeType
	calls int
}

func (s *stubFeeTypes) ListByConference(context.Context, uuid.UUID, uuid.UUID) ([]pricing.FeeType, error) {
	s.calls++
	return s.items, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func dayPtr(s string) *time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func testConference() conference.Conference {
	return conference.Conference{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Name:     "DevConf 2026",
		StartsAt: dayPtr("2026-06-10"),
		Pricing: pricing.Config{
			Currency:      "EUR",
			VATPercentage: decPtr("25"),
			Schedule: pricing.Schedule{
				EarlyBird: pricing.TierPrice{Amount: decPtr("290"), EndDate: dayPtr("2026-03-31")},
				Regular:   pricing.TierPrice{Amount: decPtr("390"), StartDate: dayPtr("2026-04-01"), EndDate: dayPtr("2026-05-31")},
				Late:      pricing.TierPrice{Amount: decPtr("450"), StartDate: dayPtr("2026-06-01")},
			},
		},
	}
}

func newService(t *testing.T, store *stubStore, fees *stubFeeTypes, now string) *conference.Service {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	at, err := time.Parse(time.DateOnly, now)
	require.NoError(t, err)
	return &conference.Service{
		Store:    store,
		FeeTypes: fees,
		Cache:    conference.NewCache(client, time.Minute),
		Now:      func() time.Time { return at },
	}
}

func TestQuoteFeesTieredSchedule(t *testing.T) {
	store := &stubStore{conf: testConference()}
	svc := newService(t, store, &stubFeeTypes{}, "2026-02-15")

	quote, err := svc.QuoteFees(context.Background(), store.conf.TenantID, store.conf.ID)
	require.NoError(t, err)
	require.Equal(t, "tiers", quote.Scheme)
	require.Equal(t, "EUR", quote.Currency)
	require.NotEmpty(t, quote.Options)
	require.Equal(t, pricing.TierEarlyBird, quote.Options[0].Tier)
	require.True(t, quote.Options[0].Gross.Equal(dec("362.50")))
}

func TestQuoteFeesPrefersFeeTypes(t *testing.T) {
	store := &stubStore{conf: testConference()}
	fees := &stubFeeTypes{items: []pricing.FeeType{{
		ID:            uuid.New(),
		Name:          "Member",
		PriceNet:      dec("100"),
		VATPercentage: dec("25"),
		PriceGross:    dec("125"),
		ValidFrom:     *dayPtr("2026-01-01"),
		ValidTo:       *dayPtr("2026-06-01"),
		IsActive:      true,
	}}}
	svc := newService(t, store, fees, "2026-02-15")

	quote, err := svc.QuoteFees(context.Background(), store.conf.TenantID, store.conf.ID)
	require.NoError(t, err)
	require.Equal(t, "fee_types", quote.Scheme)
	require.Len(t, quote.Options, 1)
	require.Equal(t, "Member", quote.Options[0].Name)
	require.Equal(t, pricing.StatusActive, quote.Options[0].Status)
}

func TestQuoteFeesServedFromCache(t *testing.T) {
	store := &stubStore{conf: testConference()}
	fees := &stubFeeTypes{items: []pricing.FeeType{{
		ID: uuid.New(), Name: "Member", PriceNet: dec("100"), VATPercentage: dec("25"),
		PriceGross: dec("125"), ValidFrom: *dayPtr("2026-01-01"), ValidTo: *dayPtr("2026-06-01"), IsActive: true,
	}}}
	svc := newService(t, store, fees, "2026-02-15")

	_, err := svc.QuoteFees(context.Background(), store.conf.TenantID, store.conf.ID)
	require.NoError(t, err)
	_, err = svc.QuoteFees(context.Background(), store.conf.TenantID, store.conf.ID)
	require.NoError(t, err)
	require.Equal(t, 1, fees.calls)
}

func TestQuoteFeesRegistrationClosedNotCached(t *testing.T) {
	conf := testConference()
	conf.StartsAt = nil
	conf.Pricing.Schedule.Late.EndDate = dayPtr("2026-06-30")
	store := &stubStore{conf: conf}
	svc := newService(t, store, &stubFeeTypes{}, "2026-08-01")

	_, err := svc.QuoteFees(context.Background(), conf.TenantID, conf.ID)
	require.ErrorIs(t, err, pricing.ErrNoActiveTier)

	_, err = svc.QuoteFees(context.Background(), conf.TenantID, conf.ID)
	require.ErrorIs(t, err, pricing.ErrNoActiveTier)
}

func TestUpdatePricingRejectsReversedWindow(t *testing.T) {
	store := &stubStore{conf: testConference()}
	svc := newService(t, store, &stubFeeTypes{}, "2026-02-15")

	params := conference.PricingParams{
		Currency: "EUR",
		Regular: pricing.TierPrice{
			Amount:    decPtr("390"),
			StartDate: dayPtr("2026-05-01"),
			EndDate:   dayPtr("2026-04-01"),
		},
	}
	_, err := svc.UpdatePricing(context.Background(), store.conf.TenantID, store.conf.ID, params)
	require.ErrorIs(t, err, conference.ErrInvalidDateRange)
	require.Nil(t, store.updated)
}

func TestUpdatePricingRejectsNegativeAmount(t *testing.T) {
	store := &stubStore{conf: testConference()}
	svc := newService(t, store, &stubFeeTypes{}, "2026-02-15")

	params := conference.PricingParams{
		Currency:  "EUR",
		EarlyBird: pricing.TierPrice{Amount: decPtr("-1")},
	}
	_, err := svc.UpdatePricing(context.Background(), store.conf.TenantID, store.conf.ID, params)
	require.Error(t, err)
	require.Nil(t, store.updated)
}

func TestUpdatePricingInvalidatesCachedQuote(t *testing.T) {
	store := &stubStore{conf: testConference()}
	svc := newService(t, store, &stubFeeTypes{}, "2026-02-15")

	first, err := svc.QuoteFees(context.Background(), store.conf.TenantID, store.conf.ID)
	require.NoError(t, err)
	require.True(t, first.Options[0].Net.Equal(dec("290")))

	params := conference.PricingParams{
		Currency:      "EUR",
		VATPercentage: decPtr("25"),
		EarlyBird:     pricing.TierPrice{Amount: decPtr("250"), EndDate: dayPtr("2026-03-31")},
	}
	_, err = svc.UpdatePricing(context.Background(), store.conf.TenantID, store.conf.ID, params)
	require.NoError(t, err)

	second, err := svc.QuoteFees(context.Background(), store.conf.TenantID, store.conf.ID)
	require.NoError(t, err)
	require.True(t, second.Options[0].Net.Equal(dec("250")))
}

func TestInvalidateQuoteDropsCachedQuote(t *testing.T) {
	store := &stubStore{conf: testConference()}
	fees := &stubFeeTypes{}
	svc := newService(t, store, fees, "2026-02-15")

	first, err := svc.QuoteFees(context.Background(), store.conf.TenantID, store.conf.ID)
	require.NoError(t, err)
	require.Equal(t, "tiers", first.Scheme)

	// an admin creates a fee type; the cached quote keeps serving the
	// tier listing until the key is dropped
	fees.items = []pricing.FeeType{{
		ID:            uuid.New(),
		ConferenceID:  store.conf.ID,
		Name:          "Member",
		PriceNet:      dec("100"),
		VATPercentage: dec("25"),
		PriceGross:    dec("125"),
		ValidFrom:     *dayPtr("2026-01-01"),
		ValidTo:       *dayPtr("2026-06-01"),
		IsActive:      true,
	}}
	stale, err := svc.QuoteFees(context.Background(), store.conf.TenantID, store.conf.ID)
	require.NoError(t, err)
	require.Equal(t, "tiers", stale.Scheme)

	svc.InvalidateQuote(context.Background(), store.conf.TenantID, store.conf.ID)
	fresh, err := svc.QuoteFees(context.Background(), store.conf.TenantID, store.conf.ID)
	require.NoError(t, err)
	require.Equal(t, "fee_types", fresh.Scheme)
	require.True(t, fresh.Options[0].Net.Equal(dec("100")))
}

func TestGetPricingUnknownConference(t *testing.T) {
	store := &stubStore{conf: testConference()}
	svc := newService(t, store, &stubFeeTypes{}, "2026-02-15")

	_, err := svc.GetPricing(context.Background(), store.conf.TenantID, uuid.New())
	require.ErrorIs(t, err, conference.ErrNotFound)
}
