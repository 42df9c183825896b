package conference

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-confero/internal/pricing"
)

// ErrNotFound is returned when the conference does not exist for the
// requesting tenant.
var ErrNotFound = errors.New("conference: not found")

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Conference is the pricing-relevant slice of a conference row.
type Conference struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Name     string
	StartsAt *time.Time
	Pricing  pricing.Config
}

// PricingParams carries a full pricing configuration write. Admin edits
// are last-writer-wins; these are low-frequency operations.
type PricingParams struct {
	Currency           string
	VATPercentage      *decimal.Decimal
	PricesIncludeVAT   bool
	EarlyBird          pricing.TierPrice
	Regular            pricing.TierPrice
	Late               pricing.TierPrice
	StudentEarlyBird   *decimal.Decimal
	StudentRegular     *decimal.Decimal
	StudentLate        *decimal.Decimal
	AccompanyingPerson *decimal.Decimal
}

// Repo persists conference pricing configuration.
type Repo struct {
	DB DBTX
}

const conferenceColumns = `id, tenant_id, name, starts_at, currency,
	vat_percentage::text, prices_include_vat,
	early_bird_amount::text, early_bird_start, early_bird_deadline,
	regular_amount::text, regular_start, regular_end,
	late_amount::text, late_start, late_end,
	student_early_bird_amount::text, student_regular_amount::text, student_late_amount::text,
	accompanying_person_amount::text`

// Get loads a conference scoped to the tenant.
func (r Repo) Get(ctx context.Context, tenantID, id uuid.UUID) (Conference, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+conferenceColumns+`
		FROM conferences WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	c, err := scanConference(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conference{}, ErrNotFound
	}
	return c, err
}

// UpdatePricing overwrites the pricing configuration of a conference.
func (r Repo) UpdatePricing(ctx context.Context, tenantID, id uuid.UUID, p PricingParams) (Conference, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE conferences SET currency = $3, vat_percentage = $4, prices_include_vat = $5,
			early_bird_amount = $6, early_bird_start = $7, early_bird_deadline = $8,
			regular_amount = $9, regular_start = $10, regular_end = $11,
			late_amount = $12, late_start = $13, late_end = $14,
			student_early_bird_amount = $15, student_regular_amount = $16, student_late_amount = $17,
			accompanying_person_amount = $18, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+conferenceColumns,
		id, tenantID, p.Currency, decString(p.VATPercentage), p.PricesIncludeVAT,
		decString(p.EarlyBird.Amount), p.EarlyBird.StartDate, p.EarlyBird.EndDate,
		decString(p.Regular.Amount), p.Regular.StartDate, p.Regular.EndDate,
		decString(p.Late.Amount), p.Late.StartDate, p.Late.EndDate,
		decString(p.StudentEarlyBird), decString(p.StudentRegular), decString(p.StudentLate),
		decString(p.AccompanyingPerson))
	c, err := scanConference(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conference{}, ErrNotFound
	}
	return c, err
}

func decString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func scanConference(row pgx.Row) (Conference, error) {
	var (
		c                Conference
		vatPct           *string
		ebAmount         *string
		ebStart, ebEnd   *time.Time
		regAmount        *string
		regStart, regEnd *time.Time
		lateAmount       *string
		lStart, lEnd     *time.Time
		sEB, sReg, sLate *string
		accompanying     *string
	)
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.StartsAt, &c.Pricing.Currency,
		&vatPct, &c.Pricing.PricesIncludeVAT,
		&ebAmount, &ebStart, &ebEnd,
		&regAmount, &regStart, &regEnd,
		&lateAmount, &lStart, &lEnd,
		&sEB, &sReg, &sLate,
		&accompanying)
	if err != nil {
		return Conference{}, err
	}
	if c.Pricing.VATPercentage, err = parseDec(vatPct); err != nil {
		return Conference{}, err
	}
	s := &c.Pricing.Schedule
	if s.EarlyBird.Amount, err = parseDec(ebAmount); err != nil {
		return Conference{}, err
	}
	s.EarlyBird.StartDate, s.EarlyBird.EndDate = ebStart, ebEnd
	if s.Regular.Amount, err = parseDec(regAmount); err != nil {
		return Conference{}, err
	}
	s.Regular.StartDate, s.Regular.EndDate = regStart, regEnd
	if s.Late.Amount, err = parseDec(lateAmount); err != nil {
		return Conference{}, err
	}
	s.Late.StartDate, s.Late.EndDate = lStart, lEnd
	if s.StudentEarlyBird, err = parseDec(sEB); err != nil {
		return Conference{}, err
	}
	if s.StudentRegular, err = parseDec(sReg); err != nil {
		return Conference{}, err
	}
	if s.StudentLate, err = parseDec(sLate); err != nil {
		return Conference{}, err
	}
	if s.AccompanyingPerson, err = parseDec(accompanying); err != nil {
		return Conference{}, err
	}
	return c, nil
}

func parseDec(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
