package registration

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

// ErrNotFound is returned when the registration does not exist for the
// requesting tenant.
var ErrNotFound = errors.New("registration: not found")

// Registration statuses.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Attendee categories. They select which tier amount applies on legacy
// tiered conferences.
const (
	CategoryParticipant  = "participant"
	CategoryStudent      = "student"
	CategoryAccompanying = "accompanying_person"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Registration is one attendee signup. Price fields are a snapshot
// taken at registration time; later pricing edits never touch them.
type Registration struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	ConferenceID   uuid.UUID
	FeeTypeID      *uuid.UUID
	Tier           *pricing.Tier
	Category       string
	AttendeeName   string
	AttendeeEmail  string
	FeeName        string
	Currency       string
	PriceNet       decimal.Decimal
	VATPercentage  decimal.Decimal
	PriceGross     decimal.Decimal
	Status         string
	CreatedAt      time.Time
	CancelledAt    *time.Time
	ReminderSentAt *time.Time
}

// Repo persists registrations.
type Repo struct {
	DB DBTX
}

// WithTx binds the repository to an open transaction.
func (r Repo) WithTx(tx pgx.Tx) Repo { return Repo{DB: tx} }

const registrationColumns = `id, tenant_id, conference_id, fee_type_id, tier, category,
	attendee_name, attendee_email, fee_name, currency,
	price_net::text, vat_percentage::text, price_gross::text,
	status, created_at, cancelled_at, reminder_sent_at`

// Insert stores a new registration with its price snapshot.
func (r Repo) Insert(ctx context.Context, reg Registration) (Registration, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO registrations (tenant_id, conference_id, fee_type_id, tier, category,
			attendee_name, attendee_email, fee_name, currency,
			price_net, vat_percentage, price_gross, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+registrationColumns,
		reg.TenantID, reg.ConferenceID, reg.FeeTypeID, tierString(reg.Tier), reg.Category,
		reg.AttendeeName, reg.AttendeeEmail, reg.FeeName, reg.Currency,
		reg.PriceNet.String(), reg.VATPercentage.String(), reg.PriceGross.String(),
		StatusConfirmed)
	return scanRegistration(row)
}

// Get loads a registration scoped to the tenant.
func (r Repo) Get(ctx context.Context, tenantID, id uuid.UUID) (Registration, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+registrationColumns+`
		FROM registrations WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	reg, err := scanRegistration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Registration{}, ErrNotFound
	}
	return reg, err
}

// ListByConference returns the registrations of a conference, newest first.
func (r Repo) ListByConference(ctx context.Context, tenantID, conferenceID uuid.UUID, limit, offset int32) ([]Registration, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+registrationColumns+`
		FROM registrations
		WHERE conference_id = $1 AND tenant_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`, conferenceID, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

// MarkCancelled flips a confirmed registration to cancelled. It returns
// the updated row, or ErrNotFound when the registration does not exist
// or is already cancelled.
func (r Repo) MarkCancelled(ctx context.Context, tenantID, id uuid.UUID) (Registration, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE registrations SET status = $3, cancelled_at = now()
		WHERE id = $1 AND tenant_id = $2 AND status = $4
		RETURNING `+registrationColumns,
		id, tenantID, StatusCancelled, StatusConfirmed)
	reg, err := scanRegistration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Registration{}, ErrNotFound
	}
	return reg, err
}

// ListReminderDue returns confirmed registrations whose payment
// reminder is due but has not been sent, oldest first. Used by the
// worker sweep to catch enqueues lost at registration time.
func (r Repo) ListReminderDue(ctx context.Context, cutoff time.Time, limit int32) ([]Registration, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+registrationColumns+`
		FROM registrations
		WHERE status = $1 AND reminder_sent_at IS NULL AND created_at <= $2
		ORDER BY created_at
		LIMIT $3`, StatusConfirmed, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

// MarkReminderSent records that the payment reminder went out.
func (r Repo) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE registrations SET reminder_sent_at = now()
		WHERE id = $1 AND reminder_sent_at IS NULL`, id)
	return err
}

func tierString(t *pricing.Tier) *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

func scanRegistration(row pgx.Row) (Registration, error) {
	var (
		reg             Registration
		tier            *string
		net, pct, gross string
	)
	err := row.Scan(&reg.ID, &reg.TenantID, &reg.ConferenceID, &reg.FeeTypeID, &tier, &reg.Category,
		&reg.AttendeeName, &reg.AttendeeEmail, &reg.FeeName, &reg.Currency,
		&net, &pct, &gross,
		&reg.Status, &reg.CreatedAt, &reg.CancelledAt, &reg.ReminderSentAt)
	if err != nil {
		return Registration{}, err
	}
	if tier != nil {
		t := pricing.Tier(*tier)
		reg.Tier = &t
	}
	if reg.PriceNet, err = decimal.NewFromString(net); err != nil {
		return Registration{}, err
	}
	if reg.VATPercentage, err = decimal.NewFromString(pct); err != nil {
		return Registration{}, err
	}
	if reg.PriceGross, err = decimal.NewFromString(gross); err != nil {
		return Registration{}, err
	}
	return reg, nil
}
