// Seeder creates a demo tenant with one conference, its tiered pricing,
// a few custom fee types and an admin organizer. Intended for local
// development against an empty database.
package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/noah-isme/backend-confero/internal/auth"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	tenantID := uuid.New()
	if raw := strings.TrimSpace(os.Getenv("SEED_TENANT_ID")); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			log.Fatalf("SEED_TENANT_ID must be a uuid: %v", err)
		}
		tenantID = parsed
	}
	log.Printf("Using Tenant ID: %s", tenantID)

	conferenceID := seedConference(ctx, pool, tenantID)
	seedFeeTypes(ctx, pool, conferenceID)
	seedOrganizer(ctx, pool, tenantID)

	log.Println("Seeding completed successfully!")
}

func seedConference(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID) uuid.UUID {
	log.Println("Seeding conference...")
	year := time.Now().Year() + 1
	starts := time.Date(year, time.June, 15, 9, 0, 0, 0, time.UTC)

	var id uuid.UUID
	err := pool.QueryRow(ctx, `
		INSERT INTO conferences (tenant_id, name, starts_at, currency, vat_percentage, prices_include_vat,
			early_bird_amount, early_bird_start, early_bird_deadline,
			regular_amount, regular_start, regular_end,
			late_amount, late_start, late_end,
			student_early_bird_amount, student_regular_amount, student_late_amount,
			accompanying_person_amount)
		VALUES ($1, $2, $3, 'EUR', 25, FALSE,
			290, $4, $5,
			350, $6, $7,
			420, $8, $9,
			150, 180, 220,
			95)
		RETURNING id`,
		tenantID, "Confero Demo Conference", starts,
		starts.AddDate(0, -6, 0), starts.AddDate(0, -3, 0),
		starts.AddDate(0, -3, 1), starts.AddDate(0, -1, 0),
		starts.AddDate(0, -1, 1), starts,
	).Scan(&id)
	if err != nil {
		log.Fatalf("Failed to seed conference: %v", err)
	}
	return id
}

func seedFeeTypes(ctx context.Context, pool *pgxpool.Pool, conferenceID uuid.UUID) {
	log.Println("Seeding fee types...")
	year := time.Now().Year() + 1
	from := time.Date(year-1, time.December, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.June, 14, 0, 0, 0, 0, time.UTC)

	feeTypes := []struct {
		Name     string
		Net      string
		Capacity *int32
		Order    int32
	}{
		{"Workshop: VAT maths in practice", "80.00", ptr(int32(30)), 1},
		{"Conference dinner", "45.00", ptr(int32(120)), 2},
		{"Online attendance", "120.00", nil, 3},
	}

	for _, ft := range feeTypes {
		_, err := pool.Exec(ctx, `
			INSERT INTO fee_types (conference_id, name, price_net, vat_percentage, price_gross,
				valid_from, valid_to, is_active, capacity, display_order)
			VALUES ($1, $2, $3, 25, $3::numeric * 1.25, $4, $5, TRUE, $6, $7)`,
			conferenceID, ft.Name, ft.Net, from, to, ft.Capacity, ft.Order)
		if err != nil {
			log.Fatalf("Failed to seed fee type %q: %v", ft.Name, err)
		}
	}
}

func seedOrganizer(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID) {
	log.Println("Seeding organizer...")
	email := envOr("SEED_ADMIN_EMAIL", "admin@confero.local")
	password := envOr("SEED_ADMIN_PASSWORD", "changeme123")

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO organizers (tenant_id, name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING`,
		tenantID, "Demo Admin", strings.ToLower(email), hash, auth.RoleAdmin)
	if err != nil {
		log.Fatalf("Failed to seed organizer: %v", err)
	}
	log.Printf("Organizer ready: %s", email)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func ptr[T any](v T) *T { return &v }
