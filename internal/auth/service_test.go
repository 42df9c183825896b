package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-confero/internal/auth"
)

type memOrganizers struct {
	byEmail map[string]auth.Organizer
	byID    map[uuid.UUID]auth.Organizer
}

func (m *memOrganizers) GetByEmail(_ context.Context, email string) (auth.Organizer, error) {
	o, ok := m.byEmail[email]
	if !ok {
		return auth.Organizer{}, auth.ErrNotFound
	}
	return o, nil
}

func (m *memOrganizers) GetByID(_ context.Context, id uuid.UUID) (auth.Organizer, error) {
	o, ok := m.byID[id]
	if !ok {
		return auth.Organizer{}, auth.ErrNotFound
	}
	return o, nil
}

func newTestService(t *testing.T, password string) (*auth.Service, auth.Organizer) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	organizer := auth.Organizer{
		ID:           uuid.New(),
		TenantID:     uuid.New(),
		Name:         "Olga",
		Email:        "olga@devconf.example",
		Role:         auth.RoleAdmin,
		PasswordHash: hash,
	}
	store := &memOrganizers{
		byEmail: map[string]auth.Organizer{organizer.Email: organizer},
		byID:    map[uuid.UUID]auth.Organizer{organizer.ID: organizer},
	}
	svc, err := auth.NewService(auth.Config{Store: store, Secret: "test-secret", AccessTokenTTL: 10 * time.Minute})
	require.NoError(t, err)
	return svc, organizer
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	svc, organizer := newTestService(t, "hunter2hunter2")

	result, err := svc.Login(context.Background(), "OLGA@devconf.example", "hunter2hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	require.Equal(t, organizer.ID, result.Organizer.ID)

	claims, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, organizer.ID, claims.OrganizerID)
	require.Equal(t, organizer.TenantID, claims.TenantID)
	require.Equal(t, auth.RoleAdmin, claims.Role)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := newTestService(t, "hunter2hunter2")

	_, err := svc.Login(context.Background(), "olga@devconf.example", "wrong")
	require.Error(t, err)
}

func TestLoginRejectsUnknownOrganizer(t *testing.T) {
	svc, _ := newTestService(t, "hunter2hunter2")

	_, err := svc.Login(context.Background(), "nobody@devconf.example", "hunter2hunter2")
	require.Error(t, err)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	svc, organizer := newTestService(t, "hunter2hunter2")
	svc.WithNow(func() time.Time { return time.Now().Add(-time.Hour) })
	result, err := svc.Login(context.Background(), organizer.Email, "hunter2hunter2")
	require.NoError(t, err)

	svc.WithNow(time.Now)
	_, err = svc.ParseAccessToken(result.AccessToken)
	require.Error(t, err)
}

func TestParseAccessTokenRejectsForeignAlgorithm(t *testing.T) {
	svc, organizer := newTestService(t, "hunter2hunter2")

	// token signed with the right secret but the wrong algorithm family
	tok, err := jwt.NewBuilder().
		Subject(organizer.ID.String()).
		Issuer("backend-confero").
		Audience([]string{"confero-admin"}).
		Expiration(time.Now().Add(time.Hour)).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS512, []byte("test-secret")))
	require.NoError(t, err)

	_, err = svc.ParseAccessToken(string(signed))
	require.Error(t, err)
}

func TestRequireAuthAndRole(t *testing.T) {
	svc, organizer := newTestService(t, "hunter2hunter2")
	result, err := svc.Login(context.Background(), organizer.Email, "hunter2hunter2")
	require.NoError(t, err)

	mw := auth.Middleware{Service: svc}
	var seen auth.Claims
	handler := mw.RequireAuth(mw.RequireRole(auth.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+result.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, organizer.ID, seen.OrganizerID)

	// missing token
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleRejectsEditor(t *testing.T) {
	hash, err := auth.HashPassword("hunter2hunter2")
	require.NoError(t, err)
	editor := auth.Organizer{
		ID:           uuid.New(),
		TenantID:     uuid.New(),
		Email:        "ed@devconf.example",
		Role:         auth.RoleEditor,
		PasswordHash: hash,
	}
	store := &memOrganizers{
		byEmail: map[string]auth.Organizer{editor.Email: editor},
		byID:    map[uuid.UUID]auth.Organizer{editor.ID: editor},
	}
	svc, err := auth.NewService(auth.Config{Store: store, Secret: "test-secret"})
	require.NoError(t, err)
	result, err := svc.Login(context.Background(), editor.Email, "hunter2hunter2")
	require.NoError(t, err)

	mw := auth.Middleware{Service: svc}
	handler := mw.RequireAuth(mw.RequireRole(auth.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+result.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
