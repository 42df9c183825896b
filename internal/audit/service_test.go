package audit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-confero/internal/audit"
	"github.com/noah-isme/backend-confero/internal/common"
	"github.com/noah-isme/backend-confero/internal/tenant"
)

type memStore struct {
	entries []audit.Entry
}

func (m *memStore) InsertAuditLog(_ context.Context, entry audit.Entry) (audit.Entry, error) {
	entry.ID = uuid.New()
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *memStore) ListAuditLogs(_ context.Context, tenantID uuid.UUID, limit, offset int32) ([]audit.Entry, error) {
	var out []audit.Entry
	for _, entry := range m.entries {
		if entry.TenantID != nil && *entry.TenantID == tenantID {
			out = append(out, entry)
		}
	}
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func TestMiddlewareRecordsAdminMutation(t *testing.T) {
	store := &memStore{}
	recorder := audit.HTTPRecorder{Service: &audit.Service{Store: store, Enabled: true}}
	tenantID := uuid.New()
	organizerID := uuid.New()

	r := chi.NewRouter()
	r.With(recorder.Middleware(audit.HTTPConfig{
		ResourceType:    "conference.pricing",
		ResourceIDParam: "conferenceID",
	})).Put("/api/v1/admin/conferences/{conferenceID}/pricing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	confID := uuid.New()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/conferences/"+confID.String()+"/pricing", nil)
	ctx := tenant.With(req.Context(), tenantID.String())
	ctx = common.WithUserID(ctx, organizerID.String())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req.WithContext(ctx))

	require.Len(t, store.entries, 1)
	entry := store.entries[0]
	require.Equal(t, "conference.pricing", entry.ResourceType)
	require.Equal(t, string(audit.ActorKindOrganizer), entry.ActorKind)
	require.Equal(t, organizerID, *entry.ActorID)
	require.Equal(t, tenantID, *entry.TenantID)
	require.Equal(t, confID.String(), *entry.ResourceID)
	require.Equal(t, int32(http.StatusOK), entry.Status)
	require.Equal(t, http.MethodPut, entry.Method)
}

func TestRecordDisabledIsNoop(t *testing.T) {
	store := &memStore{}
	svc := audit.Service{Store: store, Enabled: false}
	req := httptest.NewRequest(http.MethodPut, "/x", nil)

	require.NoError(t, svc.Record(req.Context(), audit.Actor{}, "", "", "", req, 200, nil))
	require.Empty(t, store.entries)
}

func TestListIsTenantScoped(t *testing.T) {
	store := &memStore{}
	mine := uuid.New()
	other := uuid.New()
	for _, tid := range []uuid.UUID{mine, other, mine} {
		id := tid
		_, err := store.InsertAuditLog(context.Background(), audit.Entry{TenantID: &id, Action: "PUT /x"})
		require.NoError(t, err)
	}

	h := audit.Handler{Store: store}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit-logs", nil)
	req = req.WithContext(tenant.With(req.Context(), mine.String()))
	rec := httptest.NewRecorder()
	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), mine.String())
	require.NotContains(t, rec.Body.String(), other.String())
}
