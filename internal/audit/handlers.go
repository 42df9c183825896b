package audit

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-confero/internal/common"
	"github.com/noah-isme/backend-confero/internal/tenant"
)

// Handler exposes the audit log listing for administrators.
type Handler struct {
	Store Store
}

// List returns the tenant's audit entries, newest first.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "audit store not configured", nil)
		return
	}
	raw, ok := tenant.From(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant is required", nil)
		return
	}
	tenantID, err := uuid.Parse(raw)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant id must be a uuid", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	entries, err := h.Store.ListAuditLogs(r.Context(), tenantID, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to fetch audit logs", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"auditLogs": entries})
}
