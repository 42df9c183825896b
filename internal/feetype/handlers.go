package feetype

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-confero/internal/common"
	"github.com/noah-isme/backend-confero/internal/tenant"
	"github.com/noah-isme/backend-confero/internal/vat"
)

// Handler exposes administrative fee type management endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type feeTypePayload struct {
	Name          string `json:"name" validate:"required"`
	Description   string `json:"description"`
	PriceNet      string `json:"priceNet" validate:"required"`
	VATPercentage string `json:"vatPercentage"`
	ValidFrom     string `json:"validFrom" validate:"required,datetime=2006-01-02"`
	ValidTo       string `json:"validTo" validate:"required,datetime=2006-01-02"`
	IsActive      *bool  `json:"isActive"`
	Capacity      *int32 `json:"capacity" validate:"omitempty,gte=0"`
	DisplayOrder  int32  `json:"displayOrder"`
}

type previewPayload struct {
	PriceNet      string `json:"priceNet" validate:"required"`
	VATPercentage string `json:"vatPercentage"`
}

// Create inserts a new fee type for a conference.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "fee type service not configured", nil)
		return
	}
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	conferenceID, err := uuid.Parse(chi.URLParam(r, "conferenceID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid conference id", nil)
		return
	}
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	created, err := h.Svc.Create(r.Context(), tenantID, conferenceID, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Update mutates an existing fee type.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "fee type service not configured", nil)
		return
	}
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "feeTypeID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid fee type id", nil)
		return
	}
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	updated, err := h.Svc.Update(r.Context(), tenantID, id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// Delete detaches a fee type from its conference.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "fee type service not configured", nil)
		return
	}
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "feeTypeID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid fee type id", nil)
		return
	}
	if err := h.Svc.Delete(r.Context(), tenantID, id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List returns every fee type of a conference with its live status for
// the admin badge view.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "fee type service not configured", nil)
		return
	}
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	conferenceID, err := uuid.Parse(chi.URLParam(r, "conferenceID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid conference id", nil)
		return
	}
	options, err := h.Svc.Options(r.Context(), tenantID, conferenceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": options})
}

// Preview computes the gross amount for the net price and VAT an admin
// is currently editing. Pure calculation, nothing persisted.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var payload previewPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	net, vatPct, err := parseAmounts(payload.PriceNet, payload.VATPercentage)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error(), nil)
		return
	}
	breakdown, err := PreviewGross(net, vatPct)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"withVat":    vat.FormatAmount(breakdown.WithVAT),
		"withoutVat": vat.FormatAmount(breakdown.WithoutVAT),
		"vatAmount":  vat.FormatAmount(breakdown.VATAmount),
	}})
}

func (h *Handler) tenantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	slug, _ := tenant.From(r.Context())
	id, err := uuid.Parse(slug)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid tenant", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decodeInput(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var payload feeTypePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return Input{}, false
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return Input{}, false
	}
	net, vatPct, err := parseAmounts(payload.PriceNet, payload.VATPercentage)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error(), nil)
		return Input{}, false
	}
	validFrom, err := time.Parse(time.DateOnly, payload.ValidFrom)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid validFrom date", nil)
		return Input{}, false
	}
	validTo, err := time.Parse(time.DateOnly, payload.ValidTo)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid validTo date", nil)
		return Input{}, false
	}
	active := true
	if payload.IsActive != nil {
		active = *payload.IsActive
	}
	return Input{
		Name:          payload.Name,
		Description:   payload.Description,
		PriceNet:      net,
		VATPercentage: vatPct,
		ValidFrom:     validFrom,
		ValidTo:       validTo,
		IsActive:      active,
		Capacity:      payload.Capacity,
		DisplayOrder:  payload.DisplayOrder,
	}, true
}

func (h *Handler) validate(payload any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidDateRange):
		common.JSONError(w, http.StatusBadRequest, "INVALID_DATE_RANGE", "validTo must not precede validFrom", nil)
	case errors.Is(err, vat.ErrInvalidAmount):
		common.JSONError(w, http.StatusBadRequest, "INVALID_AMOUNT", "price and VAT must be non-negative", nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "fee type not found", nil)
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "fee type name already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "fee type operation failed", nil)
	}
}

func parseAmounts(net, vatPct string) (decimal.Decimal, decimal.Decimal, error) {
	parsedNet, err := decimal.NewFromString(strings.TrimSpace(net))
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.New("priceNet must be a decimal number")
	}
	pct := decimal.Zero
	if strings.TrimSpace(vatPct) != "" {
		if pct, err = decimal.NewFromString(strings.TrimSpace(vatPct)); err != nil {
			return decimal.Zero, decimal.Zero, errors.New("vatPercentage must be a decimal number")
		}
	}
	return parsedNet, pct, nil
}
