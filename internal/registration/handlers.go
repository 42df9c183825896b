package registration

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-confero/internal/common"
	"github.com/noah-isme/backend-confero/internal/conference"
	"github.com/noah-isme/backend-confero/internal/feetype"
	"github.com/noah-isme/backend-confero/internal/pricing"
	"github.com/noah-isme/backend-confero/internal/tenant"
	"github.com/noah-isme/backend-confero/internal/vat"
)

// Handler exposes the registration endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type registerPayload struct {
	FeeTypeID     string `json:"feeTypeId" validate:"omitempty,uuid"`
	Category      string `json:"category" validate:"omitempty,oneof=participant student accompanying_person"`
	AttendeeName  string `json:"attendeeName" validate:"required"`
	AttendeeEmail string `json:"attendeeEmail" validate:"required,email"`
}

type registrationView struct {
	ID            uuid.UUID  `json:"id"`
	ConferenceID  uuid.UUID  `json:"conferenceId"`
	FeeTypeID     *uuid.UUID `json:"feeTypeId,omitempty"`
	Tier          string     `json:"tier,omitempty"`
	Category      string     `json:"category"`
	AttendeeName  string     `json:"attendeeName"`
	AttendeeEmail string     `json:"attendeeEmail"`
	FeeName       string     `json:"feeName"`
	Currency      string     `json:"currency"`
	PriceNet      string     `json:"priceNet"`
	VATPercentage string     `json:"vatPercentage"`
	PriceGross    string     `json:"priceGross"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	CancelledAt   *time.Time `json:"cancelledAt,omitempty"`
}

// Register submits a new registration.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	conferenceID, err := uuid.Parse(chi.URLParam(r, "conferenceID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid conference id", nil)
		return
	}
	var payload registerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
	}
	in := Input{
		Category:      payload.Category,
		AttendeeName:  payload.AttendeeName,
		AttendeeEmail: payload.AttendeeEmail,
	}
	if payload.FeeTypeID != "" {
		id, err := uuid.Parse(payload.FeeTypeID)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid fee type id", nil)
			return
		}
		in.FeeTypeID = &id
	}
	created, err := h.Svc.Register(r.Context(), tenantID, conferenceID, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": view(created)})
}

// Cancel marks a registration cancelled and reopens its slot.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "registrationID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid registration id", nil)
		return
	}
	cancelled, err := h.Svc.Cancel(r.Context(), tenantID, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view(cancelled)})
}

// Get returns one registration.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "registrationID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid registration id", nil)
		return
	}
	reg, err := h.Svc.Get(r.Context(), tenantID, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view(reg)})
}

// List returns the registrations of a conference for the admin view.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	conferenceID, err := uuid.Parse(chi.URLParam(r, "conferenceID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid conference id", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	regs, err := h.Svc.List(r.Context(), tenantID, conferenceID, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		h.writeError(w, err)
		return
	}
	views := make([]registrationView, 0, len(regs))
	for _, reg := range regs {
		views = append(views, view(reg))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views})
}

func (h *Handler) tenantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "registration service not configured", nil)
		return uuid.Nil, false
	}
	slug, _ := tenant.From(r.Context())
	id, err := uuid.Parse(slug)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid tenant", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, feetype.ErrCapacityExceeded):
		common.JSONError(w, http.StatusConflict, "SOLD_OUT", "the chosen fee is sold out", nil)
	case errors.Is(err, pricing.ErrNoActiveTier), errors.Is(err, ErrFeeUnavailable):
		common.JSONError(w, http.StatusConflict, "REGISTRATION_CLOSED", "registration is not open for this fee", nil)
	case errors.Is(err, ErrUnknownCategory):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "no price configured for this attendee category", nil)
	case errors.Is(err, ErrNotFound), errors.Is(err, feetype.ErrNotFound), errors.Is(err, conference.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "registration operation failed", nil)
	}
}

func view(reg Registration) registrationView {
	v := registrationView{
		ID:            reg.ID,
		ConferenceID:  reg.ConferenceID,
		FeeTypeID:     reg.FeeTypeID,
		Category:      reg.Category,
		AttendeeName:  reg.AttendeeName,
		AttendeeEmail: reg.AttendeeEmail,
		FeeName:       reg.FeeName,
		Currency:      reg.Currency,
		PriceNet:      vat.FormatAmount(reg.PriceNet),
		VATPercentage: vat.FormatAmount(reg.VATPercentage),
		PriceGross:    vat.FormatAmount(reg.PriceGross),
		Status:        reg.Status,
		CreatedAt:     reg.CreatedAt,
		CancelledAt:   reg.CancelledAt,
	}
	if reg.Tier != nil {
		v.Tier = string(*reg.Tier)
	}
	return v
}
