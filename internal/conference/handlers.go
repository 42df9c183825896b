package conference

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-confero/internal/common"
	"github.com/noah-isme/backend-confero/internal/pricing"
	"github.com/noah-isme/backend-confero/internal/tenant"
	"github.com/noah-isme/backend-confero/internal/vat"
)

// Handler exposes the pricing configuration endpoints and the public
// fee quote.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type tierPayload struct {
	Amount    string `json:"amount"`
	StartDate string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
}

type pricingPayload struct {
	Currency           string      `json:"currency" validate:"required,len=3"`
	VATPercentage      string      `json:"vatPercentage"`
	PricesIncludeVAT   bool        `json:"pricesIncludeVat"`
	EarlyBird          tierPayload `json:"earlyBird"`
	Regular            tierPayload `json:"regular"`
	Late               tierPayload `json:"late"`
	StudentEarlyBird   string      `json:"studentEarlyBird"`
	StudentRegular     string      `json:"studentRegular"`
	StudentLate        string      `json:"studentLate"`
	AccompanyingPerson string      `json:"accompanyingPerson"`
}

// GetPricing returns the stored pricing configuration for the admin
// editor, fee types included.
func (h *Handler) GetPricing(w http.ResponseWriter, r *http.Request) {
	tenantID, conferenceID, ok := h.ids(w, r)
	if !ok {
		return
	}
	conf, err := h.Svc.GetPricing(r.Context(), tenantID, conferenceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": pricingView(conf)})
}

// UpdatePricing replaces the pricing configuration of a conference.
func (h *Handler) UpdatePricing(w http.ResponseWriter, r *http.Request) {
	tenantID, conferenceID, ok := h.ids(w, r)
	if !ok {
		return
	}
	var payload pricingPayload
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
	params, err := payload.params()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error(), nil)
		return
	}
	conf, err := h.Svc.UpdatePricing(r.Context(), tenantID, conferenceID, params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": pricingView(conf)})
}

// QuoteFees returns the fee options a registrant can see right now.
func (h *Handler) QuoteFees(w http.ResponseWriter, r *http.Request) {
	tenantID, conferenceID, ok := h.ids(w, r)
	if !ok {
		return
	}
	quote, err := h.Svc.QuoteFees(r.Context(), tenantID, conferenceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": quote})
}

func (h *Handler) ids(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "conference service not configured", nil)
		return uuid.Nil, uuid.Nil, false
	}
	slug, _ := tenant.From(r.Context())
	tenantID, err := uuid.Parse(slug)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid tenant", nil)
		return uuid.Nil, uuid.Nil, false
	}
	conferenceID, err := uuid.Parse(chi.URLParam(r, "conferenceID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid conference id", nil)
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, conferenceID, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "conference not found", nil)
	case errors.Is(err, ErrInvalidDateRange):
		common.JSONError(w, http.StatusBadRequest, "INVALID_DATE_RANGE", "tier end date must not precede its start date", nil)
	case errors.Is(err, vat.ErrInvalidAmount):
		common.JSONError(w, http.StatusBadRequest, "INVALID_AMOUNT", "amounts and VAT must be non-negative", nil)
	case errors.Is(err, pricing.ErrNoActiveTier):
		common.JSONError(w, http.StatusConflict, "REGISTRATION_CLOSED", "no pricing tier is active for this date", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "conference operation failed", nil)
	}
}

func (p pricingPayload) params() (PricingParams, error) {
	out := PricingParams{
		Currency:         strings.ToUpper(strings.TrimSpace(p.Currency)),
		PricesIncludeVAT: p.PricesIncludeVAT,
	}
	var err error
	if out.VATPercentage, err = optDecimal(p.VATPercentage, "vatPercentage"); err != nil {
		return PricingParams{}, err
	}
	if out.EarlyBird, err = p.EarlyBird.tier("earlyBird"); err != nil {
		return PricingParams{}, err
	}
	if out.Regular, err = p.Regular.tier("regular"); err != nil {
		return PricingParams{}, err
	}
	if out.Late, err = p.Late.tier("late"); err != nil {
		return PricingParams{}, err
	}
	if out.StudentEarlyBird, err = optDecimal(p.StudentEarlyBird, "studentEarlyBird"); err != nil {
		return PricingParams{}, err
	}
	if out.StudentRegular, err = optDecimal(p.StudentRegular, "studentRegular"); err != nil {
		return PricingParams{}, err
	}
	if out.StudentLate, err = optDecimal(p.StudentLate, "studentLate"); err != nil {
		return PricingParams{}, err
	}
	if out.AccompanyingPerson, err = optDecimal(p.AccompanyingPerson, "accompanyingPerson"); err != nil {
		return PricingParams{}, err
	}
	return out, nil
}

func (p tierPayload) tier(field string) (pricing.TierPrice, error) {
	var out pricing.TierPrice
	var err error
	if out.Amount, err = optDecimal(p.Amount, field+".amount"); err != nil {
		return pricing.TierPrice{}, err
	}
	if out.StartDate, err = optDate(p.StartDate); err != nil {
		return pricing.TierPrice{}, errors.New(field + ".startDate must be a YYYY-MM-DD date")
	}
	if out.EndDate, err = optDate(p.EndDate); err != nil {
		return pricing.TierPrice{}, errors.New(field + ".endDate must be a YYYY-MM-DD date")
	}
	return out, nil
}

func optDecimal(s, field string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, errors.New(field + " must be a decimal number")
	}
	return &d, nil
}

func optDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type tierView struct {
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	StartDate *string          `json:"startDate,omitempty"`
	EndDate   *string          `json:"endDate,omitempty"`
}

type pricingViewBody struct {
	ConferenceID       uuid.UUID        `json:"conferenceId"`
	Name               string           `json:"name"`
	Currency           string           `json:"currency"`
	VATPercentage      *decimal.Decimal `json:"vatPercentage,omitempty"`
	PricesIncludeVAT   bool             `json:"pricesIncludeVat"`
	EarlyBird          tierView         `json:"earlyBird"`
	Regular            tierView         `json:"regular"`
	Late               tierView         `json:"late"`
	StudentEarlyBird   *decimal.Decimal `json:"studentEarlyBird,omitempty"`
	StudentRegular     *decimal.Decimal `json:"studentRegular,omitempty"`
	StudentLate        *decimal.Decimal `json:"studentLate,omitempty"`
	AccompanyingPerson *decimal.Decimal `json:"accompanyingPerson,omitempty"`
	FeeTypes           []feeTypeView    `json:"feeTypes"`
}

type feeTypeView struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	PriceNet      decimal.Decimal `json:"priceNet"`
	VATPercentage decimal.Decimal `json:"vatPercentage"`
	PriceGross    decimal.Decimal `json:"priceGross"`
	ValidFrom     string          `json:"validFrom"`
	ValidTo       string          `json:"validTo"`
	IsActive      bool            `json:"isActive"`
	Capacity      *int32          `json:"capacity,omitempty"`
	SoldCount     int32           `json:"soldCount"`
	DisplayOrder  int32           `json:"displayOrder"`
}

func pricingView(c Conference) pricingViewBody {
	s := c.Pricing.Schedule
	body := pricingViewBody{
		ConferenceID:       c.ID,
		Name:               c.Name,
		Currency:           c.Pricing.Currency,
		VATPercentage:      c.Pricing.VATPercentage,
		PricesIncludeVAT:   c.Pricing.PricesIncludeVAT,
		EarlyBird:          viewTier(s.EarlyBird),
		Regular:            viewTier(s.Regular),
		Late:               viewTier(s.Late),
		StudentEarlyBird:   s.StudentEarlyBird,
		StudentRegular:     s.StudentRegular,
		StudentLate:        s.StudentLate,
		AccompanyingPerson: s.AccompanyingPerson,
		FeeTypes:           make([]feeTypeView, 0, len(c.Pricing.FeeTypes)),
	}
	for _, ft := range c.Pricing.FeeTypes {
		body.FeeTypes = append(body.FeeTypes, feeTypeView{
			ID:            ft.ID,
			Name:          ft.Name,
			Description:   ft.Description,
			PriceNet:      ft.PriceNet,
			VATPercentage: ft.VATPercentage,
			PriceGross:    ft.PriceGross,
			ValidFrom:     ft.ValidFrom.Format(time.DateOnly),
			ValidTo:       ft.ValidTo.Format(time.DateOnly),
			IsActive:      ft.IsActive,
			Capacity:      ft.Capacity,
			SoldCount:     ft.SoldCount,
			DisplayOrder:  ft.DisplayOrder,
		})
	}
	return body
}

func viewTier(t pricing.TierPrice) tierView {
	v := tierView{Amount: t.Amount}
	if t.StartDate != nil {
		s := t.StartDate.Format(time.DateOnly)
		v.StartDate = &s
	}
	if t.EndDate != nil {
		s := t.EndDate.Format(time.DateOnly)
		v.EndDate = &s
	}
	return v
}
