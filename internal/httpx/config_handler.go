package httpx

import (
	"net/http"
	"strconv"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/pricing"
)

type shippingReq struct {
	Fee *int64 `json:"fee" validate:"required"`
}

type discountReq struct {
	Tiers    []pricing.Tier `json:"tiers" validate:"required"`
	IsActive *bool          `json:"is_active"`
}

type toggleReq struct {
	IsActive *bool `json:"is_active"`
}

func (a *API) getShipping(w http.ResponseWriter, r *http.Request) {
	c, err := a.Pricing.Shipping(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) putShipping(w http.ResponseWriter, r *http.Request) {
	var req shippingReq
	if err := decode(r, &req, false); err != nil {
		a.fail(w, r, err)
		return
	}
	c, err := a.Pricing.SetFee(r.Context(), *req.Fee, identity(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) getDiscount(w http.ResponseWriter, r *http.Request) {
	c, err := a.Pricing.Discount(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if c.Tiers == nil {
		c.Tiers = []pricing.Tier{}
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) putDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountReq
	if err := decode(r, &req, false); err != nil {
		a.fail(w, r, err)
		return
	}
	c, err := a.Pricing.SetDiscount(r.Context(), req.Tiers, req.IsActive, identity(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// toggleDiscount sets is_active when given, otherwise flips it.
func (a *API) toggleDiscount(w http.ResponseWriter, r *http.Request) {
	var req toggleReq
	if err := decode(r, &req, true); err != nil {
		a.fail(w, r, err)
		return
	}
	c, err := a.Pricing.ToggleDiscount(r.Context(), req.IsActive, identity(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// quote prices a subtotal with the current fee and discount configuration.
func (a *API) quote(w http.ResponseWriter, r *http.Request) {
	subtotal, err := strconv.ParseInt(r.URL.Query().Get("subtotal"), 10, 64)
	if err != nil || subtotal < 0 {
		a.fail(w, r, &errBadRequest{msg: "subtotal must be a non-negative integer"})
		return
	}
	t, err := a.Pricing.Quote(r.Context(), subtotal)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
