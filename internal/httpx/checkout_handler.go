package httpx

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/checkout"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/orders"
)

const headerIdempotencyKey = "Idempotency-Key"

type checkoutReq struct {
	ShippingAddress string `json:"shipping_address" validate:"max=500"`
	PaymentMethod   string `json:"payment_method" validate:"max=32"`
}

type checkoutResp struct {
	Order      orders.Order `json:"order"`
	Idempotent bool         `json:"idempotent"`
}

func (a *API) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := decode(r, &req, true); err != nil {
		a.fail(w, r, err)
		return
	}
	who := identity(r)
	key := r.Header.Get(headerIdempotencyKey)
	if len(key) > 128 {
		a.fail(w, r, &errBadRequest{msg: "idempotency key too long"})
		return
	}

	// fast path; the store remains the source of truth
	if key != "" {
		if id, found, err := a.Cache.CheckoutOrderID(r.Context(), who.UserID, key); err != nil {
			a.log().Warn("idempotency cache read failed", zap.Error(err))
		} else if found {
			if o, err := a.Orders.Get(r.Context(), id, who); err == nil {
				writeJSON(w, http.StatusOK, checkoutResp{Order: o, Idempotent: true})
				return
			}
		}
	}

	res, err := a.Checkout.Checkout(r.Context(), checkout.Request{
		UserID:          who.UserID,
		IdempotencyKey:  key,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if key != "" {
		if err := a.Cache.RememberCheckout(r.Context(), who.UserID, key, res.Order.ID); err != nil {
			a.log().Warn("idempotency cache write failed", zap.String("order_id", res.Order.ID), zap.Error(err))
		}
	}

	code := http.StatusCreated
	if res.Idempotent {
		code = http.StatusOK
	}
	writeJSON(w, code, checkoutResp{Order: res.Order, Idempotent: res.Idempotent})
}
