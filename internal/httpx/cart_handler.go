package httpx

import (
	"net/http"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/cart"
)

type cartItemReq struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	Qty       *int   `json:"qty" validate:"required,gte=0,lte=999"`
}

type cartResp struct {
	Items []cart.Item `json:"items"`
}

func newCartResp(items []cart.Item) cartResp {
	if items == nil {
		items = []cart.Item{}
	}
	return cartResp{Items: items}
}

func (a *API) getCart(w http.ResponseWriter, r *http.Request) {
	items, err := a.Cart.Items(r.Context(), identity(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResp(items))
}

func (a *API) setCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemReq
	if err := decode(r, &req, false); err != nil {
		a.fail(w, r, err)
		return
	}
	items, err := a.Cart.SetItem(r.Context(), identity(r).UserID, req.ProductID, *req.Qty)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResp(items))
}

func (a *API) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := a.Cart.Clear(r.Context(), identity(r).UserID); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
