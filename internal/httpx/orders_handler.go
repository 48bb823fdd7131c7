package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/orders"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/redisx"
)

type statusReq struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=500"`
}

type statusResp struct {
	OrderID   string        `json:"order_id"`
	Status    orders.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
	Cached    bool          `json:"cached"`
}

func (a *API) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := a.Orders.List(r.Context(), identity(r), r.URL.Query().Get("user_id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.Orders.Get(r.Context(), chi.URLParam(r, "id"), identity(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	who := identity(r)

	// 1) cache
	if s, found, err := a.Cache.Status(r.Context(), id); err == nil && found {
		view := orders.Order{ID: s.OrderID, UserID: s.UserID, AgentID: s.AgentID, Status: orders.Status(s.Status)}
		if orders.CanView(view, who) {
			writeJSON(w, http.StatusOK, statusResp{OrderID: id, Status: view.Status, UpdatedAt: s.UpdatedAt, Cached: true})
			return
		}
	}

	// 2) store
	o, err := a.Orders.Get(r.Context(), id, who)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	_ = a.Cache.SetStatus(r.Context(), redisx.OrderStatus{
		OrderID: o.ID, UserID: o.UserID, AgentID: o.AgentID, Status: string(o.Status), UpdatedAt: o.UpdatedAt,
	})
	writeJSON(w, http.StatusOK, statusResp{OrderID: o.ID, Status: o.Status, UpdatedAt: o.UpdatedAt})
}

func (a *API) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := decode(r, &req, false); err != nil {
		a.fail(w, r, err)
		return
	}
	to, err := orders.ParseStatus(req.Status)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	o, err := a.Orders.Apply(r.Context(), chi.URLParam(r, "id"), to, identity(r), req.Note)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) assign(w http.ResponseWriter, r *http.Request) {
	o, err := a.Orders.Assign(r.Context(), chi.URLParam(r, "id"), identity(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
