package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/inventory"
)

type reserveReq struct {
	ProductID  string `json:"product_id" validate:"required,max=64"`
	Qty        int    `json:"qty" validate:"required,gt=0,lte=999"`
	TTLSeconds int    `json:"ttl_seconds" validate:"omitempty,gt=0,lte=3600"`
}

type stockReq struct {
	Delta *int `json:"delta" validate:"required"`
}

type productReq struct {
	Name       string `json:"name" validate:"required,max=200"`
	PriceCents *int64 `json:"price_cents" validate:"required,gte=0"`
	Stock      *int   `json:"stock" validate:"required,gte=0"`
}

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := a.Catalog.ListProducts(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (a *API) availability(w http.ResponseWriter, r *http.Request) {
	av, err := a.Inventory.Available(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, av)
}

func (a *API) reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveReq
	if err := decode(r, &req, false); err != nil {
		a.fail(w, r, err)
		return
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second
	res, err := a.Inventory.Reserve(r.Context(), identity(r).UserID, req.ProductID, req.Qty, ttl)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) putProduct(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := decode(r, &req, false); err != nil {
		a.fail(w, r, err)
		return
	}
	p := inventory.Product{ID: chi.URLParam(r, "id"), Name: req.Name, PriceCents: *req.PriceCents, Stock: *req.Stock}
	if err := a.Catalog.SaveProduct(r.Context(), p); err != nil {
		a.fail(w, r, err)
		return
	}
	saved, err := a.Catalog.Product(r.Context(), p.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.log().Info("product saved", zap.String("product_id", p.ID), zap.String("actor", identity(r).UserID))
	writeJSON(w, http.StatusOK, saved)
}

func (a *API) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req stockReq
	if err := decode(r, &req, false); err != nil {
		a.fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	p, err := a.Inventory.Adjust(r.Context(), id, *req.Delta)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.log().Info("stock adjusted",
		zap.String("product_id", id),
		zap.Int("delta", *req.Delta),
		zap.Int("stock", p.Stock),
		zap.String("actor", identity(r).UserID),
	)
	writeJSON(w, http.StatusOK, p)
}
