package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/auth"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/cart"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/checkout"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/inventory"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/orders"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/pricing"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/redisx"
)

// API holds every handler dependency. Cache may be nil.
type API struct {
	Auth      *auth.Provider
	Checkout  *checkout.Coordinator
	Orders    *orders.Machine
	Cart      *cart.Service
	Inventory *inventory.Service
	Catalog   inventory.CatalogAdmin
	Pricing   *pricing.Service
	Cache     *redisx.Cache
	Log       *zap.Logger
}

func (a *API) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(a.Auth.Middleware)

		r.With(auth.RequireRole(auth.RoleCustomer)).Post("/checkout", a.checkout)

		r.Get("/orders", a.listOrders)
		r.Get("/orders/{id}", a.getOrder)
		r.Get("/orders/{id}/status", a.getOrderStatus)
		r.Patch("/orders/{id}/status", a.changeStatus)
		r.With(auth.RequireRole(auth.RoleAgent)).Put("/orders/{id}/assign", a.assign)

		r.Get("/cart", a.getCart)
		r.Put("/cart/items", a.setCartItem)
		r.Delete("/cart", a.clearCart)

		r.Get("/products", a.listProducts)
		r.Get("/products/{id}/availability", a.availability)
		r.Post("/reservations", a.reserve)

		r.Get("/config/shipping", a.getShipping)
		r.Get("/config/discount", a.getDiscount)
		r.Get("/pricing/quote", a.quote)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))
			r.Put("/config/shipping", a.putShipping)
			r.Put("/config/discount", a.putDiscount)
			r.Put("/config/discount/toggle", a.toggleDiscount)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin, auth.RoleStaff))
			r.Put("/admin/products/{id}", a.putProduct)
			r.Post("/admin/products/{id}/stock", a.adjustStock)
		})
	})
}

func (a *API) log() *zap.Logger {
	if a.Log != nil {
		return a.Log
	}
	return zap.NewNop()
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, a.log(), err)
}

// identity is set by auth.Provider.Middleware on every route here.
func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}
