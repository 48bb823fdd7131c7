package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/cart"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/inventory"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/orders"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/pricing"
)

// errBadRequest marks malformed or invalid request bodies.
type errBadRequest struct {
	msg    string
	fields map[string]string
}

func (e *errBadRequest) Error() string { return e.msg }

type errorBody struct {
	Error   string         `json:"error"`
	Kind    string         `json:"kind"`
	Details map[string]any `json:"details,omitempty"`
}

// Kind names err for API clients. Unknown errors are "internal".
func Kind(err error) string {
	var (
		ise *orders.InsufficientStockError
		ite *orders.InvalidTransitionError
		bad *errBadRequest
	)
	switch {
	case errors.As(err, &bad):
		return "invalid_request"
	case errors.As(err, &ise):
		return "insufficient_stock"
	case errors.As(err, &ite):
		return "invalid_transition"
	case errors.Is(err, orders.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, orders.ErrAlreadyAssigned):
		return "already_assigned"
	case errors.Is(err, orders.ErrNotAssignable):
		return "not_assignable"
	case errors.Is(err, orders.ErrDuplicateCheckout):
		return "duplicate_checkout"
	case errors.Is(err, pricing.ErrInvalidConfig):
		return "config_validation"
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, inventory.ErrProductNotFound):
		return "not_found"
	case errors.Is(err, orders.ErrForbidden):
		return "forbidden"
	case errors.Is(err, orders.ErrUnknownStatus):
		return "unknown_status"
	case errors.Is(err, inventory.ErrInvalidQuantity), errors.Is(err, cart.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, inventory.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, cart.ErrThrottled):
		return "throttled"
	case errors.Is(err, orders.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "internal"
}

var kindStatus = map[string]int{
	"invalid_request":    http.StatusBadRequest,
	"insufficient_stock": http.StatusConflict,
	"invalid_transition": http.StatusConflict,
	"empty_cart":         http.StatusUnprocessableEntity,
	"already_assigned":   http.StatusConflict,
	"not_assignable":     http.StatusConflict,
	"duplicate_checkout": http.StatusConflict,
	"config_validation":  http.StatusBadRequest,
	"not_found":          http.StatusNotFound,
	"forbidden":          http.StatusForbidden,
	"unknown_status":     http.StatusBadRequest,
	"invalid_quantity":   http.StatusBadRequest,
	"unavailable":        http.StatusConflict,
	"throttled":          http.StatusTooManyRequests,
	"store_unavailable":  http.StatusServiceUnavailable,
	"timeout":            http.StatusGatewayTimeout,
}

func HTTPStatus(err error) int {
	if code, ok := kindStatus[Kind(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func details(err error) map[string]any {
	var (
		ise *orders.InsufficientStockError
		ite *orders.InvalidTransitionError
		ve  *pricing.ValidationError
		bad *errBadRequest
	)
	switch {
	case errors.As(err, &ise):
		return map[string]any{"product_id": ise.ProductID, "product_name": ise.ProductName, "requested": ise.Requested}
	case errors.As(err, &ite):
		return map[string]any{"from": ite.From, "to": ite.To}
	case errors.As(err, &ve):
		return map[string]any{"field": ve.Field, "reason": ve.Reason}
	case errors.As(err, &bad) && len(bad.fields) > 0:
		out := make(map[string]any, len(bad.fields))
		for k, v := range bad.fields {
			out[k] = v
		}
		return out
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	kind := Kind(err)
	code := HTTPStatus(err)
	msg := err.Error()
	if code >= 500 {
		log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("kind", kind),
			zap.Error(err),
		)
		if kind == "internal" {
			msg = "internal error"
		}
	}
	writeJSON(w, code, errorBody{Error: msg, Kind: kind, Details: details(err)})
}
