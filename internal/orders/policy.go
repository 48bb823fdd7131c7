package orders

import "github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/auth"

// authorize decides whether who may move o to status to. The FSM has
// already accepted the transition.
func authorize(o Order, to Status, who auth.Identity) error {
	switch who.Role {
	case auth.RoleStaff, auth.RoleAdmin, auth.RoleSystem:
		return nil
	case auth.RoleCustomer:
		if o.UserID == who.UserID && to == StatusCancelled && o.Status == StatusAwaitingConfirmation {
			return nil
		}
	case auth.RoleAgent:
		if o.AgentID != "" && o.AgentID == who.UserID && (to == StatusInTransit || to == StatusDelivered) {
			return nil
		}
	}
	return ErrForbidden
}

// CanView reports whether who may read o.
func CanView(o Order, who auth.Identity) bool {
	switch {
	case who.Privileged():
		return true
	case who.Role == auth.RoleAgent:
		return o.AgentID == who.UserID || (o.Status == StatusConfirmed && o.AgentID == "")
	default:
		return o.UserID == who.UserID
	}
}
