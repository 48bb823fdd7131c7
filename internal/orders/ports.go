package orders

import (
	"context"
	"time"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/inventory"
)

// Store is the transactional boundary for checkout and the order lifecycle.
type Store interface {
	// WithinTx runs fn in one atomic unit: if fn returns an error every
	// write made through tx is undone.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Order(ctx context.Context, id string) (Order, error)
	OrdersByUser(ctx context.Context, userID string) ([]Order, error)
	// AssignAgent sets the agent iff the order is Confirmed and has none, in
	// a single conditional write.
	AssignAgent(ctx context.Context, orderID, agentID string, at time.Time) (bool, error)
}

type Tx interface {
	inventory.Ledger

	// CartLines returns the user's cart priced at current product prices,
	// ordered by product id.
	CartLines(ctx context.Context, userID string) ([]CartLine, error)
	ClearCart(ctx context.Context, userID string) error
	// ReleaseHolds drops the user's reservations on the given products.
	ReleaseHolds(ctx context.Context, userID string, productIDs []string) error

	OrderByCheckoutKey(ctx context.Context, userID, key string) (Order, bool, error)
	InsertOrder(ctx context.Context, o Order) error
	// LockOrder reads the order and holds it against concurrent lifecycle
	// changes until the transaction ends.
	LockOrder(ctx context.Context, id string) (Order, error)
	// UpdateStatus writes entry.Status and appends entry to the history iff
	// the stored status still equals from.
	UpdateStatus(ctx context.Context, id string, from Status, entry StatusEntry) (bool, error)
}

// Notifier receives committed order changes.
type Notifier interface {
	OrderCreated(ctx context.Context, o Order)
	StatusChanged(ctx context.Context, o Order, from Status)
	Assigned(ctx context.Context, o Order)
}

type NopNotifier struct{}

func (NopNotifier) OrderCreated(context.Context, Order)          {}
func (NopNotifier) StatusChanged(context.Context, Order, Status) {}
func (NopNotifier) Assigned(context.Context, Order)              {}
