package orders

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status.changed"
	TopicOrderAssigned      = "order.assigned"
	TopicPaymentConfirmed   = "payment.confirmed"
)

// Partition key = order id, so every event of one order stays in order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
