package enum

// Record statuses and payment methods are typed in the database package
// (database.TableStatus, database.OrderStatus, ...). This package holds the
// string labels that have no DB constraint.

// ── Group A: Activity log operations ──

const (
	OpOrderCreate       = "ORDER_CREATE"
	OpOrderComplete     = "ORDER_COMPLETE"
	OpOrderCancel       = "ORDER_CANCEL"
	OpProductAdd        = "PRODUCT_ADD"
	OpProductRemove     = "PRODUCT_REMOVE"
	OpItemComplete      = "ITEM_COMPLETE"
	OpPayment           = "PAYMENT"
	OpTableCreate       = "TABLE_CREATE"
	OpTableDelete       = "TABLE_DELETE"
	OpTableStatusChange = "TABLE_STATUS_CHANGE"
	OpDistribution      = "DISTRIBUTION"
)

// ── Group B: Push event types (websocket + NATS) ──

const (
	EventTableStatusChanged = "table.status_changed"
	EventOrderUpdated       = "order.updated"
	EventItemsChanged       = "order.items_changed"
	EventPaymentRecorded    = "payment.recorded"
)
