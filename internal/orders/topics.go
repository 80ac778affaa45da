package orders

const (
	TopicOrderPlaced        = "bakery.order.placed"
	TopicOrderStatusChanged = "bakery.order.status_changed"
	TopicCredentialIssued   = "bakery.pickup.credential_issued"
)

// PartitionKey keeps every event of one order on the same partition so they
// are consumed in order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
