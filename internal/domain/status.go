package domain

// DeliveryStatus tracks the lifecycle of an outbound message.
type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
	StatusFailed    DeliveryStatus = "failed"
)

// statusRank orders delivery statuses for forward-only transitions.
// failed is terminal and only reachable from pending.
var statusRank = map[DeliveryStatus]int{
	StatusPending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
	StatusFailed:    4,
}

// Rank returns the ordering rank of a status, or -1 for unknown values.
func (s DeliveryStatus) Rank() int {
	r, ok := statusRank[s]
	if !ok {
		return -1
	}
	return r
}

// CanAdvance reports whether a record currently at `from` may move to `to`.
// Backward transitions (a delayed "sent" arriving after "read" was recorded)
// are rejected so callers can treat them as no-ops.
func CanAdvance(from, to DeliveryStatus) bool {
	fr, tr := from.Rank(), to.Rank()
	if fr < 0 || tr < 0 {
		return false
	}
	if to == StatusFailed {
		return from == StatusPending
	}
	if from == StatusFailed {
		return false
	}
	return tr > fr
}

// ParseDeliveryStatus maps provider status strings onto the local enum.
func ParseDeliveryStatus(s string) (DeliveryStatus, bool) {
	st := DeliveryStatus(s)
	_, ok := statusRank[st]
	return st, ok
}
