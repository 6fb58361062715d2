package entity

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusApproved  OrderStatus = "approved"
	StatusDownPaid  OrderStatus = "down_paid"
	StatusConfirmed OrderStatus = "confirmed"
	StatusShipped   OrderStatus = "shipped"
	StatusCancelled OrderStatus = "cancelled"
)

// orderTransitions is the single source of truth for legal status moves.
// Anything absent here is rejected by the workflow.
var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusApproved, StatusCancelled},
	StatusApproved:  {StatusDownPaid, StatusCancelled},
	StatusDownPaid:  {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped},
}

// CanTransitionTo reports whether moving from s to target is legal.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// Valid reports whether s is a known lifecycle state.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDownPaid, StatusConfirmed, StatusShipped, StatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) String() string { return string(s) }
