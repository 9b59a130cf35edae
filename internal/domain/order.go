package domain

import "time"

type OrderState string

const (
	StatePending   OrderState = "pending"
	StateConfirmed OrderState = "confirmed"
	StatePreparing OrderState = "preparing"
	StateReady     OrderState = "ready"
	StateDelivered OrderState = "delivered"
	StateCancelled OrderState = "cancelled"
)

// IsTerminal reports whether the order has left the active workflow.
func (s OrderState) IsTerminal() bool {
	return s == StateDelivered || s == StateCancelled
}

func (s OrderState) Valid() bool {
	switch s {
	case StatePending, StateConfirmed, StatePreparing, StateReady, StateDelivered, StateCancelled:
		return true
	}
	return false
}

// CanTransitionTo enforces the workflow: forward one step at a time,
// cancellation reachable from any non-terminal state.
func (s OrderState) CanTransitionTo(next OrderState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateCancelled {
		return true
	}
	switch s {
	case StatePending:
		return next == StateConfirmed
	case StateConfirmed:
		return next == StatePreparing
	case StatePreparing:
		return next == StateReady
	case StateReady:
		return next == StateDelivered
	}
	return false
}

type OrderItem struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
	Notes     string  `json:"notes,omitempty"`
}

// Order is the complete record: the orders row joined with its line items
// and the owning branch name.
type Order struct {
	ID         string      `json:"id"`
	BranchID   string      `json:"branch_id"`
	BranchName string      `json:"branch_name,omitempty"`
	State      OrderState  `json:"state"`
	Total      float64     `json:"total"`
	ItemCount  int         `json:"item_count"`
	LineItems  []OrderItem `json:"line_items,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
