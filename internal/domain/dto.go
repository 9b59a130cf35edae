package domain

import "fmt"

// CreateOrderRequest is the intake payload relayed from the WhatsApp channel.
type CreateOrderRequest struct {
	BranchID string            `json:"branch_id"`
	Items    []CreateOrderItem `json:"items"`
}

type CreateOrderItem struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Notes     string  `json:"notes,omitempty"`
}

func (r CreateOrderRequest) Validate() error {
	if r.BranchID == "" {
		return fmt.Errorf("branch_id is required")
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("at least one item is required")
	}
	for _, it := range r.Items {
		if it.Name == "" {
			return fmt.Errorf("item name is required")
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("invalid quantity for item %s", it.Name)
		}
		if it.UnitPrice < 0 {
			return fmt.Errorf("invalid price for item %s", it.Name)
		}
	}
	return nil
}

type CreateOrderResponse struct {
	ID    string     `json:"id"`
	State OrderState `json:"state"`
	Total float64    `json:"total"`
}

type UpdateStateRequest struct {
	State OrderState `json:"state"`
}
