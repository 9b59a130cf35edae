package domain

import "time"

type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// OrderRow is the partial orders row carried by the change feed.
// Line items never travel on the feed; consumers fetch them by id.
type OrderRow struct {
	ID        string     `json:"id"`
	BranchID  string     `json:"branch_id"`
	State     OrderState `json:"state"`
	Total     float64    `json:"total"`
	ItemCount int        `json:"item_count"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// FeedEvent is one change-feed notification. New is set for insert/update,
// Old for update/delete.
type FeedEvent struct {
	Kind EventKind `json:"event_kind"`
	New  *OrderRow `json:"new_record,omitempty"`
	Old  *OrderRow `json:"old_record,omitempty"`
}

// Row returns the row that identifies the affected order.
func (e FeedEvent) Row() *OrderRow {
	if e.New != nil {
		return e.New
	}
	return e.Old
}

// PartialRow projects the feed-visible fields of a full order record.
func (o Order) PartialRow() OrderRow {
	return OrderRow{
		ID:        o.ID,
		BranchID:  o.BranchID,
		State:     o.State,
		Total:     o.Total,
		ItemCount: o.ItemCount,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}
