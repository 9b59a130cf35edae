package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/CesarCrz/cEatsv2-sub000/internal/common/db"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/logger"
	"github.com/CesarCrz/cEatsv2-sub000/internal/domain"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Publisher pushes change-feed events for every order write.
type Publisher interface {
	PublishEvent(ctx context.Context, ev domain.FeedEvent) error
}

type Orders struct {
	db  *db.Conn
	pub Publisher
	lg  *logger.Logger
}

func NewOrders(conn *db.Conn, pub Publisher) *Orders {
	return &Orders{db: conn, pub: pub, lg: logger.New("order-store")}
}

// publishEvent runs after the transaction committed, so its failure must not
// fail the write: dashboards degrade to a stale view until their next bulk
// load instead of the API reporting an error for a persisted change.
func (s *Orders) publishEvent(ctx context.Context, ev domain.FeedEvent) {
	if err := s.pub.PublishEvent(ctx, ev); err != nil {
		s.lg.Error("feed_publish_failed", err, map[string]any{"kind": ev.Kind, "order_id": ev.Row().ID})
	}
}

const orderColumns = `o.id, o.branch_id, b.name, o.state, o.total, o.item_count, o.created_at, o.updated_at`

// ActiveOrders returns up to limit non-terminal orders for the branch set,
// oldest first, with line items attached.
func (s *Orders) ActiveOrders(ctx context.Context, branchIDs []string, limit int) ([]domain.Order, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+orderColumns+`
FROM orders o
JOIN branches b ON b.id = o.branch_id
WHERE o.branch_id = ANY($1)
  AND o.state NOT IN ('delivered', 'cancelled')
ORDER BY o.created_at ASC
LIMIT $2
`, branchIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("query active orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// OrderByID returns the complete record or ErrNotFound.
func (s *Orders) OrderByID(ctx context.Context, id string) (domain.Order, error) {
	row := s.db.QueryRow(ctx, `
SELECT `+orderColumns+`
FROM orders o
JOIN branches b ON b.id = o.branch_id
WHERE o.id = $1
`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	list := []domain.Order{o}
	if err := s.attachItems(ctx, list); err != nil {
		return domain.Order{}, err
	}
	return list[0], nil
}

// CreateOrder records a new pending order and emits an insert event.
func (s *Orders) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	if err := req.Validate(); err != nil {
		return domain.Order{}, err
	}

	o := domain.Order{
		ID:       uuid.NewString(),
		BranchID: req.BranchID,
		State:    domain.StatePending,
	}
	for _, it := range req.Items {
		line := float64(it.Quantity) * it.UnitPrice
		o.Total += line
		o.ItemCount += it.Quantity
		o.LineItems = append(o.LineItems, domain.OrderItem{
			Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice,
			LineTotal: line, Notes: it.Notes,
		})
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
INSERT INTO orders (id, branch_id, state, total, item_count, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
RETURNING created_at, updated_at
`, o.ID, o.BranchID, o.State, o.Total, o.ItemCount).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	for _, it := range o.LineItems {
		_, err = tx.Exec(ctx, `
INSERT INTO order_items (order_id, name, quantity, unit_price, line_total, notes)
VALUES ($1, $2, $3, $4, $5, $6)
`, o.ID, it.Name, it.Quantity, it.UnitPrice, it.LineTotal, it.Notes)
		if err != nil {
			return domain.Order{}, fmt.Errorf("insert order item %s: %w", it.Name, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	row := o.PartialRow()
	s.publishEvent(ctx, domain.FeedEvent{Kind: domain.EventInsert, New: &row})
	return o, nil
}

// UpdateOrderState applies a validated workflow transition and emits an
// update event carrying the old and new partial rows.
func (s *Orders) UpdateOrderState(ctx context.Context, id string, next domain.OrderState) (domain.Order, error) {
	if !next.Valid() {
		return domain.Order{}, fmt.Errorf("%w: unknown state %q", ErrInvalidTransition, next)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var old domain.OrderRow
	err = tx.QueryRow(ctx, `
SELECT id, branch_id, state, total, item_count, created_at, updated_at
FROM orders WHERE id = $1 FOR UPDATE
`, id).Scan(&old.ID, &old.BranchID, &old.State, &old.Total, &old.ItemCount, &old.CreatedAt, &old.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("lock order: %w", err)
	}
	if !old.State.CanTransitionTo(next) {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, old.State, next)
	}

	// Terminal transitions stamp their own timestamp column.
	var updatedAt time.Time
	switch next {
	case domain.StateDelivered:
		err = tx.QueryRow(ctx, `
UPDATE orders SET state = $2, updated_at = NOW(), delivered_at = NOW() WHERE id = $1
RETURNING updated_at`, id, next).Scan(&updatedAt)
	case domain.StateCancelled:
		err = tx.QueryRow(ctx, `
UPDATE orders SET state = $2, updated_at = NOW(), cancelled_at = NOW() WHERE id = $1
RETURNING updated_at`, id, next).Scan(&updatedAt)
	default:
		err = tx.QueryRow(ctx, `
UPDATE orders SET state = $2, updated_at = NOW() WHERE id = $1
RETURNING updated_at`, id, next).Scan(&updatedAt)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order state: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	newRow := old
	newRow.State = next
	newRow.UpdatedAt = updatedAt
	s.publishEvent(ctx, domain.FeedEvent{Kind: domain.EventUpdate, New: &newRow, Old: &old})

	return s.OrderByID(ctx, id)
}

// DeleteOrder removes the order and emits a delete event.
func (s *Orders) DeleteOrder(ctx context.Context, id string) error {
	var old domain.OrderRow
	err := s.db.QueryRow(ctx, `
DELETE FROM orders WHERE id = $1
RETURNING id, branch_id, state, total, item_count, created_at, updated_at
`, id).Scan(&old.ID, &old.BranchID, &old.State, &old.Total, &old.ItemCount, &old.CreatedAt, &old.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	s.publishEvent(ctx, domain.FeedEvent{Kind: domain.EventDelete, Old: &old})
	return nil
}

type Summary struct {
	Orders  int     `json:"orders"`
	Revenue float64 `json:"revenue"`
}

// TodaySummary aggregates today's volume for the branch set. Cancelled
// orders are excluded from revenue.
func (s *Orders) TodaySummary(ctx context.Context, branchIDs []string) (Summary, error) {
	var sum Summary
	err := s.db.QueryRow(ctx, `
SELECT COUNT(*), COALESCE(SUM(total) FILTER (WHERE state <> 'cancelled'), 0)
FROM orders
WHERE branch_id = ANY($1) AND created_at >= date_trunc('day', NOW())
`, branchIDs).Scan(&sum.Orders, &sum.Revenue)
	if err != nil {
		return Summary{}, fmt.Errorf("today summary: %w", err)
	}
	return sum, nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.BranchID, &o.BranchName, &o.State, &o.Total, &o.ItemCount, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *Orders) attachItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	idx := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		idx[o.ID] = i
	}
	rows, err := s.db.Query(ctx, `
SELECT order_id, name, quantity, unit_price, line_total, COALESCE(notes, '')
FROM order_items
WHERE order_id = ANY($1)
ORDER BY id ASC
`, ids)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var orderID string
		var it domain.OrderItem
		if err := rows.Scan(&orderID, &it.Name, &it.Quantity, &it.UnitPrice, &it.LineTotal, &it.Notes); err != nil {
			return err
		}
		if i, ok := idx[orderID]; ok {
			orders[i].LineItems = append(orders[i].LineItems, it)
		}
	}
	return rows.Err()
}
