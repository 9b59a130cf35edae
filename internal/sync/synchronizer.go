// Package sync keeps a client-local view of active orders consistent with
// the order change feed. One Synchronizer is owned by exactly one dashboard
// session; all mutation happens on its single event loop goroutine, so two
// feed events are never handled concurrently.
package sync

import (
	"context"
	stdsync "sync"

	"github.com/CesarCrz/cEatsv2-sub000/internal/alert"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/logger"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/metrics"
	"github.com/CesarCrz/cEatsv2-sub000/internal/domain"
	"github.com/CesarCrz/cEatsv2-sub000/internal/feed"
)

// Store is the slice of the order store the synchronizer reads.
type Store interface {
	ActiveOrders(ctx context.Context, branchIDs []string, limit int) ([]domain.Order, error)
	OrderByID(ctx context.Context, id string) (domain.Order, error)
}

const DefaultMaxInitialOrders = 50

type Options struct {
	BranchIDs []string
	Store     Store
	Feed      feed.Feed
	Alerts    *alert.Controller

	// MaxInitialOrders bounds the bulk load; 0 means DefaultMaxInitialOrders.
	MaxInitialOrders int

	OnNewOrder    func(domain.Order)
	OnOrderUpdate func(domain.Order)
}

// record tags each in-memory order with a monotonic event sequence so a
// stale full-refetch can never overwrite a newer partial apply.
type record struct {
	order domain.Order
	seq   uint64
}

type Synchronizer struct {
	opts Options
	lg   *logger.Logger

	mu      stdsync.RWMutex
	list    []*record
	index   map[string]*record
	status  feed.Status
	newCnt  int
	seq     uint64
	closed  bool

	sub       feed.Subscription
	closeOnce stdsync.Once
	loopDone  chan struct{}
}

func New(opts Options) *Synchronizer {
	if opts.MaxInitialOrders <= 0 {
		opts.MaxInitialOrders = DefaultMaxInitialOrders
	}
	return &Synchronizer{
		opts:     opts,
		lg:       logger.New("order-sync"),
		index:    make(map[string]*record),
		status:   feed.StatusConnecting,
		loopDone: make(chan struct{}),
	}
}

// Start seeds the view with a bulk load and opens the feed subscription.
// A failed bulk load is reported and leaves the list empty; it does not
// prevent the subscription from opening.
func (s *Synchronizer) Start(ctx context.Context) error {
	if len(s.opts.BranchIDs) == 0 {
		s.setStatus(feed.StatusDisconnected)
		close(s.loopDone)
		return nil
	}

	orders, err := s.opts.Store.ActiveOrders(ctx, s.opts.BranchIDs, s.opts.MaxInitialOrders)
	if err != nil {
		s.lg.Error("initial_load_failed", err, map[string]any{"branches": s.opts.BranchIDs})
	} else {
		s.seed(orders)
	}

	sub, err := s.opts.Feed.Subscribe(ctx, s.opts.BranchIDs)
	if err != nil {
		s.setStatus(feed.StatusDisconnected)
		close(s.loopDone)
		return err
	}
	s.sub = sub

	go s.run(ctx)
	return nil
}

func (s *Synchronizer) seed(orders []domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range orders {
		o := orders[i]
		if _, dup := s.index[o.ID]; dup {
			continue
		}
		rec := &record{order: o, seq: s.nextSeq()}
		s.list = append(s.list, rec)
		s.index[o.ID] = rec
	}
}

func (s *Synchronizer) run(ctx context.Context) {
	defer close(s.loopDone)
	events := s.sub.Events()
	statuses := s.sub.Status()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handleEvent(ctx, ev)
		case st, ok := <-statuses:
			if !ok {
				statuses = nil
				continue
			}
			s.setStatus(st)
		case <-ctx.Done():
			return
		}
	}
}

// handleEvent runs to completion, including its detail fetch, before the
// next feed event is read. Ordering is global feed arrival order.
func (s *Synchronizer) handleEvent(ctx context.Context, ev domain.FeedEvent) {
	metrics.FeedEventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	switch ev.Kind {
	case domain.EventInsert:
		s.handleInsert(ctx, ev)
	case domain.EventUpdate:
		s.handleUpdate(ctx, ev)
	case domain.EventDelete:
		s.handleDelete(ev)
	default:
		s.lg.Warn("unknown_event_kind", map[string]any{"kind": ev.Kind})
	}
}

func (s *Synchronizer) handleInsert(ctx context.Context, ev domain.FeedEvent) {
	row := ev.New
	if row == nil {
		return
	}

	// The feed row has no line items; fetch the complete record. On failure
	// the event is dropped: the order surfaces on the next bulk refresh.
	order, err := s.opts.Store.OrderByID(ctx, row.ID)
	if err != nil {
		metrics.DetailFetchFailures.Inc()
		s.lg.Error("order_detail_fetch_failed", err, map[string]any{"order_id": row.ID, "kind": "insert"})
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	rec, exists := s.index[order.ID]
	if exists {
		rec.order = order
		rec.seq = s.nextSeq()
	} else {
		rec = &record{order: order, seq: s.nextSeq()}
		s.list = append([]*record{rec}, s.list...)
		s.index[order.ID] = rec
		s.newCnt++
	}
	s.mu.Unlock()

	if !exists {
		s.opts.Alerts.StartLoop(order.ID)
		s.opts.Alerts.Notify(ctx, order)
		if s.opts.OnNewOrder != nil {
			s.opts.OnNewOrder(order)
		}
	}
}

func (s *Synchronizer) handleUpdate(ctx context.Context, ev domain.FeedEvent) {
	row := ev.New
	if row == nil {
		return
	}

	// Partial apply first, for responsiveness. An unknown id is left alone:
	// an update must never reintroduce a pruned order from partial data.
	var appliedSeq uint64
	s.mu.Lock()
	rec, present := s.index[row.ID]
	if present {
		rec.order.State = row.State
		rec.order.Total = row.Total
		rec.order.ItemCount = row.ItemCount
		rec.order.UpdatedAt = row.UpdatedAt
		rec.seq = s.nextSeq()
		appliedSeq = rec.seq
	}
	s.mu.Unlock()

	// Staff picked the order up; its alarm has served its purpose.
	if row.State == domain.StateConfirmed || row.State == domain.StatePreparing {
		s.opts.Alerts.StopLoop(row.ID)
	}

	// Best-effort enrichment: the full record for the callback. Its failure
	// never rolls back the partial apply above.
	order, err := s.opts.Store.OrderByID(ctx, row.ID)
	if err != nil {
		s.lg.Error("order_detail_fetch_failed", err, map[string]any{"order_id": row.ID, "kind": "update"})
		return
	}

	s.mu.Lock()
	if !s.closed {
		if rec, ok := s.index[row.ID]; ok && rec.seq <= appliedSeq {
			// Only a refetch that is not older than the latest applied event
			// may replace the record.
			rec.order = order
		}
	}
	s.mu.Unlock()

	if s.opts.OnOrderUpdate != nil {
		s.opts.OnOrderUpdate(order)
	}
}

func (s *Synchronizer) handleDelete(ev domain.FeedEvent) {
	row := ev.Row()
	if row == nil {
		return
	}

	s.mu.Lock()
	if _, present := s.index[row.ID]; present {
		delete(s.index, row.ID)
		for i, rec := range s.list {
			if rec.order.ID == row.ID {
				s.list = append(s.list[:i], s.list[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	// Idempotent either way; an unknown id is a valid no-op.
	s.opts.Alerts.StopLoop(row.ID)
}

// Orders returns a snapshot copy of the live view.
func (s *Synchronizer) Orders() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, len(s.list))
	for i, rec := range s.list {
		out[i] = rec.order
	}
	return out
}

func (s *Synchronizer) ConnectionStatus() feed.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// NewOrdersCount is the badge counter: it only grows on inserts and only
// resets through MarkSeen.
func (s *Synchronizer) NewOrdersCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.newCnt
}

func (s *Synchronizer) MarkSeen() {
	s.mu.Lock()
	s.newCnt = 0
	s.mu.Unlock()
}

func (s *Synchronizer) setStatus(st feed.Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// nextSeq assumes s.mu is held.
func (s *Synchronizer) nextSeq() uint64 {
	s.seq++
	return s.seq
}

// Close unsubscribes and releases the alert resource. Idempotent, and safe
// to call while a detail fetch is in flight: late applies see closed and
// become no-ops.
func (s *Synchronizer) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		if s.sub != nil {
			_ = s.sub.Close()
		}
		s.opts.Alerts.Release()
	})
	return nil
}

// Done is closed when the event loop has exited.
func (s *Synchronizer) Done() <-chan struct{} { return s.loopDone }
