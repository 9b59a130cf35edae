package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CesarCrz/cEatsv2-sub000/internal/alert"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/config"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/logger"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/metrics"
	"github.com/CesarCrz/cEatsv2-sub000/internal/domain"
	"github.com/CesarCrz/cEatsv2-sub000/internal/feed"
	"github.com/CesarCrz/cEatsv2-sub000/internal/store"
	ordersync "github.com/CesarCrz/cEatsv2-sub000/internal/sync"
)

// Summarizer is the aggregate-query slice of the store the dashboard uses
// for its KPI panel.
type Summarizer interface {
	TodaySummary(ctx context.Context, branchIDs []string) (store.Summary, error)
}

// Buckets partitions the live list for rendering: orders being worked on
// versus orders waiting for pickup. Terminal entries that linger in the
// view after a transition are not rendered.
type Buckets struct {
	Active []domain.Order `json:"active"`
	Ready  []domain.Order `json:"ready"`
}

func partition(orders []domain.Order) Buckets {
	var b Buckets
	for _, o := range orders {
		switch o.State {
		case domain.StatePending, domain.StateConfirmed, domain.StatePreparing:
			b.Active = append(b.Active, o)
		case domain.StateReady:
			b.Ready = append(b.Ready, o)
		}
	}
	return b
}

// Session is one mounted dashboard: a restaurant view subscribes with the
// full owned branch set, a branch view with a single id. The session owns
// its synchronizer and alert controller and both die with it.
type Session struct {
	ID        string
	branchIDs []string

	syncer   *ordersync.Synchronizer
	ctrl     *alert.Controller
	notifier *streamNotifier
	summarer Summarizer
	lg       *logger.Logger

	frames chan Frame
	cancel context.CancelFunc
}

func NewSession(parent context.Context, branchIDs []string, st ordersync.Store, sm Summarizer, fd feed.Feed, cfg config.Dashboard) (*Session, error) {
	ctx, cancel := context.WithCancel(parent)

	s := &Session{
		ID:        uuid.NewString(),
		branchIDs: branchIDs,
		summarer:  sm,
		lg:        logger.New("dashboard-session"),
		frames:    make(chan Frame, 64),
		cancel:    cancel,
	}
	s.notifier = newStreamNotifier(s.push)
	s.ctrl = alert.NewController(alert.Options{
		EnableSound:         cfg.EnableSound,
		EnableNotifications: cfg.EnableNotifications,
		NewPlayer:           func() (alert.Player, error) { return newStreamPlayer(s.push, cfg.SoundFile), nil },
		Notifier:            s.notifier,
		Volume:              cfg.Volume,
	})
	s.syncer = ordersync.New(ordersync.Options{
		BranchIDs:        branchIDs,
		Store:            st,
		Feed:             fd,
		Alerts:           s.ctrl,
		MaxInitialOrders: cfg.MaxInitialOrders,
		OnNewOrder:       func(domain.Order) { s.refresh(ctx) },
		OnOrderUpdate:    func(domain.Order) { s.refresh(ctx) },
	})

	if err := s.syncer.Start(ctx); err != nil {
		s.lg.Error("subscription_failed", err, map[string]any{"branches": branchIDs})
		// The session still serves its seeded list; status shows disconnected.
	}

	go s.pulse(ctx)
	return s, nil
}

// push never blocks the synchronizer loop: a stalled SSE writer loses
// frames, and the next snapshot covers the gap.
func (s *Session) push(f Frame) {
	select {
	case s.frames <- f:
	default:
	}
}

// Frames is what the SSE writer drains.
func (s *Session) Frames() <-chan Frame { return s.frames }

// snapshot pushes the current view. Sent periodically and after every
// insert/update callback.
func (s *Session) snapshot() {
	orders := s.syncer.Orders()
	s.push(Frame{Type: "orders", Data: map[string]any{
		"buckets":          partition(orders),
		"orders":           orders,
		"new_orders_count": s.syncer.NewOrdersCount(),
		"connection":       s.syncer.ConnectionStatus(),
	}})
}

// refresh recomputes the KPI aggregates and pushes a fresh snapshot. The
// aggregate query is owned by the store, not the core; the core only
// triggers it.
func (s *Session) refresh(ctx context.Context) {
	s.snapshot()
	sum, err := s.summarer.TodaySummary(ctx, s.branchIDs)
	if err != nil {
		s.lg.Error("today_summary_failed", err, map[string]any{"branches": s.branchIDs})
		return
	}
	s.push(Frame{Type: "stats", Data: sum})
}

func (s *Session) pulse(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.snapshot()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) MarkSeen()            { s.syncer.MarkSeen() }
func (s *Session) ToggleAudio()         { s.ctrl.ToggleAudio() }
func (s *Session) IsAudioEnabled() bool { return s.ctrl.IsAudioEnabled() }

func (s *Session) SetPermission(p alert.Permission) { s.notifier.SetPermission(p) }

// Close tears the session down on every exit path: feed unsubscribe and
// audio release are guaranteed, not best-effort. It returns only after the
// synchronizer's event loop has exited, so no feed-driven frame is pushed
// afterwards.
func (s *Session) Close() {
	s.cancel()
	_ = s.syncer.Close()
	<-s.syncer.Done()
}

// Hub tracks live sessions for the HTTP surface.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*Session)}
}

func (h *Hub) Add(s *Session) {
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
	metrics.ActiveSessions.Inc()
}

func (h *Hub) Remove(id string) {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if ok {
		s.Close()
		metrics.ActiveSessions.Dec()
	}
}

func (h *Hub) Get(id string) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	return s, ok
}

// Shutdown closes every live session.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()
	for _, s := range sessions {
		s.Close()
		metrics.ActiveSessions.Dec()
	}
}
