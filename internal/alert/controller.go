// Package alert turns order lifecycle events into audible and visual
// signaling. Every side effect here is best-effort: a failed sound or
// notification is logged and swallowed, never surfaced to the data path.
package alert

import (
	"context"
	"fmt"
	"sync"

	"github.com/CesarCrz/cEatsv2-sub000/internal/common/logger"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/metrics"
	"github.com/CesarCrz/cEatsv2-sub000/internal/domain"
)

type Options struct {
	EnableSound         bool
	EnableNotifications bool
	NewPlayer           PlayerFactory
	Notifier            Notifier
	Volume              float64
}

// Controller owns one playback channel per dashboard session. At most one
// order id loops at a time; a start request while another id is looping is
// dropped (single-flight).
type Controller struct {
	mu        sync.Mutex
	opts      Options
	player    Player
	loopingID string
	lg        *logger.Logger
}

func NewController(opts Options) *Controller {
	return &Controller{opts: opts, lg: logger.New("alert-controller")}
}

// ensurePlayer constructs the playback resource on first need.
// Caller holds c.mu.
func (c *Controller) ensurePlayer() (Player, error) {
	if c.player != nil {
		return c.player, nil
	}
	if c.opts.NewPlayer == nil {
		return nil, fmt.Errorf("no player configured")
	}
	p, err := c.opts.NewPlayer()
	if err != nil {
		return nil, err
	}
	if c.opts.Volume > 0 {
		p.SetVolume(c.opts.Volume)
	}
	c.player = p
	return p, nil
}

// PlayOnce fires a short one-shot cue.
func (c *Controller) PlayOnce() {
	if !c.opts.EnableSound {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.ensurePlayer()
	if err != nil {
		c.lg.Error("player_unavailable", err, nil)
		return
	}
	p.SetLoop(false)
	if err := p.Play(); err != nil {
		c.lg.Error("play_once_failed", err, nil)
	}
}

// StartLoop begins a repeating alarm tied to orderID. While any id is
// looping, further starts are dropped: there is only one playback channel.
func (c *Controller) StartLoop(orderID string) {
	if !c.opts.EnableSound {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loopingID != "" {
		c.lg.Debug("loop_already_active", map[string]any{"looping": c.loopingID, "requested": orderID})
		return
	}
	p, err := c.ensurePlayer()
	if err != nil {
		c.lg.Error("player_unavailable", err, nil)
		return
	}
	p.SetLoop(true)
	if err := p.Play(); err != nil {
		c.lg.Error("loop_start_failed", err, map[string]any{"order_id": orderID})
		return
	}
	c.loopingID = orderID
	metrics.AlarmsStarted.Inc()
}

// StopLoop stops the alarm only when orderID owns it, so one order's
// resolution can never silence another's alarm.
func (c *Controller) StopLoop(orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loopingID != orderID || c.player == nil {
		return
	}
	if err := c.player.Pause(); err != nil {
		c.lg.Error("loop_pause_failed", err, map[string]any{"order_id": orderID})
	}
	if err := c.player.Rewind(); err != nil {
		c.lg.Error("loop_rewind_failed", err, map[string]any{"order_id": orderID})
	}
	c.loopingID = ""
	metrics.AlarmsStopped.Inc()
}

// LoopingID returns the order currently owning the alarm, or "".
func (c *Controller) LoopingID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loopingID
}

// ToggleAudio pauses or resumes whatever is currently loaded, independent of
// the loop/one-shot distinction.
func (c *Controller) ToggleAudio() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player == nil {
		return
	}
	var err error
	if c.player.Playing() {
		err = c.player.Pause()
	} else {
		err = c.player.Play()
	}
	if err != nil {
		c.lg.Error("toggle_audio_failed", err, nil)
	}
}

// IsAudioEnabled reflects current playback state, not stored intent.
func (c *Controller) IsAudioEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.player != nil && c.player.Playing()
}

// Notify emits a platform notification for a new order, keyed by order id.
// Undetermined permission triggers a request; denial is a silent no-op.
func (c *Controller) Notify(ctx context.Context, o domain.Order) {
	if !c.opts.EnableNotifications || c.opts.Notifier == nil {
		return
	}
	perm := c.opts.Notifier.Permission(ctx)
	if perm == PermissionUndetermined {
		var err error
		perm, err = c.opts.Notifier.RequestPermission(ctx)
		if err != nil {
			c.lg.Error("notification_permission_request_failed", err, nil)
			return
		}
	}
	if perm != PermissionGranted {
		return
	}
	n := Notification{
		Title: "Nuevo pedido",
		Body:  fmt.Sprintf("%s: $%.2f (%d items)", o.BranchName, o.Total, o.ItemCount),
		Tag:   o.ID,
	}
	if err := c.opts.Notifier.Show(ctx, n); err != nil {
		c.lg.Error("notification_show_failed", err, map[string]any{"order_id": o.ID})
	}
}

// Release tears down the playback resource. Safe to call more than once.
func (c *Controller) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player != nil {
		_ = c.player.Close()
		c.player = nil
	}
	c.loopingID = ""
}
