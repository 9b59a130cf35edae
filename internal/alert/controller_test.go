package alert_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CesarCrz/cEatsv2-sub000/internal/alert"
	"github.com/CesarCrz/cEatsv2-sub000/internal/domain"
)

type memPlayer struct {
	playing bool
	loop    bool
	volume  float64
	rewinds int
	closed  bool
	playErr error
}

func (p *memPlayer) Play() error {
	if p.playErr != nil {
		return p.playErr
	}
	p.playing = true
	return nil
}

func (p *memPlayer) Pause() error        { p.playing = false; return nil }
func (p *memPlayer) Rewind() error       { p.rewinds++; return nil }
func (p *memPlayer) SetLoop(loop bool)   { p.loop = loop }
func (p *memPlayer) SetVolume(v float64) { p.volume = v }
func (p *memPlayer) Playing() bool       { return p.playing }
func (p *memPlayer) Close() error        { p.closed = true; p.playing = false; return nil }

type memNotifier struct {
	state     alert.Permission
	grantTo   alert.Permission // state after a request
	requested int
	shown     []alert.Notification
	showErr   error
}

func (n *memNotifier) Permission(context.Context) alert.Permission { return n.state }

func (n *memNotifier) RequestPermission(context.Context) (alert.Permission, error) {
	n.requested++
	n.state = n.grantTo
	return n.state, nil
}

func (n *memNotifier) Show(_ context.Context, note alert.Notification) error {
	if n.showErr != nil {
		return n.showErr
	}
	n.shown = append(n.shown, note)
	return nil
}

func controllerWith(p *memPlayer, n *memNotifier) *alert.Controller {
	return alert.NewController(alert.Options{
		EnableSound:         true,
		EnableNotifications: true,
		NewPlayer:           func() (alert.Player, error) { return p, nil },
		Notifier:            n,
		Volume:              0.8,
	})
}

func TestStartLoopSingleFlight(t *testing.T) {
	p := &memPlayer{}
	c := controllerWith(p, &memNotifier{})

	c.StartLoop("A")
	require.Equal(t, "A", c.LoopingID())
	require.True(t, p.playing)
	require.True(t, p.loop)

	// One shared playback channel: a second order's start is dropped.
	c.StartLoop("B")
	assert.Equal(t, "A", c.LoopingID())
}

func TestStopLoopTargetsOwnerOnly(t *testing.T) {
	p := &memPlayer{}
	c := controllerWith(p, &memNotifier{})

	c.StartLoop("A")
	c.StopLoop("B")
	assert.Equal(t, "A", c.LoopingID(), "another order's stop must not silence A")
	assert.True(t, p.playing)

	c.StopLoop("A")
	assert.Empty(t, c.LoopingID())
	assert.False(t, p.playing)
	assert.Equal(t, 1, p.rewinds, "stop must reset playback")

	// Stopping again is a no-op.
	c.StopLoop("A")
	assert.Equal(t, 1, p.rewinds)
}

func TestStartLoopAfterStopHandsOverOwnership(t *testing.T) {
	p := &memPlayer{}
	c := controllerWith(p, &memNotifier{})

	c.StartLoop("A")
	c.StopLoop("A")
	c.StartLoop("B")
	assert.Equal(t, "B", c.LoopingID())
}

func TestSoundDisabled(t *testing.T) {
	p := &memPlayer{}
	factoryCalled := false
	c := alert.NewController(alert.Options{
		EnableSound: false,
		NewPlayer: func() (alert.Player, error) {
			factoryCalled = true
			return p, nil
		},
	})
	c.PlayOnce()
	c.StartLoop("A")
	assert.False(t, factoryCalled, "disabled sound must not construct the player")
	assert.Empty(t, c.LoopingID())
}

func TestPlayerConstructedLazilyAndReleased(t *testing.T) {
	p := &memPlayer{}
	built := 0
	c := alert.NewController(alert.Options{
		EnableSound: true,
		NewPlayer: func() (alert.Player, error) {
			built++
			return p, nil
		},
		Volume: 0.5,
	})
	assert.Zero(t, built)

	c.PlayOnce()
	assert.Equal(t, 1, built)
	assert.Equal(t, 0.5, p.volume)

	c.StartLoop("A")
	assert.Equal(t, 1, built, "player is constructed once")

	c.Release()
	assert.True(t, p.closed)
	assert.Empty(t, c.LoopingID())
}

func TestPlayFailureIsSwallowed(t *testing.T) {
	p := &memPlayer{playErr: errors.New("autoplay blocked")}
	c := controllerWith(p, &memNotifier{})

	c.PlayOnce()
	c.StartLoop("A")
	assert.Empty(t, c.LoopingID(), "a failed play must not claim loop ownership")
}

func TestToggleAudioReflectsPlaybackState(t *testing.T) {
	p := &memPlayer{}
	c := controllerWith(p, &memNotifier{})

	// Nothing loaded yet: toggle is a no-op and audio reads disabled.
	c.ToggleAudio()
	assert.False(t, c.IsAudioEnabled())

	c.StartLoop("A")
	assert.True(t, c.IsAudioEnabled())

	c.ToggleAudio()
	assert.False(t, c.IsAudioEnabled())
	c.ToggleAudio()
	assert.True(t, c.IsAudioEnabled())
}

func TestNotifyPermissionFlows(t *testing.T) {
	o := domain.Order{ID: "o1", BranchName: "Centro", Total: 99.9, ItemCount: 3}

	t.Run("granted shows keyed by order id", func(t *testing.T) {
		n := &memNotifier{state: alert.PermissionGranted}
		c := controllerWith(&memPlayer{}, n)
		c.Notify(context.Background(), o)
		require.Len(t, n.shown, 1)
		assert.Equal(t, "o1", n.shown[0].Tag)
		assert.Zero(t, n.requested)
	})

	t.Run("undetermined requests then shows on grant", func(t *testing.T) {
		n := &memNotifier{state: alert.PermissionUndetermined, grantTo: alert.PermissionGranted}
		c := controllerWith(&memPlayer{}, n)
		c.Notify(context.Background(), o)
		assert.Equal(t, 1, n.requested)
		require.Len(t, n.shown, 1)
	})

	t.Run("undetermined then denied stays silent", func(t *testing.T) {
		n := &memNotifier{state: alert.PermissionUndetermined, grantTo: alert.PermissionDenied}
		c := controllerWith(&memPlayer{}, n)
		c.Notify(context.Background(), o)
		assert.Equal(t, 1, n.requested)
		assert.Empty(t, n.shown)
	})

	t.Run("denied is a silent no-op without a request", func(t *testing.T) {
		n := &memNotifier{state: alert.PermissionDenied}
		c := controllerWith(&memPlayer{}, n)
		c.Notify(context.Background(), o)
		assert.Zero(t, n.requested)
		assert.Empty(t, n.shown)
	})

	t.Run("notifications disabled", func(t *testing.T) {
		n := &memNotifier{state: alert.PermissionGranted}
		c := alert.NewController(alert.Options{EnableNotifications: false, Notifier: n})
		c.Notify(context.Background(), o)
		assert.Empty(t, n.shown)
	})

	t.Run("show failure is swallowed", func(t *testing.T) {
		n := &memNotifier{state: alert.PermissionGranted, showErr: errors.New("window closed")}
		c := controllerWith(&memPlayer{}, n)
		assert.NotPanics(t, func() { c.Notify(context.Background(), o) })
	})
}
