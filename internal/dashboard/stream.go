package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/CesarCrz/cEatsv2-sub000/internal/alert"
)

// Frame is one server-sent event pushed to the browser.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// AudioCommand tells the browser what to do with its audio element. The
// server owns the alarm state machine; the browser owns the speaker.
type AudioCommand struct {
	Command string  `json:"command"` // play | pause | rewind | stop
	Loop    bool    `json:"loop,omitempty"`
	Source  string  `json:"source,omitempty"`
	Volume  float64 `json:"volume,omitempty"`
}

// streamPlayer implements alert.Player by forwarding commands onto the
// session stream. The alert controller serializes all calls, so no
// internal locking is needed beyond the playing flag it reads back.
type streamPlayer struct {
	send    func(Frame)
	source  string
	volume  float64
	loop    bool
	playing bool
}

func newStreamPlayer(send func(Frame), source string) *streamPlayer {
	return &streamPlayer{send: send, source: source, volume: 1.0}
}

func (p *streamPlayer) Play() error {
	p.send(Frame{Type: "audio", Data: AudioCommand{Command: "play", Loop: p.loop, Source: p.source, Volume: p.volume}})
	p.playing = true
	return nil
}

func (p *streamPlayer) Pause() error {
	p.send(Frame{Type: "audio", Data: AudioCommand{Command: "pause"}})
	p.playing = false
	return nil
}

func (p *streamPlayer) Rewind() error {
	p.send(Frame{Type: "audio", Data: AudioCommand{Command: "rewind"}})
	return nil
}

func (p *streamPlayer) SetLoop(loop bool)   { p.loop = loop }
func (p *streamPlayer) SetVolume(v float64) { p.volume = v }
func (p *streamPlayer) Playing() bool       { return p.playing }

func (p *streamPlayer) Close() error {
	p.send(Frame{Type: "audio", Data: AudioCommand{Command: "stop"}})
	p.playing = false
	return nil
}

const permissionRequestTimeout = 2 * time.Second

// streamNotifier implements alert.Notifier over the session stream. The
// browser reports its Notification permission state through the session
// HTTP surface; a request blocks briefly waiting for that report.
type streamNotifier struct {
	send func(Frame)

	mu      sync.Mutex
	state   alert.Permission
	waiters []chan alert.Permission
}

func newStreamNotifier(send func(Frame)) *streamNotifier {
	return &streamNotifier{send: send, state: alert.PermissionUndetermined}
}

func (n *streamNotifier) Permission(context.Context) alert.Permission {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// SetPermission records the state the browser reported and wakes any
// pending request.
func (n *streamNotifier) SetPermission(p alert.Permission) {
	n.mu.Lock()
	n.state = p
	waiters := n.waiters
	n.waiters = nil
	n.mu.Unlock()
	for _, w := range waiters {
		w <- p
	}
}

func (n *streamNotifier) RequestPermission(ctx context.Context) (alert.Permission, error) {
	ch := make(chan alert.Permission, 1)
	n.mu.Lock()
	n.waiters = append(n.waiters, ch)
	n.mu.Unlock()

	n.send(Frame{Type: "notification", Data: map[string]string{"command": "request-permission"}})

	select {
	case p := <-ch:
		return p, nil
	case <-time.After(permissionRequestTimeout):
		return n.Permission(ctx), nil
	case <-ctx.Done():
		return n.Permission(ctx), ctx.Err()
	}
}

func (n *streamNotifier) Show(_ context.Context, note alert.Notification) error {
	n.send(Frame{Type: "notification", Data: map[string]any{"command": "show", "notification": note}})
	return nil
}
