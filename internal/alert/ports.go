package alert

import "context"

// Player is the single shared playback channel behind the alarm logic.
// Implementations forward commands to whatever owns the speaker; tests use
// an in-memory fake.
type Player interface {
	Play() error
	Pause() error
	// Rewind resets playback to the start of the clip.
	Rewind() error
	SetLoop(loop bool)
	SetVolume(v float64)
	Playing() bool
	Close() error
}

// PlayerFactory builds the player lazily on first alert need.
type PlayerFactory func() (Player, error)

type Permission string

const (
	PermissionGranted      Permission = "granted"
	PermissionDenied       Permission = "denied"
	PermissionUndetermined Permission = "default"
)

type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	// Tag keys the notification by order id so repeats replace instead of stack.
	Tag string `json:"tag"`
}

// Notifier is the platform notification capability.
type Notifier interface {
	Permission(ctx context.Context) Permission
	RequestPermission(ctx context.Context) (Permission, error)
	Show(ctx context.Context, n Notification) error
}
