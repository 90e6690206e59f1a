package player

import (
	"context"
	"fmt"

	"WaveDeck/model"
)

// MediaResource is the passive decoding/transport primitive the controller drives.
//
// Completion of Load, playback progress and failures are reported asynchronously as
// Events on the channel given to Controller.Run. Implementations must not call back
// into the Controller from inside these methods.
type MediaResource interface {
	// Load starts fetching src. It replaces whatever was loaded before.
	Load(src string) error
	// Play starts playback and returns an error if the resource refuses (for
	// example because it is not ready).
	Play() error
	Pause()
	// Seek jumps to an absolute position in seconds.
	Seek(seconds float64)
	// SetVolume takes a gain in [0, 1].
	SetVolume(gain float64)
}

// Catalog supplies the playlist and the stream location of each track.
type Catalog interface {
	// Tracks lists the playlist in catalog order.
	Tracks(ctx context.Context) ([]*model.Track, error)
	StreamURL(trackID string) string
}

// EventKind identifies a media resource notification.
type EventKind int

const (
	EventReady EventKind = iota + 1
	EventDuration
	EventPosition
	EventEnded
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventDuration:
		return "duration"
	case EventPosition:
		return "position"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one notification from the media resource. TrackID names the load it
// belongs to; events for a track that is no longer selected are dropped.
type Event struct {
	Kind    EventKind
	TrackID string
	Value   float64 // seconds, for EventDuration and EventPosition
	Err     error   // for EventError
}

// Ready, Duration, Position, Ended and Failed build events for media resource
// implementations.
func Ready(trackID string) Event { return Event{Kind: EventReady, TrackID: trackID} }

func Duration(trackID string, seconds float64) Event {
	return Event{Kind: EventDuration, TrackID: trackID, Value: seconds}
}

func Position(trackID string, seconds float64) Event {
	return Event{Kind: EventPosition, TrackID: trackID, Value: seconds}
}

func Ended(trackID string) Event { return Event{Kind: EventEnded, TrackID: trackID} }

func Failed(trackID string, err error) Event {
	return Event{Kind: EventError, TrackID: trackID, Err: err}
}
