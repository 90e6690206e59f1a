package player

import (
	"context"
	"fmt"
	"math"
	"sync"

	"WaveDeck/apperr"
	"WaveDeck/core/playlist"
	"WaveDeck/logger"
	"WaveDeck/model"

	"github.com/samber/lo"
)

// DefaultVolume is the volume of a fresh controller.
const DefaultVolume = 75

// State is the conceptual playback state derived from a Session.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePaused
	StatePlaying
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is a snapshot of the single playback session.
type Session struct {
	Track    *model.Track
	Playing  bool
	Position float64 // seconds
	Duration float64 // seconds, 0 while unknown
	Volume   int     // 0-100
	Loading  bool
	Err      error // last media resource failure for the selected track
}

// State derives the conceptual state from the session fields.
func (s Session) State() State {
	switch {
	case s.Track == nil:
		return StateIdle
	case s.Err != nil:
		return StateError
	case s.Loading:
		return StateLoading
	case s.Playing:
		return StatePlaying
	default:
		return StatePaused
	}
}

// Progress is the position as a percentage of the duration, 0 while unknown.
func (s Session) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return lo.Clamp(s.Position/s.Duration*100, 0, 100)
}

// Controller owns one playback session and drives a MediaResource.
//
// Commands are synchronous. Media events are consumed one at a time by Run (or
// HandleEvent); both are serialised with commands by the same mutex.
type Controller struct {
	mu      sync.Mutex
	media   MediaResource
	catalog Catalog
	session Session

	// volume to restore on unmute, 0 when not muted
	unmuteVolume int
}

// NewController creates an idle controller and applies the default volume.
func NewController(media MediaResource, catalog Catalog) *Controller {
	c := &Controller{
		media:   media,
		catalog: catalog,
		session: Session{Volume: DefaultVolume},
	}
	media.SetVolume(float64(DefaultVolume) / 100)
	return c
}

// Session returns a snapshot of the current session.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// State returns the current conceptual state.
func (c *Controller) State() State {
	return c.Session().State()
}

// SelectTrack makes track the current selection and starts loading it. Passing nil
// clears the session back to idle. Any load still in flight is superseded.
func (c *Controller) SelectTrack(track *model.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectLocked(track)
}

func (c *Controller) selectLocked(track *model.Track) {
	volume := c.session.Volume

	if track == nil {
		if c.session.Playing {
			c.media.Pause()
		}
		c.session = Session{Volume: volume}
		logger.Debug("playback session cleared")
		return
	}

	selected := *track
	c.session = Session{Track: &selected, Loading: true, Volume: volume}

	src := c.catalog.StreamURL(selected.ID)
	if err := c.media.Load(src); err != nil {
		c.failLocked(err)
		return
	}
	logger.Debug("loading track",
		logger.String("trackId", selected.ID),
		logger.String("src", src))
}

func (c *Controller) failLocked(err error) {
	id := ""
	if c.session.Track != nil {
		id = c.session.Track.ID
	}
	c.session.Err = apperr.MediaResource(err, "Playback failed for track %s", id)
	c.session.Loading = false
	c.session.Playing = false
	logger.Warn("media resource error", logger.String("trackId", id), logger.ErrorField(err))
}

// TogglePlayPause plays when paused and pauses when playing. It does nothing while
// idle, loading or failed. A rejected play leaves the session paused and the
// rejection is returned.
func (c *Controller) TogglePlayPause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.session.State() {
	case StatePlaying:
		c.media.Pause()
		c.session.Playing = false
		return nil
	case StatePaused:
		c.session.Playing = true
		if err := c.media.Play(); err != nil {
			c.session.Playing = false
			return apperr.MediaResource(err, "Play was rejected")
		}
		return nil
	default:
		return nil
	}
}

// Seek jumps to percent (clamped to [0, 100]) of the known duration. Without a
// known duration it does nothing.
func (c *Controller) Seek(percent float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Track == nil || c.session.Duration <= 0 || math.IsNaN(percent) {
		return
	}
	pos := lo.Clamp(percent, 0, 100) / 100 * c.session.Duration
	c.media.Seek(pos)
	c.session.Position = pos
}

// SetVolume sets the volume (clamped to [0, 100]). It never changes play state.
func (c *Controller) SetVolume(volume int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unmuteVolume = 0
	c.setVolumeLocked(volume)
}

func (c *Controller) setVolumeLocked(volume int) {
	volume = lo.Clamp(volume, 0, 100)
	c.session.Volume = volume
	c.media.SetVolume(float64(volume) / 100)
}

// NudgeVolume changes the volume by delta, as the keyboard volume keys do.
func (c *Controller) NudgeVolume(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unmuteVolume = 0
	c.setVolumeLocked(c.session.Volume + delta)
}

// ToggleMute drops the volume to 0, or restores the volume from before muting.
func (c *Controller) ToggleMute() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Volume > 0 {
		c.unmuteVolume = c.session.Volume
		c.setVolumeLocked(0)
		return
	}
	restore := c.unmuteVolume
	if restore == 0 {
		restore = DefaultVolume
	}
	c.unmuteVolume = 0
	c.setVolumeLocked(restore)
}

// NextTrack selects the track after the current one, looping at the end.
func (c *Controller) NextTrack(ctx context.Context) error {
	return c.advance(ctx, c.currentID(), playlist.Next)
}

// PreviousTrack selects the track before the current one, looping at the start.
func (c *Controller) PreviousTrack(ctx context.Context) error {
	return c.advance(ctx, c.currentID(), playlist.Previous)
}

func (c *Controller) currentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Track == nil {
		return ""
	}
	return c.session.Track.ID
}

// advance moves relative to fromID. The playlist is fetched without holding the
// lock; if the selection changed meanwhile the move is dropped.
func (c *Controller) advance(ctx context.Context, fromID string, step func([]*model.Track, string) (*model.Track, bool)) error {
	if fromID == "" {
		return nil
	}

	tracks, err := c.catalog.Tracks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load playlist: %w", err)
	}
	target, ok := step(tracks, fromID)
	if !ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Track == nil || c.session.Track.ID != fromID {
		return nil
	}
	c.selectLocked(target)
	return nil
}

// HandleEvent applies one media event. Events for anything but the current
// selection are ignored.
func (c *Controller) HandleEvent(ctx context.Context, ev Event) {
	c.mu.Lock()

	if c.session.Track == nil || c.session.Track.ID != ev.TrackID {
		c.mu.Unlock()
		logger.Debug("dropping superseded media event",
			logger.String("event", ev.Kind.String()),
			logger.String("trackId", ev.TrackID))
		return
	}

	advanceFrom := ""
	switch ev.Kind {
	case EventReady:
		if c.session.Loading && c.session.Err == nil {
			c.session.Loading = false
		}
	case EventDuration:
		c.session.Duration = sanitizeSeconds(ev.Value)
	case EventPosition:
		pos := sanitizeSeconds(ev.Value)
		if c.session.Duration > 0 && pos > c.session.Duration {
			pos = c.session.Duration
		}
		c.session.Position = pos
	case EventEnded:
		if c.session.Playing {
			c.session.Playing = false
			advanceFrom = ev.TrackID
		}
	case EventError:
		err := ev.Err
		if err == nil {
			err = fmt.Errorf("media resource reported an error")
		}
		c.failLocked(err)
	}
	c.mu.Unlock()

	if advanceFrom != "" {
		if err := c.advance(ctx, advanceFrom, playlist.Next); err != nil {
			logger.Warn("auto-advance failed", logger.String("trackId", advanceFrom), logger.ErrorField(err))
		}
	}
}

// Run consumes events until the channel is closed or ctx is done.
func (c *Controller) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.HandleEvent(ctx, ev)
		}
	}
}

func sanitizeSeconds(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
