package player

import (
	"errors"
	"fmt"
	"time"

	"github.com/auxkit/auxroom/cmd/common/api"
)

var (
	ErrEmptyPlaylist   = errors.New("playlist is empty")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrNothingLoaded   = errors.New("no track loaded")
)

// PlaybackLoadError reports a track whose media could not be loaded, after
// the single fallback resolution attempt.
type PlaybackLoadError struct {
	TrackID int
	Title   string
	Err     error
}

func (e *PlaybackLoadError) Error() string {
	return fmt.Sprintf("failed to load %q (track %d): %v", e.Title, e.TrackID, e.Err)
}

func (e *PlaybackLoadError) Unwrap() error {
	return e.Err
}

// State represents the current state of playback.
type State string

const (
	StateStopped State = "stopped"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// Status is a display snapshot of the controller.
type Status struct {
	State    State
	Track    *api.Track // nil when nothing is loaded
	Index    int        // playlist index, -1 when nothing is loaded
	Position time.Duration
	Duration time.Duration
	Volume   float64
	Muted    bool
	Shuffle  bool
}

// Events are display hooks invoked by the controller. All fields are
// optional. Callbacks may fire from playback goroutines.
type Events struct {
	// NowPlaying fires when a new track starts.
	NowPlaying func(track api.Track, index int)
	// Progress fires roughly once per second while a track is loaded.
	Progress func(position, duration time.Duration)
	// Error fires with a user-facing message when playback goes wrong.
	Error func(message string)
}

func (e Events) nowPlaying(track api.Track, index int) {
	if e.NowPlaying != nil {
		e.NowPlaying(track, index)
	}
}

func (e Events) progress(position, duration time.Duration) {
	if e.Progress != nil {
		e.Progress(position, duration)
	}
}

func (e Events) error(message string) {
	if e.Error != nil {
		e.Error(message)
	}
}
