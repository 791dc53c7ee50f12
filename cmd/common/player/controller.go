// Package player owns audio playback: the loaded track, transport
// operations, shuffle order and the progress sampler.
package player

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/auxkit/auxroom/cmd/common/api"
	"github.com/auxkit/auxroom/cmd/common/playlist"
)

// Loader fetches track media and resolves fallback URLs.
// *api.Client satisfies it.
type Loader interface {
	FetchMedia(ctx context.Context, mediaURL string) ([]byte, error)
	ResolveTrackURL(ctx context.Context, trackID int) (string, error)
}

// Controller drives the audio device over the current playlist copy.
// There is never more than one live audio stream: starting a track always
// stops and disposes the previous one first.
type Controller struct {
	mu sync.Mutex

	out    device
	loader Loader
	events Events

	tracks  []api.Track
	current int // playlist index, -1 when nothing loaded

	state         State
	volume        float64
	muted         bool
	preMuteVolume float64

	shuffle bool
	perm    []int // shuffled playlist indices, nil when shuffle is off
	permPos int   // position of the current track within perm

	// generation increments every time a new track load starts. Stale
	// loads, finish callbacks and samplers compare against it and bail.
	generation uint64

	loadCancel    context.CancelFunc
	samplerCancel context.CancelFunc

	failStreak int // consecutive load failures, guards the auto-advance loop
}

// New creates a controller using the platform audio device.
func New(loader Loader, events Events) *Controller {
	return newController(newDevice(), loader, events)
}

func newController(out device, loader Loader, events Events) *Controller {
	return &Controller{
		out:     out,
		loader:  loader,
		events:  events,
		current: -1,
		state:   StateStopped,
		volume:  1.0,
	}
}

// SetTracks replaces the playlist copy. Indices are not stable across
// reloads, so the current track is re-located by id; if it was removed the
// index clamps to the new length. Playback of the live stream continues.
func (c *Controller) SetTracks(tracks []api.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var currentID int
	if c.current >= 0 && c.current < len(c.tracks) {
		currentID = c.tracks[c.current].TrackID
	}

	c.tracks = tracks

	if currentID != 0 {
		if idx := playlist.IndexOf(tracks, currentID); idx >= 0 {
			c.current = idx
		} else if c.current >= len(tracks) {
			c.current = len(tracks) - 1
		}
	}
	if len(tracks) == 0 {
		c.current = -1
	}

	if c.shuffle {
		c.reshuffleLocked()
	}
}

// Tracks returns the current playlist copy.
func (c *Controller) Tracks() []api.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracks
}

// PlayIndex stops any current audio and starts the track at playlist index i.
// Media is fetched asynchronously; if the primary URL fails to load, exactly
// one fallback resolution is attempted, and if that fails too the controller
// advances to the next track instead of stalling silently.
func (c *Controller) PlayIndex(i int) error {
	c.mu.Lock()

	if len(c.tracks) == 0 {
		c.mu.Unlock()
		return ErrEmptyPlaylist
	}
	if i < 0 || i >= len(c.tracks) {
		c.mu.Unlock()
		return ErrIndexOutOfRange
	}

	c.current = i
	c.syncPermPosLocked()
	track := c.tracks[i]

	// A new load supersedes any in-flight one, including its fallback.
	c.generation++
	gen := c.generation
	if c.loadCancel != nil {
		c.loadCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.loadCancel = cancel

	c.mu.Unlock()

	go c.load(ctx, gen, track)
	return nil
}

// load fetches media for track, with one fallback URL resolution on failure.
func (c *Controller) load(ctx context.Context, gen uint64, track api.Track) {
	data, err := c.loader.FetchMedia(ctx, track.TrackURL)
	if err != nil && ctx.Err() == nil {
		slog.Warn("primary media load failed, resolving fallback",
			"track_id", track.TrackID, "error", err)
		if fresh, rerr := c.loader.ResolveTrackURL(ctx, track.TrackID); rerr == nil {
			data, err = c.loader.FetchMedia(ctx, fresh)
		}
	}
	if ctx.Err() != nil {
		return // superseded by a newer load
	}

	if err != nil {
		loadErr := &PlaybackLoadError{TrackID: track.TrackID, Title: track.Title, Err: err}
		slog.Error("track load failed", "track_id", track.TrackID, "error", err)
		c.events.error(loadErr.Error())
		c.advanceAfterFailure(gen)
		return
	}

	c.start(gen, track, data)
}

// start hands loaded media to the audio device.
func (c *Controller) start(gen uint64, track api.Track, data []byte) {
	c.mu.Lock()

	if gen != c.generation {
		c.mu.Unlock()
		return // a newer track started while we were loading
	}

	c.out.stop()
	c.out.setGain(c.effectiveVolumeLocked())
	err := c.out.play(data, func() { c.onTrackFinished(gen) })
	if err != nil {
		c.mu.Unlock()
		loadErr := &PlaybackLoadError{TrackID: track.TrackID, Title: track.Title, Err: err}
		slog.Error("audio start failed", "track_id", track.TrackID, "error", err)
		c.events.error(loadErr.Error())
		c.advanceAfterFailure(gen)
		return
	}

	c.state = StatePlaying
	c.failStreak = 0
	index := c.current
	c.startSamplerLocked()
	c.mu.Unlock()

	c.events.nowPlaying(track, index)
}

// onTrackFinished is the device end-of-stream callback.
func (c *Controller) onTrackFinished(gen uint64) {
	c.mu.Lock()
	stale := gen != c.generation
	c.mu.Unlock()
	if stale {
		return
	}
	if err := c.Next(); err != nil {
		slog.Warn("auto-advance failed", "error", err)
	}
}

// advanceAfterFailure moves on to the next track unless every track in the
// playlist has failed in a row, in which case playback stops.
func (c *Controller) advanceAfterFailure(gen uint64) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.failStreak++
	if c.failStreak >= len(c.tracks) {
		c.failStreak = 0
		c.state = StateStopped
		c.stopSamplerLocked()
		c.mu.Unlock()
		c.events.error("playback stopped: no track could be loaded")
		return
	}
	c.mu.Unlock()

	if err := c.Next(); err != nil {
		slog.Warn("advance after load failure failed", "error", err)
	}
}

// Next starts the next track, wrapping around at the end. With shuffle
// enabled it walks the shuffled order instead of playlist order.
func (c *Controller) Next() error {
	c.mu.Lock()
	target, err := c.stepLocked(+1)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.PlayIndex(target)
}

// Previous starts the previous track, wrapping around at the start.
func (c *Controller) Previous() error {
	c.mu.Lock()
	target, err := c.stepLocked(-1)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.PlayIndex(target)
}

// stepLocked computes the playlist index delta steps away in the active order.
func (c *Controller) stepLocked(delta int) (int, error) {
	n := len(c.tracks)
	if n == 0 {
		return 0, ErrEmptyPlaylist
	}
	if c.shuffle && len(c.perm) == n {
		pos := ((c.permPos+delta)%n + n) % n
		return c.perm[pos], nil
	}
	cur := c.current
	if cur < 0 {
		cur = 0
		if delta > 0 {
			delta = 0 // first Next from cold start plays the first track
		}
	}
	return ((cur+delta)%n + n) % n, nil
}

// TogglePause pauses a playing track and resumes a paused one.
// No-op when nothing is loaded.
func (c *Controller) TogglePause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StatePlaying:
		c.out.setPaused(true)
		c.state = StatePaused
	case StatePaused:
		c.out.setPaused(false)
		c.state = StatePlaying
	default:
		return ErrNothingLoaded
	}
	return nil
}

// SetVolume sets the playback volume, clamped to [0,1], applied to the live
// stream immediately. It does not touch the mute memory.
func (c *Controller) SetVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.volume = clamp01(v)
	if c.volume > 0 {
		c.muted = false
	}
	c.out.setGain(c.effectiveVolumeLocked())
}

// Volume returns the current volume setting.
func (c *Controller) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// ToggleMute silences playback and restores the previous volume exactly on
// the next call.
func (c *Controller) ToggleMute() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.muted {
		c.volume = c.preMuteVolume
		c.muted = false
	} else {
		c.preMuteVolume = c.volume
		c.volume = 0
		c.muted = true
	}
	c.out.setGain(c.effectiveVolumeLocked())
}

// ToggleShuffle flips shuffle mode and returns the new state. Enabling
// generates a fresh uniform permutation with the currently playing track
// forced to the front, so the audible track never jumps.
func (c *Controller) ToggleShuffle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.shuffle = !c.shuffle
	if c.shuffle {
		c.reshuffleLocked()
	} else {
		c.perm = nil
		c.permPos = 0
	}
	return c.shuffle
}

// reshuffleLocked builds a new permutation with the current index first.
func (c *Controller) reshuffleLocked() {
	n := len(c.tracks)
	c.perm = rand.Perm(n)
	c.permPos = 0
	if c.current >= 0 {
		for i, idx := range c.perm {
			if idx == c.current {
				c.perm[0], c.perm[i] = c.perm[i], c.perm[0]
				break
			}
		}
	}
}

// syncPermPosLocked points permPos at the current track after a manual jump.
func (c *Controller) syncPermPosLocked() {
	if !c.shuffle {
		return
	}
	for i, idx := range c.perm {
		if idx == c.current {
			c.permPos = i
			return
		}
	}
}

// SeekFraction seeks to fraction f of the track's total duration.
// Out-of-range input is clamped; the result is never negative or past-end.
func (c *Controller) SeekFraction(f float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStopped {
		return ErrNothingLoaded
	}
	total := c.out.duration()
	target := time.Duration(clamp01(f) * float64(total))
	if target > total {
		target = total
	}
	return c.out.seek(target)
}

// Stop halts playback entirely and cancels the progress sampler.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++ // invalidate in-flight loads and callbacks
	if c.loadCancel != nil {
		c.loadCancel()
		c.loadCancel = nil
	}
	c.stopSamplerLocked()
	c.out.stop()
	c.state = StateStopped
}

// Status returns a display snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		State:    c.state,
		Index:    c.current,
		Position: c.out.position(),
		Duration: c.out.duration(),
		Volume:   c.volume,
		Muted:    c.muted,
		Shuffle:  c.shuffle,
	}
	if c.current >= 0 && c.current < len(c.tracks) {
		track := c.tracks[c.current]
		s.Track = &track
	}
	return s
}

// startSamplerLocked starts the once-per-second progress report for display.
// Exactly one sampler runs at a time: the previous one is always cancelled
// before a new one starts.
func (c *Controller) startSamplerLocked() {
	c.stopSamplerLocked()

	ctx, cancel := context.WithCancel(context.Background())
	c.samplerCancel = cancel

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			c.events.progress(c.out.position(), c.out.duration())
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (c *Controller) stopSamplerLocked() {
	if c.samplerCancel != nil {
		c.samplerCancel()
		c.samplerCancel = nil
	}
}

// effectiveVolumeLocked is what actually reaches the device gain.
func (c *Controller) effectiveVolumeLocked() float64 {
	if c.muted {
		return 0
	}
	return c.volume
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
