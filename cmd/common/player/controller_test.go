package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/auxkit/auxroom/cmd/common/api"
)

type fakeDevice struct {
	mu     sync.Mutex
	plays  int
	stops  int
	paused bool
	gain   float64
	dur    time.Duration
	seeked time.Duration
	onDone func()
}

func (d *fakeDevice) play(data []byte, onDone func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.plays++
	d.paused = false
	d.onDone = onDone
	return nil
}

func (d *fakeDevice) setPaused(paused bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = paused
}

func (d *fakeDevice) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
}

func (d *fakeDevice) setGain(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gain = v
}

func (d *fakeDevice) position() time.Duration { return 0 }

func (d *fakeDevice) duration() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dur
}

func (d *fakeDevice) seek(pos time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seeked = pos
	return nil
}

func (d *fakeDevice) currentGain() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gain
}

func (d *fakeDevice) playCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.plays
}

func (d *fakeDevice) isPaused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

func (d *fakeDevice) finish() {
	d.mu.Lock()
	done := d.onDone
	d.mu.Unlock()
	if done != nil {
		done()
	}
}

type fakeLoader struct {
	mu           sync.Mutex
	failURLs     map[string]bool
	resolved     map[int]string
	resolveCalls int
	fetches      []string
	blocked      map[string]chan struct{}
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		failURLs: map[string]bool{},
		resolved: map[int]string{},
		blocked:  map[string]chan struct{}{},
	}
}

func (l *fakeLoader) FetchMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	l.mu.Lock()
	l.fetches = append(l.fetches, mediaURL)
	gate := l.blocked[mediaURL]
	fail := l.failURLs[mediaURL]
	l.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, fmt.Errorf("fetch %s: connection refused", mediaURL)
	}
	return []byte("mp3"), nil
}

func (l *fakeLoader) ResolveTrackURL(ctx context.Context, trackID int) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resolveCalls++
	url, ok := l.resolved[trackID]
	if !ok {
		return "", errors.New("no fallback url")
	}
	return url, nil
}

func (l *fakeLoader) resolveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resolveCalls
}

func testTracks(n int) []api.Track {
	tracks := make([]api.Track, n)
	for i := range tracks {
		tracks[i] = api.Track{
			TrackID:  i + 1,
			Title:    fmt.Sprintf("Track %d", i+1),
			TrackURL: fmt.Sprintf("http://cdn.example/%d.mp3", i+1),
			Position: i + 1,
		}
	}
	return tracks
}

// harness wires a controller to channels so tests can await async events.
type harness struct {
	c      *Controller
	dev    *fakeDevice
	loader *fakeLoader
	nowCh  chan int
	errCh  chan string
}

func newHarness(t *testing.T, n int) *harness {
	t.Helper()
	h := &harness{
		dev:    &fakeDevice{},
		loader: newFakeLoader(),
		nowCh:  make(chan int, 32),
		errCh:  make(chan string, 32),
	}
	h.c = newController(h.dev, h.loader, Events{
		NowPlaying: func(_ api.Track, index int) { h.nowCh <- index },
		Error:      func(message string) { h.errCh <- message },
	})
	h.c.SetTracks(testTracks(n))
	t.Cleanup(h.c.Stop)
	return h
}

func (h *harness) awaitNowPlaying(t *testing.T) int {
	t.Helper()
	select {
	case idx := <-h.nowCh:
		return idx
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a track to start")
		return -1
	}
}

func (h *harness) awaitError(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-h.errCh:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a playback error")
		return ""
	}
}

func TestPlayIndex_StartsTrack(t *testing.T) {
	h := newHarness(t, 3)

	if err := h.c.PlayIndex(1); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}
	if idx := h.awaitNowPlaying(t); idx != 1 {
		t.Errorf("now playing index = %d, want 1", idx)
	}
	if h.dev.playCount() != 1 {
		t.Errorf("device plays = %d, want 1", h.dev.playCount())
	}

	status := h.c.Status()
	if status.State != StatePlaying || status.Index != 1 || status.Track == nil || status.Track.TrackID != 2 {
		t.Errorf("status = %+v", status)
	}
}

func TestPlayIndex_Validation(t *testing.T) {
	h := newHarness(t, 3)

	if err := h.c.PlayIndex(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("PlayIndex(-1) = %v", err)
	}
	if err := h.c.PlayIndex(3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("PlayIndex(3) = %v", err)
	}

	empty := newHarness(t, 0)
	if err := empty.c.PlayIndex(0); !errors.Is(err, ErrEmptyPlaylist) {
		t.Errorf("PlayIndex on empty playlist = %v", err)
	}
}

func TestNext_CyclesBackToStart(t *testing.T) {
	const n = 4
	h := newHarness(t, n)

	if err := h.c.PlayIndex(2); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}
	h.awaitNowPlaying(t)

	for i := 0; i < n; i++ {
		if err := h.c.Next(); err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		h.awaitNowPlaying(t)
	}

	if status := h.c.Status(); status.Index != 2 {
		t.Errorf("after %d Next calls index = %d, want 2", n, status.Index)
	}
}

func TestPrevious_WrapsAround(t *testing.T) {
	h := newHarness(t, 3)

	if err := h.c.PlayIndex(0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}
	h.awaitNowPlaying(t)

	if err := h.c.Previous(); err != nil {
		t.Fatalf("Previous: %v", err)
	}
	if idx := h.awaitNowPlaying(t); idx != 2 {
		t.Errorf("Previous from 0 = %d, want 2", idx)
	}
}

func TestTrackFinished_AutoAdvances(t *testing.T) {
	h := newHarness(t, 2)

	if err := h.c.PlayIndex(0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}
	h.awaitNowPlaying(t)

	h.dev.finish()

	if idx := h.awaitNowPlaying(t); idx != 1 {
		t.Errorf("auto-advance index = %d, want 1", idx)
	}
}

func TestFallback_ExactlyOnceThenAdvance(t *testing.T) {
	h := newHarness(t, 2)
	// Track 1: primary and fallback both fail. Track 2 loads fine.
	h.loader.failURLs["http://cdn.example/1.mp3"] = true
	h.loader.resolved[1] = "http://cdn.example/1-fresh.mp3"
	h.loader.failURLs["http://cdn.example/1-fresh.mp3"] = true

	if err := h.c.PlayIndex(0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}

	h.awaitError(t)
	if idx := h.awaitNowPlaying(t); idx != 1 {
		t.Errorf("advanced to %d, want 1", idx)
	}
	if got := h.loader.resolveCount(); got != 1 {
		t.Errorf("resolve calls = %d, want exactly 1", got)
	}
}

func TestAllTracksFail_StopsInsteadOfLooping(t *testing.T) {
	h := newHarness(t, 2)
	for _, url := range []string{"http://cdn.example/1.mp3", "http://cdn.example/2.mp3"} {
		h.loader.failURLs[url] = true
	}

	if err := h.c.PlayIndex(0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-h.errCh:
			if msg == "playback stopped: no track could be loaded" {
				if status := h.c.Status(); status.State != StateStopped {
					t.Errorf("state = %v, want stopped", status.State)
				}
				return
			}
		case <-deadline:
			t.Fatal("controller kept cycling failing tracks")
		}
	}
}

func TestNewLoadSupersedesInflightOne(t *testing.T) {
	h := newHarness(t, 2)
	gate := make(chan struct{})
	h.loader.blocked["http://cdn.example/1.mp3"] = gate

	if err := h.c.PlayIndex(0); err != nil {
		t.Fatalf("PlayIndex(0): %v", err)
	}
	// Track 0 is stuck loading; jump to track 1.
	if err := h.c.PlayIndex(1); err != nil {
		t.Fatalf("PlayIndex(1): %v", err)
	}
	if idx := h.awaitNowPlaying(t); idx != 1 {
		t.Errorf("now playing = %d, want 1", idx)
	}

	close(gate)
	time.Sleep(50 * time.Millisecond)

	if h.dev.playCount() != 1 {
		t.Errorf("stale load reached the device: plays = %d, want 1", h.dev.playCount())
	}
	if status := h.c.Status(); status.Index != 1 {
		t.Errorf("index = %d, want 1", status.Index)
	}
}

func TestToggleShuffle_KeepsCurrentTrack(t *testing.T) {
	h := newHarness(t, 5)

	if err := h.c.PlayIndex(3); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}
	h.awaitNowPlaying(t)

	if !h.c.ToggleShuffle() {
		t.Fatal("ToggleShuffle should report enabled")
	}
	if status := h.c.Status(); status.Index != 3 || !status.Shuffle {
		t.Errorf("enabling shuffle moved the needle: %+v", status)
	}
}

func TestShuffle_VisitsEveryTrackOnce(t *testing.T) {
	const n = 6
	h := newHarness(t, n)

	if err := h.c.PlayIndex(0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}
	h.awaitNowPlaying(t)
	h.c.ToggleShuffle()

	seen := map[int]bool{0: true}
	for i := 0; i < n-1; i++ {
		if err := h.c.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
		idx := h.awaitNowPlaying(t)
		if seen[idx] {
			t.Fatalf("track index %d visited twice within one shuffle cycle", idx)
		}
		seen[idx] = true
	}
	if len(seen) != n {
		t.Errorf("visited %d distinct tracks, want %d", len(seen), n)
	}

	// One more step completes the cycle back to the shuffle anchor.
	if err := h.c.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if idx := h.awaitNowPlaying(t); idx != 0 {
		t.Errorf("shuffle cycle ended on %d, want 0", idx)
	}
}

func TestSetVolume_ClampsAndIsIdempotent(t *testing.T) {
	h := newHarness(t, 1)

	h.c.SetVolume(0.4)
	if v := h.c.Volume(); v != 0.4 {
		t.Errorf("Volume = %v, want 0.4", v)
	}
	h.c.SetVolume(0.4)
	if v := h.c.Volume(); v != 0.4 {
		t.Errorf("Volume after repeat = %v, want 0.4", v)
	}
	if g := h.dev.currentGain(); g != 0.4 {
		t.Errorf("device gain = %v, want 0.4", g)
	}

	h.c.SetVolume(1.7)
	if v := h.c.Volume(); v != 1 {
		t.Errorf("Volume = %v, want clamped to 1", v)
	}
	h.c.SetVolume(-0.2)
	if v := h.c.Volume(); v != 0 {
		t.Errorf("Volume = %v, want clamped to 0", v)
	}
}

func TestToggleMute_RestoresExactVolume(t *testing.T) {
	h := newHarness(t, 1)

	h.c.SetVolume(0.63)
	h.c.ToggleMute()

	status := h.c.Status()
	if !status.Muted || status.Volume != 0 {
		t.Errorf("after mute: %+v", status)
	}
	if g := h.dev.currentGain(); g != 0 {
		t.Errorf("device gain while muted = %v, want 0", g)
	}

	h.c.ToggleMute()
	status = h.c.Status()
	if status.Muted || status.Volume != 0.63 {
		t.Errorf("after unmute: muted=%v volume=%v, want 0.63", status.Muted, status.Volume)
	}
}

func TestTogglePause(t *testing.T) {
	h := newHarness(t, 1)

	if err := h.c.TogglePause(); !errors.Is(err, ErrNothingLoaded) {
		t.Errorf("TogglePause with nothing loaded = %v", err)
	}

	if err := h.c.PlayIndex(0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}
	h.awaitNowPlaying(t)

	if err := h.c.TogglePause(); err != nil {
		t.Fatalf("TogglePause: %v", err)
	}
	if !h.dev.isPaused() || h.c.Status().State != StatePaused {
		t.Error("expected paused state")
	}

	if err := h.c.TogglePause(); err != nil {
		t.Fatalf("TogglePause: %v", err)
	}
	if h.dev.isPaused() || h.c.Status().State != StatePlaying {
		t.Error("expected playing state after second toggle")
	}
}

func TestSeekFraction_Clamps(t *testing.T) {
	h := newHarness(t, 1)
	h.dev.dur = 100 * time.Second

	if err := h.c.SeekFraction(0.5); !errors.Is(err, ErrNothingLoaded) {
		t.Errorf("seek with nothing loaded = %v", err)
	}

	if err := h.c.PlayIndex(0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}
	h.awaitNowPlaying(t)

	if err := h.c.SeekFraction(0.25); err != nil {
		t.Fatalf("SeekFraction: %v", err)
	}
	if h.dev.seeked != 25*time.Second {
		t.Errorf("seeked to %v, want 25s", h.dev.seeked)
	}

	if err := h.c.SeekFraction(3); err != nil {
		t.Fatalf("SeekFraction: %v", err)
	}
	if h.dev.seeked != 100*time.Second {
		t.Errorf("seeked to %v, want clamped to 100s", h.dev.seeked)
	}

	if err := h.c.SeekFraction(-1); err != nil {
		t.Fatalf("SeekFraction: %v", err)
	}
	if h.dev.seeked != 0 {
		t.Errorf("seeked to %v, want 0", h.dev.seeked)
	}
}

func TestSetTracks_RelocatesCurrentByID(t *testing.T) {
	h := newHarness(t, 3)

	if err := h.c.PlayIndex(1); err != nil { // TrackID 2
		t.Fatalf("PlayIndex: %v", err)
	}
	h.awaitNowPlaying(t)

	// Server reordered the playlist; TrackID 2 now sits at index 0.
	reordered := []api.Track{
		{TrackID: 2, Title: "Track 2", TrackURL: "http://cdn.example/2.mp3"},
		{TrackID: 3, Title: "Track 3", TrackURL: "http://cdn.example/3.mp3"},
		{TrackID: 1, Title: "Track 1", TrackURL: "http://cdn.example/1.mp3"},
	}
	h.c.SetTracks(reordered)

	status := h.c.Status()
	if status.Index != 0 || status.Track == nil || status.Track.TrackID != 2 {
		t.Errorf("current not relocated by id: %+v", status)
	}
}

func TestSetTracks_RemovedCurrentClamps(t *testing.T) {
	h := newHarness(t, 3)

	if err := h.c.PlayIndex(2); err != nil { // TrackID 3
		t.Fatalf("PlayIndex: %v", err)
	}
	h.awaitNowPlaying(t)

	h.c.SetTracks(testTracks(2)) // TrackID 3 is gone

	if status := h.c.Status(); status.Index != 1 {
		t.Errorf("index = %d, want clamped to 1", status.Index)
	}
}

func TestProgressSampler_Reports(t *testing.T) {
	progressCh := make(chan time.Duration, 8)
	dev := &fakeDevice{dur: 90 * time.Second}
	loader := newFakeLoader()
	c := newController(dev, loader, Events{
		Progress: func(_, duration time.Duration) {
			select {
			case progressCh <- duration:
			default:
			}
		},
	})
	c.SetTracks(testTracks(1))
	defer c.Stop()

	if err := c.PlayIndex(0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}

	select {
	case d := <-progressCh:
		if d != 90*time.Second {
			t.Errorf("reported duration = %v, want 90s", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no progress report")
	}
}
