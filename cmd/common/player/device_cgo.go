//go:build (linux && cgo) || windows || darwin

package player

import (
	"bytes"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
)

// AudioAvailable indicates whether audio playback is supported in this build.
const AudioAvailable = true

// beepDevice handles the actual audio output using beep.
type beepDevice struct {
	mu sync.Mutex

	initialized bool
	sampleRate  beep.SampleRate
	streamer    beep.StreamSeekCloser
	format      beep.Format
	ctrl        *beep.Ctrl
	vol         *effects.Volume
	gain        float64
}

func newDevice() device {
	return &beepDevice{
		sampleRate: beep.SampleRate(44100),
		gain:       1.0,
	}
}

func (d *beepDevice) play(data []byte, onDone func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()

	streamer, format, err := mp3.Decode(nopCloser{bytes.NewReader(data)})
	if err != nil {
		return err
	}

	if !d.initialized {
		if err := speaker.Init(d.sampleRate, d.sampleRate.N(time.Second/10)); err != nil {
			streamer.Close()
			return err
		}
		d.initialized = true
	}

	d.streamer = streamer
	d.format = format

	resampled := beep.Resample(4, format.SampleRate, d.sampleRate, streamer)
	d.ctrl = &beep.Ctrl{Streamer: resampled, Paused: false}
	d.vol = &effects.Volume{
		Streamer: d.ctrl,
		Base:     2,
		Volume:   gainToVolume(d.gain),
		Silent:   d.gain == 0,
	}

	speaker.Play(beep.Seq(d.vol, beep.Callback(func() {
		if onDone != nil {
			// Separate goroutine: the callback runs under the speaker lock
			// and onDone will start the next track.
			go onDone()
		}
	})))

	return nil
}

func (d *beepDevice) setPaused(paused bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctrl != nil {
		speaker.Lock()
		d.ctrl.Paused = paused
		speaker.Unlock()
	}
}

func (d *beepDevice) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *beepDevice) stopLocked() {
	if d.ctrl != nil {
		speaker.Lock()
		d.ctrl.Paused = true
		speaker.Unlock()
	}
	if d.streamer != nil {
		d.streamer.Close()
		d.streamer = nil
	}
	d.ctrl = nil
	d.vol = nil
}

func (d *beepDevice) setGain(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gain = v
	if d.vol != nil {
		speaker.Lock()
		d.vol.Volume = gainToVolume(v)
		d.vol.Silent = v == 0
		speaker.Unlock()
	}
}

func (d *beepDevice) position() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.streamer == nil {
		return 0
	}

	speaker.Lock()
	pos := d.streamer.Position()
	speaker.Unlock()

	return d.format.SampleRate.D(pos)
}

func (d *beepDevice) duration() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.streamer == nil {
		return 0
	}
	return d.format.SampleRate.D(d.streamer.Len())
}

func (d *beepDevice) seek(pos time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.streamer == nil {
		return nil
	}

	speaker.Lock()
	defer speaker.Unlock()

	samples := d.format.SampleRate.N(pos)
	if total := d.streamer.Len(); samples > total {
		samples = total
	}
	if samples < 0 {
		samples = 0
	}
	return d.streamer.Seek(samples)
}

// gainToVolume converts linear [0,1] gain to beep's logarithmic volume.
func gainToVolume(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Log2(v)
}

// nopCloser wraps a bytes.Reader to implement io.ReadCloser.
type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
