package player

import "time"

// device is the audio output. Exactly one stream is live at a time;
// play always disposes the previous stream first.
type device interface {
	// play decodes MP3 data and starts playback. onDone fires once when the
	// stream reaches its natural end (not when stopped or replaced).
	play(data []byte, onDone func()) error
	setPaused(paused bool)
	stop()
	// setGain sets the linear volume in [0,1], 0 meaning silent.
	setGain(v float64)
	position() time.Duration
	duration() time.Duration
	seek(d time.Duration) error
}
