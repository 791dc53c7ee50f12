//go:build !cgo && !windows && !darwin

package player

import "time"

// AudioAvailable indicates whether audio playback is supported in this build.
// Audio requires CGO for native sound libraries on Linux.
const AudioAvailable = false

// noopDevice is a silent audio device for builds without an audio backend.
// The client still renders, syncs and tracks state, just without sound.
type noopDevice struct{}

func newDevice() device {
	return noopDevice{}
}

func (noopDevice) play(data []byte, onDone func()) error { return nil }

func (noopDevice) setPaused(paused bool) {}

func (noopDevice) stop() {}

func (noopDevice) setGain(v float64) {}

func (noopDevice) position() time.Duration { return 0 }

func (noopDevice) duration() time.Duration { return 0 }

func (noopDevice) seek(d time.Duration) error { return nil }
