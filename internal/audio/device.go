// Package audio owns live capture and playback: the device abstraction,
// the WAV sample writer, and the single-consumer command pipeline that
// serializes all audio operations.
package audio

import "errors"

// ErrNoDevice is returned when no usable input or output endpoint is
// available on the host.
var ErrNoDevice = errors.New("no audio device available")

// Format describes a negotiated stream format. Capture always records
// at the device's native rate and channel count; 16 kHz mono is only
// produced later by the converter.
type Format struct {
	SampleRate int
	Channels   int
}

// Stream is an open hardware stream. Close halts the callback and
// releases the endpoint; it is the only cancellation mechanism.
type Stream interface {
	Start() error
	Close() error
}

// Device abstracts the OS audio endpoints so the pipeline and its tests
// never touch hardware directly. Callbacks receive interleaved float32
// samples normalized to [-1, 1]; the slice is reused between calls and
// must be copied if retained.
type Device interface {
	// CaptureFormat negotiates the default input endpoint's native format.
	CaptureFormat() (Format, error)
	// OpenCapture opens an input stream delivering samples to onSamples.
	// The stream is not started.
	OpenCapture(format Format, onSamples func([]float32)) (Stream, error)
	// OpenPlayback opens an output stream pulling samples from fill.
	// The stream is not started.
	OpenPlayback(format Format, fill func(out []float32)) (Stream, error)
}
