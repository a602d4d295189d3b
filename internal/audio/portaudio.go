package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// framesPerBuffer of 0 lets PortAudio pick an optimal callback size.
const framesPerBuffer = 0

// PortAudioDevice implements Device on top of the host's default
// PortAudio endpoints. Initialize/Terminate are reference counted by
// open streams so independent capture and playback sessions can
// coexist within one process lifetime.
type PortAudioDevice struct {
	mu   sync.Mutex
	refs int
}

func NewPortAudioDevice() *PortAudioDevice {
	return &PortAudioDevice{}
}

func (d *PortAudioDevice) acquire() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("initializing portaudio: %w", err)
		}
	}
	d.refs++
	return nil
}

func (d *PortAudioDevice) release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refs--
	if d.refs == 0 {
		portaudio.Terminate()
	}
}

// CaptureFormat negotiates the default input device's native sample
// rate and channel count, capped at stereo.
func (d *PortAudioDevice) CaptureFormat() (Format, error) {
	if err := d.acquire(); err != nil {
		return Format{}, err
	}
	defer d.release()

	info, err := portaudio.DefaultInputDevice()
	if err != nil {
		return Format{}, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	channels := info.MaxInputChannels
	if channels < 1 {
		return Format{}, ErrNoDevice
	}
	if channels > 2 {
		channels = 2
	}
	return Format{
		SampleRate: int(info.DefaultSampleRate),
		Channels:   channels,
	}, nil
}

func (d *PortAudioDevice) OpenCapture(format Format, onSamples func([]float32)) (Stream, error) {
	if err := d.acquire(); err != nil {
		return nil, err
	}
	stream, err := portaudio.OpenDefaultStream(
		format.Channels, 0, float64(format.SampleRate), framesPerBuffer,
		func(in []float32) { onSamples(in) },
	)
	if err != nil {
		d.release()
		return nil, fmt.Errorf("opening capture stream: %w", err)
	}
	return &paStream{stream: stream, device: d}, nil
}

func (d *PortAudioDevice) OpenPlayback(format Format, fill func(out []float32)) (Stream, error) {
	if err := d.acquire(); err != nil {
		return nil, err
	}
	stream, err := portaudio.OpenDefaultStream(
		0, format.Channels, float64(format.SampleRate), framesPerBuffer,
		func(out []float32) { fill(out) },
	)
	if err != nil {
		d.release()
		return nil, fmt.Errorf("opening playback stream: %w", err)
	}
	return &paStream{stream: stream, device: d}, nil
}

type paStream struct {
	stream *portaudio.Stream
	device *PortAudioDevice

	closeOnce sync.Once
	closeErr  error
}

func (s *paStream) Start() error {
	return s.stream.Start()
}

func (s *paStream) Close() error {
	s.closeOnce.Do(func() {
		// Stop may legitimately fail if the stream was never started.
		_ = s.stream.Stop()
		s.closeErr = s.stream.Close()
		s.device.release()
	})
	return s.closeErr
}
