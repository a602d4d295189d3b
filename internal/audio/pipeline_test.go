package audio

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

// fakeStream runs the registered hooks; Start feeds or pulls samples
// synchronously so tests stay deterministic.
type fakeStream struct {
	onStart func() error
	onClose func() error
}

func (s *fakeStream) Start() error {
	if s.onStart != nil {
		return s.onStart()
	}
	return nil
}

func (s *fakeStream) Close() error {
	if s.onClose != nil {
		return s.onClose()
	}
	return nil
}

// fakeDevice satisfies Device without touching real hardware.
type fakeDevice struct {
	format Format

	captureFrames [][]float32 // delivered to the capture callback on Start
	captureErr    error

	mu        sync.Mutex
	playbackN int // samples to pull per fill call
}

func (d *fakeDevice) CaptureFormat() (Format, error) {
	if d.captureErr != nil {
		return Format{}, d.captureErr
	}
	return d.format, nil
}

func (d *fakeDevice) OpenCapture(_ Format, onSamples func([]float32)) (Stream, error) {
	return &fakeStream{
		onStart: func() error {
			for _, frame := range d.captureFrames {
				onSamples(frame)
			}
			return nil
		},
	}, nil
}

func (d *fakeDevice) OpenPlayback(_ Format, fill func([]float32)) (Stream, error) {
	n := d.playbackN
	if n == 0 {
		n = 512
	}
	stop := make(chan struct{})
	return &fakeStream{
		onStart: func() error {
			go func() {
				buf := make([]float32, n)
				for {
					select {
					case <-stop:
						return
					default:
						fill(buf)
					}
				}
			}()
			return nil
		},
		onClose: func() error {
			close(stop)
			return nil
		},
	}, nil
}

func TestPipelineRecordsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.wav")
	device := &fakeDevice{
		format:        Format{SampleRate: 16000, Channels: 1},
		captureFrames: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
	}
	p := NewPipeline(device)

	if err := p.StartRecording(path); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	if err := p.StopRecording(); err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}
	p.Close() // waits for the consumer, so the file is finalized

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("recording file missing: %v", err)
	}
	defer f.Close()
	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		t.Fatalf("decoding recording: %v", err)
	}
	if len(buf.Data) != 4 {
		t.Errorf("expected 4 samples, got %d", len(buf.Data))
	}
}

func TestPipelinePlaybackFiresOnFinished(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "take.wav")

	// Lay down a small container to play back.
	w, err := NewSampleWriter(path, Format{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	w.Push(make([]float32, 1024))
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	p := NewPipeline(&fakeDevice{format: Format{SampleRate: 16000, Channels: 1}})
	defer p.Close()

	finished := make(chan struct{})
	err = p.StartPlayback(path, func() { close(finished) })
	if err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("onFinished never fired")
	}
	if err := p.StopPlayback(); err != nil {
		t.Fatalf("StopPlayback failed: %v", err)
	}
}

func TestPipelinePlaybackMissingFile(t *testing.T) {
	p := NewPipeline(&fakeDevice{format: Format{SampleRate: 16000, Channels: 1}})

	finished := make(chan struct{})
	// The command is accepted; the failure surfaces in the consumer and
	// leaves the pipeline idle, so onFinished must never fire.
	if err := p.StartPlayback(filepath.Join(t.TempDir(), "nope.wav"), func() { close(finished) }); err != nil {
		t.Fatalf("StartPlayback enqueue failed: %v", err)
	}
	p.Close()

	select {
	case <-finished:
		t.Error("onFinished fired for a playback that never started")
	default:
	}
}

func TestPipelineRejectsCommandsAfterClose(t *testing.T) {
	p := NewPipeline(&fakeDevice{format: Format{SampleRate: 16000, Channels: 1}})
	p.Close()

	if err := p.StartRecording("x.wav"); !errors.Is(err, ErrPipelineClosed) {
		t.Errorf("expected ErrPipelineClosed, got %v", err)
	}
	if err := p.StopRecording(); !errors.Is(err, ErrPipelineClosed) {
		t.Errorf("expected ErrPipelineClosed, got %v", err)
	}
	p.Close() // second Close is a no-op
}

func TestPipelineCaptureFormatError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.wav")
	p := NewPipeline(&fakeDevice{captureErr: ErrNoDevice})

	if err := p.StartRecording(path); err != nil {
		t.Fatalf("StartRecording enqueue failed: %v", err)
	}
	p.Close()

	// The failure is absorbed by the consumer; no container appears.
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected no recording file, stat err = %v", err)
	}
}
