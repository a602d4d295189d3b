package audio

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync/atomic"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// frameQueueCap bounds the capture-to-writer queue. When the writer
// cannot keep up the newest frame is dropped and counted instead of
// letting the queue grow without limit.
const frameQueueCap = 256

const wavBitDepth = 16

// SampleWriter consumes queued capture frames on its own goroutine,
// converts normalized float samples to 16-bit PCM and appends them to a
// WAV container. Closing drains the queue and finalizes the header.
type SampleWriter struct {
	path   string
	frames chan []float32
	done   chan struct{}

	dropped atomic.Int64
	written atomic.Int64

	file   *os.File
	enc    *wav.Encoder
	format Format

	closeErr error
}

// NewSampleWriter creates the container file and starts the consumer.
func NewSampleWriter(path string, format Format) (*SampleWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating container file: %w", err)
	}
	w := &SampleWriter{
		path:   path,
		frames: make(chan []float32, frameQueueCap),
		done:   make(chan struct{}),
		file:   f,
		enc:    wav.NewEncoder(f, format.SampleRate, wavBitDepth, format.Channels, 1),
		format: format,
	}
	go w.consume()
	return w, nil
}

// Push queues one capture frame. It is safe to call from the hardware
// callback: the frame is copied, and when the queue is full it is
// dropped rather than blocking the callback.
func (w *SampleWriter) Push(samples []float32) {
	frame := make([]float32, len(samples))
	copy(frame, samples)
	select {
	case w.frames <- frame:
	default:
		w.dropped.Add(1)
	}
}

// Dropped reports how many frames the writer discarded under
// backpressure.
func (w *SampleWriter) Dropped() int64 {
	return w.dropped.Load()
}

// Close stops accepting frames, waits for the consumer to drain the
// queue and finalizes the container header. The file is only safe to
// read after Close returns.
func (w *SampleWriter) Close() error {
	close(w.frames)
	<-w.done
	return w.closeErr
}

func (w *SampleWriter) consume() {
	defer close(w.done)

	for frame := range w.frames {
		buf := &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: w.format.Channels,
				SampleRate:  w.format.SampleRate,
			},
			Data:           make([]int, len(frame)),
			SourceBitDepth: wavBitDepth,
		}
		for i, s := range frame {
			buf.Data[i] = int(pcm16(s))
		}
		if err := w.enc.Write(buf); err != nil {
			w.closeErr = fmt.Errorf("writing samples: %w", err)
			break
		}
		w.written.Add(int64(len(frame)))
	}
	// Drain whatever the producer queued after a write error so Close
	// never blocks on a full channel.
	for range w.frames {
	}

	if err := w.enc.Close(); err != nil && w.closeErr == nil {
		w.closeErr = fmt.Errorf("finalizing container: %w", err)
	}
	if err := w.file.Close(); err != nil && w.closeErr == nil {
		w.closeErr = fmt.Errorf("closing container file: %w", err)
	}

	if n := w.dropped.Load(); n > 0 {
		slog.Warn("writer dropped frames under backpressure", "file", w.path, "frames", n)
	}
	slog.Debug("container finalized", "file", w.path, "samples", w.written.Load())
}

// pcm16 converts a normalized float sample to a signed 16-bit sample.
func pcm16(s float32) int16 {
	clamped := math.Max(-1, math.Min(1, float64(s)))
	return int16(clamped * math.MaxInt16)
}
