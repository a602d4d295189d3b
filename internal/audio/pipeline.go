package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/go-audio/wav"
)

// ErrPipelineClosed is returned when a command is issued after Close.
var ErrPipelineClosed = errors.New("audio pipeline closed")

type commandKind int

const (
	cmdStartRecording commandKind = iota
	cmdStopRecording
	cmdStartPlayback
	cmdStopPlayback
)

// command is one entry in the pipeline's ingress queue.
type command struct {
	kind       commandKind
	path       string
	onFinished func()
}

// Pipeline serializes all audio operations through a single consumer
// goroutine, guaranteeing at most one active capture or playback stream
// system-wide. Commands are handled strictly in arrival order; a failed
// command logs, leaves the pipeline idle and never kills the consumer.
type Pipeline struct {
	device Device
	cmds   chan command

	mu      sync.Mutex
	started bool
	closed  bool
	done    chan struct{}
}

// NewPipeline builds a pipeline around a device. The consumer goroutine
// starts lazily on the first command.
func NewPipeline(device Device) *Pipeline {
	return &Pipeline{
		device: device,
		cmds:   make(chan command, 16),
		done:   make(chan struct{}),
	}
}

// StartRecording opens the default input endpoint at its native format
// and streams samples into a new container at path, replacing any
// stream currently active.
func (p *Pipeline) StartRecording(path string) error {
	return p.send(command{kind: cmdStartRecording, path: path})
}

// StopRecording halts the capture stream and signals the writer to
// drain and finalize the container. The file is not guaranteed complete
// the instant this returns; callers poll for readiness.
func (p *Pipeline) StopRecording() error {
	return p.send(command{kind: cmdStopRecording})
}

// StartPlayback plays a recorded container through the default output
// endpoint. onFinished fires exactly once when the last sample has been
// emitted; it may be nil.
func (p *Pipeline) StartPlayback(path string, onFinished func()) error {
	return p.send(command{kind: cmdStartPlayback, path: path, onFinished: onFinished})
}

// StopPlayback drops the output stream.
func (p *Pipeline) StopPlayback() error {
	return p.send(command{kind: cmdStopPlayback})
}

// Close shuts the consumer down after it finishes the queued commands,
// releasing any active stream.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	started := p.started
	close(p.cmds)
	p.mu.Unlock()

	if started {
		<-p.done
	}
}

func (p *Pipeline) send(cmd command) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPipelineClosed
	}
	if !p.started {
		p.started = true
		go p.consume()
	}
	// Sending under the lock keeps Close from racing the enqueue; the
	// single consumer drains fast enough that the buffered send only
	// blocks when a device call is genuinely stuck.
	p.cmds <- cmd
	return nil
}

// session is the consumer's view of the currently active stream, if any.
type session struct {
	stream Stream
	writer *SampleWriter
}

func (s *session) drop() {
	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			slog.Debug("closing stream", "error", err)
		}
		s.stream = nil
	}
	if s.writer != nil {
		if err := s.writer.Close(); err != nil {
			slog.Error("finalizing recording", "error", err)
		}
		s.writer = nil
	}
}

func (p *Pipeline) consume() {
	defer close(p.done)
	var active session
	for cmd := range p.cmds {
		p.handle(cmd, &active)
	}
	active.drop()
}

// handle executes one command. Panics are confined here so a misbehaving
// device cannot take the consumer loop down with it.
func (p *Pipeline) handle(cmd command, active *session) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("audio command panicked", "panic", r)
			active.drop()
		}
	}()

	switch cmd.kind {
	case cmdStartRecording:
		active.drop()
		if err := p.startRecording(cmd.path, active); err != nil {
			slog.Error("failed to start recording", "file", cmd.path, "error", err)
			active.drop()
		}
	case cmdStopRecording:
		active.drop()
		slog.Info("recording stopped")
	case cmdStartPlayback:
		active.drop()
		if err := p.startPlayback(cmd.path, cmd.onFinished, active); err != nil {
			slog.Error("failed to start playback", "file", cmd.path, "error", err)
			active.drop()
		}
	case cmdStopPlayback:
		active.drop()
	}
}

func (p *Pipeline) startRecording(path string, active *session) error {
	format, err := p.device.CaptureFormat()
	if err != nil {
		return err
	}
	slog.Info("starting recording", "file", path,
		"sample_rate", format.SampleRate, "channels", format.Channels)

	writer, err := NewSampleWriter(path, format)
	if err != nil {
		return err
	}
	stream, err := p.device.OpenCapture(format, writer.Push)
	if err != nil {
		_ = writer.Close()
		return err
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = writer.Close()
		return fmt.Errorf("starting capture stream: %w", err)
	}
	active.stream = stream
	active.writer = writer
	return nil
}

func (p *Pipeline) startPlayback(path string, onFinished func(), active *session) error {
	samples, format, err := readContainer(path)
	if err != nil {
		return err
	}
	slog.Info("starting playback", "file", path,
		"sample_rate", format.SampleRate, "channels", format.Channels)

	var cursor int
	var finished sync.Once
	fill := func(out []float32) {
		for i := range out {
			if cursor < len(samples) {
				out[i] = samples[cursor]
				cursor++
				continue
			}
			out[i] = 0 // pad silence past the end
			finished.Do(func() {
				if onFinished != nil {
					go onFinished()
				}
			})
		}
	}

	stream, err := p.device.OpenPlayback(format, fill)
	if err != nil {
		return err
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("starting playback stream: %w", err)
	}
	active.stream = stream
	return nil
}

// readContainer loads a whole WAV file into normalized float samples.
// Recordings are capped by the retention policy, so whole-file reads
// stay small.
func readContainer(path string) ([]float32, Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Format{}, fmt.Errorf("opening container: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, Format{}, fmt.Errorf("decoding container: %w", err)
	}
	format := Format{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}
	samples := make([]float32, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = float32(s) / math.MaxInt16
	}
	return samples, format, nil
}
