package recording

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meetscribe/meetscribe/internal/transcribe"
)

// fakePipeline satisfies AudioPipeline and materializes a plausible
// container on disk so the readiness poll has something to find.
type fakePipeline struct {
	mu           sync.Mutex
	startErr     error
	startCalls   int
	stopCalls    int
	playbackPath string
	onFinished   func()
}

func (p *fakePipeline) StartRecording(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startCalls++
	if p.startErr != nil {
		return p.startErr
	}
	return os.WriteFile(path, make([]byte, 128), 0o644)
}

func (p *fakePipeline) StopRecording() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopCalls++
	return nil
}

func (p *fakePipeline) StartPlayback(path string, onFinished func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playbackPath = path
	p.onFinished = onFinished
	return nil
}

func (p *fakePipeline) StopPlayback() error { return nil }

// fakeConverter mimics a successful transcode: writes the output,
// removes the source, returns the new path.
type fakeConverter struct {
	err   error
	calls atomic.Int32
}

func (c *fakeConverter) Convert(_ context.Context, inputPath string) (string, error) {
	c.calls.Add(1)
	if c.err != nil {
		return "", c.err
	}
	outputPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".opus"
	if err := os.WriteFile(outputPath, []byte("opus"), 0o644); err != nil {
		return "", err
	}
	_ = os.Remove(inputPath)
	return outputPath, nil
}

type fakeTranscriber struct {
	err   error
	calls atomic.Int32
}

func (f *fakeTranscriber) Transcribe(context.Context, string) (*transcribe.Transcript, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	wc := 42
	return &transcribe.Transcript{Transcript: "hello world", WordCount: &wc}, nil
}

func newTestCoordinator(t *testing.T, pipeline AudioPipeline, converter Converter, transcriber Transcriber) *Coordinator {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c := NewCoordinator(store, pipeline, converter, transcriber, nil)
	c.timings = Timings{FinalizeGrace: 0, ReadyPollInterval: time.Millisecond, ReadyAttempts: 3}
	return c
}

var durationPattern = regexp.MustCompile(`^\d+:\d{2}$`)

func TestStartStopLifecycle(t *testing.T) {
	pipeline := &fakePipeline{}
	converter := &fakeConverter{}
	transcriber := &fakeTranscriber{}
	c := newTestCoordinator(t, pipeline, converter, transcriber)

	if c.Phase() != PhaseIdle {
		t.Fatalf("expected idle phase, got %s", c.Phase())
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if c.Phase() != PhaseRecording {
		t.Errorf("expected recording phase, got %s", c.Phase())
	}
	if err := c.Start(); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("expected ErrAlreadyRecording, got %v", err)
	}

	rec, err := c.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if c.Phase() != PhaseIdle {
		t.Errorf("expected idle phase after stop, got %s", c.Phase())
	}
	if rec.ID == "" {
		t.Error("recording has no id")
	}
	if !strings.HasSuffix(rec.Filename, ".opus") {
		t.Errorf("expected converted filename, got %s", rec.Filename)
	}
	if !strings.HasPrefix(rec.Filename, "recording_") {
		t.Errorf("unexpected filename pattern: %s", rec.Filename)
	}
	if !durationPattern.MatchString(rec.Duration) {
		t.Errorf("duration %q does not match M:SS", rec.Duration)
	}
	if pipeline.stopCalls != 1 {
		t.Errorf("expected 1 StopRecording call, got %d", pipeline.stopCalls)
	}

	c.WaitForTranscriptions()
	if transcriber.calls.Load() != 1 {
		t.Errorf("expected 1 transcription, got %d", transcriber.calls.Load())
	}

	recent := c.Recent()
	if len(recent) != 1 {
		t.Fatalf("expected 1 recording in library, got %d", len(recent))
	}
	if recent[0].Status != StatusUploaded {
		t.Errorf("expected uploaded status after transcription, got %s", recent[0].Status)
	}

	// The library round-trips through the metadata file.
	fresh := NewCoordinator(c.store, pipeline, converter, transcriber, nil)
	if err := fresh.LoadFromDisk(); err != nil {
		t.Fatalf("LoadFromDisk failed: %v", err)
	}
	if len(fresh.Recent()) != 1 {
		t.Errorf("expected persisted recording, got %d", len(fresh.Recent()))
	}
}

func TestStopWithoutStart(t *testing.T) {
	c := newTestCoordinator(t, &fakePipeline{}, &fakeConverter{}, nil)
	if _, err := c.Stop(context.Background()); !errors.Is(err, ErrNotRecording) {
		t.Errorf("expected ErrNotRecording, got %v", err)
	}
}

func TestPauseResume(t *testing.T) {
	c := newTestCoordinator(t, &fakePipeline{}, &fakeConverter{}, nil)

	if err := c.Pause(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("pause while idle: expected ErrNotRecording, got %v", err)
	}
	if err := c.Resume(); !errors.Is(err, ErrNotPaused) {
		t.Errorf("resume while idle: expected ErrNotPaused, got %v", err)
	}

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if err := c.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if c.Phase() != PhasePaused {
		t.Errorf("expected paused phase, got %s", c.Phase())
	}
	if err := c.Pause(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("double pause: expected ErrNotRecording, got %v", err)
	}
	if err := c.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if c.Phase() != PhaseRecording {
		t.Errorf("expected recording phase, got %s", c.Phase())
	}

	// Stopping from paused is also legal.
	if err := c.Pause(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Stop(context.Background()); err != nil {
		t.Errorf("Stop from paused failed: %v", err)
	}
}

func TestConversionFailureKeepsOriginal(t *testing.T) {
	converter := &fakeConverter{err: errors.New("encoder missing")}
	transcriber := &fakeTranscriber{}
	c := newTestCoordinator(t, &fakePipeline{}, converter, transcriber)

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	rec, err := c.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop must succeed despite conversion failure: %v", err)
	}
	if !strings.HasSuffix(rec.Filename, ".wav") {
		t.Errorf("expected uncompressed filename, got %s", rec.Filename)
	}
	if rec.Status != StatusLocal {
		t.Errorf("expected local status, got %s", rec.Status)
	}

	c.WaitForTranscriptions()
	if transcriber.calls.Load() != 0 {
		t.Error("unconverted recordings must not be transcribed")
	}
}

func TestTranscriptionFailureMarksFailed(t *testing.T) {
	transcriber := &fakeTranscriber{err: errors.New("endpoint down")}
	c := newTestCoordinator(t, &fakePipeline{}, &fakeConverter{}, transcriber)

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.WaitForTranscriptions()

	recent := c.Recent()
	if len(recent) != 1 || recent[0].Status != StatusFailed {
		t.Errorf("expected failed status, got %+v", recent)
	}
}

func TestRetentionCapAcrossSessions(t *testing.T) {
	c := newTestCoordinator(t, &fakePipeline{}, &fakeConverter{}, nil)

	for i := 0; i < 7; i++ {
		if err := c.Start(); err != nil {
			t.Fatal(err)
		}
		if _, err := c.Stop(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(c.Recent()); got != 5 {
		t.Errorf("expected library capped at 5, got %d", got)
	}
}

func TestToggle(t *testing.T) {
	c := newTestCoordinator(t, &fakePipeline{}, &fakeConverter{}, nil)

	msg, err := c.Toggle(context.Background())
	if err != nil {
		t.Fatalf("first toggle failed: %v", err)
	}
	if !strings.Contains(msg, "started") || c.Phase() != PhaseRecording {
		t.Errorf("expected toggle to start recording, msg=%q phase=%s", msg, c.Phase())
	}

	msg, err = c.Toggle(context.Background())
	if err != nil {
		t.Fatalf("second toggle failed: %v", err)
	}
	if !strings.Contains(msg, "stopped") || c.Phase() != PhaseIdle {
		t.Errorf("expected toggle to stop recording, msg=%q phase=%s", msg, c.Phase())
	}
}

func TestDelete(t *testing.T) {
	c := newTestCoordinator(t, &fakePipeline{}, &fakeConverter{}, nil)

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	rec, err := c.Stop(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	path := c.Path(rec)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("recording file missing before delete: %v", err)
	}

	if err := c.Delete(rec.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected file removed, stat err = %v", err)
	}
	if len(c.Recent()) != 0 {
		t.Errorf("expected empty library, got %d entries", len(c.Recent()))
	}

	if err := c.Delete("no-such-id"); !errors.Is(err, ErrRecordingNotFound) {
		t.Errorf("expected ErrRecordingNotFound, got %v", err)
	}
}

func TestPlayUnknownRecording(t *testing.T) {
	c := newTestCoordinator(t, &fakePipeline{}, &fakeConverter{}, nil)
	if err := c.Play("missing"); !errors.Is(err, ErrRecordingNotFound) {
		t.Errorf("expected ErrRecordingNotFound, got %v", err)
	}
}

func TestPlayAndFinish(t *testing.T) {
	pipeline := &fakePipeline{}
	c := newTestCoordinator(t, pipeline, &fakeConverter{}, nil)

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	rec, err := c.Stop(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Play(rec.ID); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if id, playing := c.Playing(); !playing || id != rec.ID {
		t.Errorf("expected playback of %s, got %s playing=%v", rec.ID, id, playing)
	}

	// Simulate the pipeline reaching the end of the samples.
	pipeline.mu.Lock()
	onFinished := pipeline.onFinished
	pipeline.mu.Unlock()
	onFinished()

	if _, playing := c.Playing(); playing {
		t.Error("expected playback state cleared after finish")
	}
}

func TestConcurrentStartsSingleWinner(t *testing.T) {
	pipeline := &fakePipeline{}
	c := newTestCoordinator(t, pipeline, &fakeConverter{}, nil)

	var wg sync.WaitGroup
	var successes atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Start(); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := successes.Load(); got != 1 {
		t.Errorf("expected exactly one Start to win, got %d", got)
	}
	if c.Phase() != PhaseRecording {
		t.Errorf("expected recording phase, got %s", c.Phase())
	}
	if _, err := c.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestStartFailureRevertsToIdle(t *testing.T) {
	pipeline := &fakePipeline{startErr: errors.New("no input device")}
	c := newTestCoordinator(t, pipeline, &fakeConverter{}, nil)

	if err := c.Start(); err == nil {
		t.Fatal("expected Start to fail")
	}
	if c.Phase() != PhaseIdle {
		t.Errorf("expected idle after failed start, got %s", c.Phase())
	}

	// The coordinator must be usable again afterwards.
	pipeline.mu.Lock()
	pipeline.startErr = nil
	pipeline.mu.Unlock()
	if err := c.Start(); err != nil {
		t.Errorf("Start after recovery failed: %v", err)
	}
	if _, err := c.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{5 * time.Second, "0:05"},
		{65 * time.Second, "1:05"},
		{10 * time.Minute, "10:00"},
		{61 * time.Minute, "61:00"},
		{-time.Second, "0:00"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
