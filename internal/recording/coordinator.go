package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meetscribe/meetscribe/internal/notify"
	"github.com/meetscribe/meetscribe/internal/transcribe"
)

// State transition conflicts reported to callers. None of them mutate
// state.
var (
	ErrAlreadyRecording  = errors.New("a recording is already in progress")
	ErrNotRecording      = errors.New("not currently recording")
	ErrNotPaused         = errors.New("recording is not paused")
	ErrRecordingNotFound = errors.New("recording not found")
	ErrFileNotReady      = errors.New("recording file was not finalized in time")
)

// wavHeaderMinBytes is the canonical WAV header size; a container below
// it holds no audio yet.
const wavHeaderMinBytes = 44

// AudioPipeline is the slice of the audio pipeline the coordinator
// drives.
type AudioPipeline interface {
	StartRecording(path string) error
	StopRecording() error
	StartPlayback(path string, onFinished func()) error
	StopPlayback() error
}

// Converter transcodes a finished container, returning the new path.
type Converter interface {
	Convert(ctx context.Context, inputPath string) (string, error)
}

// Transcriber submits a converted recording for transcription.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (*transcribe.Transcript, error)
}

// Timings are the finalization-wait knobs, overridable in tests.
type Timings struct {
	FinalizeGrace     time.Duration // initial wait before polling the file
	ReadyPollInterval time.Duration // delay between readiness polls
	ReadyAttempts     int           // bounded retries
}

func DefaultTimings() Timings {
	return Timings{
		FinalizeGrace:     500 * time.Millisecond,
		ReadyPollInterval: 200 * time.Millisecond,
		ReadyAttempts:     5,
	}
}

// Coordinator owns the Idle/Recording/Paused state machine and
// orchestrates the pipeline, converter and transcriber around it. It is
// the only component permitted to call the notifier for recording,
// playback and transcription changes.
//
// Lock order, when more than one is needed: recsMu before playMu. No
// lock is held across pipeline, file or network calls.
type Coordinator struct {
	store       *Store
	pipeline    AudioPipeline
	converter   Converter
	transcriber Transcriber // nil disables auto-transcription
	notifier    notify.Notifier
	timings     Timings

	mu    sync.Mutex
	state sessionState

	playMu sync.Mutex
	play   playbackState

	recsMu     sync.Mutex
	recordings []Recording

	transcriptions sync.WaitGroup
}

// NewCoordinator wires the collaborators together. notifier may be nil;
// transcriber may be nil to disable automatic transcription.
func NewCoordinator(store *Store, pipeline AudioPipeline, converter Converter, transcriber Transcriber, notifier notify.Notifier) *Coordinator {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Coordinator{
		store:       store,
		pipeline:    pipeline,
		converter:   converter,
		transcriber: transcriber,
		notifier:    notifier,
		timings:     DefaultTimings(),
		state:       sessionState{phase: PhaseIdle},
	}
}

// LoadFromDisk populates the in-memory library from the metadata file.
func (c *Coordinator) LoadFromDisk() error {
	recordings, err := c.store.Load()
	if err != nil {
		return err
	}
	c.recsMu.Lock()
	c.recordings = recordings
	c.recsMu.Unlock()
	slog.Info("loaded recordings", "count", len(recordings))
	return nil
}

// Phase reports the current lifecycle state.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.phase
}

// Recent returns a copy of the library, newest first.
func (c *Coordinator) Recent() []Recording {
	c.recsMu.Lock()
	defer c.recsMu.Unlock()
	out := make([]Recording, len(c.recordings))
	copy(out, c.recordings)
	return out
}

// WaitForTranscriptions blocks until background transcription uploads
// have finished. Called at shutdown so in-flight uploads are not lost.
func (c *Coordinator) WaitForTranscriptions() {
	c.transcriptions.Wait()
}

// Path returns the on-disk location of a recording's audio file.
func (c *Coordinator) Path(rec Recording) string {
	return c.store.Path(rec.Filename)
}

// Start begins a new recording session. Only legal from Idle.
func (c *Coordinator) Start() error {
	start := time.Now().UTC()
	filename := fmt.Sprintf("recording_%s.wav", start.Format("20060102_150405"))
	path := c.store.Path(filename)

	c.mu.Lock()
	if c.state.phase != PhaseIdle {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	c.state = sessionState{phase: PhaseRecording, startTime: start, filePath: path}
	c.mu.Unlock()

	if err := c.pipeline.StartRecording(path); err != nil {
		c.mu.Lock()
		c.state = sessionState{phase: PhaseIdle}
		c.mu.Unlock()
		return fmt.Errorf("starting audio capture: %w", err)
	}

	slog.Info("recording started", "file", filename)
	c.notifier.RecordingStateChanged(string(PhaseRecording))
	return nil
}

// Pause marks the session paused and records the elapsed seconds. The
// capture stream keeps running; pause is bookkeeping over a continuous
// capture, matching the recording's wall-clock duration semantics.
func (c *Coordinator) Pause() error {
	c.mu.Lock()
	if c.state.phase != PhaseRecording {
		c.mu.Unlock()
		return ErrNotRecording
	}
	c.state.phase = PhasePaused
	c.state.elapsed = int64(time.Since(c.state.startTime).Seconds())
	c.mu.Unlock()

	c.notifier.RecordingStateChanged(string(PhasePaused))
	return nil
}

// Resume returns a paused session to Recording, preserving the original
// start time.
func (c *Coordinator) Resume() error {
	c.mu.Lock()
	if c.state.phase != PhasePaused {
		c.mu.Unlock()
		return ErrNotPaused
	}
	c.state.phase = PhaseRecording
	c.mu.Unlock()

	c.notifier.RecordingStateChanged(string(PhaseRecording))
	return nil
}

// Stop ends the session, finalizes and converts the container, records
// the result in the library and kicks off transcription in the
// background. Legal from Recording or Paused.
func (c *Coordinator) Stop(ctx context.Context) (Recording, error) {
	c.mu.Lock()
	if c.state.phase != PhaseRecording && c.state.phase != PhasePaused {
		c.mu.Unlock()
		return Recording{}, ErrNotRecording
	}
	startTime := c.state.startTime
	filePath := c.state.filePath
	c.state = sessionState{phase: PhaseIdle}
	c.mu.Unlock()

	if err := c.pipeline.StopRecording(); err != nil {
		slog.Error("failed to stop audio capture", "error", err)
	}
	c.notifier.RecordingStateChanged(string(PhaseIdle))

	endTime := time.Now().UTC()
	duration := formatDuration(endTime.Sub(startTime))

	if err := c.waitForFile(ctx, filePath); err != nil {
		slog.Warn("container not confirmed ready, attempting conversion anyway",
			"file", filePath, "error", err)
	}

	finalPath := filePath
	if converted, err := c.converter.Convert(ctx, filePath); err != nil {
		slog.Error("conversion failed, keeping uncompressed recording",
			"file", filePath, "error", err)
	} else {
		finalPath = converted
	}

	rec := Recording{
		ID:        uuid.NewString(),
		Filename:  filepath.Base(finalPath),
		Duration:  duration,
		Timestamp: endTime,
		Status:    StatusLocal,
	}

	c.recsMu.Lock()
	c.recordings = append([]Recording{rec}, c.recordings...)
	if len(c.recordings) > maxRecentRecordings {
		c.recordings = c.recordings[:maxRecentRecordings]
	}
	toSave := make([]Recording, len(c.recordings))
	copy(toSave, c.recordings)
	c.recsMu.Unlock()

	if err := c.store.Save(toSave); err != nil {
		slog.Error("failed to persist recordings metadata", "error", err)
	}

	if c.transcriber != nil && strings.EqualFold(filepath.Ext(finalPath), ".opus") {
		c.transcriptions.Add(1)
		go c.transcribeAsync(rec.ID, finalPath)
	}

	slog.Info("recording stopped", "file", rec.Filename, "duration", duration)
	return rec, nil
}

// Toggle starts when idle and stops otherwise, returning a short
// description of what happened.
func (c *Coordinator) Toggle(ctx context.Context) (string, error) {
	if c.Phase() == PhaseIdle {
		if err := c.Start(); err != nil {
			return "", err
		}
		return "started recording", nil
	}
	if _, err := c.Stop(ctx); err != nil {
		return "", err
	}
	return "stopped recording", nil
}

// Play starts playback of a library entry through the pipeline.
func (c *Coordinator) Play(recordingID string) error {
	rec, ok := c.find(recordingID)
	if !ok {
		return ErrRecordingNotFound
	}
	path := c.store.Path(rec.Filename)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("recording file missing: %w", err)
	}

	c.playMu.Lock()
	c.play = playbackState{
		playing:     true,
		recordingID: rec.ID,
		filename:    rec.Filename,
		startTime:   time.Now().UTC(),
	}
	c.playMu.Unlock()

	onFinished := func() {
		c.playMu.Lock()
		if c.play.recordingID == rec.ID {
			c.play = playbackState{}
		}
		c.playMu.Unlock()
		c.notifier.PlaybackFinished()
	}
	if err := c.pipeline.StartPlayback(path, onFinished); err != nil {
		c.playMu.Lock()
		c.play = playbackState{}
		c.playMu.Unlock()
		return fmt.Errorf("starting playback: %w", err)
	}
	slog.Info("playback started", "file", rec.Filename)
	return nil
}

// StopPlayback drops the output stream and resets the playback state.
// Safe to call when nothing is playing.
func (c *Coordinator) StopPlayback() error {
	c.playMu.Lock()
	c.play = playbackState{}
	c.playMu.Unlock()
	return c.pipeline.StopPlayback()
}

// Playing reports the id of the recording being played, if any.
func (c *Coordinator) Playing() (string, bool) {
	c.playMu.Lock()
	defer c.playMu.Unlock()
	return c.play.recordingID, c.play.playing
}

// Delete removes a recording's file and metadata entry. If the entry is
// currently playing, playback stops first.
func (c *Coordinator) Delete(recordingID string) error {
	rec, ok := c.find(recordingID)
	if !ok {
		return ErrRecordingNotFound
	}

	if playingID, playing := c.Playing(); playing && playingID == recordingID {
		if err := c.StopPlayback(); err != nil {
			slog.Warn("failed to stop playback before delete", "error", err)
		}
	}

	path := c.store.Path(rec.Filename)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting recording file: %w", err)
	}

	c.recsMu.Lock()
	kept := c.recordings[:0]
	for _, r := range c.recordings {
		if r.ID != recordingID {
			kept = append(kept, r)
		}
	}
	c.recordings = kept
	toSave := make([]Recording, len(c.recordings))
	copy(toSave, c.recordings)
	c.recsMu.Unlock()

	if err := c.store.Save(toSave); err != nil {
		slog.Error("failed to persist recordings metadata", "error", err)
	}
	slog.Info("recording deleted", "file", rec.Filename)
	return nil
}

func (c *Coordinator) find(recordingID string) (Recording, bool) {
	c.recsMu.Lock()
	defer c.recsMu.Unlock()
	for _, r := range c.recordings {
		if r.ID == recordingID {
			return r, true
		}
	}
	return Recording{}, false
}

// waitForFile polls the container until it holds more than a bare WAV
// header, with bounded retries. The writer finalizes asynchronously
// after StopRecording, so an immediate read can catch a torn file.
func (c *Coordinator) waitForFile(ctx context.Context, path string) error {
	if c.timings.FinalizeGrace > 0 {
		select {
		case <-time.After(c.timings.FinalizeGrace):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for attempt := 0; attempt < c.timings.ReadyAttempts; attempt++ {
		if info, err := os.Stat(path); err == nil && info.Size() > wavHeaderMinBytes {
			return nil
		}
		select {
		case <-time.After(c.timings.ReadyPollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ErrFileNotReady
}

// transcribeAsync submits a converted recording without blocking the
// Stop caller, then records the outcome in the library.
func (c *Coordinator) transcribeAsync(recordingID, path string) {
	defer c.transcriptions.Done()

	c.notifier.TranscriptionStarted(recordingID)
	transcript, err := c.transcriber.Transcribe(context.Background(), path)
	if err != nil {
		c.setStatus(recordingID, StatusFailed)
		c.notifier.TranscriptionFailed(recordingID, err)
		return
	}
	c.setStatus(recordingID, StatusUploaded)
	c.notifier.TranscriptionSucceeded(recordingID, transcript.Words())
}

func (c *Coordinator) setStatus(recordingID string, status Status) {
	c.recsMu.Lock()
	for i := range c.recordings {
		if c.recordings[i].ID == recordingID {
			c.recordings[i].Status = status
			break
		}
	}
	toSave := make([]Recording, len(c.recordings))
	copy(toSave, c.recordings)
	c.recsMu.Unlock()

	if err := c.store.Save(toSave); err != nil {
		slog.Error("failed to persist recordings metadata", "error", err)
	}
}
