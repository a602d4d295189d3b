// Package notify defines the outward notification surface of the core.
// Delivery is fire-and-forget: a notifier failure is never fatal.
package notify

import (
	"log/slog"

	"github.com/gen2brain/beeep"

	"github.com/meetscribe/meetscribe/internal/detect"
)

// Notifier receives every user-visible state change. The detector and
// the lifecycle coordinator are the only callers.
type Notifier interface {
	MeetingDetected(state detect.MeetingState)
	MeetingEnded()
	RecordingStateChanged(state string)
	TranscriptionStarted(recordingID string)
	TranscriptionSucceeded(recordingID string, wordCount int)
	TranscriptionFailed(recordingID string, err error)
	PlaybackFinished()
}

// Nop discards everything.
type Nop struct{}

func (Nop) MeetingDetected(detect.MeetingState)    {}
func (Nop) MeetingEnded()                          {}
func (Nop) RecordingStateChanged(string)           {}
func (Nop) TranscriptionStarted(string)            {}
func (Nop) TranscriptionSucceeded(string, int)     {}
func (Nop) TranscriptionFailed(string, error)      {}
func (Nop) PlaybackFinished()                      {}

// Log writes notifications to the structured log.
type Log struct{}

func (Log) MeetingDetected(state detect.MeetingState) {
	slog.Info("meeting detected", "app", state.App.String())
}

func (Log) MeetingEnded() {
	slog.Info("meeting ended")
}

func (Log) RecordingStateChanged(state string) {
	slog.Info("recording state changed", "state", state)
}

func (Log) TranscriptionStarted(recordingID string) {
	slog.Info("transcription started", "recording", recordingID)
}

func (Log) TranscriptionSucceeded(recordingID string, wordCount int) {
	slog.Info("transcription succeeded", "recording", recordingID, "words", wordCount)
}

func (Log) TranscriptionFailed(recordingID string, err error) {
	slog.Warn("transcription failed", "recording", recordingID, "error", err)
}

func (Log) PlaybackFinished() {
	slog.Info("playback finished")
}

const appTitle = "Meetscribe"

// Desktop raises OS notifications for the changes a user at the desk
// cares about and logs the rest. beeep errors are swallowed: a broken
// notification daemon must not affect recording.
type Desktop struct {
	Log
}

func (d Desktop) MeetingDetected(state detect.MeetingState) {
	d.Log.MeetingDetected(state)
	app := "unknown"
	if state.App != nil {
		app = state.App.String()
	}
	_ = beeep.Notify(appTitle, "Meeting detected: "+app, "")
}

func (d Desktop) MeetingEnded() {
	d.Log.MeetingEnded()
	_ = beeep.Notify(appTitle, "Meeting ended, recording saved", "")
}

func (d Desktop) TranscriptionFailed(recordingID string, err error) {
	d.Log.TranscriptionFailed(recordingID, err)
	_ = beeep.Notify(appTitle, "Transcription failed", "")
}
