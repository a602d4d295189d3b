// Package recording owns the Idle/Recording/Paused lifecycle, the
// recording library with its on-disk metadata, and the orchestration of
// conversion and transcription after a session ends.
package recording

import (
	"fmt"
	"time"
)

// Status tracks where a finished recording stands in the upload
// pipeline.
type Status string

const (
	StatusLocal    Status = "local"
	StatusUploaded Status = "uploaded"
	StatusFailed   Status = "failed"
)

// Recording is the persisted record of one completed session.
type Recording struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Duration  string    `json:"duration"` // "M:SS"
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
}

// Phase names the coordinator's lifecycle states.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRecording Phase = "recording"
	PhasePaused    Phase = "paused"
)

// sessionState is the lifecycle state machine's backing data. Exactly
// one interpretation holds at a time, selected by phase.
type sessionState struct {
	phase     Phase
	startTime time.Time
	elapsed   int64 // seconds, meaningful while paused
	filePath  string
}

// playbackState mirrors PlaybackState from the model: idle, or playing
// one recording.
type playbackState struct {
	playing     bool
	recordingID string
	filename    string
	startTime   time.Time
}

// formatDuration renders elapsed wall time as "M:SS".
func formatDuration(d time.Duration) string {
	secs := int64(d.Seconds())
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
