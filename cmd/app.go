package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/meetscribe/meetscribe/internal/audio"
	"github.com/meetscribe/meetscribe/internal/convert"
	"github.com/meetscribe/meetscribe/internal/detect"
	"github.com/meetscribe/meetscribe/internal/notify"
	"github.com/meetscribe/meetscribe/internal/recording"
	"github.com/meetscribe/meetscribe/internal/transcribe"
)

// newNotifier picks the notifier the config asks for.
func newNotifier() notify.Notifier {
	if cfg.Notifications.Desktop {
		return notify.Desktop{}
	}
	return notify.Log{}
}

// newCoordinator builds the full recording stack from the loaded config.
// The returned cleanup releases the audio device and waits for pending
// transcriptions.
func newCoordinator(notifier notify.Notifier) (*recording.Coordinator, func(), error) {
	store, err := recording.NewStore(cfg.RecordingsDir())
	if err != nil {
		return nil, nil, fmt.Errorf("preparing recordings directory: %w", err)
	}

	pipeline := audio.NewPipeline(audio.NewPortAudioDevice())
	converter := convert.New(nil).
		WithEncoding(cfg.Audio.BitrateKbps, cfg.Audio.SampleRate, cfg.Audio.Channels)

	var transcriber recording.Transcriber
	if cfg.Transcription.Endpoint != "" {
		transcriber = transcribe.NewClient(cfg.Transcription.Endpoint, cfg.Transcription.APIKey).
			WithAudio(cfg.Audio.SampleRate, cfg.Audio.Channels)
	}

	coord := recording.NewCoordinator(store, pipeline, converter, transcriber, notifier)
	if err := coord.LoadFromDisk(); err != nil {
		pipeline.Close()
		return nil, nil, fmt.Errorf("loading recordings metadata: %w", err)
	}

	cleanup := func() {
		coord.WaitForTranscriptions()
		pipeline.Close()
	}
	return coord, cleanup, nil
}

func fileExists(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return true, nil
	} else if errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else {
		return false, err
	}
}

// newDetector builds the meeting detector with the configured poll
// interval and browser list.
func newDetector(events detect.Events) *detect.Detector {
	probes := detect.NewSystemProbes(cfg.Detection.Browsers)
	interval := time.Duration(cfg.Detection.IntervalSeconds) * time.Second
	return detect.New(probes, events, interval)
}
