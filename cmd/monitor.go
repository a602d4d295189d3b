package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/meetscribe/meetscribe/internal/detect"
	"github.com/meetscribe/meetscribe/internal/notify"
	"github.com/meetscribe/meetscribe/internal/recording"

	"github.com/spf13/cobra"
)

var monitorNoRecord bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch for meetings and record them automatically",
	Long: `Poll the system for active video meetings and start recording the
microphone when one begins. When the meeting ends the recording is
stopped, compressed to Opus and, if a transcription endpoint is
configured, submitted for transcription.

Runs until interrupted with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		notifier := newNotifier()

		coord, cleanup, err := newCoordinator(notifier)
		if err != nil {
			return err
		}
		defer cleanup()

		events := detect.Events(notifierEvents{notifier})
		if !monitorNoRecord {
			events = &autoRecorder{coord: coord, notifier: notifier}
		}

		detector := newDetector(events)
		if err := detector.StartMonitoring(); err != nil {
			return fmt.Errorf("starting meeting monitor: %w", err)
		}

		fmt.Printf("Monitoring for meetings every %ds. Press Ctrl+C to stop.\n",
			cfg.Detection.IntervalSeconds)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		detector.StopMonitoring()
		detector.Wait()

		// Finalize any recording left open by an interrupted meeting.
		if coord.Phase() != recording.PhaseIdle {
			if rec, err := coord.Stop(context.Background()); err != nil {
				slog.Error("failed to finalize recording on shutdown", "error", err)
			} else {
				fmt.Printf("Saved %s (%s)\n", rec.Filename, rec.Duration)
			}
		}
		return nil
	},
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorNoRecord, "no-record", false, "detect and notify only, never start recording")
}

// autoRecorder ties detection events to the recording lifecycle.
type autoRecorder struct {
	coord    *recording.Coordinator
	notifier notify.Notifier
}

func (a *autoRecorder) MeetingDetected(state detect.MeetingState) {
	a.notifier.MeetingDetected(state)
	if err := a.coord.Start(); err != nil {
		slog.Error("failed to start recording for meeting", "error", err)
	}
}

func (a *autoRecorder) MeetingEnded() {
	a.notifier.MeetingEnded()
	rec, err := a.coord.Stop(context.Background())
	if err != nil {
		slog.Error("failed to stop recording after meeting", "error", err)
		return
	}
	slog.Info("meeting recording saved", "file", rec.Filename, "duration", rec.Duration)
}

// notifierEvents surfaces detection changes without recording.
type notifierEvents struct {
	notifier notify.Notifier
}

func (n notifierEvents) MeetingDetected(state detect.MeetingState) {
	n.notifier.MeetingDetected(state)
}

func (n notifierEvents) MeetingEnded() {
	n.notifier.MeetingEnded()
}
