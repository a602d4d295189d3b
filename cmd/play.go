package cmd

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/meetscribe/meetscribe/internal/recording"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play <recording>",
	Short: "Play a recording",
	Long: `Play a recording through the default output device. The argument is a
recording ID (a unique prefix is enough) or a filename from 'list'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, cleanup, err := newCoordinator(newNotifier())
		if err != nil {
			return err
		}
		defer cleanup()

		rec, err := resolveRecording(coord, args[0])
		if err != nil {
			return err
		}

		if err := coord.Play(rec.ID); err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}
		fmt.Printf("Playing %s (%s)... press Ctrl+C to stop.\n", rec.Filename, rec.Duration)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return coord.StopPlayback()
			case <-ticker.C:
				if _, playing := coord.Playing(); !playing {
					return nil
				}
			}
		}
	},
}

// resolveRecording matches the argument against IDs and filenames of the
// recent recordings.
func resolveRecording(coord *recording.Coordinator, arg string) (recording.Recording, error) {
	var matches []recording.Recording
	for _, rec := range coord.Recent() {
		if rec.ID == arg || rec.Filename == arg {
			return rec, nil
		}
		if strings.HasPrefix(rec.ID, arg) {
			matches = append(matches, rec)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return recording.Recording{}, fmt.Errorf("no recording matches '%s', see 'meetscribe list'", arg)
	default:
		return recording.Recording{}, fmt.Errorf("'%s' is ambiguous, matches %d recordings", arg, len(matches))
	}
}
