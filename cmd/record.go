package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var recordDuration time.Duration

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record the microphone manually",
	Long: `Start a microphone recording immediately, without waiting for a
meeting. Recording stops on Ctrl+C, or after --duration if given. The
result is compressed to Opus and added to the recent recordings list.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, cleanup, err := newCoordinator(newNotifier())
		if err != nil {
			return err
		}
		defer cleanup()

		if err := coord.Start(); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}

		if recordDuration > 0 {
			fmt.Printf("Recording for %s...\n", recordDuration)
		} else {
			fmt.Println("Recording... press Ctrl+C to stop.")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if recordDuration > 0 {
			select {
			case <-time.After(recordDuration):
			case <-ctx.Done():
			}
		} else {
			<-ctx.Done()
		}

		rec, err := coord.Stop(context.Background())
		if err != nil {
			return fmt.Errorf("failed to stop recording: %w", err)
		}

		fmt.Printf("Saved %s (%s)\n", rec.Filename, rec.Duration)
		return nil
	},
}

func init() {
	recordCmd.Flags().DurationVarP(&recordDuration, "duration", "d", 0, "stop automatically after this long (e.g. 90s, 5m)")
}
