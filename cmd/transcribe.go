package cmd

import (
	"fmt"

	"github.com/meetscribe/meetscribe/internal/transcribe"

	"github.com/spf13/cobra"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <recording>",
	Short: "Transcribe a recording",
	Long: `Submit a recording to the configured transcription endpoint and print
the transcript. Requires transcription.endpoint to be set in the config.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Transcription.Endpoint == "" {
			return fmt.Errorf("no transcription endpoint configured, set transcription.endpoint in the config file")
		}

		coord, cleanup, err := newCoordinator(newNotifier())
		if err != nil {
			return err
		}
		defer cleanup()

		rec, err := resolveRecording(coord, args[0])
		if err != nil {
			return err
		}

		client := transcribe.NewClient(cfg.Transcription.Endpoint, cfg.Transcription.APIKey).
			WithAudio(cfg.Audio.SampleRate, cfg.Audio.Channels)

		fmt.Printf("Transcribing %s...\n", rec.Filename)
		transcript, err := client.Transcribe(cmd.Context(), coord.Path(rec))
		if err != nil {
			return fmt.Errorf("transcription failed: %w", err)
		}

		fmt.Println(transcript.Transcript)
		if transcript.Confidence != nil {
			fmt.Printf("\nconfidence: %.2f", *transcript.Confidence)
		}
		if transcript.WordCount != nil {
			fmt.Printf("  words: %d", *transcript.WordCount)
		}
		fmt.Println()
		return nil
	},
}
