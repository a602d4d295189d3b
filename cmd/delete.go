package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <recording>",
	Aliases: []string{"rm"},
	Short:   "Delete a recording",
	Long:    `Remove a recording's audio file and its metadata entry.`,
	Args:    cobra.ExactArgs(1),
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
		if err := coord.Delete(rec.ID); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
		fmt.Printf("Deleted %s\n", rec.Filename)
		return nil
	},
}
