package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recent recordings",
	Long: `Show the recent recordings kept on disk, newest first. Entries whose
audio file has been removed are skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, cleanup, err := newCoordinator(newNotifier())
		if err != nil {
			return err
		}
		defer cleanup()

		recordings := coord.Recent()
		if len(recordings) == 0 {
			fmt.Println("No recordings yet.")
			return nil
		}

		fmt.Printf("%-36s  %-30s  %-8s  %-20s  %s\n", "ID", "FILE", "LENGTH", "RECORDED", "STATUS")
		for _, rec := range recordings {
			fmt.Printf("%-36s  %-30s  %-8s  %-20s  %s\n",
				rec.ID,
				rec.Filename,
				rec.Duration,
				rec.Timestamp.Local().Format("2006-01-02 15:04:05"),
				rec.Status,
			)
		}
		return nil
	},
}
