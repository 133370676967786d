package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GengGeng026/habitboard/internal/progress"
)

var (
	statusProgressFile string
	statusExportPath   string
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show fetch checkpoint and export state",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := progress.NewStore(statusProgressFile)

		if !store.Exists() {
			fmt.Println("No checkpoint found; the next run fetches from the start.")
		} else {
			cp, err := store.Load()
			if err != nil {
				return err
			}
			fmt.Printf("Checkpoint:      %s\n", store.Path())
			fmt.Printf("Retrieved:       %d records\n", cp.TotalRetrieved)
			fmt.Printf("Seen page ids:   %d\n", len(cp.QueriedPageIDs))
			if cp.StartCursor != "" {
				fmt.Println("Cursor:          pending (more pages to fetch)")
			} else {
				fmt.Println("Cursor:          exhausted (fetch completed)")
			}
		}

		if info, err := os.Stat(statusExportPath); err == nil {
			fmt.Printf("Export:          %s (%d bytes)\n", statusExportPath, info.Size())
		} else {
			fmt.Printf("Export:          %s (not generated)\n", statusExportPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusProgressFile, "progress-file", "progress.json", "checkpoint file path")
	statusCmd.Flags().StringVar(&statusExportPath, "out", "data/habits.csv", "exported table path")
}
