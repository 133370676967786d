package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GengGeng026/habitboard/internal/export"
	"github.com/GengGeng026/habitboard/internal/progress"
)

var (
	resetProgressFile string
	resetExportPath   string
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the checkpoint and exported table",
	Long: `Reset removes the fetch checkpoint and the exported CSV. The next
generate run refetches everything from the start. The exported table is
derived from the checkpointed fetch, so clearing one invalidates the
other.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := progress.NewStore(resetProgressFile)
		if err := store.Clear(); err != nil {
			return err
		}
		if err := export.Remove(resetExportPath); err != nil {
			return err
		}
		fmt.Println("✓ Checkpoint and export cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().StringVar(&resetProgressFile, "progress-file", "progress.json", "checkpoint file path")
	resetCmd.Flags().StringVar(&resetExportPath, "out", "data/habits.csv", "exported table path")
}
