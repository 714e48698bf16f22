package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"racepower-backend/lib/serviceutil"

	"github.com/spf13/cobra"
)

var fitDir *string

func init() {
	fitDir = fitCmd.Flags().String("dir", "fit", "The directory to write downloaded fit files to.")
	rootCmd.AddCommand(fitCmd)
}

var fitCmd = &cobra.Command{
	Use:   "fit <race id>",
	Short: "Downloads every public fit file for a race's riders.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		client := createClient(ctx, readSession())

		files, err := client.PullRaceFitFiles(ctx, args[0])
		if err != nil {
			serviceutil.Fatal("failed to pull fit files", err)
		}
		if err := os.MkdirAll(*fitDir, 0755); err != nil {
			serviceutil.Fatal("failed to create output directory", err)
		}

		for _, file := range files {
			name := fmt.Sprintf("%s_%s.fit", file.RiderID, file.ActivityID)
			path := filepath.Join(*fitDir, name)
			if err := os.WriteFile(path, file.Data, 0644); err != nil {
				serviceutil.Fatal("failed to write fit file", err)
			}
			slog.Info("wrote fit file", "path", path, "bytes", len(file.Data))
		}
		slog.Info("done", "race_id", args[0], "files", len(files))
	},
}
