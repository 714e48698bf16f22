package commands

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"racepower-backend/lib/serviceutil"

	"github.com/spf13/cobra"
)

var analysisOut *string

func init() {
	analysisOut = analysisCmd.Flags().String("out", "", "Write the analysis json to this file instead of stdout.")
	rootCmd.AddCommand(analysisCmd)
}

var analysisCmd = &cobra.Command{
	Use:   "analysis <race id>",
	Short: "Runs the full pipeline and emits per-rider analysis json.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		client := createClient(ctx, readSession())

		t1 := time.Now()
		out, err := client.RaceAnalysis(ctx, args[0])
		if err != nil {
			serviceutil.Fatal("failed to fetch race analysis", err)
		}
		slog.Info("race analysis fetched",
			"race_id", args[0],
			"riders", len(out),
			"seconds", time.Since(t1).Seconds(),
		)

		dest := os.Stdout
		if *analysisOut != "" {
			f, err := os.Create(*analysisOut)
			if err != nil {
				serviceutil.Fatal("failed to create output file", err)
			}
			defer f.Close()
			dest = f
		}

		enc := json.NewEncoder(dest)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			serviceutil.Fatal("failed to encode analysis", err)
		}
	},
}
