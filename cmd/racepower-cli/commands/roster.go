package commands

import (
	"os"

	"racepower-backend/lib/serviceutil"
	"racepower-backend/lib/zwiftpower"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var rosterRider *string

func init() {
	rosterRider = rosterCmd.Flags().String("rider", "", "Show only the rider whose name best matches this.")
	rootCmd.AddCommand(rosterCmd)
}

var rosterCmd = &cobra.Command{
	Use:   "roster <race id>",
	Short: "Prints the merged rider roster for a race.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		client := createClient(ctx, readSession())

		roster, err := client.Roster(ctx, args[0])
		if err != nil {
			serviceutil.Fatal("failed to resolve roster", err)
		}

		if *rosterRider != "" {
			rider, ok := zwiftpower.FindRider(roster, *rosterRider)
			if !ok {
				serviceutil.Fatal("no rider matched", os.ErrNotExist)
			}
			roster = []zwiftpower.Rider{rider}
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Zwift ID", "Name", "Category", "Weight (kg)", "FTP (w)", "Flag", "Age"})
		for _, rider := range roster {
			t.AppendRow(table.Row{
				rider.ID,
				rider.Name,
				strOrDash(rider.Category),
				numOrDash(rider.WeightKg),
				numOrDash(rider.FtpWatts),
				strOrDash(rider.Flag),
				strOrDash(rider.Age),
			})
		}
		t.Render()
	},
}

func strOrDash(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}

func numOrDash(v *float64) any {
	if v == nil {
		return "-"
	}
	return *v
}
