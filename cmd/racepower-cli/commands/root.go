package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"racepower-backend/lib/serviceutil"
	"racepower-backend/lib/zwiftpower"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "racepower-cli",
	Short: "racepower-cli scrapes race rosters, power analysis and fit files from ZwiftPower.",
}

var sessionFile *string

func init() {
	sessionFile = rootCmd.PersistentFlags().String(
		"session", "session.json",
		"The file the serialized login session is read from and written to.",
	)
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readSession() []string {
	data, err := os.ReadFile(*sessionFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		serviceutil.Fatal("failed to read session file", err)
	}
	var session []string
	if err := json.Unmarshal(data, &session); err != nil {
		serviceutil.Fatal("failed to parse session file", err)
	}
	return session
}

func writeSession(session []string) {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		serviceutil.Fatal("failed to serialize session", err)
	}
	if err := os.WriteFile(*sessionFile, data, 0600); err != nil {
		serviceutil.Fatal("failed to write session file", err)
	}
}

func createClient(ctx context.Context, session []string) *zwiftpower.Client {
	client, err := zwiftpower.NewClient(ctx, zwiftpower.ClientOptions{
		Session: session,
		Timeout: time.Second * 30,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize client", err)
	}
	return client
}
