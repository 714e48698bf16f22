package commands

import (
	"log/slog"

	"racepower-backend/lib/configutil"
	"racepower-backend/lib/serviceutil"

	"github.com/spf13/cobra"
)

type Config struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Logs in with the credentials from config.json5 and saves the session.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[Config]("config.json5")
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		ctx := cmd.Context()
		client := createClient(ctx, nil)

		session, err := client.Login(ctx, cfg.Username, cfg.Password)
		if err != nil {
			serviceutil.Fatal("failed to login", err)
		}
		writeSession(session)

		slog.Info("session saved", "file", *sessionFile, "cookies", len(session))
	},
}
