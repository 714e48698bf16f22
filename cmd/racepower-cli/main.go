package main

import (
	"context"

	"racepower-backend/cmd/racepower-cli/commands"
	"racepower-backend/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "racepower-cli")
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
