package main

import (
	"checkin-system/cmd"
	"checkin-system/internal/logging"

	_ "checkin-system/migrations"
)

func main() {
	if err := cmd.Start(); err != nil {
		logging.Fatal().Err(err).Msg("server stopped")
	}
}
