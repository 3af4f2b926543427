package main

import (
	"os"

	"procurement/internal/app"

	"github.com/rs/zerolog"
)

func main() {
	app, err := app.NewApp()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("could not start app")
	}

	app.Run()
}
