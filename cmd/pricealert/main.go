package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"pricealert/internal/interfaces/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Error().Err(err).Msg("pricealert exited")
		os.Exit(1)
	}
}
