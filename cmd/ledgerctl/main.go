package main

import (
	"fmt"
	"os"

	"stocktransfer-backend/internal/app"
	"stocktransfer-backend/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var Version = "dev"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	open := func() (*app.Services, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("no database configured for APP_ENV=%s", cfg.Env)
		}
		db, err := app.OpenStore(cfg)
		if err != nil {
			return nil, err
		}
		return app.NewServices(cfg, db), nil
	}

	if err := newRootCmd(open).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
