package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/rf-lab/fobwatch/cmd/survey/app"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	config, err := app.NewConfigFromCLI()
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	if err = app.Run(context.Background(), config, logger); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}
