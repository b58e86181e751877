package main

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

var configFlag = &cli.StringFlag{
	Name:  "config",
	Value: "",
	Usage: "path to YAML configuration file",
}

var logJSONFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}

var logDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}

var logUIDFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var logServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "mediapipe",
	Usage: "add 'service' tag to logs",
}

var commonFlags = []cli.Flag{
	configFlag,
	logJSONFlag,
	logDebugFlag,
	logUIDFlag,
	logServiceFlag,
}

func setupLogger(cCtx *cli.Context) *slog.Logger {
	level := slog.LevelInfo
	if cCtx.Bool(logDebugFlag.Name) {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if cCtx.Bool(logJSONFlag.Name) {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler).With("service", cCtx.String(logServiceFlag.Name))
	if cCtx.Bool(logUIDFlag.Name) {
		logger = logger.With("uid", uuid.Must(uuid.NewRandom()).String())
	}
	return logger
}
