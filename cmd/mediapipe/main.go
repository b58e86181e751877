// The mediapipe command processes media files through the content
// pipeline, either as one-shot CLI invocations or as a long-running HTTP
// service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/config"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/content"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/events"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/httpserver"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/locks"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/pipeline"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/processors"
	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/storage"
)

func main() {
	app := &cli.App{
		Name:  "mediapipe",
		Usage: "Process and store media files with fault-tolerant storage",
		Commands: []*cli.Command{
			serveCommand(),
			processCommand(),
			batchCommand(),
			archiveCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// components is the assembled pipeline shared by every command.
type components struct {
	cfg          *config.Config
	log          *slog.Logger
	registry     *prometheus.Registry
	manager      *storage.Manager
	orchestrator *pipeline.Orchestrator
	persister    *pipeline.Persister
}

func buildComponents(cCtx *cli.Context, logger *slog.Logger) (*components, error) {
	cfg, err := config.Load(cCtx.String(configFlag.Name))
	if err != nil {
		return nil, err
	}

	var codec *content.Codec
	if cfg.Storage.Compression || cfg.Storage.EncryptionSecret != "" {
		codec, err = content.NewCodec(cfg.Storage.Compression, []byte(cfg.Storage.EncryptionSecret))
		if err != nil {
			return nil, fmt.Errorf("configuring storage codec: %w", err)
		}
	}

	adapters, err := storage.NewAdapterFactory(logger).AdaptersFor(cfg.Storage.Providers)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	notifier := events.NewLogNotifier(logger)

	manager := storage.NewManager(storage.ManagerConfig{
		KeyPrefix:      cfg.Storage.KeyPrefix,
		MaxFileSize:    cfg.Storage.MaxFileSize,
		RetryAttempts:  cfg.Storage.RetryAttempts,
		RetryDelay:     cfg.Storage.RetryDelay,
		HealthInterval: cfg.Storage.HealthInterval,
	}, adapters, codec, storage.NewMetrics(registry), notifier, logger)
	if err := manager.Initialize(cCtx.Context); err != nil {
		return nil, err
	}

	toolkit := processors.NewFFmpegToolkit("", logger)
	router := processors.NewRouter(
		processors.NewImageProcessor(logger),
		processors.NewVideoProcessor(toolkit, logger),
		processors.NewAudioProcessor(toolkit, logger),
		processors.NewDocumentProcessor(logger),
		processors.NewArchiveProcessor(logger),
	)

	orchestrator := pipeline.NewOrchestrator(pipeline.Config{
		MaxConcurrent: cfg.Processing.MaxConcurrent,
		Parallel:      cfg.ParallelEnabled(),
		Timeout:       cfg.Processing.Timeout,
		RetryAttempts: cfg.Processing.RetryAttempts,
		RetryDelay:    cfg.Processing.RetryDelay,
		Retention:     cfg.Processing.Retention,
	}, router, notifier, logger)

	persister := pipeline.NewPersister(manager, nil, locks.NewMemoryLocker(), 0, logger)

	return &components{
		cfg:          cfg,
		log:          logger,
		registry:     registry,
		manager:      manager,
		orchestrator: orchestrator,
		persister:    persister,
	}, nil
}

func (c *components) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.manager.Close(ctx); err != nil {
		c.log.Warn("Closing storage manager", "err", err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the media pipeline HTTP API",
		Flags: commonFlags,
		Action: func(cCtx *cli.Context) error {
			logger := setupLogger(cCtx)
			comps, err := buildComponents(cCtx, logger)
			if err != nil {
				return err
			}
			defer comps.close()

			handler := httpserver.NewHandler(comps.orchestrator, comps.persister, comps.manager, logger)
			server, err := httpserver.New(&httpserver.HTTPServerConfig{
				ListenAddr:               comps.cfg.Server.ListenAddr,
				MetricsAddr:              comps.cfg.Server.MetricsAddr,
				EnablePprof:              comps.cfg.Server.EnablePprof,
				Log:                      logger,
				DrainDuration:            comps.cfg.Server.DrainDuration,
				GracefulShutdownDuration: 30 * time.Second,
				ReadTimeout:              comps.cfg.Server.ReadTimeout,
				WriteTimeout:             comps.cfg.Server.WriteTimeout,
			}, handler, comps.registry)
			if err != nil {
				return err
			}

			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			logger.Info("Shutting down")
			server.Shutdown()
			return nil
		},
	}
}

func processCommand() *cli.Command {
	return &cli.Command{
		Name:      "process",
		Usage:     "Process one file and store it with its artifacts",
		ArgsUsage: "<file>",
		Flags:     commonFlags,
		Action: func(cCtx *cli.Context) error {
			if cCtx.NArg() != 1 {
				return fmt.Errorf("expected exactly one file argument")
			}
			logger := setupLogger(cCtx)
			comps, err := buildComponents(cCtx, logger)
			if err != nil {
				return err
			}
			defer comps.close()

			in, err := readFile(cCtx.Args().First())
			if err != nil {
				return err
			}

			result, err := comps.orchestrator.ProcessFile(cCtx.Context, in, interfaces.ProcessOptions{})
			if err != nil {
				return err
			}
			stored, err := comps.persister.Persist(cCtx.Context, in, result)
			if err != nil {
				return err
			}

			return printJSON(map[string]any{
				"process_id":      result.ProcessID,
				"type":            result.Type,
				"artifacts":       len(result.Artifacts),
				"metadata":        result.Metadata,
				"processing_time": result.ProcessingTime.String(),
				"storage_key":     storedKey(stored),
			})
		},
	}
}

func batchCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "Process every file matching a glob pattern",
		ArgsUsage: "<glob>",
		Flags:     commonFlags,
		Action: func(cCtx *cli.Context) error {
			if cCtx.NArg() != 1 {
				return fmt.Errorf("expected exactly one glob argument")
			}
			logger := setupLogger(cCtx)
			comps, err := buildComponents(cCtx, logger)
			if err != nil {
				return err
			}
			defer comps.close()

			paths, err := filepath.Glob(cCtx.Args().First())
			if err != nil {
				return fmt.Errorf("invalid glob pattern: %w", err)
			}
			if len(paths) == 0 {
				return fmt.Errorf("no files match %q", cCtx.Args().First())
			}

			files := make([]interfaces.FileInput, 0, len(paths))
			for _, path := range paths {
				in, err := readFile(path)
				if err != nil {
					return err
				}
				files = append(files, in)
			}

			batch := comps.orchestrator.ProcessBatch(cCtx.Context, files, interfaces.ProcessOptions{})

			filesByName := make(map[string]interfaces.FileInput, len(files))
			for _, in := range files {
				filesByName[in.FileName] = in
			}
			fileNameByID := make(map[string]string)
			for _, entry := range comps.orchestrator.Tracker().List() {
				fileNameByID[entry.ProcessID] = entry.FileName
			}
			for _, result := range batch.Results {
				in, ok := filesByName[fileNameByID[result.ProcessID]]
				if !ok {
					continue
				}
				if _, err := comps.persister.Persist(cCtx.Context, in, result); err != nil {
					logger.Error("Persisting batch result failed", slog.String("process_id", result.ProcessID), "err", err)
				}
			}

			summary := map[string]any{
				"submitted": len(files),
				"succeeded": batch.SuccessCount,
				"failed":    batch.ErrorCount,
			}
			if batch.ErrorCount > 0 {
				failures := make(map[string]string, batch.ErrorCount)
				for _, batchErr := range batch.Errors {
					failures[batchErr.FileName] = batchErr.Err.Error()
				}
				summary["failures"] = failures
			}
			return printJSON(summary)
		},
	}
}

func archiveCommand() *cli.Command {
	return &cli.Command{
		Name:      "archive",
		Usage:     "Build an archive from the given files",
		ArgsUsage: "<file>...",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Value: "zip",
				Usage: "archive format: zip, tar, or tar.gz",
			},
			&cli.StringFlag{
				Name:  "out",
				Value: "",
				Usage: "output path (defaults to archive.<format>)",
			},
		}, commonFlags...),
		Action: func(cCtx *cli.Context) error {
			if cCtx.NArg() == 0 {
				return fmt.Errorf("expected at least one file argument")
			}
			logger := setupLogger(cCtx)
			comps, err := buildComponents(cCtx, logger)
			if err != nil {
				return err
			}
			defer comps.close()

			files := make([]interfaces.FileInput, 0, cCtx.NArg())
			for _, path := range cCtx.Args().Slice() {
				in, err := readFile(path)
				if err != nil {
					return err
				}
				files = append(files, in)
			}

			format := cCtx.String("format")
			archive, err := comps.orchestrator.CreateArchive(cCtx.Context, files, format)
			if err != nil {
				return err
			}

			out := cCtx.String("out")
			if out == "" {
				out = "archive." + format
			}
			if err := os.WriteFile(out, archive.Data, 0o644); err != nil {
				return fmt.Errorf("writing archive: %w", err)
			}
			logger.Info("Archive written",
				slog.String("path", out),
				slog.String("format", format),
				slog.Int64("size", archive.Size),
				slog.Int("files", len(files)))
			return nil
		},
	}
}

func readFile(path string) (interfaces.FileInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return interfaces.FileInput{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return interfaces.FileInput{Data: data, FileName: filepath.Base(path)}, nil
}

func storedKey(obj *interfaces.StorageObject) string {
	if obj == nil {
		return ""
	}
	return obj.Key.String()
}

func printJSON(body any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(body)
}
