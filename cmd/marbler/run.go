package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/wlsgn1217/MARBLER/internal/config"
	"github.com/wlsgn1217/MARBLER/internal/env"
	"github.com/wlsgn1217/MARBLER/internal/geo"
	"github.com/wlsgn1217/MARBLER/internal/influx"
	"github.com/wlsgn1217/MARBLER/internal/logging"
	"github.com/wlsgn1217/MARBLER/internal/metrics"
	marblerotel "github.com/wlsgn1217/MARBLER/internal/otel"
	"github.com/wlsgn1217/MARBLER/internal/recorder"
	"github.com/wlsgn1217/MARBLER/internal/storage"
)

const recorderBuffer = 1024

type runOptions struct {
	episodes    int
	seed        int64
	metricsAddr string
}

func newRunCmd(configDir *string) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run episodes with a random policy and record them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEpisodes(cmd, *configDir, opts)
		},
	}
	cmd.Flags().IntVar(&opts.episodes, "episodes", 0, "number of episodes (overrides env.episodes)")
	cmd.Flags().Int64Var(&opts.seed, "seed", -1, "random seed, -1 for a random one (overrides env.seed)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

func runEpisodes(cmd *cobra.Command, configDir string, opts runOptions) error {
	start := time.Now()
	if err := loadConfig(configDir); err != nil {
		return err
	}

	envCfg, err := config.GetEnvConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("seed") {
		envCfg.Seed = opts.seed
	}
	episodes := config.GetEpisodes()
	if cmd.Flags().Changed("episodes") {
		episodes = opts.episodes
	}
	metricsAddr := config.GetString("metrics.addr")
	if cmd.Flags().Changed("metrics-addr") {
		metricsAddr = opts.metricsAddr
	}

	// Logging
	logsDir := config.GetString("logsDir")
	logFile, err := logging.OpenRunFile(logsDir, "marbler", "log", start)
	if err != nil {
		return err
	}
	defer logFile.Close()

	level := config.GetString("logLevel")
	tracker := &progress{}
	logOpts := logging.Options{Context: tracker.attrs}
	if config.GetBool("graylog.enabled") {
		logOpts.GraylogAddress = config.GetString("graylog.address")
	}
	slogManager := logging.NewSlogManager()
	if err := slogManager.Setup(logFile, level, logOpts); err != nil {
		slogManager.Logger().Warn("Graylog unavailable, logging to file only", "error", err)
	}
	defer slogManager.Close()
	logger := slogManager.Logger()
	zl := logging.NewZerolog(logFile, level)

	// OpenTelemetry
	otelCfg := config.GetOTelConfig()
	providerCfg := marblerotel.Config{Enabled: otelCfg.Enabled, ServiceName: otelCfg.ServiceName}
	if otelCfg.Enabled {
		otelFile, err := logging.OpenRunFile(logsDir, "marbler-otel", "jsonl", start)
		if err != nil {
			return err
		}
		defer otelFile.Close()
		providerCfg.Writer = otelFile
	}
	provider, err := marblerotel.New(providerCfg)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Error("OTel shutdown failed", "error", err)
		}
	}()

	// Storage
	geoCfg := config.GetGeoConfig()
	ref, err := geo.NewGeoref(geoCfg.OriginLongitude, geoCfg.OriginLatitude)
	if err != nil {
		return err
	}
	storageCfg := config.GetStorageConfig()
	backend, err := storage.NewBackend(storageCfg, ref, zl)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", storageCfg.Type, err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("Storage close failed", "error", err)
		}
	}()
	logger.Info("Storage ready", "type", storageCfg.Type)

	rec, err := recorder.New(logging.ForComponent(zl, "recorder"), recorder.Buffered(recorderBuffer), recorder.Blocking())
	if err != nil {
		return err
	}
	rec.Register("storage", backend)

	// Optional sinks
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		manager := influx.NewManager(zl, influxCfg)
		if err := manager.Connect(ctx); err != nil {
			logger.Warn("InfluxDB unavailable", "error", err)
		} else {
			rec.Register("influx", manager)
			defer manager.Close()
		}
	}

	if metricsAddr != "" {
		collectors := metrics.New()
		rec.Register("prometheus", collectors)
		server := metrics.NewServer(metricsAddr, collectors)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		logger.Info("Serving metrics", "addr", metricsAddr)
	}
	defer rec.Close()

	// Environment
	exec, err := config.NewExecutor(config.GetExecutorConfig(), envCfg.SaveFrames)
	if err != nil {
		return err
	}
	warehouse, err := env.New(envCfg, exec, env.WithLogger(logger))
	if err != nil {
		return err
	}

	seed := uint64(time.Now().UnixNano())
	if envCfg.Seed != -1 {
		seed = uint64(envCfg.Seed)
	}
	d := &driver{
		env:          warehouse,
		sink:         rec,
		rng:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		logger:       logger,
		progress:     tracker,
		originLong:   geoCfg.OriginLongitude,
		originLat:    geoCfg.OriginLatitude,
		afterEpisode: provider.Flush,
	}

	summaries, runErr := d.Run(ctx, episodes)
	rec.Close()

	out := cmd.OutOrStdout()
	for _, s := range summaries {
		fmt.Fprintf(out, "episode %s: steps=%d reward=%.2f loads=%d unloads=%d distance=%.3f",
			s.EpisodeID, s.Steps, s.TotalReward, s.Loads, s.Unloads, s.Distance)
		if s.Message != "" {
			fmt.Fprintf(out, " message=%q", s.Message)
		}
		fmt.Fprintln(out)
	}
	if exp, ok := backend.(storage.Exportable); ok && exp.ExportedFilePath() != "" {
		fmt.Fprintf(out, "last export: %s\n", exp.ExportedFilePath())
	}
	return runErr
}
