package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/castforge/castforge/internal/config"
	"github.com/castforge/castforge/internal/library"
	"github.com/castforge/castforge/internal/runtime"
	"github.com/castforge/castforge/internal/script"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		scriptPath  string
		episodeName string
		serve       bool
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "castforge.yaml", "Path to configuration file")
	flag.StringVar(&scriptPath, "script", "", "Render a single episode from this script JSON and exit")
	flag.StringVar(&episodeName, "name", "", "Episode name for one-shot renders (default: episode_<timestamp>)")
	flag.BoolVar(&serve, "serve", false, "Run as a daemon serving episode requests")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if scriptPath != "" {
		if err := renderOnce(ctx, cfg, scriptPath, episodeName, logger); err != nil {
			logger.Error("render failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	if !serve {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -script for a one-shot render or -serve for daemon mode")
		os.Exit(2)
	}

	rt := runtime.New(cfg, logger)
	if err := rt.Start(ctx); err != nil {
		logger.Error("runtime exited with error", slog.String("error", err.Error()))
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// renderOnce runs the pipeline for a single script file and records the
// result in the episode library.
func renderOnce(ctx context.Context, cfg config.Config, scriptPath, name string, logger *slog.Logger) error {
	segments, err := script.Load(scriptPath)
	if err != nil {
		return err
	}
	if name == "" {
		name = "episode_" + time.Now().Format("20060102_150405")
	}

	pipe, err := runtime.BuildOrchestrator(cfg, logger)
	if err != nil {
		return err
	}

	res, err := pipe.SynthesizeEpisode(ctx, name, segments)
	if err != nil {
		return err
	}

	ledger, err := library.Open(ctx, cfg.Library, logger)
	if err != nil {
		logger.Warn("episode library unavailable", slog.String("error", err.Error()))
	} else {
		defer ledger.Close()
		if err := ledger.Record(ctx, library.Episode{
			Title:        name,
			AudioPath:    res.AudioPath,
			ChaptersPath: res.ChaptersPath,
			Duration:     res.Duration,
			SegmentCount: len(segments),
			WarningCount: len(res.Warnings),
		}); err != nil {
			logger.Warn("failed to record episode", slog.String("error", err.Error()))
		}
	}

	for _, w := range res.Warnings {
		logger.Warn("render warning", slog.String("segment", w.Segment), slog.String("message", w.Message))
	}
	logger.Info("episode rendered",
		slog.String("audio", res.AudioPath),
		slog.String("chapters", res.ChaptersPath),
		slog.Float64("duration_s", res.Duration))
	fmt.Println(res.AudioPath)
	return nil
}
