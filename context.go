package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"clipjoin/concatenator"
	"clipjoin/config"
	"clipjoin/ffmpeg"
	"clipjoin/ffprobe"
	"clipjoin/history"
	"clipjoin/internal/logging"
)

// commandContext carries what every subcommand needs once flags are parsed.
type commandContext struct {
	cfg    *config.Config
	logger *slog.Logger
	prober *ffprobe.Cache
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	c.cfg = cfg
	c.logger = logger
	c.prober = ffprobe.NewCache(ffprobe.NewClient(cfg.Engine.FFprobe))
	return nil
}

// openHistory opens the render history, or returns nil when it is disabled.
// A store that cannot be opened is logged and skipped; history never blocks
// a render.
func (c *commandContext) openHistory() *history.Store {
	if c.cfg.HistoryDB == "" {
		return nil
	}
	store, err := history.Open(c.cfg.HistoryDB)
	if err != nil {
		c.logger.Warn("render history unavailable", "path", c.cfg.HistoryDB, "error", err)
		return nil
	}
	return store
}

// newConcatenator wires an executor, progress display and history into a
// Concatenator. label names the render in progress output; a progress bar is
// drawn on progressOut when it is a terminal.
func (c *commandContext) newConcatenator(progressOut io.Writer, label string, store *history.Store) (*concatenator.Concatenator, *progressDisplay, error) {
	canvas, err := c.cfg.Canvas()
	if err != nil {
		return nil, nil, err
	}

	logger := c.logger
	if label != "" {
		logger = logger.With("job", label)
	}

	display := newProgressDisplay(progressOut, label, c.cfg.Quiet, logger)
	executor := ffmpeg.NewExecutor(c.cfg.Engine.FFmpeg, c.prober).
		SetSettings(c.cfg.Settings()).
		SetLogger(logger).
		SetProgressCallback(display.Update)

	opts := concatenator.Options{
		Canvas:  canvas,
		Emitter: c.cfg.Emitter(),
		Strict:  c.cfg.StrictMode,
		Quiet:   c.cfg.Quiet,
		Logger:  logger,
	}
	if store != nil {
		opts.Recorder = store
	}
	return concatenator.New(c.prober, executor, opts), display, nil
}

func requireOutput(output string) error {
	if output == "" {
		return fmt.Errorf("an output file is required (use --output)")
	}
	return nil
}
