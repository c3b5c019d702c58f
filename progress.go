package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"clipjoin/internal/logging"
	"clipjoin/models"
)

// progressScale turns a percentage into bar steps (0.1% resolution).
const progressScale = 10

// progressDisplay shows render progress as a bar on a terminal and as
// sampled log lines everywhere else.
type progressDisplay struct {
	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	sampler *logging.ProgressSampler
	logger  *slog.Logger
	label   string
	quiet   bool
}

func newProgressDisplay(w io.Writer, label string, quiet bool, logger *slog.Logger) *progressDisplay {
	d := &progressDisplay{
		sampler: logging.NewProgressSampler(10),
		logger:  logger,
		label:   label,
		quiet:   quiet,
	}
	if quiet || !isTerminal(w) {
		return d
	}
	description := "rendering"
	if label != "" {
		description = label
	}
	d.bar = progressbar.NewOptions(100*progressScale,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
	)
	return d
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Update receives progress from the executor.
func (d *progressDisplay) Update(p *models.EncodingProgress) {
	if d == nil || d.quiet || p == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bar != nil {
		d.bar.Describe(fmt.Sprintf("%s %.2fx %s", d.description(), p.Speed, humanize.Bytes(uint64(max(p.SizeBytes, 0)))))
		_ = d.bar.Set(int(p.Progress * progressScale))
		return
	}
	if d.sampler.ShouldLog(p.Progress, string(p.State)) {
		d.logger.Info("render progress",
			"state", p.State,
			"percent", fmt.Sprintf("%.1f", p.Progress),
			"position", p.CurrentTime,
			"speed", p.Speed,
			"eta", p.EstimatedTimeRemaining().Round(time.Second))
	}
}

// Finish completes the bar, if any.
func (d *progressDisplay) Finish() {
	if d == nil || d.bar == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.bar.Finish()
}

func (d *progressDisplay) description() string {
	if d.label != "" {
		return d.label
	}
	return "rendering"
}
