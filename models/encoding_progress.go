package models

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// EncodingProgress is a snapshot of a running render, built from ffmpeg's
// -progress output.
type EncodingProgress struct {
	// Position in the output timeline
	Frame          int64   // Frames written so far
	FPS            float64 // Frames per second being processed
	CurrentTime    string  // Output timestamp (HH:MM:SS.micro)
	CurrentSeconds float64 // Output timestamp in seconds

	// Performance metrics
	Bitrate string  // Current bitrate (e.g., "1843.2kbits/s")
	Speed   float64 // Encoding speed multiplier (2.34 means 2.34x realtime)

	// Bytes written to the output so far
	SizeBytes int64

	// Progress calculation
	TotalDuration float64 // Expected output duration in seconds
	Progress      float64 // Percentage complete (0-100)

	State     ProgressState
	StartTime time.Time
	UpdatedAt time.Time
}

// ProgressState represents the current state of a render.
type ProgressState string

const (
	ProgressStateQueued    ProgressState = "queued"
	ProgressStateStarting  ProgressState = "starting"
	ProgressStateEncoding  ProgressState = "encoding"
	ProgressStateCompleted ProgressState = "completed"
	ProgressStateFailed    ProgressState = "failed"
	ProgressStateCancelled ProgressState = "cancelled"
)

// ProgressCallback receives progress updates during a render.
type ProgressCallback func(progress *EncodingProgress)

// NewEncodingProgress creates a progress tracker for a render of totalDuration seconds.
func NewEncodingProgress(totalDuration float64) *EncodingProgress {
	now := time.Now()
	return &EncodingProgress{
		TotalDuration: totalDuration,
		State:         ProgressStateQueued,
		StartTime:     now,
		UpdatedAt:     now,
	}
}

// CalculateProgress updates the percentage from the current output position.
func (ep *EncodingProgress) CalculateProgress(currentSeconds float64) {
	ep.CurrentSeconds = currentSeconds
	if ep.TotalDuration > 0 {
		ep.Progress = (currentSeconds / ep.TotalDuration) * 100
		if ep.Progress > 100 {
			ep.Progress = 100
		}
	}
	ep.UpdatedAt = time.Now()
}

// EstimatedTimeRemaining extrapolates from elapsed time and percentage.
func (ep *EncodingProgress) EstimatedTimeRemaining() time.Duration {
	if ep.Speed <= 0 || ep.Progress <= 0 {
		return 0
	}

	elapsed := time.Since(ep.StartTime)
	totalEstimated := time.Duration(float64(elapsed) / (ep.Progress / 100))
	remaining := totalEstimated - elapsed

	if remaining < 0 {
		return 0
	}
	return remaining
}

// FormatSummary returns a one-line human-readable summary.
func (ep *EncodingProgress) FormatSummary() string {
	return fmt.Sprintf(
		"Progress: %.1f%% | Speed: %.2fx | Bitrate: %s | Size: %s | ETA: %s",
		ep.Progress,
		ep.Speed,
		ep.Bitrate,
		humanize.Bytes(uint64(max(ep.SizeBytes, 0))),
		formatDuration(ep.EstimatedTimeRemaining()),
	)
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "calculating..."
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	seconds = seconds % 60

	if minutes < 60 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}

	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}
