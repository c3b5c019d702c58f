// Package timeutil provides time formatting utilities for FFmpeg commands.
package timeutil

import (
	"fmt"
	"math"
	"strconv"
)

// DefaultFPS is used whenever a frame rate is unknown or unusable.
const DefaultFPS = 30.0

// FormatSeconds converts seconds to HH:MM:SS.MS format for FFmpeg.
//
// Used for human-facing output (plan tables, progress) where ffmpeg's own
// timestamp notation is the most familiar one.
//
// Example:
//
//	FormatSeconds(0)      // "00:00:00.00"
//	FormatSeconds(90)     // "00:01:30.00"
//	FormatSeconds(3661)   // "01:01:01.00"
//	FormatSeconds(30.53)  // "00:00:30.53"
func FormatSeconds(seconds float64) string {
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := seconds - float64(hours*3600) - float64(minutes*60)
	return fmt.Sprintf("%02d:%02d:%05.2f", hours, minutes, secs)
}

// FormatFilterNumber renders a number for use inside a filter graph option.
//
// Values are rounded to the microsecond (ffmpeg's internal time base) and
// printed without trailing zeros, so 14 becomes "14" and 1.5 becomes "1.5".
func FormatFilterNumber(v float64) string {
	rounded := math.Round(v*1e6) / 1e6
	if rounded == 0 {
		rounded = 0 // normalizes -0
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

// FormatMillis renders seconds as an integer millisecond count (adelay syntax).
func FormatMillis(seconds float64) string {
	return strconv.FormatInt(int64(math.Round(seconds*1000)), 10)
}

// FrameDuration returns the length of one frame at fps, falling back to DefaultFPS.
func FrameDuration(fps float64) float64 {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		fps = DefaultFPS
	}
	return 1 / fps
}

// WithinFrame reports whether two durations differ by at most one frame at fps.
func WithinFrame(expected, actual, fps float64) bool {
	return math.Abs(expected-actual) <= FrameDuration(fps)+1e-9
}
