package ffmpeg

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"clipjoin/models"
)

// ProgressParser parses ffmpeg progress output into EncodingProgress.
//
// It understands both the key=value blocks written by -progress and the
// one-line -stats format.
type ProgressParser struct {
	frameRegex   *regexp.Regexp
	fpsRegex     *regexp.Regexp
	sizeRegex    *regexp.Regexp
	timeRegex    *regexp.Regexp
	bitrateRegex *regexp.Regexp
	speedRegex   *regexp.Regexp
}

// NewProgressParser creates a new parser for ffmpeg progress output
func NewProgressParser() *ProgressParser {
	return &ProgressParser{
		// Match both "frame=123" and "frame= 123" formats
		frameRegex: regexp.MustCompile(`^frame=\s*(\d+)`),
		fpsRegex:   regexp.MustCompile(`(?:^|\s)fps=\s*([0-9.]+)`),
		// -progress reports total_size in bytes, -stats reports size in kB
		sizeRegex:    regexp.MustCompile(`(?:^|\s)(?:total_)?size=\s*(\d+)(kB|KiB)?`),
		timeRegex:    regexp.MustCompile(`(?:^|\s)(?:out_)?time=\s*(-?[0-9:.]+)`),
		bitrateRegex: regexp.MustCompile(`(?:^|\s)bitrate=\s*([0-9.]+)`),
		speedRegex:   regexp.MustCompile(`(?:^|\s)speed=\s*([0-9.]+)x?`),
	}
}

// ParseLine parses a single line of ffmpeg output and updates the progress.
// It reports whether anything changed.
func (pp *ProgressParser) ParseLine(line string, progress *models.EncodingProgress) bool {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "progress=") {
		return false
	}

	updated := false

	if matches := pp.frameRegex.FindStringSubmatch(line); len(matches) > 1 {
		if frame, err := strconv.ParseInt(matches[1], 10, 64); err == nil {
			progress.Frame = frame
			updated = true
		}
	}

	if matches := pp.fpsRegex.FindStringSubmatch(line); len(matches) > 1 {
		if fps, err := strconv.ParseFloat(matches[1], 64); err == nil {
			progress.FPS = fps
			updated = true
		}
	}

	if matches := pp.sizeRegex.FindStringSubmatch(line); len(matches) > 1 {
		if size, err := strconv.ParseInt(matches[1], 10, 64); err == nil {
			if matches[2] != "" {
				size *= 1024
			}
			progress.SizeBytes = size
			updated = true
		}
	}

	if matches := pp.timeRegex.FindStringSubmatch(line); len(matches) > 1 {
		progress.CurrentTime = matches[1]
		if seconds := timeToSeconds(matches[1]); seconds > 0 {
			progress.CalculateProgress(seconds)
		}
		updated = true
	}

	if matches := pp.bitrateRegex.FindStringSubmatch(line); len(matches) > 1 {
		progress.Bitrate = matches[1] + "kbits/s"
		updated = true
	}

	if matches := pp.speedRegex.FindStringSubmatch(line); len(matches) > 1 {
		if speed, err := strconv.ParseFloat(matches[1], 64); err == nil {
			progress.Speed = speed
			updated = true
		}
	}

	return updated
}

// StreamProgress reads ffmpeg progress output until EOF and reports each
// update to callback. With -progress, callback fires once per key; callers
// that render bars should throttle.
func (pp *ProgressParser) StreamProgress(reader io.Reader, progress *models.EncodingProgress, callback models.ProgressCallback) error {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	scanner.Split(scanLines)

	seen := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "progress=end" {
			progress.CalculateProgress(progress.TotalDuration)
			progress.State = models.ProgressStateCompleted
			if callback != nil {
				callback(progress)
			}
			seen = true
			continue
		}
		if pp.ParseLine(line, progress) {
			progress.State = models.ProgressStateEncoding
			if callback != nil {
				callback(progress)
			}
			seen = true
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading ffmpeg output: %w", err)
	}
	if !seen {
		return fmt.Errorf("no progress output captured from ffmpeg")
	}
	return nil
}

// scanLines splits on \n or \r; -stats rewrites its line with carriage returns.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// timeToSeconds converts ffmpeg time format (HH:MM:SS.micro) to seconds
func timeToSeconds(timeStr string) float64 {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 3 {
		return 0
	}

	hours, err1 := strconv.ParseFloat(parts[0], 64)
	minutes, err2 := strconv.ParseFloat(parts[1], 64)
	seconds, err3 := strconv.ParseFloat(parts[2], 64)

	if err1 != nil || err2 != nil || err3 != nil {
		return 0
	}

	return hours*3600 + minutes*60 + seconds
}
