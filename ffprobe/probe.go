// Package ffprobe extracts metadata from media files using the ffprobe
// command-line tool.
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"clipjoin/models"
)

// Prober reports metadata for a media file. It never mutates the file.
type Prober interface {
	Probe(ctx context.Context, path string) (*models.MediaInfo, error)
}

// MediaNotFoundError reports a clip path that does not exist.
type MediaNotFoundError struct {
	Path string
}

func (e *MediaNotFoundError) Error() string {
	return fmt.Sprintf("media file not found: %s", e.Path)
}

// UnreadableMediaError reports a file that exists but cannot be probed.
type UnreadableMediaError struct {
	Path   string
	Reason string
	Err    error
}

func (e *UnreadableMediaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unreadable media %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("unreadable media %s: %s", e.Path, e.Reason)
}

func (e *UnreadableMediaError) Unwrap() error { return e.Err }

// Stream represents a media stream (audio, video, subtitle, etc.)
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	RFrameRate   string `json:"r_frame_rate,omitempty"`
	AvgFrameRate string `json:"avg_frame_rate,omitempty"`
	SampleRate   string `json:"sample_rate,omitempty"`
	Channels     int    `json:"channels,omitempty"`
	Duration     string `json:"duration,omitempty"`
}

// Format represents the container format information.
type Format struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// ffprobeOutput represents the raw JSON output from ffprobe.
type ffprobeOutput struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Client probes files by running the ffprobe binary.
type Client struct {
	// Binary is the ffprobe executable; empty means "ffprobe" on PATH.
	Binary string
}

// NewClient returns a Client for binary, honouring FFPROBE_PATH when binary is empty.
func NewClient(binary string) *Client {
	if binary == "" {
		binary = os.Getenv("FFPROBE_PATH")
	}
	if binary == "" {
		binary = "ffprobe"
	}
	return &Client{Binary: binary}
}

// Probe analyzes a media file and returns its duration, geometry, frame rate
// and size.
//
// Returns *MediaNotFoundError when the path does not exist and
// *UnreadableMediaError when ffprobe cannot make sense of it. A missing
// duration is always an error; no default is substituted.
//
// Example:
//
//	info, err := ffprobe.NewClient("").Probe(ctx, "/path/to/clip.mp4")
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("Duration: %.2f seconds\n", info.Duration)
func (c *Client) Probe(ctx context.Context, sourcePath string) (*models.MediaInfo, error) {
	if strings.TrimSpace(sourcePath) == "" {
		return nil, fmt.Errorf("source path cannot be empty")
	}

	stat, err := os.Stat(sourcePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MediaNotFoundError{Path: sourcePath}
		}
		return nil, &UnreadableMediaError{Path: sourcePath, Reason: "stat failed", Err: err}
	}
	if stat.IsDir() {
		return nil, &UnreadableMediaError{Path: sourcePath, Reason: "is a directory"}
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		sourcePath,
	}

	binary := c.Binary
	if binary == "" {
		binary = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &UnreadableMediaError{
			Path:   sourcePath,
			Reason: fmt.Sprintf("ffprobe failed (output: %s)", strings.TrimSpace(stderr.String())),
			Err:    err,
		}
	}

	info, err := parseOutput(sourcePath, output)
	if err != nil {
		return nil, err
	}
	if info.SizeBytes == 0 {
		info.SizeBytes = stat.Size()
	}
	return info, nil
}

// parseOutput converts ffprobe JSON into MediaInfo.
func parseOutput(sourcePath string, output []byte) (*models.MediaInfo, error) {
	var result ffprobeOutput
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, &UnreadableMediaError{Path: sourcePath, Reason: "failed to parse ffprobe JSON output", Err: err}
	}

	info := &models.MediaInfo{Path: sourcePath}

	var video *Stream
	for i := range result.Streams {
		s := &result.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if video == nil {
		return nil, &UnreadableMediaError{Path: sourcePath, Reason: "no video stream"}
	}
	info.HasVideo = true
	info.Width = video.Width
	info.Height = video.Height
	info.FPS = parseRate(video.RFrameRate)
	if info.FPS == 0 {
		info.FPS = parseRate(video.AvgFrameRate)
	}

	duration, formatErr := parseDuration(result.Format.Duration)
	raw := result.Format.Duration
	if formatErr != nil || duration <= 0 {
		if streamDuration, err := parseDuration(video.Duration); err == nil {
			duration, raw = streamDuration, video.Duration
		} else if formatErr != nil {
			return nil, &UnreadableMediaError{Path: sourcePath, Reason: "duration not available", Err: err}
		}
	}
	if duration <= 0 {
		return nil, &UnreadableMediaError{Path: sourcePath, Reason: fmt.Sprintf("non-positive duration %q", raw)}
	}
	info.Duration = duration

	if result.Format.Size != "" {
		if size, err := strconv.ParseInt(result.Format.Size, 10, 64); err == nil {
			info.SizeBytes = size
		}
	}

	return info, nil
}

func parseDuration(value string) (float64, error) {
	if value == "" || value == "N/A" {
		return 0, fmt.Errorf("duration not available in metadata")
	}
	duration, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration '%s': %w", value, err)
	}
	return duration, nil
}

// parseRate parses ffprobe rationals such as "30000/1001"; invalid input yields 0.
func parseRate(rate string) float64 {
	if rate == "" {
		return 0
	}
	num, den, found := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
