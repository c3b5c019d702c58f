package config

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/pflag"
)

// RegisterFlags adds the configuration flags to fs. Flag defaults are only
// shown in help; MergeFromFlags applies a flag only when it was set.
func RegisterFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()

	// Config file override (handled by LoadConfig before merging)
	fs.String("config", "", "Path to config file (default: search standard locations)")

	// Engine
	fs.String("ffmpeg", "", "ffmpeg binary (default: $FFMPEG_PATH or PATH)")
	fs.String("ffprobe", "", "ffprobe binary (default: $FFPROBE_PATH or PATH)")

	// Execution settings
	fs.Int("workers", d.Workers, "Concurrent renders in batch mode (0 = auto-detect)")

	// Video settings
	fs.String("video-codec", d.Video.Codec, "Video codec")
	fs.Int("video-crf", d.Video.CRF, "Video CRF (0-51, lower = better quality, -1 = use bitrate)")
	fs.String("video-preset", d.Video.Preset, "Video preset: ultrafast, fast, medium, slow, veryslow")
	fs.String("video-bitrate", d.Video.Bitrate, "Video bitrate, e.g., 5M (alternative to CRF)")
	fs.String("pixel-format", d.Video.PixelFormat, "Output pixel format")
	fs.String("resolution", d.Video.Resolution, "Output resolution, e.g., 1920x1080 (default: first clip)")
	fs.Float64("frame-rate", d.Video.FrameRate, "Output frame rate (0 = first clip)")

	// Audio settings
	fs.String("audio-codec", d.Audio.Codec, "Audio codec")
	fs.String("audio-bitrate", d.Audio.Bitrate, "Audio bitrate, e.g., 192k")
	fs.Int("sample-rate", d.Audio.SampleRate, "Audio sample rate in Hz")
	fs.String("channel-layout", d.Audio.ChannelLayout, "Audio channel layout, e.g., stereo")

	// Behavioral flags
	fs.Bool("strict", d.StrictMode, "Fail when the output duration drifts by more than one frame")
	fs.Bool("quiet", d.Quiet, "Suppress progress output")
	fs.Bool("dry-run", d.DryRun, "Plan and print the ffmpeg command without rendering")

	fs.String("history-db", d.HistoryDB, "Render history database (empty disables history)")
	fs.String("log-level", d.LogLevel, "Log level: debug, info, warn, error")
	fs.String("log-format", d.LogFormat, "Log format: console, json")
}

// MergeFromFlags overrides config values with every flag in fs that was set
// explicitly. Flags that were never registered are ignored.
func (c *Config) MergeFromFlags(fs *pflag.FlagSet) error {
	var errs []error
	str := func(name string, dst *string) {
		if f := fs.Lookup(name); f != nil && f.Changed {
			v, err := fs.GetString(name)
			errs = append(errs, err)
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if f := fs.Lookup(name); f != nil && f.Changed {
			v, err := fs.GetInt(name)
			errs = append(errs, err)
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if f := fs.Lookup(name); f != nil && f.Changed {
			v, err := fs.GetBool(name)
			errs = append(errs, err)
			*dst = v
		}
	}

	str("ffmpeg", &c.Engine.FFmpeg)
	str("ffprobe", &c.Engine.FFprobe)

	integer("workers", &c.Workers)

	str("video-codec", &c.Video.Codec)
	integer("video-crf", &c.Video.CRF)
	str("video-preset", &c.Video.Preset)
	str("video-bitrate", &c.Video.Bitrate)
	str("pixel-format", &c.Video.PixelFormat)
	str("resolution", &c.Video.Resolution)
	if f := fs.Lookup("frame-rate"); f != nil && f.Changed {
		v, err := fs.GetFloat64("frame-rate")
		errs = append(errs, err)
		c.Video.FrameRate = v
	}

	str("audio-codec", &c.Audio.Codec)
	str("audio-bitrate", &c.Audio.Bitrate)
	integer("sample-rate", &c.Audio.SampleRate)
	str("channel-layout", &c.Audio.ChannelLayout)

	boolean("strict", &c.StrictMode)
	boolean("quiet", &c.Quiet)
	boolean("dry-run", &c.DryRun)

	str("history-db", &c.HistoryDB)
	str("log-level", &c.LogLevel)
	str("log-format", &c.LogFormat)

	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("read flags: %w", err)
		}
	}
	return nil
}

// PrintConfig writes the effective configuration as a table.
func (c *Config) PrintConfig(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Effective Configuration")
	t.AppendHeader(table.Row{"Setting", "Value"})

	orDefault := func(v, fallback string) string {
		if v == "" {
			return fallback
		}
		return v
	}

	t.AppendRows([]table.Row{
		{"ffmpeg", orDefault(c.Engine.FFmpeg, "(auto)")},
		{"ffprobe", orDefault(c.Engine.FFprobe, "(auto)")},
		{"workers", c.Workers},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"video codec", c.Video.Codec},
		{"crf", c.Video.CRF},
		{"preset", c.Video.Preset},
		{"video bitrate", orDefault(c.Video.Bitrate, "-")},
		{"pixel format", c.Video.PixelFormat},
		{"resolution", orDefault(c.Video.Resolution, "first clip")},
	})
	if c.Video.FrameRate > 0 {
		t.AppendRow(table.Row{"frame rate", c.Video.FrameRate})
	} else {
		t.AppendRow(table.Row{"frame rate", "first clip"})
	}
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"audio codec", c.Audio.Codec},
		{"audio bitrate", c.Audio.Bitrate},
		{"sample rate", c.Audio.SampleRate},
		{"channel layout", c.Audio.ChannelLayout},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"strict", c.StrictMode},
		{"quiet", c.Quiet},
		{"dry run", c.DryRun},
		{"history", orDefault(c.HistoryDB, "disabled")},
		{"log level", c.LogLevel},
		{"log format", c.LogFormat},
	})
	t.Render()
}
