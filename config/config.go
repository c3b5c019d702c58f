package config

import (
	"os"
	"path/filepath"

	"clipjoin/ffmpeg"
	"clipjoin/graph"
	"clipjoin/timeline"
)

// Config holds all clipjoin configuration options
type Config struct {
	// Engine binaries
	Engine EngineConfig `yaml:"engine"`

	// Encoding settings
	Video VideoConfig `yaml:"video"`
	Audio AudioConfig `yaml:"audio"`

	// Execution settings
	Workers int `yaml:"workers"` // concurrent renders in batch mode, 0 = auto-detect

	// Behavioral flags
	StrictMode bool `yaml:"strict_mode"` // Fail when the output drifts by more than one frame
	Quiet      bool `yaml:"quiet"`       // No progress output
	DryRun     bool `yaml:"dry_run"`     // Plan without rendering

	// Render history (empty disables it)
	HistoryDB string `yaml:"history_db"`

	// Logging
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // console, json
}

// EngineConfig locates the ffmpeg tools. Empty values fall back to
// FFMPEG_PATH / FFPROBE_PATH and then PATH.
type EngineConfig struct {
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`
}

// VideoConfig holds video encoding settings
type VideoConfig struct {
	Codec       string  `yaml:"codec"`        // e.g., "libx264", "libx265", "h264_nvenc"
	CRF         int     `yaml:"crf"`          // Constant Rate Factor (0-51, lower = better quality), -1 disables
	Preset      string  `yaml:"preset"`       // e.g., "ultrafast", "medium", "slow"
	Bitrate     string  `yaml:"bitrate"`      // e.g., "5M" (alternative to CRF)
	PixelFormat string  `yaml:"pixel_format"` // e.g., "yuv420p"
	Resolution  string  `yaml:"resolution"`   // e.g., "1920x1080" (empty = first clip's size)
	FrameRate   float64 `yaml:"frame_rate"`   // e.g., 25, 29.97 (0 = first clip's rate)
}

// AudioConfig holds audio encoding settings
type AudioConfig struct {
	Codec         string `yaml:"codec"`          // e.g., "aac", "libopus"
	Bitrate       string `yaml:"bitrate"`        // e.g., "128k", "192k"
	SampleRate    int    `yaml:"sample_rate"`    // e.g., 48000, 44100
	ChannelLayout string `yaml:"channel_layout"` // e.g., "stereo", "mono", "5.1"
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{},

		// Video defaults (H.264: plays everywhere)
		Video: VideoConfig{
			Codec:       "libx264",
			CRF:         20,
			Preset:      "medium",
			Bitrate:     "", // Use CRF instead
			PixelFormat: "yuv420p",
			Resolution:  "", // First clip's size
			FrameRate:   0,  // First clip's rate
		},

		// Audio defaults
		Audio: AudioConfig{
			Codec:         "aac",
			Bitrate:       "192k",
			SampleRate:    48000,
			ChannelLayout: "stereo",
		},

		Workers: 0, // Auto-detect CPU count

		// Behavioral defaults
		StrictMode: false, // Report drift, keep the output
		Quiet:      false,
		DryRun:     false,

		HistoryDB: DefaultHistoryPath(),
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// DefaultHistoryPath returns ~/.clipjoin/history.db, or "" without a home
// directory.
func DefaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".clipjoin", "history.db")
}

// Copy creates a deep copy of the config
func (c *Config) Copy() *Config {
	copy := *c
	return &copy
}

// Canvas returns the output format every clip is conformed to. Zero fields
// are filled from the first clip.
func (c *Config) Canvas() (timeline.Format, error) {
	f := timeline.Format{FPS: c.Video.FrameRate}
	if c.Video.Resolution == "" {
		return f, nil
	}
	w, h, err := ParseResolution(c.Video.Resolution)
	if err != nil {
		return timeline.Format{}, err
	}
	f.Width, f.Height = w, h
	return f, nil
}

// Emitter returns the graph emitter for the configured audio and pixel formats.
func (c *Config) Emitter() graph.Emitter {
	return graph.Emitter{
		SampleRate:    c.Audio.SampleRate,
		ChannelLayout: c.Audio.ChannelLayout,
		PixelFormat:   c.Video.PixelFormat,
	}
}

// Settings returns the encoder settings for the executor.
func (c *Config) Settings() ffmpeg.Settings {
	return ffmpeg.Settings{
		VideoCodec:   c.Video.Codec,
		VideoBitrate: c.Video.Bitrate,
		CRF:          c.Video.CRF,
		Preset:       c.Video.Preset,
		PixelFormat:  c.Video.PixelFormat,
		AudioCodec:   c.Audio.Codec,
		AudioBitrate: c.Audio.Bitrate,
	}
}
