package config

import (
	"fmt"
	"strings"

	"clipjoin/internal/logging"
)

// Validate checks if the configuration is valid, reporting every problem at once
func (c *Config) Validate() error {
	var errors []string

	// Validate workers (0 is valid, means auto-detect)
	if c.Workers < 0 {
		errors = append(errors, "workers cannot be negative (use 0 for auto-detect)")
	}

	if err := c.Audio.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("audio config: %v", err))
	}

	if err := c.Video.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("video config: %v", err))
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	if !isOneOf(strings.ToLower(c.LogFormat), logging.Formats()) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s', must be one of: %s",
			c.LogFormat, strings.Join(logging.Formats(), ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// Validate checks if audio configuration is valid
func (ac *AudioConfig) Validate() error {
	var errors []string

	if ac.Codec == "" {
		errors = append(errors, "codec is required")
	}

	if ac.SampleRate <= 0 {
		errors = append(errors, "sample rate must be positive")
	}

	if strings.TrimSpace(ac.ChannelLayout) == "" {
		errors = append(errors, "channel layout is required")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, ", "))
	}

	return nil
}

// Validate checks if video configuration is valid
func (vc *VideoConfig) Validate() error {
	var errors []string

	if vc.Codec == "" {
		errors = append(errors, "codec is required")
	}

	// CRF validation (-1 disables CRF)
	if vc.CRF < -1 || vc.CRF > 51 {
		errors = append(errors, "CRF must be between 0 and 51 (or -1 to disable)")
	}

	if vc.CRF < 0 && vc.Bitrate == "" {
		errors = append(errors, "either CRF or bitrate is required")
	}

	if vc.PixelFormat == "" {
		errors = append(errors, "pixel format is required")
	}

	// Frame rate validation
	if vc.FrameRate < 0 {
		errors = append(errors, "frame rate cannot be negative (use 0 for the first clip's rate)")
	}

	// Resolution validation (if specified)
	if vc.Resolution != "" {
		if _, _, err := ParseResolution(vc.Resolution); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, ", "))
	}

	return nil
}

// ParseResolution parses "WIDTHxHEIGHT" (e.g., "1920x1080").
func ParseResolution(res string) (width, height int, err error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(res)), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("resolution must be in format WIDTHxHEIGHT (e.g., 1920x1080)")
	}

	_, err1 := fmt.Sscanf(parts[0], "%d", &width)
	_, err2 := fmt.Sscanf(parts[1], "%d", &height)
	if err1 != nil || err2 != nil || width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("resolution must be in format WIDTHxHEIGHT (e.g., 1920x1080)")
	}
	return width, height, nil
}

func isOneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
