package models

import (
	"fmt"
	"strings"
	"time"
)

// RenderResult describes the realized output of one engine invocation.
//
// Use NewRenderResult to create a validated instance.
type RenderResult struct {
	SequenceID       string        `json:"sequence_id"`
	OutputPath       string        `json:"output_path"`
	Duration         float64       `json:"duration"` // measured, seconds
	SizeBytes        int64         `json:"size_bytes"`
	ExpectedDuration float64       `json:"expected_duration"`
	Elapsed          time.Duration `json:"elapsed"`
}

// NewRenderResult creates a RenderResult and validates it.
//
// Example:
//
//	result, err := models.NewRenderResult("seq-1", "/out/final.mp4", 46.0, 12_582_912)
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewRenderResult(sequenceID, outputPath string, duration float64, sizeBytes int64) (*RenderResult, error) {
	rr := &RenderResult{
		SequenceID: sequenceID,
		OutputPath: outputPath,
		Duration:   duration,
		SizeBytes:  sizeBytes,
	}
	if err := rr.Validate(); err != nil {
		return nil, fmt.Errorf("invalid render result: %w", err)
	}
	return rr, nil
}

// Validate checks that the result describes a real output.
//
// Returns an error if:
//   - OutputPath is empty or whitespace-only
//   - Duration is not positive
//   - SizeBytes is negative
func (rr *RenderResult) Validate() error {
	if strings.TrimSpace(rr.OutputPath) == "" {
		return fmt.Errorf("output_path cannot be empty")
	}
	if rr.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %.3f", rr.Duration)
	}
	if rr.SizeBytes < 0 {
		return fmt.Errorf("size_bytes cannot be negative")
	}
	return nil
}

// SizeMB returns the output size in mebibytes.
func (rr *RenderResult) SizeMB() float64 {
	return float64(rr.SizeBytes) / (1024 * 1024)
}

// Drift returns measured minus expected duration.
func (rr *RenderResult) Drift() float64 {
	return rr.Duration - rr.ExpectedDuration
}
