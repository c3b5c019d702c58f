package models

import (
	"strings"
	"testing"
)

func TestClipValidate(t *testing.T) {
	tests := []struct {
		name          string
		clip          Clip
		errorContains string
	}{
		{"valid", Clip{Path: "a.mp4"}, ""},
		{"valid trim", Clip{Path: "a.mp4", TrimStart: 2, TrimLength: 5}, ""},
		{"empty path", Clip{Path: "  "}, "path cannot be empty"},
		{"negative start", Clip{Path: "a.mp4", TrimStart: -1}, "trim_start cannot be negative"},
		{"negative length", Clip{Path: "a.mp4", TrimLength: -1}, "trim_length cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.clip.Validate()
			if tt.errorContains == "" {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("Expected error containing %q, got %v", tt.errorContains, err)
			}
		})
	}
}

func TestClipEffectiveDuration(t *testing.T) {
	tests := []struct {
		name     string
		clip     Clip
		probed   float64
		expected float64
		wantErr  bool
	}{
		{"untrimmed", Clip{Path: "a"}, 15, 15, false},
		{"start only", Clip{Path: "a", TrimStart: 5}, 15, 10, false},
		{"length only", Clip{Path: "a", TrimLength: 4}, 15, 4, false},
		{"window", Clip{Path: "a", TrimStart: 3, TrimLength: 12}, 15, 12, false},
		{"window too long", Clip{Path: "a", TrimStart: 3, TrimLength: 13}, 15, 0, true},
		{"start beyond source", Clip{Path: "a", TrimStart: 15}, 15, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.clip.EffectiveDuration(tt.probed)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("EffectiveDuration = %.2f; want %.2f", got, tt.expected)
			}
		})
	}
}

func TestNewRenderResult(t *testing.T) {
	result, err := NewRenderResult("seq", "/out/final.mp4", 46, 3*1024*1024)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.SizeMB() != 3 {
		t.Errorf("Expected 3 MB, got %.2f", result.SizeMB())
	}

	result.ExpectedDuration = 45.98
	if d := result.Drift(); d < 0.019 || d > 0.021 {
		t.Errorf("Expected drift ~0.02, got %.4f", d)
	}
}

func TestRenderResultValidation(t *testing.T) {
	tests := []struct {
		name          string
		result        RenderResult
		errorContains string
	}{
		{"empty path", RenderResult{Duration: 1}, "output_path cannot be empty"},
		{"zero duration", RenderResult{OutputPath: "o.mp4"}, "duration must be positive"},
		{"negative size", RenderResult{OutputPath: "o.mp4", Duration: 1, SizeBytes: -1}, "size_bytes cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("Expected error containing %q, got %v", tt.errorContains, err)
			}
		})
	}

	if _, err := NewRenderResult("seq", "", 1, 0); err == nil {
		t.Error("Expected NewRenderResult to reject an empty path")
	}
}
