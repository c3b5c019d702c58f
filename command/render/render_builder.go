// Package render builds the single ffmpeg invocation that realizes an
// emitted filter graph.
package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clipjoin/command"
	"clipjoin/graph"
)

// waitDelay bounds how long Run waits for output pipes after the process is killed.
const waitDelay = 5 * time.Second

// Builder implements command.Command for one render.
type Builder struct {
	desc       *graph.Description
	outputPath string
	binary     string

	// Encoding settings
	videoCodec   string
	videoBitrate string
	crf          int
	preset       string
	pixelFormat  string
	audioCodec   string
	audioBitrate string

	progress  bool
	extraArgs []string
	priority  int

	stdout io.Writer
	stderr io.Writer
}

// NewBuilder creates a render command writing desc's graph to outputPath.
func NewBuilder(desc *graph.Description, outputPath string) *Builder {
	binary := os.Getenv("FFMPEG_PATH")
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Builder{
		desc:         desc,
		outputPath:   outputPath,
		binary:       binary,
		videoCodec:   "libx264",
		crf:          20,
		preset:       "medium",
		pixelFormat:  "yuv420p",
		audioCodec:   "aac",
		audioBitrate: "192k",
		priority:     command.PriorityNormal,
		extraArgs:    []string{},
	}
}

// SetBinary sets the ffmpeg executable.
func (b *Builder) SetBinary(binary string) *Builder {
	if binary != "" {
		b.binary = binary
	}
	return b
}

// SetOutputPath redirects the output, e.g. to a temporary sibling file.
func (b *Builder) SetOutputPath(path string) *Builder {
	b.outputPath = path
	return b
}

// SetVideoCodec sets the video encoder (e.g., "libx264", "libx265", "libsvtav1")
func (b *Builder) SetVideoCodec(codec string) *Builder {
	b.videoCodec = codec
	return b
}

// SetVideoBitrate sets a target video bitrate (e.g., "8M"); empty means CRF only.
func (b *Builder) SetVideoBitrate(bitrate string) *Builder {
	b.videoBitrate = bitrate
	return b
}

// SetCRF sets the Constant Rate Factor (0-51, lower is better quality); negative disables it.
func (b *Builder) SetCRF(crf int) *Builder {
	b.crf = crf
	return b
}

// SetPreset sets the encoding preset (ultrafast ... veryslow)
func (b *Builder) SetPreset(preset string) *Builder {
	b.preset = preset
	return b
}

// SetPixelFormat sets the output pixel format (e.g., "yuv420p")
func (b *Builder) SetPixelFormat(pixfmt string) *Builder {
	b.pixelFormat = pixfmt
	return b
}

// SetAudioCodec sets the audio encoder (e.g., "aac", "libopus")
func (b *Builder) SetAudioCodec(codec string) *Builder {
	b.audioCodec = codec
	return b
}

// SetAudioBitrate sets the audio bitrate (e.g., "192k")
func (b *Builder) SetAudioBitrate(bitrate string) *Builder {
	b.audioBitrate = bitrate
	return b
}

// SetProgress enables machine-readable progress on stdout (-progress pipe:1).
func (b *Builder) SetProgress(enabled bool) *Builder {
	b.progress = enabled
	return b
}

// SetOutput wires the process's stdout and stderr. Nil stderr is captured
// and included in Run's error.
func (b *Builder) SetOutput(stdout, stderr io.Writer) *Builder {
	b.stdout, b.stderr = stdout, stderr
	return b
}

// AddExtraArgs adds custom ffmpeg output arguments
func (b *Builder) AddExtraArgs(args ...string) *Builder {
	b.extraArgs = append(b.extraArgs, args...)
	return b
}

// SetPriority sets the task priority (higher = started first)
func (b *Builder) SetPriority(priority int) command.Command {
	b.priority = priority
	return b
}

// Validate checks that the command can be built.
func (b *Builder) Validate() error {
	if b.desc == nil {
		return fmt.Errorf("graph description is required")
	}
	if len(b.desc.Inputs) < 2 {
		return fmt.Errorf("at least 2 inputs required, got %d", len(b.desc.Inputs))
	}
	if b.desc.VideoOut == "" {
		return fmt.Errorf("graph has no video output")
	}
	if strings.TrimSpace(b.outputPath) == "" {
		return fmt.Errorf("output path cannot be empty")
	}
	if b.videoCodec == "" {
		return fmt.Errorf("video codec cannot be empty")
	}
	if b.desc.AudioOut != "" && b.audioCodec == "" {
		return fmt.Errorf("audio codec cannot be empty when the graph has audio")
	}
	return nil
}

// BuildArgs constructs the ffmpeg arguments: inputs, the filter graph, stream
// mapping and encoder settings.
func (b *Builder) BuildArgs() []string {
	args := []string{"-hide_banner", "-nostdin"}
	if b.desc == nil {
		return args
	}

	for _, in := range b.desc.Inputs {
		args = append(args, "-i", in)
	}

	args = append(args,
		"-filter_complex", b.desc.FilterComplex(),
		"-map", "["+b.desc.VideoOut+"]",
	)
	if b.desc.AudioOut != "" {
		args = append(args, "-map", "["+b.desc.AudioOut+"]")
	}

	args = append(args, "-c:v", b.videoCodec)
	if b.videoBitrate != "" {
		args = append(args, "-b:v", b.videoBitrate)
	}
	if b.crf >= 0 && b.crf <= 51 {
		args = append(args, "-crf", strconv.Itoa(b.crf))
	}
	if b.preset != "" {
		args = append(args, "-preset", b.preset)
	}
	if b.pixelFormat != "" {
		args = append(args, "-pix_fmt", b.pixelFormat)
	}

	if b.desc.AudioOut != "" {
		args = append(args, "-c:a", b.audioCodec)
		if b.audioBitrate != "" {
			args = append(args, "-b:a", b.audioBitrate)
		}
	}

	switch strings.ToLower(filepath.Ext(b.outputPath)) {
	case ".mp4", ".mov", ".m4v":
		args = append(args, "-movflags", "+faststart")
	}

	if b.progress {
		args = append(args, "-progress", "pipe:1", "-nostats")
	}

	args = append(args, b.extraArgs...)
	args = append(args, "-y", b.outputPath)
	return args
}

// Run executes ffmpeg once and waits for it. Cancelling ctx kills the process.
func (b *Builder) Run(ctx context.Context) error {
	if err := b.Validate(); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, b.binary, b.BuildArgs()...)
	cmd.WaitDelay = waitDelay
	cmd.Stdout = b.stdout

	var captured bytes.Buffer
	if b.stderr != nil {
		cmd.Stderr = b.stderr
	} else {
		cmd.Stderr = &captured
	}

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg interrupted: %w", ctxErr)
		}
		if captured.Len() > 0 {
			return fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, captured.String())
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

// DryRun returns the command that would be executed, quoted for a POSIX shell.
func (b *Builder) DryRun() (string, error) {
	if err := b.Validate(); err != nil {
		return "", err
	}
	args := b.BuildArgs()
	quoted := make([]string, 0, len(args)+1)
	quoted = append(quoted, shellQuote(b.binary))
	for _, a := range args {
		quoted = append(quoted, shellQuote(a))
	}
	return strings.Join(quoted, " "), nil
}

// GetPriority returns the task priority
func (b *Builder) GetPriority() int {
	return b.priority
}

// GetTaskType returns the task type
func (b *Builder) GetTaskType() command.TaskType {
	return command.TaskTypeRender
}

// GetInputPath returns the first input
func (b *Builder) GetInputPath() string {
	if b.desc == nil || len(b.desc.Inputs) == 0 {
		return ""
	}
	return b.desc.Inputs[0]
}

// GetOutputPath returns the output path
func (b *Builder) GetOutputPath() string {
	return b.outputPath
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:+=,@%", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
