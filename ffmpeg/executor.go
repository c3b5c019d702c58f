// Package ffmpeg runs emitted filter graphs through a single ffmpeg
// invocation and reports the measured result.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"clipjoin/command/render"
	"clipjoin/ffprobe"
	"clipjoin/graph"
	"clipjoin/models"
)

// ErrOutputLocked is returned when another render is writing the same output.
var ErrOutputLocked = errors.New("output is locked by another render")

// ExecutionError reports a failed or cancelled ffmpeg run. Diagnostic holds
// everything ffmpeg wrote to stderr, unmodified.
type ExecutionError struct {
	Output     string
	Diagnostic string
	ExitCode   int // -1 when the process did not exit normally
	Err        error
}

func (e *ExecutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "render %s failed", e.Output)
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, " (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if d := strings.TrimSpace(e.Diagnostic); d != "" {
		b.WriteString("\n")
		b.WriteString(d)
	}
	return b.String()
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Cancelled reports whether the run stopped because its context ended.
func (e *ExecutionError) Cancelled() bool {
	return errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded)
}

// Settings are the encoder options applied to every render.
type Settings struct {
	VideoCodec   string
	VideoBitrate string
	CRF          int
	Preset       string
	PixelFormat  string
	AudioCodec   string
	AudioBitrate string
	ExtraArgs    []string
}

// DefaultSettings encode H.264/AAC at CRF 20.
func DefaultSettings() Settings {
	return Settings{
		VideoCodec:   "libx264",
		CRF:          20,
		Preset:       "medium",
		PixelFormat:  "yuv420p",
		AudioCodec:   "aac",
		AudioBitrate: "192k",
	}
}

// Executor invokes ffmpeg exactly once per Execute call.
type Executor struct {
	binary     string
	prober     ffprobe.Prober
	settings   Settings
	onProgress models.ProgressCallback
	logger     *slog.Logger
}

// NewExecutor creates an executor that measures outputs with prober.
// An empty binary uses FFMPEG_PATH or "ffmpeg" from PATH.
func NewExecutor(binary string, prober ffprobe.Prober) *Executor {
	if binary == "" {
		binary = os.Getenv("FFMPEG_PATH")
	}
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Executor{
		binary:   binary,
		prober:   prober,
		settings: DefaultSettings(),
		logger:   slog.Default(),
	}
}

// SetSettings replaces the encoder settings.
func (e *Executor) SetSettings(s Settings) *Executor {
	e.settings = s
	return e
}

// SetProgressCallback receives progress updates for non-quiet runs.
func (e *Executor) SetProgressCallback(cb models.ProgressCallback) *Executor {
	e.onProgress = cb
	return e
}

// SetLogger sets the logger; nil keeps the current one.
func (e *Executor) SetLogger(logger *slog.Logger) *Executor {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// Binary returns the ffmpeg executable in use.
func (e *Executor) Binary() string { return e.binary }

// Command returns the render command for desc without running it.
func (e *Executor) Command(desc *graph.Description, outputPath string) *render.Builder {
	s := e.settings
	return render.NewBuilder(desc, outputPath).
		SetBinary(e.binary).
		SetVideoCodec(s.VideoCodec).
		SetVideoBitrate(s.VideoBitrate).
		SetCRF(s.CRF).
		SetPreset(s.Preset).
		SetPixelFormat(s.PixelFormat).
		SetAudioCodec(s.AudioCodec).
		SetAudioBitrate(s.AudioBitrate).
		AddExtraArgs(s.ExtraArgs...)
}

// Execute renders desc to outputPath with a single ffmpeg process.
//
// ffmpeg writes to a hidden sibling file which is renamed onto outputPath
// only after a successful exit, so a failed or cancelled run never leaves a
// partial file at outputPath. When quiet is false and a progress callback is
// set, progress is reported while ffmpeg runs.
//
// Returns *ExecutionError when ffmpeg fails or ctx is cancelled.
func (e *Executor) Execute(ctx context.Context, desc *graph.Description, outputPath string, quiet bool) (*models.RenderResult, error) {
	if desc == nil {
		return nil, fmt.Errorf("graph description is required")
	}
	if strings.TrimSpace(outputPath) == "" {
		return nil, fmt.Errorf("output path cannot be empty")
	}
	target, err := filepath.Abs(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output path: %w", err)
	}
	for _, in := range desc.Inputs {
		if abs, err := filepath.Abs(in); err == nil && abs == target {
			return nil, fmt.Errorf("output %s is also an input", target)
		}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	lock := flock.New(lockPath(target))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire output lock: %w", err)
	}
	if !locked {
		return nil, &ExecutionError{Output: target, ExitCode: -1, Err: ErrOutputLocked}
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			e.logger.Warn("failed to release output lock", "output", target, "error", err)
		}
	}()

	partial := partialPath(target, desc.SequenceID)
	cmd := e.Command(desc, partial)

	var stderr bytes.Buffer
	progressDone := make(chan struct{})
	var progressWriter *io.PipeWriter
	if !quiet && e.onProgress != nil {
		pr, pw := io.Pipe()
		progressWriter = pw
		cmd.SetProgress(true).SetOutput(pw, &stderr)
		go func() {
			defer close(progressDone)
			progress := models.NewEncodingProgress(desc.Duration)
			progress.State = models.ProgressStateStarting
			if err := NewProgressParser().StreamProgress(pr, progress, e.onProgress); err != nil {
				e.logger.Debug("progress stream ended", "output", target, "error", err)
			}
			_, _ = io.Copy(io.Discard, pr)
		}()
	} else {
		close(progressDone)
		cmd.SetOutput(nil, &stderr)
	}

	e.logger.Info("render started",
		"sequence_id", desc.SequenceID,
		"output", target,
		"inputs", len(desc.Inputs),
		"expected_duration", desc.Duration)
	if line, err := cmd.DryRun(); err == nil {
		e.logger.Debug("ffmpeg command", "sequence_id", desc.SequenceID, "command", line)
	}

	start := time.Now()
	runErr := cmd.Run(ctx)
	if progressWriter != nil {
		progressWriter.Close()
	}
	<-progressDone

	if runErr != nil {
		e.discard(partial)
		execErr := &ExecutionError{Output: target, Diagnostic: stderr.String(), ExitCode: -1, Err: runErr}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			execErr.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			execErr.Err = ctxErr
			e.logger.Warn("render cancelled", "sequence_id", desc.SequenceID, "output", target)
		} else {
			e.logger.Error("render failed", "sequence_id", desc.SequenceID, "output", target, "exit_code", execErr.ExitCode)
		}
		return nil, execErr
	}

	if err := os.Rename(partial, target); err != nil {
		e.discard(partial)
		return nil, fmt.Errorf("failed to move render into place: %w", err)
	}

	if f, ok := e.prober.(interface{ Forget(string) }); ok {
		f.Forget(target)
	}
	info, err := e.prober.Probe(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to measure output: %w", err)
	}

	result, err := models.NewRenderResult(desc.SequenceID, target, info.Duration, info.SizeBytes)
	if err != nil {
		return nil, err
	}
	result.ExpectedDuration = desc.Duration
	result.Elapsed = time.Since(start)

	e.logger.Info("render completed",
		"sequence_id", desc.SequenceID,
		"output", target,
		"duration", info.Duration,
		"size_bytes", info.SizeBytes,
		"elapsed", result.Elapsed.Round(time.Millisecond))
	return result, nil
}

func (e *Executor) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.logger.Warn("failed to remove partial output", "path", path, "error", err)
	}
}

// partialPath returns the hidden sibling ffmpeg writes to. The extension is
// kept so ffmpeg still picks the container from it.
func partialPath(target, sequenceID string) string {
	if sequenceID == "" {
		sequenceID = uuid.NewString()
	}
	dir, name := filepath.Split(target)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s.partial%s", base, sequenceID, ext))
}

// lockPath derives a stable lock file for target outside the output directory.
func lockPath(target string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+target))
	return filepath.Join(os.TempDir(), "clipjoin-"+id.String()+".lock")
}

// IsPartial reports whether name looks like an in-progress render file.
func IsPartial(name string) bool {
	name = filepath.Base(name)
	return strings.HasPrefix(name, ".") && strings.Contains(name, ".partial")
}
